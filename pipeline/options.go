package pipeline

import (
	"time"

	"github.com/go-kit/kit/log"

	"github.com/IvanBrykalov/thumbcache/cache"
	"github.com/IvanBrykalov/thumbcache/delivery"
	"github.com/IvanBrykalov/thumbcache/imagecodec"
	"github.com/IvanBrykalov/thumbcache/transport"
)

// Options configures a Pipeline. Only Fetcher is required; defaults are
// applied in New:
//   - nil Cache    => a new unbounded cache.Sharded
//   - nil Decoder  => imagecodec.Standard{}
//   - nil Delivery => delivery.Inline{} (callbacks run on the loading goroutine)
//   - nil Logger   => no logging
//   - nil Metrics  => NoopMetrics
type Options struct {
	Cache    cache.Cache
	Fetcher  transport.Fetcher
	Decoder  imagecodec.Decoder
	Delivery delivery.Executor

	// MaxConcurrentFetches bounds simultaneous background loads.
	// 0 means unbounded: one goroutine per missing key.
	MaxConcurrentFetches int64

	// FetchTimeout bounds one load (fetch + decode). 0 disables it.
	FetchTimeout time.Duration

	Logger  log.Logger
	Metrics Metrics
}
