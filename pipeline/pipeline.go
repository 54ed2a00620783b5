package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/IvanBrykalov/thumbcache/cache"
	"github.com/IvanBrykalov/thumbcache/delivery"
	"github.com/IvanBrykalov/thumbcache/imagecodec"
	"github.com/IvanBrykalov/thumbcache/internal/inflight"
	"github.com/IvanBrykalov/thumbcache/photoerr"
	"github.com/IvanBrykalov/thumbcache/transport"
)

// ErrClosed is reported to OnFailure for misses submitted after Close.
var ErrClosed = errors.New("pipeline: closed")

// Request asks for the image behind URL, cached under Key.
// An empty Key defaults to URL.
type Request struct {
	Key string
	URL string

	// OnReady receives the image: synchronously on a cache hit, otherwise on
	// the delivery executor. It never runs for a failed load.
	OnReady func(image.Image)
	// OnFailure is optional. When set, it receives the load error on the
	// delivery executor.
	OnFailure func(error)
}

type waiter struct {
	onReady   func(image.Image)
	onFailure func(error)
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Requests  int64
	Hits      int64
	Coalesced int64
	Loads     int64
	Failures  int64
	InFlight  int
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	cache   cache.Cache
	fetcher transport.Fetcher
	decoder imagecodec.Decoder
	deliver delivery.Executor
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  log.Logger
	metrics Metrics

	pending inflight.Group[waiter]

	// mu orders wg.Add against Close.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	requests  atomic.Int64
	hits      atomic.Int64
	coalesced atomic.Int64
	loads     atomic.Int64
	failures  atomic.Int64
}

// New builds a pipeline. It fails only if no Fetcher is configured.
func New(opt Options) (*Pipeline, error) {
	if opt.Fetcher == nil {
		return nil, errors.New("pipeline: Fetcher is required")
	}
	if opt.Cache == nil {
		opt.Cache = cache.New(cache.Options{})
	}
	if opt.Decoder == nil {
		opt.Decoder = imagecodec.Standard{}
	}
	if opt.Delivery == nil {
		opt.Delivery = delivery.Inline{}
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	p := &Pipeline{
		cache:   opt.Cache,
		fetcher: opt.Fetcher,
		decoder: opt.Decoder,
		deliver: opt.Delivery,
		timeout: opt.FetchTimeout,
		logger:  log.With(opt.Logger, "component", "pipeline"),
		metrics: opt.Metrics,
	}
	if opt.MaxConcurrentFetches > 0 {
		p.sem = semaphore.NewWeighted(opt.MaxConcurrentFetches)
	}
	return p, nil
}

// Cache returns the cache the pipeline populates.
func (p *Pipeline) Cache() cache.Cache { return p.cache }

// Request is Submit without a failure callback: failures stay silent.
func (p *Pipeline) Request(key, url string, onReady func(image.Image)) {
	p.Submit(Request{Key: key, URL: url, OnReady: onReady})
}

// Submit serves r from the cache or schedules its load. It never blocks on
// I/O.
func (p *Pipeline) Submit(r Request) {
	if r.Key == "" {
		r.Key = r.URL
	}
	p.requests.Add(1)

	if img, ok := p.cache.Get(r.Key); ok {
		p.hits.Add(1)
		p.metrics.Request(true)
		if r.OnReady != nil {
			r.OnReady(img)
		}
		return
	}
	p.metrics.Request(false)

	if !p.pending.Join(r.Key, waiter{onReady: r.OnReady, onFailure: r.OnFailure}) {
		p.coalesced.Add(1)
		p.metrics.Coalesced()
		return
	}

	// Leader. A load that finished between our cache probe and Join stored
	// its image before leaving the registry, so a second probe settles it.
	// The miss was already counted; peek when the cache allows it.
	if img, ok := p.reprobe(r.Key); ok {
		p.resolve(r.Key, img)
		return
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.fail(r.Key, r.URL, ErrClosed)
		return
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	p.metrics.InFlight(p.pending.Len())
	go p.load(r.Key, r.URL)
}

func (p *Pipeline) reprobe(key string) (image.Image, bool) {
	if pk, ok := p.cache.(cache.Peeker); ok {
		return pk.Peek(key)
	}
	return p.cache.Get(key)
}

// load runs on a background goroutine; it is the only place that blocks.
func (p *Pipeline) load(key, url string) {
	defer p.wg.Done()

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	img, err := p.fetchAndDecode(ctx, key, url)
	p.loads.Add(1)
	p.metrics.Load(time.Since(start), err)

	if err != nil {
		p.fail(key, url, err)
		return
	}
	// Insert before leaving the registry; see Submit.
	p.cache.Set(key, img)
	p.resolve(key, img)
}

func (p *Pipeline) fetchAndDecode(ctx context.Context, key, url string) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("load %s panicked: %v", key, r)
		}
	}()

	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, photoerr.Network(url, 0, errors.Wrap(err, "waiting for fetch slot"))
		}
		defer p.sem.Release(1)
	}

	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		if !photoerr.IsNetwork(err) {
			err = photoerr.Network(url, 0, err)
		}
		return nil, err
	}
	img, err = p.decoder.Decode(url, data)
	if err != nil {
		if !photoerr.IsDecode(err) {
			err = photoerr.Decode(url, err)
		}
		return nil, err
	}
	if img == nil {
		return nil, photoerr.Decode(url, errors.New("decoder returned no image"))
	}
	return img, nil
}

// resolve fans img out to every queued waiter in one delivery task.
func (p *Pipeline) resolve(key string, img image.Image) {
	waiters := p.pending.Complete(key)
	p.metrics.InFlight(p.pending.Len())
	if len(waiters) == 0 {
		return
	}
	p.deliver.Post(func() {
		for _, w := range waiters {
			if w.onReady != nil {
				w.onReady(img)
			}
		}
	})
}

// fail forgets key so that a later request retries, logs err, and reports
// it to the waiters that asked for failures.
func (p *Pipeline) fail(key, url string, err error) {
	waiters := p.pending.Complete(key)
	p.failures.Add(1)
	p.metrics.InFlight(p.pending.Len())
	level.Warn(p.logger).Log("msg", "image load failed", "key", key, "url", url, "kind", photoerr.Kind(err), "err", err)

	var notify []func(error)
	for _, w := range waiters {
		if w.onFailure != nil {
			notify = append(notify, w.onFailure)
		}
	}
	if len(notify) == 0 {
		return
	}
	p.deliver.Post(func() {
		for _, fn := range notify {
			fn(err)
		}
	})
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Requests:  p.requests.Load(),
		Hits:      p.hits.Load(),
		Coalesced: p.coalesced.Load(),
		Loads:     p.loads.Load(),
		Failures:  p.failures.Load(),
		InFlight:  p.pending.Len(),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("requests=%d hits=%d coalesced=%d loads=%d failures=%d inflight=%d",
		s.Requests, s.Hits, s.Coalesced, s.Loads, s.Failures, s.InFlight)
}

// Close stops scheduling new loads and waits for running ones, or for ctx.
// Cache hits are still served after Close. Close does not close the cache.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
