// Command bench drives the image pipeline with a synthetic Zipf workload and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/IvanBrykalov/thumbcache/cache"
	pmet "github.com/IvanBrykalov/thumbcache/metrics/prom"
	"github.com/IvanBrykalov/thumbcache/photoerr"
	"github.com/IvanBrykalov/thumbcache/pipeline"
	"github.com/IvanBrykalov/thumbcache/policy/twoq"
	"github.com/IvanBrykalov/thumbcache/transport"
)

func main() {
	fs := pflag.NewFlagSet("bench", pflag.ExitOnError)
	var (
		capacity = fs.Int("cap", 10_000, "cache capacity in images (0 = unbounded)")
		shards   = fs.Int("shards", 0, "number of shards (0 = auto)")
		policy   = fs.String("policy", "lru", "eviction policy: lru | 2q")

		workers  = fs.Int("workers", 2*runtime.GOMAXPROCS(0), "number of requesting goroutines")
		duration = fs.Duration("duration", 10*time.Second, "benchmark duration")
		fetches  = fs.Int64("max-fetches", 64, "concurrent loads (0 = unbounded)")
		latency  = fs.Duration("latency", 20*time.Millisecond, "simulated fetch latency")
		failPct  = fs.Int("fail", 0, "percentage of fetches that fail [0..100]")
		size     = fs.Int("size", 240, "thumbnail edge in pixels")

		keys  = fs.Int("keys", 100_000, "distinct thumbnail URLs")
		zipfS = fs.Float64("zipf-s", 1.1, "Zipf s > 1 (skew)")
		zipfV = fs.Float64("zipf-v", 1.0, "Zipf v")
		seed  = fs.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = fs.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = fs.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	)
	fs.Parse(os.Args[1:])

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(log.With(logger, "ts", log.DefaultTimestampUTC), level.AllowInfo())

	if *pprofAddr != "" {
		go func() {
			level.Info(logger).Log("msg", "pprof listening", "addr", *pprofAddr)
			level.Error(logger).Log("err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	metrics := pmet.New(nil, "thumbcache", nil)
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			level.Info(logger).Log("msg", "metrics listening", "addr", *metricsAddr)
			level.Error(logger).Log("err", http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// Cache and pipeline.
	opt := cache.Options{
		Capacity: *capacity,
		Shards:   *shards,
		Metrics:  metrics,
	}
	switch *policy {
	case "lru":
		// nil => LRU by default
	case "2q":
		opt.Policy = twoq.Sized(*capacity, *shards)
	default:
		level.Error(logger).Log("msg", "unknown policy (use lru or 2q)", "policy", *policy)
		os.Exit(2)
	}
	c := cache.New(opt)
	defer func() { _ = c.Close() }()

	var fetched uint64
	fetcher := syntheticFetcher(thumbnail(*size), *latency, *failPct, *seed, &fetched)
	p, err := pipeline.New(pipeline.Options{
		Cache:                c,
		Fetcher:              fetcher,
		MaxConcurrentFetches: *fetches,
		Metrics:              metrics,
	})
	if err != nil {
		level.Error(logger).Log("msg", "building pipeline", "err", err)
		os.Exit(1)
	}

	keysMax := uint64(*keys - 1)
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// Load generation: every worker waits for its image (or failure) before
	// asking for the next, like a slot waiting on a thumbnail.
	var total, delivered, failed uint64
	var waitNanos int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// rand.Rand is not goroutine-safe.
			r := rand.New(rand.NewSource(*seed + int64(id)*9973))
			zipf := rand.NewZipf(r, *zipfS, *zipfV, keysMax)
			done := make(chan struct{}, 1)

			for ctx.Err() == nil {
				url := "https://thumbs.bench/" + strconv.FormatUint(zipf.Uint64(), 10) + "_m.png"
				began := time.Now()
				atomic.AddUint64(&total, 1)
				p.Submit(pipeline.Request{
					URL: url,
					OnReady: func(image.Image) {
						atomic.AddUint64(&delivered, 1)
						done <- struct{}{}
					},
					OnFailure: func(error) {
						atomic.AddUint64(&failed, 1)
						done <- struct{}{}
					},
				})
				<-done
				atomic.AddInt64(&waitNanos, int64(time.Since(began)))
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := p.Close(closeCtx); err != nil {
		level.Warn(logger).Log("msg", "closing pipeline", "err", err)
	}

	// Report.
	ops := atomic.LoadUint64(&total)
	st := p.Stats()
	hitRate := 0.0
	if st.Requests > 0 {
		hitRate = float64(st.Hits) / float64(st.Requests) * 100
	}
	avgWait := time.Duration(0)
	if ops > 0 {
		avgWait = time.Duration(atomic.LoadInt64(&waitNanos) / int64(ops))
	}

	fmt.Printf("policy=%s cap=%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *capacity, *shards, workersN, *keys, elapsed, *seed)
	fmt.Printf("requests=%d (%.0f req/s)  delivered=%d  failed=%d  avg-wait=%v\n",
		ops, float64(ops)/elapsed.Seconds(), atomic.LoadUint64(&delivered), atomic.LoadUint64(&failed), avgWait)
	fmt.Printf("hits=%d  hit-rate=%.2f%%  coalesced=%d  loads=%d  fetches=%d\n",
		st.Hits, hitRate, st.Coalesced, st.Loads, atomic.LoadUint64(&fetched))
	fmt.Printf("Len()=%d\n", c.Len())
}

// thumbnail encodes a size x size PNG once; every synthetic fetch returns it.
func thumbnail(size int) []byte {
	if size < 1 {
		size = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func syntheticFetcher(data []byte, latency time.Duration, failPct int, seed int64, fetched *uint64) transport.Fetcher {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(seed))
	return transport.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		atomic.AddUint64(fetched, 1)
		if latency > 0 {
			t := time.NewTimer(latency)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, photoerr.Network(url, 0, ctx.Err())
			case <-t.C:
			}
		}
		mu.Lock()
		fail := r.Intn(100) < failPct
		mu.Unlock()
		if fail {
			return nil, photoerr.Network(url, http.StatusServiceUnavailable, nil)
		}
		return data, nil
	})
}
