// Command photogrid shows the public photo feed as a scrolling thumbnail grid
// backed by the image pipeline. The grid is exposed over HTTP; -once renders
// the first screen to stdout and exits.
package main

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/IvanBrykalov/thumbcache/cache"
	"github.com/IvanBrykalov/thumbcache/delivery"
	"github.com/IvanBrykalov/thumbcache/feed"
	"github.com/IvanBrykalov/thumbcache/grid"
	"github.com/IvanBrykalov/thumbcache/imagecodec"
	pmet "github.com/IvanBrykalov/thumbcache/metrics/prom"
	"github.com/IvanBrykalov/thumbcache/photoerr"
	"github.com/IvanBrykalov/thumbcache/pipeline"
	"github.com/IvanBrykalov/thumbcache/policy"
	"github.com/IvanBrykalov/thumbcache/policy/lru"
	"github.com/IvanBrykalov/thumbcache/policy/twoq"
	"github.com/IvanBrykalov/thumbcache/transport"
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("photogrid", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  photogrid renders the public photo feed as a thumbnail grid.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		listenAddr   = fs.StringP("listen", "l", ":8080", "Listen address for the grid API and /metrics")
		once         = fs.Bool("once", false, "Render the first screen to stdout and exit")
		feedURL      = fs.String("feed-url", feed.DefaultURL, "Photo feed URL")
		tags         = fs.StringSlice("tags", nil, "Only show photos with these tags")
		logLevel     = fs.String("log-level", "info", "Log level: debug, info, warn, error")
		width        = fs.Float64("width", 375, "Grid width in points")
		viewHeight   = fs.Float64("view-height", 667, "Viewport height in points")
		slots        = fs.Int("slots", 0, "Reusable slot pool size (0 = visible items plus one row)")
		showFailures = fs.Bool("show-failures", false, "Mark slots whose thumbnail failed instead of leaving them blank")
		capacity     = fs.Int("cache-capacity", 0, "Maximum cached thumbnails (0 = unbounded)")
		maxCostMB    = fs.Int64("cache-max-mb", 0, "Maximum decoded pixel memory in MiB (0 = unbounded)")
		shards       = fs.Int("cache-shards", 0, "Cache shards (0 = auto)")
		policyName   = fs.String("cache-policy", "lru", "Eviction policy once a limit is set: lru | 2q")
		maxFetches   = fs.Int64("max-fetches", 8, "Concurrent thumbnail loads (0 = unbounded)")
		fetchTimeout = fs.Duration("fetch-timeout", 15*time.Second, "Timeout for one thumbnail load (0 = none)")
		maxPixels    = fs.Int64("max-pixels", 0, "Reject images with more pixels than this (0 = no limit)")
		rps          = fs.Float64("rps", 0, "Requests per second per image host (0 = unlimited)")
		burst        = fs.Int("burst", 4, "Request burst per image host")
		scrollEvery  = fs.Duration("scroll-every", 0, "Scroll one row down at this interval (0 = off)")
	)
	fs.Parse(os.Args[1:])

	// Logger domain.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
		logger = level.NewFilter(logger, allowLevel(*logLevel))
	}

	// Transport component.
	var fetcher *transport.HTTP
	{
		opt := transport.Options{Logger: log.With(logger, "component", "transport")}
		if *rps > 0 {
			opt.RateLimit = &transport.RateLimiters{
				RPS:    *rps,
				Burst:  *burst,
				Logger: log.With(logger, "component", "ratelimit"),
			}
		}
		fetcher = transport.NewHTTP(opt)
	}

	metrics := pmet.New(nil, "photogrid", nil)

	// Cache component.
	var imageCache *cache.Sharded
	{
		var p policy.Policy
		switch *policyName {
		case "lru":
			p = lru.New()
		case "2q":
			p = twoq.Sized(*capacity, *shards)
		default:
			level.Error(logger).Log("msg", "unknown cache policy", "policy", *policyName)
			os.Exit(2)
		}
		imageCache = cache.New(cache.Options{
			Capacity: *capacity,
			MaxCost:  *maxCostMB << 20,
			Shards:   *shards,
			Policy:   p,
			Metrics:  metrics,
			OnEvict: func(key string, _ image.Image, reason cache.EvictReason) {
				level.Debug(logger).Log("msg", "thumbnail evicted", "key", key, "reason", reason)
			},
		})
	}

	loop := delivery.NewLoop(log.With(logger, "component", "delivery")).Start()

	// Pipeline component.
	pipe, err := pipeline.New(pipeline.Options{
		Cache:                imageCache,
		Fetcher:              fetcher,
		Decoder:              imagecodec.Standard{MaxPixels: *maxPixels},
		Delivery:             loop,
		MaxConcurrentFetches: *maxFetches,
		FetchTimeout:         *fetchTimeout,
		Logger:               log.With(logger, "component", "pipeline"),
		Metrics:              metrics,
	})
	if err != nil {
		level.Error(logger).Log("msg", "building pipeline", "err", err)
		os.Exit(1)
	}

	// Grid component.
	layout := grid.DefaultLayout(*width)
	pool := *slots
	if pool <= 0 {
		pool = layout.VisibleItems(*viewHeight) + layout.Columns
	}
	renderer := grid.NewRenderer(pipe, logger)
	renderer.ShowFailures = *showFailures
	g := grid.New(loop, renderer, layout, pool)

	feedClient := &feed.Client{
		Fetcher: fetcher,
		URL:     *feedURL,
		Logger:  log.With(logger, "component", "feed"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	photos := feedClient.Photos(ctx, *tags...)
	if err := g.Load(ctx, photos); err != nil {
		level.Error(logger).Log("msg", "loading grid", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "grid loaded", "photos", len(photos), "slots", pool)

	shutdown := func() {
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if err := pipe.Close(sctx); err != nil {
			level.Warn(logger).Log("msg", "closing pipeline", "err", err)
		}
		loop.Close()
		if err := loop.Wait(sctx); err != nil {
			level.Warn(logger).Log("msg", "draining delivery loop", "err", err)
		}
		_ = imageCache.Close()
		level.Info(logger).Log("msg", "stopped", "stats", pipe.Stats())
	}

	if *once {
		waitIdle(ctx, pipe, loop, 30*time.Second)
		states, err := g.Snapshot(ctx)
		if err != nil {
			level.Error(logger).Log("msg", "snapshot", "err", err)
			os.Exit(1)
		}
		for _, st := range states {
			if st.Index < 0 {
				continue
			}
			status := "blank"
			switch {
			case st.Image != nil:
				b := st.Image.Bounds()
				status = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
			case st.Err != nil:
				status = "failed:" + photoerr.Kind(st.Err)
			}
			fmt.Printf("%3d  %-10s %s\n", st.Index, status, st.Title)
		}
		shutdown()
		return
	}

	// Mechanical components.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	if *scrollEvery > 0 {
		go autoScroll(ctx, g, *scrollEvery, log.With(logger, "component", "scroll"))
	}

	srv := &server{
		grid:   g,
		feed:   feedClient,
		tags:   *tags,
		stats:  pipe.Stats,
		logger: log.With(logger, "component", "http"),
	}
	httpServer := &http.Server{Addr: *listenAddr, Handler: srv.router(promhttp.Handler())}
	go func() {
		level.Info(logger).Log("addr", *listenAddr, "msg", "listening")
		errc <- httpServer.ListenAndServe()
	}()

	level.Info(logger).Log("exit", <-errc)
	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpServer.Shutdown(sctx)
	scancel()
	shutdown()
}

func allowLevel(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// waitIdle returns once no load is in flight and every queued delivery has
// run, or after limit.
func waitIdle(ctx context.Context, pipe *pipeline.Pipeline, loop *delivery.Loop, limit time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		if pipe.Stats().InFlight == 0 {
			_ = loop.Do(ctx, func() {})
			if pipe.Stats().InFlight == 0 {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// autoScroll moves the grid down one row per tick and wraps to the top.
func autoScroll(ctx context.Context, g *grid.Grid, every time.Duration, logger log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	first := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		n, err := g.Len(ctx)
		if err != nil {
			return
		}
		first += g.Layout().Columns
		if first >= n {
			first = 0
		}
		if err := g.ScrollTo(ctx, first); err != nil {
			level.Warn(logger).Log("msg", "scroll", "err", err)
			return
		}
		level.Debug(logger).Log("msg", "scrolled", "first", first)
	}
}
