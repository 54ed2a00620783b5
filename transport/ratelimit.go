package transport

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps a token bucket per image host. A scroll through the
// grid can start dozens of thumbnail fetches at once; the feed CDN answers
// bursts with HTTP 429.
//
// A RoundTripper obtained for a host halves that host's limit once on a 429.
// Recover nudges the limit back up towards RPS after a successful fetch.
// This is pacing only; a throttled fetch still fails and is not retried.
type RateLimiters struct {
	RPS    float64
	Burst  int
	Logger log.Logger

	mu      sync.Mutex
	perHost map[string]*rate.Limiter
}

func (l *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > l.RPS {
		return l.RPS
	}
	return limit
}

// limiterLocked returns the limiter for host, creating it at full rate.
func (l *RateLimiters) limiterLocked(host string) *rate.Limiter {
	if l.perHost == nil {
		l.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := l.perHost[host]
	if !ok {
		burst := l.Burst
		if burst < 1 {
			burst = 1
		}
		rl = rate.NewLimiter(rate.Limit(l.RPS), burst)
		l.perHost[host] = rl
	}
	return rl
}

func (l *RateLimiters) setLimit(host string, scale func(float64) float64, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl := l.limiterLocked(host)
	old := float64(rl.Limit())
	next := l.clip(scale(old))
	if next == old {
		return
	}
	rl.SetLimit(rate.Limit(next))
	if l.Logger != nil {
		level.Info(l.Logger).Log("msg", msg, "host", host, "limit", strconv.FormatFloat(next, 'f', 2, 64))
	}
}

func (l *RateLimiters) backOff(host string) {
	l.setLimit(host, func(v float64) float64 { return v / backOffBy }, "reducing rate limit")
}

// Recover raises host's limit after a successful fetch.
func (l *RateLimiters) Recover(host string) {
	l.mu.Lock()
	_, known := l.perHost[host]
	l.mu.Unlock()
	if !known {
		return
	}
	l.setLimit(host, func(v float64) float64 { return v * recoverBy }, "increasing rate limit")
}

// Limit returns the current limit for host (RPS if host is unknown).
func (l *RateLimiters) Limit(host string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rl, ok := l.perHost[host]; ok {
		return float64(rl.Limit())
	}
	return l.RPS
}

// RoundTripper wraps rt with host's limiter.
func (l *RateLimiters) RoundTripper(rt http.RoundTripper, host string) http.RoundTripper {
	l.mu.Lock()
	rl := l.limiterLocked(host)
	l.mu.Unlock()

	var once sync.Once
	return &limitedRoundTripper{
		rl: rl,
		tx: rt,
		slowDown: func() {
			once.Do(func() { l.backOff(host) })
		},
	}
}

type limitedRoundTripper struct {
	rl       *rate.Limiter
	tx       http.RoundTripper
	slowDown func()
}

func (t *limitedRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait fails early if the context deadline cannot be met.
	if err := t.rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		t.slowDown()
	}
	return resp, nil
}
