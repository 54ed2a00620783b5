package pipeline

import "time"

// Metrics exposes pipeline-level observability hooks.
type Metrics interface {
	// Request is called once per request; hit reports a synchronous cache hit.
	Request(hit bool)
	// Coalesced is called when a request joins an in-flight load.
	Coalesced()
	// Load is called when a background load finishes; err is nil on success.
	Load(d time.Duration, err error)
	// InFlight reports the number of keys currently loading.
	InFlight(n int)
}

// NoopMetrics is the default Metrics and does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Request(bool)              {}
func (NoopMetrics) Coalesced()                {}
func (NoopMetrics) Load(time.Duration, error) {}
func (NoopMetrics) InFlight(int)              {}

var _ Metrics = NoopMetrics{}
