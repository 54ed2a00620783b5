package cache

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy: nominated by the eviction policy (e.g. 2Q probation overflow).
	EvictPolicy EvictReason = iota
	// EvictCapacity: removed to satisfy the entry count limit.
	EvictCapacity
	// EvictCost: removed to satisfy the MaxCost (memory) limit.
	EvictCost
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictCost:
		return "cost"
	default:
		return "policy"
	}
}

// Metrics exposes cache-level observability hooks.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Size reports cache-wide totals after a mutation.
	Size(entries int, cost int64)
}

// NoopMetrics is the default Metrics and does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                {}
func (NoopMetrics) Miss()               {}
func (NoopMetrics) Evict(EvictReason)   {}
func (NoopMetrics) Size(_ int, _ int64) {}

var _ Metrics = NoopMetrics{}
