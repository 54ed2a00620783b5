package cache

import (
	"image"
	"image/color"
	"strconv"
	"sync"
	"testing"

	"github.com/IvanBrykalov/thumbcache/policy/twoq"
)

func solid(w, h int, c color.Gray) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = c.Y
	}
	return img
}

type countingMetrics struct {
	mu           sync.Mutex
	hits, misses int
	evicts       map[EvictReason]int
	lastEntries  int
	lastCost     int64
}

func (m *countingMetrics) Hit()  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) Miss() { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) Evict(r EvictReason) {
	m.mu.Lock()
	if m.evicts == nil {
		m.evicts = map[EvictReason]int{}
	}
	m.evicts[r]++
	m.mu.Unlock()
}
func (m *countingMetrics) Size(n int, cost int64) {
	m.mu.Lock()
	m.lastEntries, m.lastCost = n, cost
	m.mu.Unlock()
}

func TestCache_GetSetRemove(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	t.Cleanup(func() { _ = c.Close() })

	const key = "http://x/a.jpg"
	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache must miss")
	}
	img := solid(2, 2, color.Gray{Y: 1})
	c.Set(key, img)
	if got, ok := c.Get(key); !ok || got != img {
		t.Fatalf("Get after Set: got %v ok=%v", got, ok)
	}
	if !c.Remove(key) {
		t.Fatal("Remove of resident key must be true")
	}
	if c.Remove(key) {
		t.Fatal("second Remove must be false")
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("removed key must miss")
	}
}

// Re-setting a key replaces the image and keeps a single entry.
func TestCache_SetSameKeyTwiceKeepsLatest(t *testing.T) {
	t.Parallel()

	c := New(Options{Shards: 1})
	first, second := solid(1, 1, color.Gray{Y: 1}), solid(1, 1, color.Gray{Y: 2})

	c.Set("k", first)
	c.Set("k", second)

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if got, _ := c.Get("k"); got != second {
		t.Fatal("Get must return the latest image")
	}
}

func TestCache_NilImageIgnored(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	c.Set("k", nil)
	if _, ok := c.Get("k"); ok || c.Len() != 0 {
		t.Fatal("nil image must not be stored")
	}
}

// Default options never evict.
func TestCache_UnboundedByDefault(t *testing.T) {
	t.Parallel()

	c := New(Options{Shards: 2})
	img := solid(1, 1, color.Gray{})
	for i := 0; i < 5_000; i++ {
		c.Set("k"+strconv.Itoa(i), img)
	}
	if c.Len() != 5_000 {
		t.Fatalf("Len = %d, want 5000", c.Len())
	}
}

// Single shard, capacity 2: promoting "a" makes "b" the LRU victim.
func TestCache_CapacityEvictsLRU(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	var evicted []string
	c := New(Options{
		Capacity: 2,
		Shards:   1,
		Metrics:  m,
		OnEvict:  func(k string, _ image.Image, _ EvictReason) { evicted = append(evicted, k) },
	})
	img := solid(1, 1, color.Gray{})

	c.Set("a", img)
	c.Set("b", img)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expect hit for a")
	}
	c.Set("c", img)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a must survive (promoted)")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("OnEvict calls = %v, want [b]", evicted)
	}
	if m.evicts[EvictCapacity] != 1 {
		t.Fatalf("capacity evictions = %d, want 1", m.evicts[EvictCapacity])
	}
	if m.lastEntries != 2 {
		t.Fatalf("reported size = %d, want 2", m.lastEntries)
	}
}

func TestCache_MaxCostEvictsByPixelBytes(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	// each 4x4 image costs 64; budget fits two.
	c := New(Options{MaxCost: 128, Shards: 1, Metrics: m})

	c.Set("a", solid(4, 4, color.Gray{}))
	c.Set("b", solid(4, 4, color.Gray{}))
	c.Set("c", solid(4, 4, color.Gray{}))

	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be evicted by cost")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if m.lastCost != 128 {
		t.Fatalf("reported cost = %d, want 128", m.lastCost)
	}
	if m.evicts[EvictCost] != 1 {
		t.Fatalf("cost evictions = %d, want 1", m.evicts[EvictCost])
	}
}

// An image larger than the whole budget is still kept until the next insert.
func TestCache_OversizedImageKeptAlone(t *testing.T) {
	t.Parallel()

	c := New(Options{MaxCost: 16, Shards: 1})
	big := solid(10, 10, color.Gray{})
	c.Set("big", big)
	if got, ok := c.Get("big"); !ok || got != big {
		t.Fatal("oversized image must be served once resident")
	}
}

func TestCache_TwoQPolicyWired(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New(Options{Capacity: 100, Shards: 1, Policy: twoq.New(1, 4), Metrics: m})
	img := solid(1, 1, color.Gray{})

	c.Set("a", img)
	c.Set("b", img) // probation overflow: a is nominated

	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be evicted by 2Q probation")
	}
	if m.evicts[EvictPolicy] != 1 {
		t.Fatalf("policy evictions = %d, want 1", m.evicts[EvictPolicy])
	}

	c.Set("a", img) // ghost readmission goes to the protected part
	c.Set("c", img) // probation overflow evicts b, not a
	if _, ok := c.Get("a"); !ok {
		t.Fatal("readmitted ghost must survive")
	}
}

func TestCache_UnboundedIgnoresTwoQ(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New(Options{Shards: 1, Policy: twoq.New(2, 4), Metrics: m})
	img := solid(1, 1, color.Gray{})

	for i := 0; i < 10; i++ {
		c.Set("k"+strconv.Itoa(i), img)
	}
	if n := c.Len(); n != 10 {
		t.Fatalf("Len = %d, want 10: an unbounded cache must keep every image", n)
	}
	for i := 0; i < 10; i++ {
		if _, ok := c.Get("k" + strconv.Itoa(i)); !ok {
			t.Fatalf("k%d evicted from an unbounded cache", i)
		}
	}
	if len(m.evicts) != 0 {
		t.Fatalf("evictions = %v, want none", m.evicts)
	}
}

func TestCache_PeekDoesNotCountOrPromote(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New(Options{Capacity: 2, Shards: 1, Metrics: m})
	img := solid(1, 1, color.Gray{})
	c.Set("a", img)
	c.Set("b", img)

	if got, ok := c.Peek("a"); !ok || got != img {
		t.Fatal("Peek must find a resident key")
	}
	if _, ok := c.Peek("zzz"); ok {
		t.Fatal("Peek must miss an absent key")
	}
	if m.hits != 0 || m.misses != 0 {
		t.Fatalf("hits=%d misses=%d, want 0/0", m.hits, m.misses)
	}

	c.Set("c", img) // a stayed LRU, so it goes
	if _, ok := c.Peek("a"); ok {
		t.Fatal("Peek must not promote a")
	}
}

func TestCache_HitMissMetrics(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New(Options{Metrics: m})
	c.Set("k", solid(1, 1, color.Gray{}))
	c.Get("k")
	c.Get("nope")
	if m.hits != 1 || m.misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", m.hits, m.misses)
	}
}

func TestCache_ClosedIsInert(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	c.Set("k", solid(1, 1, color.Gray{}))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("closed cache must miss")
	}
	c.Set("x", solid(1, 1, color.Gray{}))
	if c.Remove("k") {
		t.Fatal("closed cache must not remove")
	}
}
