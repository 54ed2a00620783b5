package twoq

import (
	"testing"

	"github.com/IvanBrykalov/thumbcache/policy"
)

type testEntry struct{ k string }

func (e *testEntry) Key() string { return e.k }
func (e *testEntry) Cost() int64 { return 0 }

type mockHooks struct {
	pushFrontCnt   int
	moveToFrontCnt int
}

func (h *mockHooks) MoveToFront(policy.Entry) { h.moveToFrontCnt++ }
func (h *mockHooks) PushFront(policy.Entry)   { h.pushFrontCnt++ }
func (h *mockHooks) Remove(policy.Entry)      {}
func (h *mockHooks) Back() policy.Entry       { return nil }
func (h *mockHooks) Len() int                 { return 0 }

func newTwoQ(probation, ghosts int) (*twoQ, *mockHooks) {
	h := &mockHooks{}
	return New(probation, ghosts).New(h).(*twoQ), h
}

func TestTwoQ_FirstAddGoesToProbation(t *testing.T) {
	t.Parallel()

	p, h := newTwoQ(2, 4)
	e := &testEntry{k: "a"}
	if ev := p.OnAdd(e); ev != nil {
		t.Fatalf("no eviction expected, got %v", ev)
	}
	if _, ok := p.probIdx["a"]; !ok || p.probation.Len() != 1 {
		t.Fatalf("entry must be in probation")
	}
	if h.pushFrontCnt != 1 {
		t.Fatalf("entry must be pushed to the shard list")
	}
}

func TestTwoQ_ProbationOverflowNominatesLRU(t *testing.T) {
	t.Parallel()

	p, _ := newTwoQ(2, 4)
	a, b, c := &testEntry{k: "a"}, &testEntry{k: "b"}, &testEntry{k: "c"}
	p.OnAdd(a)
	p.OnAdd(b)
	if ev := p.OnAdd(c); ev != a {
		t.Fatalf("expected probation LRU 'a' as victim, got %v", ev)
	}
}

func TestTwoQ_RemovedProbationEntryBecomesGhost(t *testing.T) {
	t.Parallel()

	p, _ := newTwoQ(2, 1)
	a, b := &testEntry{k: "a"}, &testEntry{k: "b"}
	p.OnAdd(a)
	p.OnAdd(b)
	p.OnRemove(a)
	p.OnRemove(b)

	if _, ok := p.probIdx["a"]; ok {
		t.Fatal("'a' must leave probation")
	}
	if _, ok := p.ghostIdx["a"]; ok {
		t.Fatal("ghost capacity 1: 'a' must have been pushed out by 'b'")
	}
	if _, ok := p.ghostIdx["b"]; !ok {
		t.Fatal("'b' must be a ghost")
	}
}

func TestTwoQ_GhostReadmissionSkipsProbation(t *testing.T) {
	t.Parallel()

	p, _ := newTwoQ(1, 2)
	p.OnAdd(&testEntry{k: "a"})
	p.OnRemove(p.probation.Front().Value.(policy.Entry))

	again := &testEntry{k: "a"}
	if ev := p.OnAdd(again); ev != nil {
		t.Fatalf("ghost readmission must not evict, got %v", ev)
	}
	if _, ok := p.probIdx["a"]; ok {
		t.Fatal("readmitted ghost must go to the protected part")
	}
	if _, ok := p.ghostIdx["a"]; ok {
		t.Fatal("ghost must be consumed on readmission")
	}
}

func TestTwoQ_GetPromotesOutOfProbation(t *testing.T) {
	t.Parallel()

	p, h := newTwoQ(2, 2)
	e := &testEntry{k: "a"}
	p.OnAdd(e)
	p.OnGet(e)
	if _, ok := p.probIdx["a"]; ok {
		t.Fatal("hit must promote out of probation")
	}
	if h.moveToFrontCnt != 1 {
		t.Fatalf("hit must move to front once, got %d", h.moveToFrontCnt)
	}
}

func TestTwoQ_RemoveOfStaleEntryIgnored(t *testing.T) {
	t.Parallel()

	p, _ := newTwoQ(2, 2)
	cur := &testEntry{k: "a"}
	p.OnAdd(cur)
	p.OnRemove(&testEntry{k: "a"})
	if _, ok := p.probIdx["a"]; !ok {
		t.Fatal("removing a different entry with the same key must not touch probation")
	}
}

func TestSized_SplitsPerShardCapacity(t *testing.T) {
	// 1000 images over 8 shards => 125 per shard.
	f := Sized(1000, 8).(factory)
	if f.probationCap != 31 || f.ghostCap != 62 {
		t.Fatalf("got probation=%d ghosts=%d, want 31/62", f.probationCap, f.ghostCap)
	}

	// Tiny caches still get one slot in each queue.
	f = Sized(2, 8).(factory)
	if f.probationCap != 1 || f.ghostCap != 1 {
		t.Fatalf("got probation=%d ghosts=%d, want 1/1", f.probationCap, f.ghostCap)
	}
}
