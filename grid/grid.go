package grid

import (
	"context"

	"github.com/IvanBrykalov/thumbcache/delivery"
	"github.com/IvanBrykalov/thumbcache/feed"
)

// Grid is a scrolling photo grid backed by a fixed pool of slots.
// Photo i is always rendered by slot i%len(pool), so scrolling rebinds slots
// the way a reusing collection view does, often while their previous image
// is still loading.
//
// Grid methods hop onto the delivery loop; all state below is loop-owned.
type Grid struct {
	loop     *delivery.Loop
	renderer *Renderer
	layout   Layout

	slots  []*Slot
	bound  []int // slot -> photo index, -1 if unbound
	photos []feed.Photo
	first  int
}

// New returns a grid with poolSize slots (at least 1).
func New(loop *delivery.Loop, renderer *Renderer, layout Layout, poolSize int) *Grid {
	if poolSize < 1 {
		poolSize = 1
	}
	g := &Grid{
		loop:     loop,
		renderer: renderer,
		layout:   layout,
		slots:    make([]*Slot, poolSize),
		bound:    make([]int, poolSize),
	}
	for i := range g.slots {
		g.slots[i] = &Slot{ID: i}
		g.bound[i] = -1
	}
	return g
}

// Layout returns the grid geometry.
func (g *Grid) Layout() Layout { return g.layout }

// Load replaces the photo list and shows it from the top.
func (g *Grid) Load(ctx context.Context, photos []feed.Photo) error {
	return g.loop.Do(ctx, func() {
		g.photos = append([]feed.Photo(nil), photos...)
		for i, s := range g.slots {
			g.bound[i] = -1
			s.rebind(feed.Photo{})
		}
		g.first = 0
		g.bindWindow()
	})
}

// ScrollTo makes photo index first the first visible one (clamped).
func (g *Grid) ScrollTo(ctx context.Context, first int) error {
	return g.loop.Do(ctx, func() {
		g.first = g.clamp(first)
		g.bindWindow()
	})
}

// Len returns the number of photos.
func (g *Grid) Len(ctx context.Context) (int, error) {
	var n int
	err := g.loop.Do(ctx, func() { n = len(g.photos) })
	return n, err
}

// Snapshot copies every slot's state, in slot order.
func (g *Grid) Snapshot(ctx context.Context) ([]SlotState, error) {
	var out []SlotState
	err := g.loop.Do(ctx, func() {
		out = make([]SlotState, len(g.slots))
		for i, s := range g.slots {
			out[i] = s.state(g.bound[i])
		}
	})
	return out, err
}

// PhotoSlot returns the state of the slot currently rendering photo index.
func (g *Grid) PhotoSlot(ctx context.Context, index int) (SlotState, bool, error) {
	var (
		st SlotState
		ok bool
	)
	err := g.loop.Do(ctx, func() {
		if index < 0 || index >= len(g.photos) {
			return
		}
		i := index % len(g.slots)
		if g.bound[i] != index {
			return
		}
		st, ok = g.slots[i].state(index), true
	})
	return st, ok, err
}

func (g *Grid) clamp(first int) int {
	maxFirst := len(g.photos) - len(g.slots)
	if first > maxFirst {
		first = maxFirst
	}
	if first < 0 {
		first = 0
	}
	return first
}

// bindWindow binds photos[first:first+pool] to their slots, skipping slots
// that already show the right photo.
func (g *Grid) bindWindow() {
	end := g.first + len(g.slots)
	if end > len(g.photos) {
		end = len(g.photos)
	}
	for idx := g.first; idx < end; idx++ {
		i := idx % len(g.slots)
		if g.bound[i] == idx {
			continue
		}
		g.bound[i] = idx
		g.renderer.BindSlot(g.slots[i], g.photos[idx])
	}
}
