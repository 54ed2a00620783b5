// Package grid is the consumer of the image pipeline: a pool of reusable
// display slots bound to feed photos.
//
// Slots are owned by the delivery context. Every slot method must run there
// (inside a delivery.Loop task, or via Grid methods which hop onto the loop
// themselves).
package grid

import (
	"image"

	"github.com/IvanBrykalov/thumbcache/feed"
)

// Slot is a reusable rendering target, e.g. one grid cell.
type Slot struct {
	ID int

	key    string
	title  string
	img    image.Image
	failed error

	// displays counts Display calls; tests use it to detect stale writes.
	displays int
}

// CurrentKey is the cache key of the photo the slot is bound to now.
func (s *Slot) CurrentKey() string { return s.key }

// Image returns the displayed image, or nil while blank.
func (s *Slot) Image() image.Image { return s.img }

// Title returns the bound photo's title.
func (s *Slot) Title() string { return s.title }

// Err returns the load error shown for the bound photo, if any.
func (s *Slot) Err() error { return s.failed }

// Display shows img.
func (s *Slot) Display(img image.Image) {
	s.img = img
	s.failed = nil
	s.displays++
}

// rebind points the slot at photo and blanks it.
func (s *Slot) rebind(photo feed.Photo) {
	s.key = photo.ImageURL
	s.title = photo.Title
	s.img = nil
	s.failed = nil
}

// SlotState is a copy of a slot's visible state.
type SlotState struct {
	ID    int
	Index int // photo index, -1 if unbound
	Key   string
	Title string
	Image image.Image
	Err   error
}

func (s *Slot) state(index int) SlotState {
	return SlotState{ID: s.ID, Index: index, Key: s.key, Title: s.title, Image: s.img, Err: s.failed}
}
