package grid

import (
	"image"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/IvanBrykalov/thumbcache/feed"
	"github.com/IvanBrykalov/thumbcache/pipeline"
)

// Requester is the part of the pipeline the renderer needs.
type Requester interface {
	Submit(pipeline.Request)
}

// Renderer binds slots to photos through a Requester.
type Renderer struct {
	req    Requester
	logger log.Logger

	// ShowFailures marks slots whose image failed to load instead of leaving
	// them silently blank.
	ShowFailures bool
}

// NewRenderer returns a renderer submitting to req.
func NewRenderer(req Requester, logger log.Logger) *Renderer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Renderer{req: req, logger: log.With(logger, "component", "grid")}
}

// BindSlot points slot at photo and requests its image. It must run on the
// delivery context. A cached image is displayed before BindSlot returns.
//
// The key is captured here and compared with the slot's current key when the
// image arrives: if the slot was rebound in the meantime the delivery is
// stale and dropped.
func (r *Renderer) BindSlot(slot *Slot, photo feed.Photo) {
	slot.rebind(photo)
	key := photo.ImageURL
	if key == "" {
		return
	}

	req := pipeline.Request{
		Key: key,
		URL: photo.ImageURL,
		OnReady: func(img image.Image) {
			if slot.CurrentKey() != key {
				level.Debug(r.logger).Log("msg", "stale delivery dropped", "slot", slot.ID, "key", key)
				return
			}
			slot.Display(img)
		},
	}
	if r.ShowFailures {
		req.OnFailure = func(err error) {
			if slot.CurrentKey() == key {
				slot.failed = err
			}
		}
	}
	r.req.Submit(req)
}
