package main

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"

	"github.com/IvanBrykalov/thumbcache/feed"
	"github.com/IvanBrykalov/thumbcache/grid"
	"github.com/IvanBrykalov/thumbcache/photoerr"
	"github.com/IvanBrykalov/thumbcache/pipeline"
)

// photoSource is the part of feed.Client the server needs.
type photoSource interface {
	Photos(ctx context.Context, tags ...string) []feed.Photo
}

type server struct {
	grid   *grid.Grid
	feed   photoSource
	tags   []string
	stats  func() pipeline.Stats
	logger log.Logger

	// timeout bounds every hop onto the delivery loop.
	timeout time.Duration
}

func (s *server) router(metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/grid", s.handleGrid).Methods("GET")
	r.HandleFunc("/thumb/{index:[0-9]+}", s.handleThumb).Methods("GET")
	r.HandleFunc("/scroll/{first:[0-9]+}", s.handleScroll).Methods("POST")
	r.HandleFunc("/reload", s.handleReload).Methods("POST")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

type slotView struct {
	Slot   int    `json:"slot"`
	Index  int    `json:"index"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
	Frame  []int  `json:"frame,omitempty"`
}

type gridView struct {
	Photos int        `json:"photos"`
	Slots  []slotView `json:"slots"`
}

func (s *server) handleGrid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()

	n, err := s.grid.Len(ctx)
	if err != nil {
		s.fail(w, err, http.StatusServiceUnavailable)
		return
	}
	states, err := s.grid.Snapshot(ctx)
	if err != nil {
		s.fail(w, err, http.StatusServiceUnavailable)
		return
	}

	layout := s.grid.Layout()
	view := gridView{Photos: n, Slots: make([]slotView, 0, len(states))}
	for _, st := range states {
		sv := slotView{
			Slot:   st.ID,
			Index:  st.Index,
			Title:  st.Title,
			URL:    st.Key,
			Loaded: st.Image != nil,
		}
		if st.Err != nil {
			sv.Error = photoerr.Kind(st.Err)
		}
		if st.Index >= 0 {
			f := layout.Frame(st.Index)
			sv.Frame = []int{f.Min.X, f.Min.Y, f.Dx(), f.Dy()}
		}
		view.Slots = append(view.Slots, sv)
	}
	s.json(w, view)
}

func (s *server) handleThumb(w http.ResponseWriter, r *http.Request) {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	ctx, cancel := s.context(r)
	defer cancel()

	st, ok, err := s.grid.PhotoSlot(ctx, index)
	if err != nil {
		s.fail(w, err, http.StatusServiceUnavailable)
		return
	}
	if !ok || st.Image == nil {
		http.Error(w, "thumbnail not displayed", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, st.Image); err != nil {
		level.Warn(s.logger).Log("msg", "encoding thumbnail", "index", index, "err", err)
	}
}

func (s *server) handleScroll(w http.ResponseWriter, r *http.Request) {
	first, _ := strconv.Atoi(mux.Vars(r)["first"])
	ctx, cancel := s.context(r)
	defer cancel()

	if err := s.grid.ScrollTo(ctx, first); err != nil {
		s.fail(w, err, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	photos := s.feed.Photos(r.Context(), s.tags...)
	ctx, cancel := s.context(r)
	defer cancel()

	if err := s.grid.Load(ctx, photos); err != nil {
		s.fail(w, err, http.StatusServiceUnavailable)
		return
	}
	s.json(w, map[string]int{"photos": len(photos)})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.json(w, s.stats())
}

func (s *server) context(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (s *server) json(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Warn(s.logger).Log("msg", "encoding response", "err", err)
	}
}

func (s *server) fail(w http.ResponseWriter, err error, code int) {
	level.Error(s.logger).Log("msg", "request failed", "err", err)
	http.Error(w, err.Error(), code)
}
