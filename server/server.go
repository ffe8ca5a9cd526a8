// Package server exposes a running speed camera over HTTP: the annotated
// video, live speed events, counters and a speed report.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/swdee/go-speedcam"
	"github.com/swdee/go-speedcam/logging"
	"github.com/swdee/go-speedcam/report"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultHistory is the number of recent events kept in memory
const DefaultHistory = 10000

// Message is the envelope of everything pushed to websocket clients
type Message struct {
	Type   string        `json:"type"`
	Frame  uint64        `json:"frame,omitempty"`
	Event  *speed.Event  `json:"event,omitempty"`
	Counts *speed.Counts `json:"counts,omitempty"`
}

// CountsResponse is the body of /api/counts
type CountsResponse struct {
	RunID   string        `json:"run_id,omitempty"`
	Counts  speed.Counts  `json:"counts"`
	Summary speed.Summary `json:"summary"`
	Frame   uint64        `json:"frame"`
	Viewers int           `json:"viewers"`
}

// Options configure a Server
type Options struct {
	// Store is optional, when set reports and event listings are read from
	// it for RunID instead of memory
	Store *store.Store
	RunID string
	// History caps the events kept in memory
	History int
	// Title of the report page
	Title  string
	Logger logrus.FieldLogger
}

// Server is the HTTP surface of a speed camera.  Publish methods are safe
// to call from the pipeline goroutine while requests are served.
type Server struct {
	opts  Options
	log   logrus.FieldLogger
	hub   *Hub
	video *MJPEG
	mux   *http.ServeMux

	mu     sync.RWMutex
	counts speed.Counts
	frame  uint64
	events []speed.Event
}

// New returns a Server with its routes registered
func New(opts Options) *Server {

	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	if opts.History <= 0 {
		opts.History = DefaultHistory
	}

	s := &Server{
		opts:  opts,
		log:   opts.Logger,
		hub:   NewHub(opts.Logger),
		video: NewMJPEG(),
		mux:   http.NewServeMux(),
	}

	s.mux.Handle("/stream", s.video)
	s.mux.Handle("/events", s.hub)
	s.mux.HandleFunc("/api/counts", s.handleCounts)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/report", s.handleReport)

	return s
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// PublishFrame sends a JPEG encoded annotated frame to video viewers
func (s *Server) PublishFrame(jpeg []byte) {
	s.video.Publish(jpeg)
}

// PublishResult records the result of a processed frame and pushes its
// events and the updated counts to websocket clients
func (s *Server) PublishResult(res speedcam.FrameResult) {

	s.mu.Lock()
	s.frame = res.Frame.Seq
	changed := res.Counts != s.counts
	s.counts = res.Counts
	s.events = append(s.events, res.Events...)
	if over := len(s.events) - s.opts.History; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	s.mu.Unlock()

	for i := range res.Events {
		s.broadcast(Message{Type: "event", Frame: res.Frame.Seq, Event: &res.Events[i]})
	}

	if changed {
		counts := res.Counts
		s.broadcast(Message{Type: "counts", Frame: res.Frame.Seq, Counts: &counts})
	}
}

func (s *Server) broadcast(msg Message) {

	b, err := json.Marshal(msg)

	if err != nil {
		s.log.WithError(err).Error("Failed to encode websocket message")
		return
	}

	s.hub.Broadcast(b)
}

// recent returns the in memory events, newest last
func (s *Server) recent() []speed.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]speed.Event, len(s.events))
	copy(events, s.events)

	return events
}

// loadEvents returns the run events from the store when configured
func (s *Server) loadEvents(ctx context.Context, limit int) ([]speed.Event, error) {

	if s.opts.Store == nil {
		events := s.recent()
		if limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}
		return events, nil
	}

	events, err := s.opts.Store.ListEvents(ctx, store.Filter{RunID: s.opts.RunID})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	return events, nil
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {

	events, err := s.loadEvents(r.Context(), 0)

	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.RLock()
	resp := CountsResponse{
		RunID:   s.opts.RunID,
		Counts:  s.counts,
		Frame:   s.frame,
		Summary: speed.Summarize(events),
		Viewers: s.video.Viewers(),
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {

	limit := 100

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	events, err := s.loadEvents(r.Context(), limit)

	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if events == nil {
		events = []speed.Event{}
	}

	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {

	events, err := s.loadEvents(r.Context(), 0)

	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	bin := report.DefaultBinKMH
	if v := r.URL.Query().Get("bin"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil && b > 0 {
			bin = b
		}
	}

	var buf bytes.Buffer

	if err := report.Render(&buf, events, report.Options{Title: s.opts.Title, BinKMH: bin}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {

	b, err := json.Marshal(v)

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		// streams end when ctx is cancelled rather than holding up Shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		return nil
	}
}
