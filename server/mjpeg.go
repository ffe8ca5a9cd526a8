package server

import (
	"fmt"
	"net/http"
	"sync"
)

// MJPEG streams JPEG encoded video frames to browsers as a
// multipart/x-mixed-replace response
type MJPEG struct {
	mu     sync.Mutex
	latest []byte
	subs   map[chan []byte]struct{}
}

// NewMJPEG returns a stream with no frames
func NewMJPEG() *MJPEG {
	return &MJPEG{
		subs: make(map[chan []byte]struct{}),
	}
}

// Publish sends a JPEG frame to every viewer.  A viewer that has not yet
// written the previous frame skips to this one.
func (m *MJPEG) Publish(jpeg []byte) {

	frame := make([]byte, len(jpeg))
	copy(frame, jpeg)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = frame

	for sub := range m.subs {
		select {
		case <-sub:
		default:
		}
		sub <- frame
	}
}

// Viewers returns the number of connected viewers
func (m *MJPEG) Viewers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs)
}

func (m *MJPEG) subscribe() chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := make(chan []byte, 1)
	if m.latest != nil {
		sub <- m.latest
	}
	m.subs[sub] = struct{}{}

	return sub
}

func (m *MJPEG) unsubscribe(sub chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, sub)
}

// ServeHTTP is the HTTP handler function used to stream video frames to
// the browser
func (m *MJPEG) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	sub := m.subscribe()
	defer m.unsubscribe(sub)

	flusher, _ := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			return

		case frame := <-sub:
			_, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			if err == nil {
				_, err = w.Write(frame)
			}
			if err == nil {
				_, err = w.Write([]byte("\r\n"))
			}
			if err != nil {
				return
			}

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
