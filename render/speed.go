package render

import (
	"fmt"
	"image"

	"github.com/swdee/go-speedcam/speed"
	"gocv.io/x/gocv"
)

// SpeedBoard remembers the last speed event of each vehicle for a number of
// processed frames so a single shot measurement stays readable on the video
type SpeedBoard struct {
	hold    int
	entries map[int]*boardEntry
}

type boardEntry struct {
	ev   speed.Event
	left int
}

// NewSpeedBoard returns a board keeping events for hold frames.  A hold
// below 1 keeps an event for the frame it was emitted on only.
func NewSpeedBoard(hold int) *SpeedBoard {
	if hold < 1 {
		hold = 1
	}
	return &SpeedBoard{
		hold:    hold,
		entries: make(map[int]*boardEntry),
	}
}

// Update ages the board by one frame and records the events of that frame
func (b *SpeedBoard) Update(events []speed.Event) {

	for id, e := range b.entries {
		e.left--
		if e.left <= 0 {
			delete(b.entries, id)
		}
	}

	for _, ev := range events {
		b.entries[ev.ID] = &boardEntry{ev: ev, left: b.hold}
	}
}

// Get returns the event shown for a vehicle.  Get on a nil board reports
// nothing.
func (b *SpeedBoard) Get(id int) (speed.Event, bool) {
	if b == nil {
		return speed.Event{}, false
	}
	e, ok := b.entries[id]
	if !ok {
		return speed.Event{}, false
	}
	return e.ev, true
}

// Len returns the number of vehicles on the board
func (b *SpeedBoard) Len() int {
	return len(b.entries)
}

// Reset empties the board
func (b *SpeedBoard) Reset() {
	b.entries = make(map[int]*boardEntry)
}

// SpeedEvents draws each event the way a measurement is marked on the
// video: a red dot with the vehicle ID at its centroid and the speed text
// at the bottom right corner of its box
func SpeedEvents(img *gocv.Mat, events []speed.Event, font Font) {
	for _, ev := range events {
		gocv.Circle(img, image.Pt(ev.Centroid.X, ev.Centroid.Y), 4, Red, -1)
		font.put(img, fmt.Sprintf("%d", ev.ID), ev.Centroid.X, ev.Centroid.Y)
		font.put(img, ev.Speed.String(), ev.Box.X2, ev.Box.Y2)
	}
}
