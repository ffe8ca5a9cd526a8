package speed

import (
	"fmt"
	"math"
	"time"

	"github.com/swdee/go-speedcam/tracker"
)

// Direction of travel through the two reference lines
type Direction int

const (
	// Down is travel from line A to line B
	Down Direction = 0
	// Up is travel from line B to line A
	Up Direction = 1
)

// String returns the name of the direction
func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "down":
		*d = Down
	case "up":
		*d = Up
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// Speed is a measured speed.  When Available is false no valid elapsed
// time existed and KMH must not be used.
type Speed struct {
	KMH       float64 `json:"kmh"`
	Available bool    `json:"available"`
}

// Unavailable is the speed reported when it cannot be computed
var Unavailable = Speed{}

// String returns the speed the way it is shown on the video overlay
func (s Speed) String() string {
	if !s.Available {
		return "Speed N/A"
	}
	return fmt.Sprintf("%d Km/h", int(s.KMH))
}

// Calculate converts the time taken to travel distanceM meters into a
// speed in km/h.  A non-positive elapsed time gives Unavailable.
func Calculate(distanceM float64, elapsed time.Duration) Speed {

	if elapsed <= 0 {
		return Unavailable
	}

	kmh := distanceM / elapsed.Seconds() * 3.6

	if math.IsNaN(kmh) || math.IsInf(kmh, 0) {
		return Unavailable
	}

	return Speed{KMH: kmh, Available: true}
}

// Event is a speed sample emitted for a tracked vehicle
type Event struct {
	// ID is the tracker identity of the vehicle
	ID int `json:"id"`
	// Direction the vehicle travelled through the lines
	Direction Direction `json:"direction"`
	// Speed measured between the two lines
	Speed Speed `json:"speed"`
	// Elapsed is the time since the vehicle was on the first line
	Elapsed time.Duration `json:"elapsed"`
	// At is the timestamp of the frame the event was emitted on
	At time.Time `json:"at"`
	// Centroid of the vehicle when the event was emitted
	Centroid tracker.Point `json:"centroid"`
	// Box of the vehicle when the event was emitted
	Box tracker.Box `json:"box"`
	// Frame is the tracker update number the event was emitted on
	Frame uint64 `json:"frame"`
	// Exceeded is set when a speed limit is configured and the available
	// speed is above it
	Exceeded bool `json:"exceeded"`
}

// Counts are the number of distinct vehicles counted per direction
type Counts struct {
	Down int `json:"down"`
	Up   int `json:"up"`
}
