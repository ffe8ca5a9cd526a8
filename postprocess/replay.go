package postprocess

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrReplayFormat is returned for a malformed line in a detection script
var ErrReplayFormat = errors.New("malformed detection script")

// maxLineSize is the largest script line accepted, a busy frame with many
// detections can exceed the bufio.Scanner default
const maxLineSize = 4 * 1024 * 1024

// replayDetection is the wire format of one detection
type replayDetection struct {
	Class int       `json:"class"`
	Box   []float64 `json:"box"`
	Prob  float32   `json:"prob"`
}

// replayLine is the wire format of one frame of a detection script
type replayLine struct {
	Frame      int64             `json:"frame"`
	TS         *float64          `json:"ts,omitempty"`
	Detections []replayDetection `json:"detections"`
}

// Replay reads a JSON lines detection script, one frame per line, such as
//
//	{"frame":3,"ts":0.15,"detections":[{"class":2,"box":[10,20,60,80],"prob":0.9}]}
//
// Frames must appear in increasing frame order.  Blank lines and lines
// starting with # are ignored.
type Replay struct {
	scanner *bufio.Scanner
	closer  io.Closer
	// fps is used to derive a timestamp when a line has no ts field
	fps float64
	// line is the current line number for error reporting
	line int
	// last frame index read, -1 before the first frame
	last int64
	// nextID is the detection ID counter
	nextID int64
	// skipped counts detections dropped for having an empty box
	skipped int
}

// NewReplay returns a Replay reading the script from r.  When fps is
// positive frames without a ts field are timestamped frame/fps.
func NewReplay(r io.Reader, fps float64) *Replay {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	rp := &Replay{
		scanner: scanner,
		fps:     fps,
		last:    -1,
	}

	if c, ok := r.(io.Closer); ok {
		rp.closer = c
	}

	return rp
}

// OpenReplay opens the script file at path
func OpenReplay(path string, fps float64) (*Replay, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening detection script: %w", err)
	}

	return NewReplay(f, fps), nil
}

// Close closes the underlying reader if it is closable
func (r *Replay) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Skipped returns the number of detections dropped because their box had
// no area
func (r *Replay) Skipped() int {
	return r.skipped
}

// Next returns the next frame of the script, io.EOF is returned once the
// script is exhausted
func (r *Replay) Next(ctx context.Context) (Frame, error) {

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())

		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		return r.parse(text)
	}

	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("error reading detection script: %w", err)
	}

	return Frame{}, io.EOF
}

// parse decodes a single script line
func (r *Replay) parse(text string) (Frame, error) {

	var rl replayLine

	if err := json.UnmarshalFromString(text, &rl); err != nil {
		return Frame{}, fmt.Errorf("%w: line %d: %v", ErrReplayFormat, r.line, err)
	}

	if rl.Frame < 0 || rl.Frame <= r.last {
		return Frame{}, fmt.Errorf("%w: line %d: frame %d does not follow frame %d",
			ErrReplayFormat, r.line, rl.Frame, r.last)
	}

	r.last = rl.Frame

	frame := Frame{
		Index:      rl.Frame,
		Detections: make([]DetectResult, 0, len(rl.Detections)),
	}

	switch {
	case rl.TS != nil:
		if *rl.TS < 0 || math.IsNaN(*rl.TS) {
			return Frame{}, fmt.Errorf("%w: line %d: invalid ts %v",
				ErrReplayFormat, r.line, *rl.TS)
		}
		frame.Timestamp = time.Duration(*rl.TS * float64(time.Second))
	case r.fps > 0:
		frame.Timestamp = time.Duration(float64(rl.Frame) / r.fps * float64(time.Second))
	}

	for i, d := range rl.Detections {

		if len(d.Box) != 4 {
			return Frame{}, fmt.Errorf("%w: line %d: detection %d box has %d values, want 4",
				ErrReplayFormat, r.line, i, len(d.Box))
		}

		box := BoxRect{
			Left:   int(d.Box[0]),
			Top:    int(d.Box[1]),
			Right:  int(d.Box[2]),
			Bottom: int(d.Box[3]),
		}

		if !box.Valid() {
			r.skipped++
			continue
		}

		r.nextID++

		frame.Detections = append(frame.Detections, DetectResult{
			Class:       d.Class,
			Box:         box,
			Probability: d.Prob,
			ID:          r.nextID,
		})
	}

	return frame, nil
}

// ReplayWriter records frames of detections as a JSON lines script that
// Replay can read back
type ReplayWriter struct {
	w *bufio.Writer
}

// NewReplayWriter returns a writer recording to w
func NewReplayWriter(w io.Writer) *ReplayWriter {
	return &ReplayWriter{w: bufio.NewWriter(w)}
}

// WriteFrame appends a frame to the script
func (rw *ReplayWriter) WriteFrame(frame Frame) error {

	ts := frame.Timestamp.Seconds()

	rl := replayLine{
		Frame:      frame.Index,
		TS:         &ts,
		Detections: make([]replayDetection, 0, len(frame.Detections)),
	}

	for _, det := range frame.Detections {
		rl.Detections = append(rl.Detections, replayDetection{
			Class: det.Class,
			Box: []float64{float64(det.Box.Left), float64(det.Box.Top),
				float64(det.Box.Right), float64(det.Box.Bottom)},
			Prob: det.Probability,
		})
	}

	b, err := json.Marshal(rl)

	if err != nil {
		return fmt.Errorf("error encoding frame %d: %w", frame.Index, err)
	}

	if _, err := rw.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("error writing frame %d: %w", frame.Index, err)
	}

	return nil
}

// Flush writes any buffered frames to the underlying writer
func (rw *ReplayWriter) Flush() error {
	return rw.w.Flush()
}
