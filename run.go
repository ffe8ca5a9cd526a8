package speedcam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/speed"
	"golang.org/x/sync/errgroup"
)

// FrameSource supplies frames of detections in stream order.  Next returns
// io.EOF when the stream has ended.
type FrameSource interface {
	Next(ctx context.Context) (postprocess.Frame, error)
}

// Handler is called with every processed frame and its result.  Returning
// an error stops the run.
type Handler func(src postprocess.Frame, res FrameResult) error

// RunOptions configure Run
type RunOptions struct {
	// Stride processes every Nth frame read from the source, values below
	// 2 process every frame
	Stride int
	// Start anchors frame timestamps to a point in time so each frame is
	// processed at Start plus its stream offset.  When zero frames are
	// timestamped with the pipeline clock as they are processed.
	Start time.Time
	// Handler is optional
	Handler Handler
}

// RunStats summarise a completed run
type RunStats struct {
	// Read is the number of frames read from the source
	Read int
	// Processed is the number of frames passed to the pipeline
	Processed int
	// Events is the number of speed events emitted
	Events int
	// Counts are the final distinct vehicle counts
	Counts speed.Counts
}

// Run reads frames from src and feeds them through the pipeline until the
// source is exhausted, the handler fails or ctx is cancelled.  Cancellation
// is only observed between frames so a frame is never half processed.
func Run(ctx context.Context, src FrameSource, p *Pipeline, opts RunOptions) (RunStats, error) {

	var stats RunStats

	for {
		if err := ctx.Err(); err != nil {
			stats.Counts = p.Counts()
			return stats, err
		}

		frame, err := src.Next(ctx)

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			stats.Counts = p.Counts()
			return stats, fmt.Errorf("error reading frame %d: %w", stats.Read, err)
		}

		stats.Read++

		if opts.Stride > 1 && stats.Read%opts.Stride != 0 {
			continue
		}

		now := p.clock.Now()
		if !opts.Start.IsZero() {
			now = opts.Start.Add(frame.Timestamp)
		}

		res, err := p.ProcessDetections(frame.Detections, now)

		if err != nil {
			stats.Counts = p.Counts()
			return stats, fmt.Errorf("error processing frame %d: %w", frame.Index, err)
		}

		stats.Processed++
		stats.Events += len(res.Events)

		if opts.Handler != nil {
			if err := opts.Handler(frame, res); err != nil {
				stats.Counts = p.Counts()
				return stats, fmt.Errorf("handler failed on frame %d: %w", frame.Index, err)
			}
		}
	}

	stats.Counts = p.Counts()

	return stats, nil
}

// Job is a single video source with its own pipeline
type Job struct {
	Name     string
	Source   FrameSource
	Pipeline *Pipeline
	Options  RunOptions
}

// RunAll runs each job concurrently, each on its own goroutine as a
// pipeline must only be used from one goroutine.  The first failure cancels
// the other jobs.  Stats are returned in job order.
func RunAll(ctx context.Context, jobs []Job) ([]RunStats, error) {

	for _, job := range jobs {
		if job.Pipeline == nil || job.Source == nil {
			return nil, fmt.Errorf("job %q requires a source and a pipeline", job.Name)
		}
	}

	stats := make([]RunStats, len(jobs))

	g, gctx := errgroup.WithContext(ctx)

	for i, job := range jobs {
		g.Go(func() error {
			s, err := Run(gctx, job.Source, job.Pipeline, job.Options)
			stats[i] = s

			if err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}

			return nil
		})
	}

	return stats, g.Wait()
}
