package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	speedcam "github.com/swdee/go-speedcam"
	"github.com/swdee/go-speedcam/config"
	"github.com/swdee/go-speedcam/logging"
	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/preprocess"
	"github.com/swdee/go-speedcam/render"
	"github.com/swdee/go-speedcam/server"
	"github.com/swdee/go-speedcam/store"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// videoSource pairs each decoded video frame with the detections recorded
// for it in a detection script.  Frames the script does not list have no
// detections.
type videoSource struct {
	video   *gocv.VideoCapture
	script  *postprocess.Replay
	resizer *preprocess.Resizer
	fps     float64
	// scaleDets maps detections from source video coordinates to the
	// processing frame
	scaleDets bool

	raw        gocv.Mat
	current    gocv.Mat
	index      int64
	pending    *postprocess.Frame
	scriptDone bool
}

func newVideoSource(vidFile, detFile string, width, height int, fps float64,
	mode preprocess.Mode, scaleDets bool) (*videoSource, error) {

	video, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return nil, fmt.Errorf("error opening video: %w", err)
	}

	if fps <= 0 {
		fps = video.Get(gocv.VideoCaptureFPS)
	}

	script, err := postprocess.OpenReplay(detFile, fps)

	if err != nil {
		video.Close()
		return nil, err
	}

	srcW := int(video.Get(gocv.VideoCaptureFrameWidth))
	srcH := int(video.Get(gocv.VideoCaptureFrameHeight))

	return &videoSource{
		video:     video,
		script:    script,
		resizer:   preprocess.NewResizer(srcW, srcH, width, height, mode),
		fps:       fps,
		scaleDets: scaleDets,
		raw:       gocv.NewMat(),
		current:   gocv.NewMat(),
		index:     -1,
	}, nil
}

// Close releases the video and script
func (s *videoSource) Close() {
	s.video.Close()
	s.script.Close()
	s.resizer.Close()
	s.raw.Close()
	s.current.Close()
}

// Frame returns the processing sized image of the last frame read
func (s *videoSource) Frame() *gocv.Mat {
	return &s.current
}

// Next reads the next video frame and its detections
func (s *videoSource) Next(ctx context.Context) (postprocess.Frame, error) {

	if ok := s.video.Read(&s.raw); !ok || s.raw.Empty() {
		return postprocess.Frame{}, io.EOF
	}

	s.index++
	s.resizer.Resize(s.raw, &s.current, render.Black)

	frame := postprocess.Frame{
		Index:     s.index,
		Timestamp: time.Duration(float64(s.index) / s.fps * float64(time.Second)),
	}

	for !s.scriptDone {
		if s.pending == nil {
			next, err := s.script.Next(ctx)

			if errors.Is(err, io.EOF) {
				s.scriptDone = true
				break
			}

			if err != nil {
				return frame, err
			}

			s.pending = &next
		}

		if s.pending.Index > s.index {
			break
		}

		if s.pending.Index == s.index {
			frame.Detections = s.pending.Detections
		}

		s.pending = nil
	}

	if s.scaleDets {
		frame = s.resizer.ScaleFrame(frame)
	}

	return frame, nil
}

func main() {

	cfgFile := flag.String("c", "", "JSON configuration file")
	envFile := flag.String("e", ".env", "Environment file with SPEEDCAM_* overrides")
	vidFile := flag.String("v", "../data/highway.mp4", "Video file to measure vehicle speeds on")
	detFile := flag.String("d", "../data/highway.jsonl", "JSON lines detection script for the video")
	labelFile := flag.String("l", "../data/coco_80_labels_list.txt", "Text file containing detection labels")
	outFile := flag.String("o", "", "Annotated output video file (mp4)")
	httpAddr := flag.String("a", "", "HTTP address to serve the stream and report on, overrides config")
	dbPath := flag.String("db", "", "SQLite event database, overrides config")
	resizeMode := flag.String("r", "stretch", "Frame resize mode [stretch|letterbox]")
	srcCoords := flag.Bool("s", true, "Detections are in source video coordinates and need scaling")
	trails := flag.Bool("t", false, "Draw centroid trails and ID labels")
	hold := flag.Int("hold", 20, "Number of processed frames a speed stays on screen")

	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Empty()

	if *cfgFile != "" {
		var err error
		cfg, err = config.Load(*cfgFile)

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying environment: %v\n", err)
		os.Exit(1)
	}

	if *httpAddr != "" {
		cfg.ListenAddr = httpAddr
	}

	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	log, err := logging.New(logging.Options{
		Level: cfg.GetLogLevel(),
		File:  cfg.GetLogFile(),
	})

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, *vidFile, *detFile, *labelFile, *outFile,
		*resizeMode, *srcCoords, *trails, *hold); err != nil {
		log.WithError(err).Fatal("Speed camera failed")
	}
}

func run(ctx context.Context, log *logrus.Logger, cfg *config.Config,
	vidFile, detFile, labelFile, outFile, resizeMode string,
	srcCoords, trails bool, hold int) error {

	labels, err := speedcam.LoadLabels(labelFile)

	if err != nil {
		return fmt.Errorf("error loading labels: %w", err)
	}

	opts, err := cfg.PipelineOptions(labels)

	if err != nil {
		return err
	}

	opts.Logger = log

	pipe, err := speedcam.NewPipeline(opts)

	if err != nil {
		return fmt.Errorf("error creating pipeline: %w", err)
	}

	mode, err := preprocess.ParseMode(resizeMode)

	if err != nil {
		return err
	}

	src, err := newVideoSource(vidFile, detFile, cfg.GetFrameWidth(),
		cfg.GetFrameHeight(), cfg.GetFPS(), mode, srcCoords)

	if err != nil {
		return err
	}

	defer src.Close()

	log.WithFields(logging.Fields{
		"video":  vidFile,
		"script": detFile,
		"width":  cfg.GetFrameWidth(),
		"height": cfg.GetFrameHeight(),
		"fps":    src.fps,
		"policy": opts.Speed.Policy,
	}).Info("Processing video")

	start := time.Now()
	runID := ""

	var db *store.Store

	if cfg.GetDBPath() != "" {
		db, err = store.Open(cfg.GetDBPath(), log)

		if err != nil {
			return err
		}

		defer db.Close()

		r, err := db.StartRun(ctx, vidFile, opts.Speed, start)

		if err != nil {
			return err
		}

		runID = r.ID
		log.WithField("run_id", runID).Info("Recording events")
	}

	var pub *server.RedisPublisher

	if cfg.GetRedisAddr() != "" {
		client, err := server.DialRedis(ctx, cfg.GetRedisAddr(), "", 0)

		if err != nil {
			return err
		}

		defer client.Close()

		pub = server.NewRedisPublisher(client, cfg.GetRedisChannel(), log)
	}

	var srv *server.Server

	if cfg.GetListenAddr() != "" {
		srv = server.New(server.Options{
			Store:  db,
			RunID:  runID,
			Title:  "Speed Camera " + vidFile,
			Logger: log,
		})

		log.Infof("Open browser and view video at http://%s/stream", cfg.GetListenAddr())
	}

	var writer *gocv.VideoWriter

	if outFile != "" {
		writer, err = gocv.VideoWriterFile(outFile, "mp4v", src.fps,
			cfg.GetFrameWidth(), cfg.GetFrameHeight(), true)

		if err != nil {
			return fmt.Errorf("error creating output video: %w", err)
		}

		defer writer.Close()
	}

	overlay := render.NewOverlay(opts.Speed, hold)
	overlay.ShowTrails = trails

	handler := func(frame postprocess.Frame, res speedcam.FrameResult) error {

		img := src.Frame()
		overlay.Draw(img, res.Frame.Objects, pipe.Trail(), res.Events, res.Counts)

		if writer != nil {
			if err := writer.Write(*img); err != nil {
				return fmt.Errorf("error writing output video: %w", err)
			}
		}

		if db != nil && len(res.Events) > 0 {
			if err := db.InsertEvents(ctx, runID, res.Events); err != nil {
				return err
			}
		}

		if pub != nil {
			if err := pub.PublishResult(ctx, res); err != nil {
				log.WithError(err).Warn("Failed to publish to redis")
			}
		}

		if srv != nil {
			srv.PublishResult(res)

			buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)

			if err != nil {
				return fmt.Errorf("error encoding frame: %w", err)
			}

			srv.PublishFrame(buf.GetBytes())
			buf.Close()
		}

		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.GetListenAddr())
		})
	}

	g.Go(func() error {
		stats, err := speedcam.Run(gctx, src, pipe, speedcam.RunOptions{
			Stride:  cfg.GetStride(),
			Start:   start,
			Handler: handler,
		})

		log.WithFields(logging.Fields{
			"read":      stats.Read,
			"processed": stats.Processed,
			"events":    stats.Events,
			"down":      stats.Counts.Down,
			"up":        stats.Counts.Up,
		}).Info("Processing finished")

		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		if srv != nil && err == nil {
			log.Info("Video complete, serving results until interrupted")
		}

		return nil
	})

	return g.Wait()
}
