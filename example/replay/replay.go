package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	speedcam "github.com/swdee/go-speedcam"
	"github.com/swdee/go-speedcam/config"
	"github.com/swdee/go-speedcam/logging"
	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/report"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// printer writes events to stdout from every job
type printer struct {
	sync.Mutex
	units  string
	asJSON bool
}

func (p *printer) print(job string, ev speed.Event) {
	p.Lock()
	defer p.Unlock()

	if p.asJSON {
		line, err := json.Marshal(struct {
			Job string `json:"job"`
			speed.Event
		}{job, ev})

		if err == nil {
			fmt.Println(string(line))
		}
		return
	}

	text := "N/A"
	if v, ok := ev.Speed.In(p.units); ok {
		text = fmt.Sprintf("%.1f %s", v, p.units)
	}

	limit := ""
	if ev.Exceeded {
		limit = " OVER LIMIT"
	}

	fmt.Printf("[%s] frame %5d  id %4d  %-4s  %s%s\n", job, ev.Frame, ev.ID,
		ev.Direction, text, limit)
}

func main() {

	cfgFile := flag.String("c", "", "JSON configuration file")
	scripts := flag.String("d", "../data/highway.jsonl", "Comma delimited list of JSON lines detection scripts, each is processed concurrently")
	labelFile := flag.String("l", "", "Text file containing detection labels, when set only vehicle classes are kept")
	dbPath := flag.String("db", "", "SQLite event database to record into")
	reportFile := flag.String("report", "", "HTML speed report file to write")
	asJSON := flag.Bool("json", false, "Print events as JSON lines")

	flag.Parse()

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

	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	out := &printer{units: cfg.GetUnits(), asJSON: *asJSON}

	if err := run(ctx, log, cfg, strings.Split(*scripts, ","), *labelFile,
		*reportFile, out); err != nil {
		log.WithError(err).Fatal("Replay failed")
	}
}

func run(ctx context.Context, log *logrus.Logger, cfg *config.Config,
	scripts []string, labelFile, reportFile string, out *printer) error {

	var labels []string

	if labelFile != "" {
		var err error
		labels, err = speedcam.LoadLabels(labelFile)

		if err != nil {
			return fmt.Errorf("error loading labels: %w", err)
		}
	}

	var db *store.Store

	if cfg.GetDBPath() != "" {
		var err error
		db, err = store.Open(cfg.GetDBPath(), log)

		if err != nil {
			return err
		}

		defer db.Close()
	}

	// replays are timestamped from their stream offsets so results do not
	// depend on how fast the machine is
	start := time.Now()

	var (
		mu  sync.Mutex
		all []speed.Event
	)

	jobs := make([]speedcam.Job, 0, len(scripts))

	for _, script := range scripts {
		script = strings.TrimSpace(script)
		if script == "" {
			continue
		}

		name := filepath.Base(script)

		opts, err := cfg.PipelineOptions(labels)

		if err != nil {
			return err
		}

		opts.Logger = log.WithField("job", name)

		pipe, err := speedcam.NewPipeline(opts)

		if err != nil {
			return fmt.Errorf("error creating pipeline for %s: %w", name, err)
		}

		src, err := postprocess.OpenReplay(script, cfg.GetFPS())

		if err != nil {
			return err
		}

		defer src.Close()

		runID := ""

		if db != nil {
			r, err := db.StartRun(ctx, script, opts.Speed, start)

			if err != nil {
				return err
			}

			runID = r.ID
		}

		jobs = append(jobs, speedcam.Job{
			Name:     name,
			Source:   src,
			Pipeline: pipe,
			Options: speedcam.RunOptions{
				Stride: cfg.GetStride(),
				Start:  start,
				Handler: func(_ postprocess.Frame, res speedcam.FrameResult) error {

					for _, ev := range res.Events {
						out.print(name, ev)
					}

					if len(res.Events) == 0 {
						return nil
					}

					mu.Lock()
					all = append(all, res.Events...)
					mu.Unlock()

					if db != nil {
						return db.InsertEvents(ctx, runID, res.Events)
					}

					return nil
				},
			},
		})
	}

	stats, err := speedcam.RunAll(ctx, jobs)

	for i, s := range stats {
		log.WithFields(logging.Fields{
			"job":       jobs[i].Name,
			"read":      s.Read,
			"processed": s.Processed,
			"events":    s.Events,
			"down":      s.Counts.Down,
			"up":        s.Counts.Up,
		}).Info("Replay finished")
	}

	if err != nil {
		return err
	}

	sum := speed.Summarize(all)

	log.WithFields(logging.Fields{
		"vehicles":    sum.Count,
		"unavailable": sum.Unavailable,
		"exceeded":    sum.Exceeded,
		"mean_kmh":    fmt.Sprintf("%.1f", sum.MeanKMH),
		"p85_kmh":     fmt.Sprintf("%.1f", sum.P85KMH),
		"max_kmh":     fmt.Sprintf("%.1f", sum.MaxKMH),
	}).Info("Speed summary")

	if reportFile == "" {
		return nil
	}

	f, err := os.Create(reportFile)

	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}

	defer f.Close()

	if err := report.Render(f, all, report.Options{Title: "Speed Report"}); err != nil {
		return err
	}

	log.WithField("file", reportFile).Info("Report written")

	return nil
}
