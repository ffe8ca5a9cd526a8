// Package logging builds the logrus logger shared by the speedcam programs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers need not import logrus for structured fields
type Fields = logrus.Fields

// Options configure the logger
type Options struct {
	// Level is a logrus level name, defaults to info
	Level string
	// File is an optional path of a rotated log file written in addition
	// to Output
	File string
	// NoColors disables terminal colour codes
	NoColors bool
	// Output defaults to stderr
	Output io.Writer
	// Caller adds the calling file, line and function to each entry
	Caller bool
}

// New returns a logger configured with opts
func New(opts Options) (*logrus.Logger, error) {

	level := logrus.InfoLevel

	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)

		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	logger := logrus.New()
	logger.SetLevel(level)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "2006-01-02 15:04:05.000",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	writers := []io.Writer{out}

	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetReportCaller(opts.Caller)

	return logger, nil
}

// Discard returns a logger that drops all output, used when no logger is
// supplied
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
