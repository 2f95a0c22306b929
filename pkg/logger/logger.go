package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/lumberjack.v2"
)

// Options controls where log lines go
type Options struct {
	Level string
	// File enables a size-rotated log file in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a new logger with the specified log level
func New(level string) *logrus.Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions creates a logger writing to stdout and, when opts.File is
// set, to a rotating file
func NewWithOptions(opts Options) *logrus.Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			LocalTime:  true,
		})
	}
	logger.SetOutput(out)

	return logger
}

// WithFields creates a logger entry with the specified fields
func WithFields(logger *logrus.Logger, fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
