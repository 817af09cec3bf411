package ulogger

import (
	"io"
	"os"
)

// Options controls how a Logger is constructed.
type Options struct {
	writer     io.Writer
	loggerType string
	logLevel   string
	skip       int
}

// Option mutates an Options value at construction time.
type Option func(*Options)

// DefaultOptions returns the baseline options: zerolog writing to stdout at
// info level.
func DefaultOptions() *Options {
	return &Options{
		writer:     os.Stdout,
		loggerType: "zerolog",
		logLevel:   "INFO",
		skip:       0,
	}
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.writer = w }
}

func WithLoggerType(t string) Option {
	return func(o *Options) { o.loggerType = t }
}

func WithLevel(level string) Option {
	return func(o *Options) { o.logLevel = level }
}

func WithSkipFrame(skip int) Option {
	return func(o *Options) { o.skip = skip }
}
