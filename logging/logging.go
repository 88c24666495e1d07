// Package logging builds the process logger from configuration
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/amirphl/url-shortener/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to the configured sink together with that sink,
// so other components (the HTTP access log, the stdlib log package) can share it.
// The returned closer releases the rotating file, if any.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Writer, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.Nop(), nil, nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	sink, closer, err := newSink(cfg)
	if err != nil {
		return zerolog.Nop(), nil, nil, err
	}

	out := sink
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: sink, TimeFormat: time.RFC3339, NoColor: cfg.Output != "stdout"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldInteger = true

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), sink, closer, nil
}

func newSink(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nopCloser{}, nil
	case "file":
		file := rotatingFile(cfg)
		return file, file, nil
	case "both":
		file := rotatingFile(cfg)
		return zerolog.MultiLevelWriter(os.Stdout, file), file, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}
}

func rotatingFile(cfg config.LoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  false,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
