// Package logging builds the process logger: console or JSON on stderr plus a
// rotating JSON file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"datahub/internal/config"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup returns the root logger and the closer for its log file. Close the
// closer on shutdown.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = os.Stderr
	if !cfg.Production() {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		writers = append(writers, file)
		closer = file
	}

	level, known := ParseLevel(cfg.Level)
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	if !known {
		logger.Warn().Str("level", cfg.Level).Msg("Unknown LOG_LEVEL, using info")
	}
	return logger, closer
}

// ParseLevel maps debug, info, warn and error (any case) to zerolog levels.
// Anything else is info and reported as unknown.
func ParseLevel(s string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, true
	case "info", "":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	}
	return zerolog.InfoLevel, false
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
