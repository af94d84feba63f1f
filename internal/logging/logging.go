// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured, leveled logger used throughout
// the agent. It wraps charmbracelet/log so call sites get colorized,
// key-value structured output on a terminal and plain key-value output
// when redirected to a file or syslog writer.
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Level is a logging verbosity level, ordered from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses a level name as accepted by the CLI's -v flag.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func (l Level) charm() charmlog.Level {
	switch l {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config controls how a Logger is constructed.
type Config struct {
	Level           Level
	Output          io.Writer
	JSON            bool
	ReportTimestamp bool
	ReportCaller    bool
}

// DefaultConfig returns the configuration used when none is specified:
// info level, human formatter, timestamps on, writing to stderr.
func DefaultConfig() Config {
	return Config{
		Level:           LevelInfo,
		Output:          os.Stderr,
		ReportTimestamp: true,
	}
}

// Logger is a structured, leveled logger.
type Logger struct {
	inner *charmlog.Logger
}

// New constructs a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	formatter := charmlog.TextFormatter
	if cfg.JSON {
		formatter = charmlog.JSONFormatter
	}

	l := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           cfg.Level.charm(),
		Formatter:       formatter,
		ReportTimestamp: cfg.ReportTimestamp,
		ReportCaller:    cfg.ReportCaller,
	})

	return &Logger{inner: l}
}

// WithComponent returns a child logger that tags every line with the given
// component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{inner: l.inner.With("component", name)}
}

// WithError returns a child logger carrying the given error as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{inner: l.inner.With("error", err)}
}

// With returns a child logger carrying the given key-value pairs.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{inner: l.inner.With(keyvals...)}
}

func (l *Logger) Debug(msg string, keyvals ...any) { l.inner.Debug(msg, keyvals...) }
func (l *Logger) Info(msg string, keyvals ...any)  { l.inner.Info(msg, keyvals...) }
func (l *Logger) Warn(msg string, keyvals ...any)  { l.inner.Warn(msg, keyvals...) }
func (l *Logger) Error(msg string, keyvals ...any) { l.inner.Error(msg, keyvals...) }
