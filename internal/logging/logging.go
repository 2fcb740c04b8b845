// Package logging provides the structured logger used across the codebase.
// It wraps zerolog behind a small API so packages do not depend on the
// logging backend directly.
package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log levels, ordered from least to most verbose.
const (
	LogLevelError = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Log output formats.
const (
	LogFormatText = iota
	LogFormatJSON
	LogFormatJSONPretty
)

type Config struct {
	Level  int
	Format int
	Output io.Writer
}

type Logger struct {
	logger zerolog.Logger
	level  int
}

func NewLogger(c Config) *Logger {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}

	switch c.Format {
	case LogFormatText:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	case LogFormatJSONPretty:
		out = prettyWriter{out}
	}

	logger := zerolog.New(out).Level(zerologLevel(c.Level)).With().Timestamp().Logger()
	return &Logger{logger: logger, level: c.Level}
}

// Default returns a logger at warn level writing to stderr. Used where no
// logger has been configured.
func Default() *Logger {
	return NewLogger(Config{Level: LogLevelWarn})
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

// WithFields returns a child logger that includes the given fields on every
// message.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger(), level: l.level}
}

func (l *Logger) Level() int {
	return l.level
}

func zerologLevel(level int) zerolog.Level {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// prettyWriter reindents each JSON log line before writing it out.
type prettyWriter struct {
	out io.Writer
}

func (w prettyWriter) Write(p []byte) (int, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimRight(p, "\n"), "", "  "); err != nil {
		return w.out.Write(p)
	}
	buf.WriteByte('\n')
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
