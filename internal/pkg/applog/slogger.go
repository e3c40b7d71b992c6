package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// LevelTrace sits below slog's debug level.
const LevelTrace = slog.Level(-8)

// DefaultLogger wraps slog.logger and implements AppLogger.
type DefaultLogger struct {
	logger *slog.Logger
	closer io.Closer
}

// NewAppDefaultLogger creates a new DefaultLogger writing to stdout at the
// level configured under "log.level".
func NewAppDefaultLogger() *DefaultLogger {
	return newLogger(os.Stdout, nil)
}

// NewAppFileLogger behaves like NewAppDefaultLogger and additionally appends
// every record to the file configured under "log.file". The file is created
// when missing.
func NewAppFileLogger() (*DefaultLogger, error) {
	path := strings.TrimSpace(viper.GetString("log.file"))
	if path == "" {
		return NewAppDefaultLogger(), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("applog: open log file %s: %w", path, err)
	}
	return newLogger(io.MultiWriter(os.Stdout, f), f), nil
}

// NewWriterLogger builds a logger over an arbitrary writer.
func NewWriterLogger(w io.Writer) *DefaultLogger {
	return newLogger(w, nil)
}

func newLogger(w io.Writer, closer io.Closer) *DefaultLogger {
	level := parseLogLevel(viper.GetString("log.level"))
	return &DefaultLogger{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: false})),
		closer: closer,
	}
}

// Close releases the log file, if any.
func (l *DefaultLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *DefaultLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, withSource(args)...)
}

func (l *DefaultLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, withSource(args)...)
}

func (l *DefaultLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, withSource(args)...)
}

func (l *DefaultLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, withSource(args)...)
}

func (l *DefaultLogger) Trace(msg string, args ...any) {
	l.logger.Log(context.Background(), LevelTrace, msg, withSource(args)...)
}

func (l *DefaultLogger) Fatal(msg string, args ...any) {
	l.logger.Error(msg, withSource(args)...)
	_ = l.Close()
	os.Exit(1)
}

// withSource prepends the caller of the public logging method.
func withSource(args []any) []any {
	src := callerSource(2)
	if src == "" {
		return args
	}
	return append([]any{"source", src}, args...)
}

func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func parseLogLevel(s string) slog.Level {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
