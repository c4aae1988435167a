package realtime

import (
	"context"
	"fmt"
	"log/slog"
)

// stompLogger sends go-stomp's diagnostics to slog instead of the log package.
type stompLogger struct {
	l *slog.Logger
}

func (s stompLogger) logf(level slog.Level, format string, args ...interface{}) {
	if s.l.Enabled(context.Background(), level) {
		s.l.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "stomp")
	}
}

func (s stompLogger) Debugf(format string, value ...interface{}) {
	s.logf(slog.LevelDebug, format, value...)
}

func (s stompLogger) Infof(format string, value ...interface{}) {
	s.logf(slog.LevelInfo, format, value...)
}

func (s stompLogger) Warningf(format string, value ...interface{}) {
	s.logf(slog.LevelWarn, format, value...)
}

func (s stompLogger) Errorf(format string, value ...interface{}) {
	s.logf(slog.LevelError, format, value...)
}

func (s stompLogger) Debug(message string)   { s.logf(slog.LevelDebug, "%s", message) }
func (s stompLogger) Info(message string)    { s.logf(slog.LevelInfo, "%s", message) }
func (s stompLogger) Warning(message string) { s.logf(slog.LevelWarn, "%s", message) }
func (s stompLogger) Error(message string)   { s.logf(slog.LevelError, "%s", message) }
