package wa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
)

type slogAdapter struct {
	logger *slog.Logger
	min    slog.Level
}

// NewLogger bridges whatsmeow logging into slog. level is one of DEBUG, INFO,
// WARN or ERROR; anything else means INFO.
func NewLogger(logger *slog.Logger, level string) waLog.Logger {
	return &slogAdapter{logger: logger.With("component", "whatsmeow"), min: parseLevel(level)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (a *slogAdapter) log(level slog.Level, msg string, args []any) {
	if level < a.min {
		return
	}
	a.logger.Log(context.Background(), level, fmt.Sprintf(msg, args...))
}

func (a *slogAdapter) Errorf(msg string, args ...any) { a.log(slog.LevelError, msg, args) }
func (a *slogAdapter) Warnf(msg string, args ...any)  { a.log(slog.LevelWarn, msg, args) }
func (a *slogAdapter) Infof(msg string, args ...any)  { a.log(slog.LevelInfo, msg, args) }
func (a *slogAdapter) Debugf(msg string, args ...any) { a.log(slog.LevelDebug, msg, args) }

func (a *slogAdapter) Sub(module string) waLog.Logger {
	return &slogAdapter{logger: a.logger.With("module", module), min: a.min}
}
