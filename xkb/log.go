package xkb

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// LogLevel orders Context messages by importance; lower is more severe.
type LogLevel int

const (
	LogCritical LogLevel = 10
	LogError    LogLevel = 20
	LogWarning  LogLevel = 30
	LogInfo     LogLevel = 40
	LogDebug    LogLevel = 50
)

func (l LogLevel) String() string {
	switch l {
	case LogCritical:
		return "critical"
	case LogError:
		return "error"
	case LogWarning:
		return "warning"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	}
	return strconv.Itoa(int(l))
}

// ParseLogLevel accepts a number or a name. Names match by prefix, case
// insensitively: "crit", "err", "warn", "info", "debug" or "dbg".
func ParseLogLevel(s string) (LogLevel, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return LogLevel(n), nil
	}
	ls := strings.ToLower(s)
	switch {
	case strings.HasPrefix(ls, "crit"):
		return LogCritical, nil
	case strings.HasPrefix(ls, "err"):
		return LogError, nil
	case strings.HasPrefix(ls, "warn"):
		return LogWarning, nil
	case strings.HasPrefix(ls, "info"):
		return LogInfo, nil
	case strings.HasPrefix(ls, "debug"), strings.HasPrefix(ls, "dbg"):
		return LogDebug, nil
	}
	return LogError, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
}

// Slog maps the level onto slog levels.
func (l LogLevel) Slog() slog.Level {
	switch {
	case l <= LogCritical:
		return slog.LevelError + 4
	case l <= LogError:
		return slog.LevelError
	case l <= LogWarning:
		return slog.LevelWarn
	case l <= LogInfo:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func levelFromSlog(l slog.Level) LogLevel {
	switch {
	case l > slog.LevelError:
		return LogCritical
	case l >= slog.LevelError:
		return LogError
	case l >= slog.LevelWarn:
		return LogWarning
	case l >= slog.LevelInfo:
		return LogInfo
	}
	return LogDebug
}

// LogFunc receives the messages a Context emits at or below its level.
type LogFunc func(ctx *Context, level LogLevel, msg string)
