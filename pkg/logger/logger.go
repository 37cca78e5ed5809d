// Package logger is the process-wide structured logger.
//
// Calls take a message followed by alternating key/value pairs:
//
//	logger.Info("Server starting", "address", addr)
//	logger.Error("Failed to save recommendations", "user_id", id, "error", err)
//
// A bare error without a key is attached under "error".
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	log = newLogger(os.Stderr, "production")
}

// Init configures the global logger for the given environment.
// "development" and "local" get a human readable console writer at debug level.
func Init(env string) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(os.Stderr, env)
}

// SetOutput redirects the logger, mainly for tests.
func SetOutput(w io.Writer, env string) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, env)
}

func newLogger(w io.Writer, env string) zerolog.Logger {
	level := zerolog.InfoLevel
	out := w

	switch strings.ToLower(env) {
	case "development", "local", "dev":
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "test":
		level = zerolog.WarnLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, args ...any) {
	l := current()
	emit(l.Debug(), msg, args)
}

func Info(msg string, args ...any) {
	l := current()
	emit(l.Info(), msg, args)
}

func Warn(msg string, args ...any) {
	l := current()
	emit(l.Warn(), msg, args)
}

func Error(msg string, args ...any) {
	l := current()
	emit(l.Error(), msg, args)
}

// Fatal logs and exits the process.
func Fatal(msg string, args ...any) {
	l := current()
	emit(l.Fatal(), msg, args)
}

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}

	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case error:
			ev = ev.Err(v)
		case string:
			if i+1 < len(args) {
				ev = field(ev, v, args[i+1])
				i++
				continue
			}
			ev = ev.Str("extra", v)
		default:
			ev = ev.Interface(fmt.Sprintf("arg%d", i), v)
		}
	}

	ev.Msg(msg)
}

func field(ev *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case error:
		return ev.AnErr(key, v)
	case string:
		return ev.Str(key, v)
	case int:
		return ev.Int(key, v)
	case int64:
		return ev.Int64(key, v)
	case uint:
		return ev.Uint(key, v)
	case uint64:
		return ev.Uint64(key, v)
	case float64:
		return ev.Float64(key, v)
	case bool:
		return ev.Bool(key, v)
	case time.Duration:
		return ev.Dur(key, v)
	case time.Time:
		return ev.Time(key, v)
	default:
		return ev.Interface(key, v)
	}
}
