// Package logging is the coordinator's and worker's structured logging
// façade: a small, category-keyed wrapper over logiface/stumpy, modeled on
// the teacher's package-level-logger design (a single process-wide
// instance, set once at startup, with a safe default: init configures an
// info-level stderr logger) so library code never needs a nil check.
//
// It additionally deduplicates "local recoverable" failures (spec.md §7.1)
// to at most one line per (category, kind) per 5-second window, using a
// sliding-window rate limiter.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Category names used across the coordination subsystem.
const (
	CatWorker     = "worker"
	CatPartition  = "partition"
	CatQueue      = "queue"
	CatProbe      = "probe"
	CatRebalance  = "rebalance"
	CatSignal     = "signal"
	CatCoordinator = "coordinator"
)

var (
	mu     sync.RWMutex
	global *logiface.Logger[*stumpy.Event]
	dedup  *catrate.Limiter
)

func init() {
	Configure(logiface.LevelInformational)
}

// ParseLevel maps the "-log-level" flag's debug|info|warn|error vocabulary
// onto a logiface.Level.
func ParseLevel(s string) (logiface.Level, error) {
	switch s {
	case "debug":
		return logiface.LevelDebug, nil
	case "info", "":
		return logiface.LevelInformational, nil
	case "warn", "warning":
		return logiface.LevelWarning, nil
	case "error":
		return logiface.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Configure (re)initializes the global logger at the given level, writing
// JSON events to stderr, and resets the per-kind-per-phase dedup window.
func Configure(level logiface.Level) {
	mu.Lock()
	defer mu.Unlock()
	global = stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		logiface.WithLevel[*stumpy.Event](level),
	)
	// One warning per (category, kind) is allowed every 5 seconds; a phase
	// (probe order, rebalance window) rarely runs shorter than that, so in
	// practice this collapses a failure storm to one line per phase.
	dedup = catrate.NewLimiter(map[time.Duration]int{5 * time.Second: 1})
}

func logger() *logiface.Logger[*stumpy.Event] {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Fields is a small ordered set of key/value pairs to attach to a record.
type Fields map[string]any

func emit(level logiface.Level, category, msg string, fields Fields) {
	l := logger()
	if l == nil || !l.Level().Enabled() {
		return
	}
	b := l.Build(level).Str("category", category)
	for k, v := range fields {
		b = b.Field(k, v)
	}
	b.Log(msg)
}

// Debug logs a debug-level record.
func Debug(category, msg string, fields Fields) {
	emit(logiface.LevelDebug, category, msg, fields)
}

// Info logs an informational record.
func Info(category, msg string, fields Fields) {
	emit(logiface.LevelInformational, category, msg, fields)
}

// Warn logs a warning record.
func Warn(category, msg string, fields Fields) {
	emit(logiface.LevelWarning, category, msg, fields)
}

// Error logs an error record.
func Error(category, msg string, fields Fields) {
	emit(logiface.LevelError, category, msg, fields)
}

// WarnOnce logs a warning at most once per (category, kind) within the
// dedup window, satisfying spec.md §7's "logs ... at most once per kind
// per phase" requirement for local-recoverable failures.
func WarnOnce(category, kind, msg string, fields Fields) {
	mu.RLock()
	d := dedup
	mu.RUnlock()
	if d == nil {
		Warn(category, msg, fields)
		return
	}
	if _, allowed := d.Allow(category + "/" + kind); !allowed {
		return
	}
	Warn(category, msg, fields)
}
