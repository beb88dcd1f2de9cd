// Package logging provides categorized logging for floragent, backed by
// zap. Each subsystem logs under its own named child logger so a single
// log stream can be filtered per concern. Logging defaults to a quiet
// production configuration; -v switches to development output at debug
// level.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a subsystem's logger.
type Category string

const (
	CategoryBoot         Category = "boot"         // startup, config, shutdown
	CategorySession      Category = "session"      // REPL turns, history
	CategoryStore        Category = "store"        // order/bundle persistence
	CategoryCryptor      Category = "cryptor"      // encryption provider calls
	CategoryPerception   Category = "perception"   // intent classification
	CategoryArticulation Category = "articulation" // reply composition
	CategoryWorkflow     Category = "workflow"     // state machine transitions
)

var (
	mu      sync.RWMutex
	root    *zap.SugaredLogger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize installs the process-wide root logger. Call once at startup;
// before that (and in tests that never call it) all categories are no-ops.
func Initialize(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger.Sugar()
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// UseLogger installs an externally built zap logger as the root. Intended
// for tests and for the cmd layer when it owns logger construction.
func UseLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l.Sugar()
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Get returns the named child logger for a category, or a no-op logger
// when Initialize has not run.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	r := root
	mu.RUnlock()

	if r == nil {
		return zap.NewNop().Sugar()
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := r.Named(string(category))
	loggers[category] = l
	return l
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Infof(format, args...) }

// Session logs to the session category.
func Session(format string, args ...interface{}) { Get(CategorySession).Infof(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Infof(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debugf(format, args...) }

// Cryptor logs to the cryptor category.
func Cryptor(format string, args ...interface{}) { Get(CategoryCryptor).Infof(format, args...) }

// Perception logs to the perception category.
func Perception(format string, args ...interface{}) { Get(CategoryPerception).Infof(format, args...) }

// PerceptionDebug logs debug to the perception category.
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debugf(format, args...)
}

// Articulation logs to the articulation category.
func Articulation(format string, args ...interface{}) {
	Get(CategoryArticulation).Infof(format, args...)
}

// Workflow logs to the workflow category.
func Workflow(format string, args ...interface{}) { Get(CategoryWorkflow).Infof(format, args...) }

// WorkflowDebug logs debug to the workflow category.
func WorkflowDebug(format string, args ...interface{}) {
	Get(CategoryWorkflow).Debugf(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer measures an operation's duration. The remote-call paths (cryptor,
// LLM) log every duration the way the service always has.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Infof("%s completed in %v", t.op, elapsed)
	return elapsed
}
