// Package logger is the ambient, structured logging façade used by every
// part of this repository except the post-fork region (see
// internal/fork/safelog.go, which must stay async-signal-safe and therefore
// cannot call into logrus).
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ctx is a bag of structured fields attached to a log line, mirroring the
// call sites that do logger.Debug(msg, logger.Ctx{"pid": pid}).
type Ctx map[string]any

var (
	mu  sync.Mutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetDebug toggles debug-level logging process-wide, matching the
// --debug/--verbose flags of cmd/fishexec.
func SetDebug(debug bool) {
	mu.Lock()
	defer mu.Unlock()

	if debug {
		log.SetLevel(logrus.DebugLevel)
		return
	}

	log.SetLevel(logrus.InfoLevel)
}

func entry(ctx Ctx) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	return log.WithFields(logrus.Fields(ctx))
}

// Debug logs a debug-level message with structured context.
func Debug(msg string, ctx ...Ctx) { entry(merge(ctx)).Debug(msg) }

// Info logs an info-level message with structured context.
func Info(msg string, ctx ...Ctx) { entry(merge(ctx)).Info(msg) }

// Warn logs a warning-level message with structured context.
func Warn(msg string, ctx ...Ctx) { entry(merge(ctx)).Warn(msg) }

// Error logs an error-level message with structured context.
func Error(msg string, ctx ...Ctx) { entry(merge(ctx)).Error(msg) }

func merge(ctxs []Ctx) Ctx {
	if len(ctxs) == 0 {
		return Ctx{}
	}

	if len(ctxs) == 1 {
		return ctxs[0]
	}

	out := Ctx{}
	for _, c := range ctxs {
		for k, v := range c {
			out[k] = v
		}
	}

	return out
}

// Logger is a context-bound child logger returned by AddContext, so callers
// that log several related lines don't have to repeat their context fields.
type Logger struct {
	ctx Ctx
}

// AddContext returns a Logger that prepends ctx to every message it logs.
func AddContext(ctx Ctx) *Logger {
	return &Logger{ctx: ctx}
}

func (l *Logger) with(ctx Ctx) Ctx {
	if len(ctx) == 0 {
		return l.ctx
	}

	out := Ctx{}
	for k, v := range l.ctx {
		out[k] = v
	}

	for k, v := range ctx {
		out[k] = v
	}

	return out
}

// Debug logs a debug-level message, merging the Logger's bound context.
func (l *Logger) Debug(msg string, ctx ...Ctx) { entry(l.with(merge(ctx))).Debug(msg) }

// Info logs an info-level message, merging the Logger's bound context.
func (l *Logger) Info(msg string, ctx ...Ctx) { entry(l.with(merge(ctx))).Info(msg) }

// Warn logs a warning-level message, merging the Logger's bound context.
func (l *Logger) Warn(msg string, ctx ...Ctx) { entry(l.with(merge(ctx))).Warn(msg) }

// Error logs an error-level message, merging the Logger's bound context.
func (l *Logger) Error(msg string, ctx ...Ctx) { entry(l.with(merge(ctx))).Error(msg) }
