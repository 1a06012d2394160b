// Package logging wires the kernel's fault and lifecycle logging onto
// github.com/joeycumines/logiface, using the stumpy backend by default.
//
// The kernel never formats log lines itself: it only decides what to log and
// at what level, via the small Logger interface in this package.
package logging

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the logging surface the kernel depends on. It intentionally
// exposes only the handful of record shapes the kernel core actually emits,
// rather than the full logiface.Logger[E] surface, so alternative backends
// can be swapped in without dragging the generic Event parameter through
// kernel package signatures.
type Logger interface {
	// Info logs a routine lifecycle event (task created, timer armed).
	Info(msg string, fields ...Field)
	// Warning logs a rejected-but-recoverable programming error, such as an
	// invalid state transition.
	Warning(msg string, fields ...Field)
	// Fault logs a fatal-category condition: stack canary clobber, a nil pick
	// where a ready task should exist, or a priority-inheritance walk exceeding
	// its depth bound. The system continues best-effort; this call only records
	// the event.
	Fault(msg string, fields ...Field)
}

// Field is a deferred key/value pair applied to whichever backend Event
// implementation the active Logger wraps.
type Field struct {
	Key string
	Val any
}

// Str builds a string Field.
func Str(key, val string) Field { return Field{Key: key, Val: val} }

// Int builds an int Field.
func Int(key string, val int) Field { return Field{Key: key, Val: val} }

// Uint64 builds a uint64 Field.
func Uint64(key string, val uint64) Field { return Field{Key: key, Val: val} }

// logifaceLogger adapts a *logiface.Logger[*stumpy.Event] to Logger.
type logifaceLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewStumpy constructs the kernel's default Logger: logiface over the
// stumpy JSON backend, writing to w (os.Stderr if nil).
func NewStumpy(w *os.File) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &logifaceLogger{
		l: logiface.New[*stumpy.Event](
			logiface.WithLevel[*stumpy.Event](logiface.LevelInformational),
			stumpy.WithStumpy(stumpy.WithWriter(w)),
		),
	}
}

func (x *logifaceLogger) Info(msg string, fields ...Field)    { emit(x.l.Info(), msg, fields) }
func (x *logifaceLogger) Warning(msg string, fields ...Field) { emit(x.l.Warning(), msg, fields) }
func (x *logifaceLogger) Fault(msg string, fields ...Field)   { emit(x.l.Crit(), msg, fields) }

func emit(b *logiface.Builder[*stumpy.Event], msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Val.(type) {
		case string:
			b = b.Str(f.Key, v)
		case int:
			b = b.Int(f.Key, v)
		case uint64:
			b = b.Uint64(f.Key, v)
		default:
			b = b.Interface(f.Key, v)
		}
	}
	b.Log(msg)
}

// Nop is a Logger that discards everything. Useful for tests and for
// embedders that route logs elsewhere.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Info(string, ...Field)    {}
func (nopLogger) Warning(string, ...Field) {}
func (nopLogger) Fault(string, ...Field)   {}
