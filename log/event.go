package log

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var _eventPool = sync.Pool{
	New: func() any {
		return &LogEvent{fields: make([]zap.Field, 0, 8)}
	},
}

// LogEvent collects fields for a single log line. A nil *LogEvent is a
// disabled event: every method is a no-op, so callers never check levels.
type LogEvent struct {
	logger *Logger
	level  Level
	fields []zap.Field
}

func newEvent(l *Logger, level Level) *LogEvent {
	e := _eventPool.Get().(*LogEvent)
	e.logger = l
	e.level = level
	e.fields = e.fields[:0]
	return e
}

func (e *LogEvent) Str(key, val string) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.String(key, val))
	return e
}

func (e *LogEvent) Strs(key string, vals []string) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Strings(key, vals))
	return e
}

func (e *LogEvent) Int(key string, val int) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Int(key, val))
	return e
}

func (e *LogEvent) Int64(key string, val int64) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Int64(key, val))
	return e
}

func (e *LogEvent) Bool(key string, val bool) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Bool(key, val))
	return e
}

func (e *LogEvent) Dur(key string, val time.Duration) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Duration(key, val))
	return e
}

func (e *LogEvent) Time(key string, val time.Time) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Time(key, val))
	return e
}

// Err adds the error under the "error" key. A nil error adds nothing.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	e.fields = append(e.fields, zap.Error(err))
	return e
}

// Any adds a value using zap's reflection based encoding.
func (e *LogEvent) Any(key string, val any) *LogEvent {
	if e == nil {
		return e
	}
	e.fields = append(e.fields, zap.Any(key, val))
	return e
}

// Msg writes the event and returns it to the pool. The event must not be
// used afterwards.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.logger.write(e.level, msg, e.fields)
	e.release()
}

func (e *LogEvent) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

func (e *LogEvent) release() {
	// Oversized buffers are dropped instead of pinned in the pool.
	if cap(e.fields) > 64 {
		return
	}
	for i := range e.fields {
		e.fields[i] = zap.Field{}
	}
	e.fields = e.fields[:0]
	e.logger = nil
	_eventPool.Put(e)
}
