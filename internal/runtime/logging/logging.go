// Package logging adapts host loggers to the contract conversion diagnostics
// report through. Hosts bring slog, a Watermill LoggerAdapter, or a
// logrus-style entry logger; each is wrapped as a ServiceLogger.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// Keys written on every conversion log line.
const (
	FieldDirection = "direction"
	FieldSchema    = "schema"
	FieldSize      = "size_bytes"
	FieldDuration  = "duration"
	FieldCause     = "cause"
	FieldError     = "error"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// ConversionFields builds the fields shared by success and failure lines.
// An empty schema is left out.
func ConversionFields(direction, schema string, size int, took time.Duration) LogFields {
	fields := LogFields{
		FieldDirection: direction,
		FieldSize:      size,
		FieldDuration:  took.String(),
	}
	if schema != "" {
		fields[FieldSchema] = schema
	}
	return fields
}

// ServiceLogger is what the service and LoggerDiagnostics write to.
// Successful conversions go to Trace, rejected input to Info and codec faults
// to Error.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// EntryLoggerAdapter captures what NewEntryServiceLogger needs from a
// logrus-style entry logger whose chaining methods return its own type.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

type level int

const (
	levelTrace level = iota
	levelDebug
	levelInfo
	levelError
)

// backend is the per-library half of a ServiceLogger.
type backend interface {
	with(fields LogFields) backend
	emit(lvl level, msg string, err error, fields LogFields)
}

type serviceLogger struct {
	b backend
}

func (l serviceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return l
	}
	return serviceLogger{b: l.b.with(fields)}
}

func (l serviceLogger) Debug(msg string, fields LogFields) { l.b.emit(levelDebug, msg, nil, fields) }
func (l serviceLogger) Info(msg string, fields LogFields)  { l.b.emit(levelInfo, msg, nil, fields) }
func (l serviceLogger) Trace(msg string, fields LogFields) { l.b.emit(levelTrace, msg, nil, fields) }

func (l serviceLogger) Error(msg string, err error, fields LogFields) {
	l.b.emit(levelError, msg, err, fields)
}

// NewSlogServiceLogger writes to log. Trace lines use watermill.LevelTrace so
// they sit below slog.LevelDebug the same way Watermill's own slog adapter
// places them.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("protoconv: slog logger cannot be nil")
	}
	return serviceLogger{b: slogBackend{log: log}}
}

// NewWatermillServiceLogger writes to an existing Watermill LoggerAdapter, for
// hosts that already route the transcoding handlers through a Watermill router.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("protoconv: watermill logger cannot be nil")
	}
	return serviceLogger{b: watermillBackend{inner: logger}}
}

// NewNopServiceLogger discards everything.
func NewNopServiceLogger() ServiceLogger {
	return serviceLogger{b: watermillBackend{inner: watermill.NopLogger{}}}
}

// NewEntryServiceLogger writes to an entry-style logger such as *logrus.Entry.
// A nil entry, typed or not, panics.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	if v := reflect.ValueOf(any(entry)); !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		panic("protoconv: entry logger cannot be nil")
	}
	return serviceLogger{b: entryBackend[T]{entry: entry}}
}

var slogLevels = map[level]slog.Level{
	levelTrace: watermill.LevelTrace,
	levelDebug: slog.LevelDebug,
	levelInfo:  slog.LevelInfo,
	levelError: slog.LevelError,
}

type slogBackend struct {
	log *slog.Logger
}

func (s slogBackend) with(fields LogFields) backend {
	return slogBackend{log: s.log.With(slogArgs(fields)...)}
}

func (s slogBackend) emit(lvl level, msg string, err error, fields LogFields) {
	args := slogArgs(fields)
	if err != nil {
		args = append(args, slog.Any(FieldError, err))
	}
	s.log.Log(context.Background(), slogLevels[lvl], msg, args...)
}

// slogArgs orders attributes by key so conversion lines render identically
// from call to call.
func slogArgs(fields LogFields) []any {
	args := make([]any, 0, len(fields))
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, slog.Any(key, fields[key]))
	}
	return args
}

type watermillBackend struct {
	inner watermill.LoggerAdapter
}

func (w watermillBackend) with(fields LogFields) backend {
	return watermillBackend{inner: w.inner.With(watermill.LogFields(fields))}
}

func (w watermillBackend) emit(lvl level, msg string, err error, fields LogFields) {
	var wf watermill.LogFields
	if len(fields) > 0 {
		wf = watermill.LogFields(fields)
	}
	switch lvl {
	case levelTrace:
		w.inner.Trace(msg, wf)
	case levelDebug:
		w.inner.Debug(msg, wf)
	case levelInfo:
		w.inner.Info(msg, wf)
	default:
		w.inner.Error(msg, err, wf)
	}
}

type entryBackend[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (e entryBackend[T]) with(fields LogFields) backend {
	return entryBackend[T]{entry: withEntryFields(e.entry, fields)}
}

func (e entryBackend[T]) emit(lvl level, msg string, err error, fields LogFields) {
	entry := withEntryFields(e.entry, fields)
	switch lvl {
	case levelTrace:
		entry.Trace(msg)
	case levelDebug:
		entry.Debug(msg)
	case levelInfo:
		entry.Info(msg)
	default:
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Error(msg)
	}
}

func withEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		entry = entry.WithField(key, fields[key])
	}
	return entry
}
