// Package diagnostics carries conversion outcomes to logging and telemetry
// collaborators. Converters receive a Diagnostics value at construction rather
// than reaching for a process-wide logger.
package diagnostics

import (
	"time"

	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	loggingpkg "github.com/drblury/protoconv/internal/runtime/logging"
)

// Event describes one conversion call.
type Event struct {
	Direction errspkg.Direction
	// Schema is the fully qualified message name, empty when unknown.
	Schema string
	// Size is the byte length of the JSON text handled by the call.
	Size     int
	Duration time.Duration
}

// Diagnostics observes conversion outcomes. Implementations must be safe for
// concurrent use.
type Diagnostics interface {
	ConversionSucceeded(ev Event)
	ConversionFailed(ev Event, err *errspkg.ConversionError)
}

type nop struct{}

func (nop) ConversionSucceeded(Event)                        {}
func (nop) ConversionFailed(Event, *errspkg.ConversionError) {}

// Nop discards all events.
func Nop() Diagnostics { return nop{} }

type multi []Diagnostics

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Diagnostics) Diagnostics {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if nested, ok := s.(multi); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, s)
	}
	switch len(out) {
	case 0:
		return Nop()
	case 1:
		return out[0]
	default:
		return out
	}
}

func (m multi) ConversionSucceeded(ev Event) {
	for _, s := range m {
		s.ConversionSucceeded(ev)
	}
}

func (m multi) ConversionFailed(ev Event, err *errspkg.ConversionError) {
	for _, s := range m {
		s.ConversionFailed(ev, err)
	}
}

// LoggerDiagnostics writes conversion outcomes to a ServiceLogger.
type LoggerDiagnostics struct {
	logger loggingpkg.ServiceLogger
}

// NewLoggerDiagnostics panics on a nil logger, like the logging constructors.
func NewLoggerDiagnostics(logger loggingpkg.ServiceLogger) *LoggerDiagnostics {
	if logger == nil {
		panic("protoconv: diagnostics logger cannot be nil")
	}
	return &LoggerDiagnostics{logger: logger}
}

func (d *LoggerDiagnostics) ConversionSucceeded(ev Event) {
	d.logger.Trace("Conversion succeeded", eventFields(ev))
}

// ConversionFailed logs codec faults at error level; they mean the protobuf
// JSON printer and the tree parser disagree. Bad caller input is logged at
// info level since it is reported to the caller anyway.
func (d *LoggerDiagnostics) ConversionFailed(ev Event, err *errspkg.ConversionError) {
	fields := eventFields(ev)
	fields[loggingpkg.FieldCause] = err.Cause.String()

	if err.Cause == errspkg.CauseCodec {
		d.logger.Error("Protobuf JSON printer produced text the JSON tree parser rejected", err, fields)
		return
	}
	fields[loggingpkg.FieldError] = err.Error()
	d.logger.Info("Conversion rejected input", fields)
}

func eventFields(ev Event) loggingpkg.LogFields {
	return loggingpkg.ConversionFields(string(ev.Direction), ev.Schema, ev.Size, ev.Duration)
}
