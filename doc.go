// Package protoconv converts between generic JSON trees and Protocol Buffers
// messages whose type is only known at runtime. A schema handle (built from a
// generated message, a descriptor, or a serialized FileDescriptorSet) tells the
// converter which message to build; the converter does the rest through the
// protobuf JSON mapping.
//
// SchemaConverter is the core: ToMessage renders a JSON tree to canonical text
// and merges it into a fresh message, rejecting unknown keys, and ToJSON prints
// a message and parses the text back into a tree, reporting the byte length of
// the printed text alongside it. Every failure surfaces as a ConversionError
// that records the direction and whether the input or the codec was at fault.
//
// Service layers the ambient concerns on top: structured logging through
// ServiceLogger, Prometheus counters and histograms, OpenTelemetry spans, and
// protobuf wire helpers. NewJSONToProtoHandler and NewProtoToJSONHandler expose
// the Service as Watermill handler functions so payloads can be transcoded
// inside an existing router.
//
// # Diagnostics
//
// Conversions report their outcome to a Diagnostics sink. Input faults are
// logged at info level; codec faults point at a defect in the printer or the
// tree parser and are logged at error level. Sinks can be combined with
// MultiDiagnostics and passed to a converter with WithDiagnostics.
package protoconv
