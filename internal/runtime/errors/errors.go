package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrSchemaRequired        = sterrors.New("protoconv: schema is required")
	ErrUnsupportedSchemaType = sterrors.New("protoconv: schema is not a protobuf schema")
	ErrMessageTypeRequired   = sterrors.New("protoconv: message type is required")
	ErrConverterRequired     = sterrors.New("protoconv: converter is required")
	ErrConfigRequired        = sterrors.New("protoconv: configuration is required")
	ErrLoggerRequired        = sterrors.New("protoconv: logger is required")
	ErrPayloadRequired       = sterrors.New("protoconv: payload is required")

	// ErrConversion matches every *ConversionError through errors.Is.
	ErrConversion = sterrors.New("protoconv: conversion failed")
)

// ConfigValidationError wraps the aggregated result of Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "protoconv: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// Direction names the conversion that failed.
type Direction string

const (
	DirectionToMessage  Direction = "toMessage"
	DirectionToJSON     Direction = "toJson"
	DirectionToBinary   Direction = "toBinary"
	DirectionFromBinary Direction = "fromBinary"
)

// Cause classifies a conversion failure for diagnostics. It never changes the
// error type returned to callers.
type Cause int

const (
	// CauseInput means the caller supplied data the schema cannot accept.
	CauseInput Cause = iota
	// CauseCodec means the protobuf JSON printer produced text the tree parser
	// rejected, or the printer itself panicked. It points at a defect in the
	// codec pair, not in caller data.
	CauseCodec
)

func (c Cause) String() string {
	switch c {
	case CauseInput:
		return "input"
	case CauseCodec:
		return "codec"
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

// ConversionError is the single error kind surfaced by the converter.
type ConversionError struct {
	Direction Direction
	Cause     Cause
	Err       error
}

// NewConversionError wraps err. A nil err yields a nil error.
func NewConversionError(direction Direction, cause Cause, err error) error {
	if err == nil {
		return nil
	}
	return &ConversionError{Direction: direction, Cause: cause, Err: err}
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("protoconv: failed to convert %s: %v", e.Direction.describe(), e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for ConversionError.
func (e *ConversionError) Is(target error) bool {
	if target == ErrConversion {
		return true
	}
	_, ok := target.(*ConversionError)
	return ok
}

func (d Direction) describe() string {
	switch d {
	case DirectionToMessage:
		return "JSON to Protobuf"
	case DirectionToJSON:
		return "Protobuf to JSON"
	case DirectionToBinary:
		return "JSON to Protobuf binary"
	case DirectionFromBinary:
		return "Protobuf binary to JSON"
	default:
		return string(d)
	}
}

// AsConversionError extracts the *ConversionError from err's chain.
func AsConversionError(err error) (*ConversionError, bool) {
	var convErr *ConversionError
	if sterrors.As(err, &convErr) {
		return convErr, true
	}
	return nil, false
}

// IsConversionError reports whether err carries a ConversionError.
func IsConversionError(err error) bool {
	_, ok := AsConversionError(err)
	return ok
}

// IsCodecFault reports whether err is a conversion failure caused by the codec
// pair rather than by caller data.
func IsCodecFault(err error) bool {
	convErr, ok := AsConversionError(err)
	return ok && convErr.Cause == CauseCodec
}
