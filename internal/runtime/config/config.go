package config

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	DefaultMetricsNamespace = "protoconv"
	DefaultTracerName       = "protoconv-converter"
)

var metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config groups the settings used to build a converter Service. Zero values
// are valid and select the protobuf JSON defaults.
type Config struct {
	// EmitUnpopulated prints fields holding their default value instead of
	// omitting them in the message to JSON direction.
	EmitUnpopulated bool
	// UseProtoNames prints the original field names instead of lowerCamelCase
	// JSON names. Both spellings are always accepted on input.
	UseProtoNames bool
	// AllowPartial skips the check for missing proto2 required fields.
	AllowPartial bool
	// MaxJSONBytes rejects JSON texts larger than this many bytes. Zero means
	// no limit.
	MaxJSONBytes int

	// Metrics configuration.
	MetricsEnabled bool
	// MetricsNamespace prefixes every collector. Defaults to "protoconv".
	MetricsNamespace string

	// Tracing configuration.
	TracingEnabled bool
	// TracerName names the OpenTelemetry tracer. Defaults to "protoconv-converter".
	TracerName string
}

// Namespace returns the configured metrics namespace or the default.
func (c *Config) Namespace() string {
	if c.MetricsNamespace == "" {
		return DefaultMetricsNamespace
	}
	return c.MetricsNamespace
}

// Tracer returns the configured tracer name or the default.
func (c *Config) Tracer() string {
	if c.TracerName == "" {
		return DefaultTracerName
	}
	return c.TracerName
}

func (c Config) String() string {
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(c))
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateLimits()...)
	errs = append(errs, c.validateMetrics()...)

	return errors.Join(errs...)
}

func (c *Config) validateLimits() []error {
	if c.MaxJSONBytes < 0 {
		return []error{fmt.Errorf("limits: max JSON bytes cannot be negative (%d)", c.MaxJSONBytes)}
	}
	return nil
}

func (c *Config) validateMetrics() []error {
	if c.MetricsNamespace != "" && !metricNamePattern.MatchString(c.MetricsNamespace) {
		return []error{fmt.Errorf("metrics: invalid namespace %q", c.MetricsNamespace)}
	}
	return nil
}

// ValidateConfig is a convenience function to validate a config pointer.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
