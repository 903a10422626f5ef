package config

import (
	"strings"
	"testing"
)

func TestZeroConfigIsValid(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected zero config to be valid, got %v", err)
	}
	if cfg.Namespace() != DefaultMetricsNamespace {
		t.Fatalf("expected default namespace, got %s", cfg.Namespace())
	}
	if cfg.Tracer() != DefaultTracerName {
		t.Fatalf("expected default tracer, got %s", cfg.Tracer())
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := &Config{MaxJSONBytes: -1, MetricsNamespace: "bad-namespace"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "max JSON bytes") {
		t.Errorf("expected limits error, got %q", msg)
	}
	if !strings.Contains(msg, "invalid namespace") {
		t.Errorf("expected namespace error, got %q", msg)
	}
}

func TestValidateAcceptsCustomValues(t *testing.T) {
	cfg := &Config{MaxJSONBytes: 1 << 20, MetricsNamespace: "kafka_rest", TracerName: "rest-proxy"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Namespace() != "kafka_rest" || cfg.Tracer() != "rest-proxy" {
		t.Fatalf("custom values not honoured: %s %s", cfg.Namespace(), cfg.Tracer())
	}
}

func TestValidateConfigNil(t *testing.T) {
	if err := ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if err := ValidateConfig(&Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigString(t *testing.T) {
	str := Config{EmitUnpopulated: true, MaxJSONBytes: 10}.String()
	if !strings.Contains(str, "EmitUnpopulated:true") || !strings.Contains(str, "MaxJSONBytes:10") {
		t.Fatalf("unexpected string %q", str)
	}
}
