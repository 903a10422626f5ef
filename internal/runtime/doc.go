/*
Package runtime provides the conversion service behind protoconv.

# Architecture Overview

The runtime package wraps a schema-driven converter between JSON trees and
Protocol Buffers messages. The converter itself is stateless; the Service adds
structured logging, Prometheus metrics and OpenTelemetry spans around it.

## Core Service (service.go)

The Service struct wires together:
  - The SchemaConverter (protobuf by default, built from the Config)
  - Diagnostics sinks for logging and metrics
  - A tracer for per-conversion spans
  - Wire format helpers for encoding and decoding protobuf bytes

# Sub-packages

  - config/: Service configuration with validation
  - converter/: The SchemaConverter and protobuf wire helpers
  - diagnostics/: Conversion outcome sinks and the logging sink
  - errors/: Sentinel errors and the ConversionError type
  - handlers/: Watermill handlers that transcode message payloads
  - ids/: ULID generation for conversion and message IDs
  - jsoncodec/: JSON marshaling utilities
  - jsontree/: The immutable JSON tree model
  - logging/: Logger interface and adapters
  - metadata/: Message metadata utilities
  - metrics/: Prometheus conversion metrics
  - schema/: Parsed schema handles and their providers

# Usage Example

	cfg := &protoconv.Config{
		MetricsEnabled: true,
		TracingEnabled: true,
	}

	svc := protoconv.NewService(cfg, logger, protoconv.ServiceDependencies{})

	schema, err := protoconv.SchemaFromFileDescriptorSet(descriptorSet, "shop.v1.Order")
	if err != nil {
		return err
	}

	msg, err := svc.ToMessage(ctx, tree, schema)
*/
package runtime
