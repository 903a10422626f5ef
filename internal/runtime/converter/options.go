package converter

import (
	configpkg "github.com/drblury/protoconv/internal/runtime/config"
	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

// Option customises a ProtobufConverter.
type Option func(*converterOptions)

type converterOptions struct {
	emitUnpopulated bool
	useProtoNames   bool
	allowPartial    bool
	maxJSONBytes    int
	resolver        schemapkg.Resolver
	diagnostics     diagpkg.Diagnostics
}

func applyOptions(opts []Option) converterOptions {
	cfg := converterOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.diagnostics == nil {
		cfg.diagnostics = diagpkg.Nop()
	}
	return cfg
}

// WithDiagnostics sets the sink notified of every conversion outcome.
func WithDiagnostics(d diagpkg.Diagnostics) Option {
	return func(cfg *converterOptions) {
		cfg.diagnostics = d
	}
}

// WithEmitUnpopulated prints default-valued fields in the message to JSON
// direction.
func WithEmitUnpopulated(enabled bool) Option {
	return func(cfg *converterOptions) {
		cfg.emitUnpopulated = enabled
	}
}

// WithProtoNames prints field names as declared in the .proto file.
func WithProtoNames(enabled bool) Option {
	return func(cfg *converterOptions) {
		cfg.useProtoNames = enabled
	}
}

// WithAllowPartial accepts messages with missing proto2 required fields.
func WithAllowPartial(enabled bool) Option {
	return func(cfg *converterOptions) {
		cfg.allowPartial = enabled
	}
}

// WithMaxJSONBytes rejects JSON trees whose canonical text exceeds n bytes.
func WithMaxJSONBytes(n int) Option {
	return func(cfg *converterOptions) {
		cfg.maxJSONBytes = n
	}
}

// WithResolver overrides the resolver used for google.protobuf.Any payloads.
// By default ToMessage uses the schema's resolver and ToJSON the global
// registry.
func WithResolver(r schemapkg.Resolver) Option {
	return func(cfg *converterOptions) {
		cfg.resolver = r
	}
}

// OptionsFromConfig maps the codec settings of conf onto converter options.
func OptionsFromConfig(conf *configpkg.Config) []Option {
	if conf == nil {
		return nil
	}
	return []Option{
		WithEmitUnpopulated(conf.EmitUnpopulated),
		WithProtoNames(conf.UseProtoNames),
		WithAllowPartial(conf.AllowPartial),
		WithMaxJSONBytes(conf.MaxJSONBytes),
	}
}
