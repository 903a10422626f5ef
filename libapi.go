package protoconv

import (
	"github.com/ThreeDotsLabs/watermill/message"

	runtimepkg "github.com/drblury/protoconv/internal/runtime"
	configpkg "github.com/drblury/protoconv/internal/runtime/config"
	converterpkg "github.com/drblury/protoconv/internal/runtime/converter"
	diagpkg "github.com/drblury/protoconv/internal/runtime/diagnostics"
	errspkg "github.com/drblury/protoconv/internal/runtime/errors"
	handlerpkg "github.com/drblury/protoconv/internal/runtime/handlers"
	idspkg "github.com/drblury/protoconv/internal/runtime/ids"
	jsoncodec "github.com/drblury/protoconv/internal/runtime/jsoncodec"
	"github.com/drblury/protoconv/internal/runtime/jsontree"
	loggingpkg "github.com/drblury/protoconv/internal/runtime/logging"
	metadatapkg "github.com/drblury/protoconv/internal/runtime/metadata"
	metricspkg "github.com/drblury/protoconv/internal/runtime/metrics"
	schemapkg "github.com/drblury/protoconv/internal/runtime/schema"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	SchemaConverter   = converterpkg.SchemaConverter
	ProtobufConverter = converterpkg.ProtobufConverter
	ConverterOption   = converterpkg.Option
	Result            = converterpkg.Result

	JSONValue  = jsontree.Value
	JSONMember = jsontree.Member
	JSONKind   = jsontree.Kind

	ParsedSchema   = schemapkg.ParsedSchema
	ProtobufSchema = schemapkg.ProtobufSchema
	OtherSchema    = schemapkg.OtherSchema
	SchemaType     = schemapkg.Type
	SchemaResolver = schemapkg.Resolver

	ConversionError       = errspkg.ConversionError
	ConfigValidationError = errspkg.ConfigValidationError
	Direction             = errspkg.Direction
	Cause                 = errspkg.Cause

	Diagnostics       = diagpkg.Diagnostics
	DiagnosticsEvent  = diagpkg.Event
	ConversionMetrics = metricspkg.ConversionMetrics
	MetricsSnapshot   = metricspkg.Snapshot

	Transcoder = handlerpkg.Transcoder

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig

	NewProtobufConverter = converterpkg.NewProtobufConverter
	WithDiagnostics      = converterpkg.WithDiagnostics
	WithEmitUnpopulated  = converterpkg.WithEmitUnpopulated
	WithProtoNames       = converterpkg.WithProtoNames
	WithAllowPartial     = converterpkg.WithAllowPartial
	WithMaxJSONBytes     = converterpkg.WithMaxJSONBytes
	WithResolver         = converterpkg.WithResolver
	EncodeBinary         = converterpkg.EncodeBinary
	DecodeBinary         = converterpkg.DecodeBinary

	ParseJSON     = jsontree.Parse
	MarshalJSON   = jsontree.Marshal
	JSONFromValue = jsontree.FromAny
	JSONNull      = jsontree.Null
	JSONBool      = jsontree.Bool
	JSONString    = jsontree.String
	JSONNumber    = jsontree.Number
	JSONInt       = jsontree.Int
	JSONFloat     = jsontree.Float
	JSONArray     = jsontree.Array
	JSONObject    = jsontree.Object
	JSONField     = jsontree.Field

	SchemaFromMessage           = schemapkg.FromMessage
	SchemaFromDescriptor        = schemapkg.FromDescriptor
	SchemaFromFiles             = schemapkg.FromFiles
	SchemaFromFileDescriptorSet = schemapkg.FromFileDescriptorSet
	AsProtobufSchema            = schemapkg.AsProtobuf
	NopDiagnostics              = diagpkg.Nop
	MultiDiagnostics            = diagpkg.Multi
	NewLoggerDiagnostics        = diagpkg.NewLoggerDiagnostics
	NewConversionMetrics        = metricspkg.NewConversionMetrics
	NewJSONToProtoHandler       = handlerpkg.NewJSONToProtoHandler
	NewProtoToJSONHandler       = handlerpkg.NewProtoToJSONHandler
	AsConversionError           = errspkg.AsConversionError
	IsConversionError           = errspkg.IsConversionError
	IsCodecFault                = errspkg.IsCodecFault
	NewSlogServiceLogger        = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger   = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger         = loggingpkg.NewNopServiceLogger
	MetadataFromWatermill       = metadatapkg.FromWatermill
	MetadataToWatermill         = metadatapkg.ToWatermill
	NewConversionID             = idspkg.New

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrSchemaRequired        = errspkg.ErrSchemaRequired
	ErrUnsupportedSchemaType = errspkg.ErrUnsupportedSchemaType
	ErrMessageTypeRequired   = errspkg.ErrMessageTypeRequired
	ErrConverterRequired     = errspkg.ErrConverterRequired
	ErrConfigRequired        = errspkg.ErrConfigRequired
	ErrLoggerRequired        = errspkg.ErrLoggerRequired
	ErrPayloadRequired       = errspkg.ErrPayloadRequired
	ErrConversion            = errspkg.ErrConversion
	ErrInvalidJSONUTF8       = jsontree.ErrInvalidUTF8
	ErrUnpairedSurrogate     = jsontree.ErrUnpairedSurrogate
	ErrDuplicateJSONKey      = jsontree.ErrDuplicateKey
)

// JSON tree kinds.
const (
	JSONKindNull   = jsontree.KindNull
	JSONKindBool   = jsontree.KindBool
	JSONKindNumber = jsontree.KindNumber
	JSONKindString = jsontree.KindString
	JSONKindArray  = jsontree.KindArray
	JSONKindObject = jsontree.KindObject
)

// Schema types, using the schema registry names.
const (
	SchemaTypeProtobuf = schemapkg.TypeProtobuf
	SchemaTypeJSON     = schemapkg.TypeJSON
	SchemaTypeAvro     = schemapkg.TypeAvro
)

// Conversion directions and failure causes carried by ConversionError.
const (
	DirectionToMessage  = errspkg.DirectionToMessage
	DirectionToJSON     = errspkg.DirectionToJSON
	DirectionToBinary   = errspkg.DirectionToBinary
	DirectionFromBinary = errspkg.DirectionFromBinary

	CauseInput = errspkg.CauseInput
	CauseCodec = errspkg.CauseCodec
)

// Metadata keys set on messages emitted by the transcoding handlers.
const (
	MetadataKeySchema      = metadatapkg.KeySchema
	MetadataKeyContentType = metadatapkg.KeyContentType
	MetadataKeyJSONSize    = metadatapkg.KeyJSONSize
	MetadataKeySourceID    = metadatapkg.KeySourceID

	ContentTypeJSON     = metadatapkg.ContentTypeJSON
	ContentTypeProtobuf = metadatapkg.ContentTypeProtobuf
)

// MustParseJSON parses text and panics on malformed input. Intended for
// literals in tests and examples.
func MustParseJSON(text string) JSONValue {
	return jsontree.MustParse(text)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// NewTranscodingHandlers builds both Watermill handlers for schema in one call.
func NewTranscodingHandlers(svc *Service, schema ParsedSchema) (toProto, toJSON message.HandlerFunc, err error) {
	if svc == nil {
		return nil, nil, ErrConverterRequired
	}
	if toProto, err = handlerpkg.NewJSONToProtoHandler(svc, schema); err != nil {
		return nil, nil, err
	}
	if toJSON, err = handlerpkg.NewProtoToJSONHandler(svc, schema); err != nil {
		return nil, nil, err
	}
	return toProto, toJSON, nil
}
