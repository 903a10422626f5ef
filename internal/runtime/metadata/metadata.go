package metadata

// Metadata holds the headers carried alongside a transcoded payload.
type Metadata map[string]string

const (
	// KeySchema names the fully qualified message the payload was transcoded against.
	KeySchema = "protoconv_schema"
	// KeyContentType describes the payload encoding after transcoding.
	KeyContentType = "protoconv_content_type"
	// KeyJSONSize carries the byte length of the JSON text produced by the printer.
	KeyJSONSize = "protoconv_json_size"
	// KeySourceID links a transcoded message to the message it was produced from.
	KeySourceID = "protoconv_source_id"

	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}
