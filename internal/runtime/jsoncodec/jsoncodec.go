package jsoncodec

import (
	"errors"
	"io"

	"github.com/bytedance/sonic"
)

var errInvalid = errors.New("jsoncodec: invalid JSON text")

// defaultConfig is a frozen sonic API and is safe for concurrent use.
var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data holds exactly one well-formed JSON value.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

// Check returns nil for well-formed JSON and the decoder's error otherwise, so
// callers get a descriptive cause instead of a bare boolean.
func Check(data []byte) error {
	if defaultConfig.Valid(data) {
		return nil
	}
	var discard any
	if err := defaultConfig.Unmarshal(data, &discard); err != nil {
		return err
	}
	return errInvalid
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}
