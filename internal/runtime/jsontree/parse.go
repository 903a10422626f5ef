package jsontree

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	sonicutf8 "github.com/bytedance/sonic/utf8"

	jsoncodec "github.com/drblury/protoconv/internal/runtime/jsoncodec"
)

var (
	ErrInvalidUTF8       = errors.New("jsontree: invalid UTF-8 in JSON text")
	ErrUnpairedSurrogate = errors.New("jsontree: unpaired UTF-16 surrogate escape")
	ErrDuplicateKey      = errors.New("jsontree: duplicate object key")
)

// Parse reads exactly one JSON value from data. Object member order is kept
// as it appears in the text and number literals are kept verbatim. Text that a
// lenient decoder would silently rewrite is rejected: invalid UTF-8, unpaired
// surrogate escapes, and duplicate object keys.
func Parse(data []byte) (Value, error) {
	if err := jsoncodec.Check(data); err != nil {
		return Value{}, fmt.Errorf("jsontree: %w", err)
	}
	if !sonicutf8.Validate(data) {
		return Value{}, ErrInvalidUTF8
	}
	if err := checkSurrogates(data); err != nil {
		return Value{}, err
	}

	root, err := sonic.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("jsontree: %w", err)
	}
	if err := root.LoadAll(); err != nil {
		return Value{}, fmt.Errorf("jsontree: %w", err)
	}
	return fromNode(&root)
}

// MustParse is Parse for literals in tests and examples.
func MustParse(text string) Value {
	v, err := Parse([]byte(text))
	if err != nil {
		panic(err)
	}
	return v
}

func fromNode(node *ast.Node) (Value, error) {
	switch node.TypeSafe() {
	case ast.V_NULL:
		return Null(), nil
	case ast.V_TRUE:
		return Bool(true), nil
	case ast.V_FALSE:
		return Bool(false), nil
	case ast.V_NUMBER:
		num, err := node.Number()
		if err != nil {
			return Value{}, fmt.Errorf("jsontree: %w", err)
		}
		return Number(string(num)), nil
	case ast.V_STRING:
		s, err := node.String()
		if err != nil {
			return Value{}, fmt.Errorf("jsontree: %w", err)
		}
		return String(s), nil
	case ast.V_ARRAY:
		return fromArray(node)
	case ast.V_OBJECT:
		return fromObject(node)
	default:
		if !node.Valid() {
			return Value{}, fmt.Errorf("jsontree: %s", node.Error())
		}
		return Value{}, fmt.Errorf("jsontree: unexpected node type %d", node.TypeSafe())
	}
}

func fromArray(node *ast.Node) (Value, error) {
	it, err := node.Values()
	if err != nil {
		return Value{}, fmt.Errorf("jsontree: %w", err)
	}

	elems := []Value{}
	var elem ast.Node
	for it.Next(&elem) {
		v, err := fromNode(&elem)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return Value{kind: KindArray, elems: elems}, nil
}

func fromObject(node *ast.Node) (Value, error) {
	it, err := node.Properties()
	if err != nil {
		return Value{}, fmt.Errorf("jsontree: %w", err)
	}

	b := newObjectBuilder(0)
	var pair ast.Pair
	for it.Next(&pair) {
		if b.has(pair.Key) {
			return Value{}, fmt.Errorf("%w: %q", ErrDuplicateKey, pair.Key)
		}
		v, err := fromNode(&pair.Value)
		if err != nil {
			return Value{}, err
		}
		b.set(pair.Key, v)
	}
	return b.build(), nil
}

// checkSurrogates walks the string literals of well-formed JSON text and
// rejects \u escapes that do not form a valid UTF-16 surrogate pair.
func checkSurrogates(data []byte) error {
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}
		switch c {
		case '"':
			inString = false
		case '\\':
			i++
			if i >= len(data) || data[i] != 'u' {
				continue
			}
			r, ok := hexRune(data, i+1)
			if !ok {
				return ErrUnpairedSurrogate
			}
			i += 4
			switch {
			case r >= 0xDC00 && r <= 0xDFFF:
				return ErrUnpairedSurrogate
			case r >= 0xD800 && r <= 0xDBFF:
				if i+2 >= len(data) || data[i+1] != '\\' || data[i+2] != 'u' {
					return ErrUnpairedSurrogate
				}
				low, ok := hexRune(data, i+3)
				if !ok || low < 0xDC00 || low > 0xDFFF {
					return ErrUnpairedSurrogate
				}
				i += 6
			}
		}
	}
	return nil
}

func hexRune(data []byte, at int) (rune, bool) {
	if at+4 > len(data) {
		return 0, false
	}
	var r rune
	for _, c := range data[at : at+4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			return 0, false
		}
	}
	return r, true
}
