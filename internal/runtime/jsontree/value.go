// Package jsontree holds the schema-less JSON tree exchanged with the
// converter. Objects keep the order their members were added or parsed in and
// numbers keep their literal text, so a tree can be printed back without
// losing precision.
package jsontree

import (
	"fmt"
	"strconv"
)

// Kind identifies the JSON type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Member is a single key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON tree node. The zero Value is JSON null.
type Value struct {
	kind    Kind
	boolean bool
	text    string
	elems   []Value
	members []Member
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// String returns a JSON string.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number returns a JSON number holding literal verbatim. The literal is
// checked when the tree is marshalled.
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Int returns a JSON number for an integer.
func Int(n int64) Value { return Number(strconv.FormatInt(n, 10)) }

// Uint returns a JSON number for an unsigned integer.
func Uint(n uint64) Value { return Number(strconv.FormatUint(n, 10)) }

// Float returns a JSON number for f. NaN and infinities produce a literal that
// Marshal rejects.
func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'g', -1, 64)) }

// Array returns a JSON array of the supplied elements.
func Array(elems ...Value) Value {
	copied := make([]Value, len(elems))
	copy(copied, elems)
	return Value{kind: KindArray, elems: copied}
}

// Object returns a JSON object. A repeated key replaces the earlier value and
// keeps the earlier position.
func Object(members ...Member) Value {
	b := newObjectBuilder(len(members))
	for _, m := range members {
		b.set(m.Key, m.Value)
	}
	return b.build()
}

// Field is shorthand for constructing a Member.
func Field(key string, value Value) Member {
	return Member{Key: key, Value: value}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v is a boolean.
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// AsString returns the string and whether v is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// NumberLiteral returns the literal text of a number.
func (v Value) NumberLiteral() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

// Int64 parses a number as a signed integer.
func (v Value) Int64() (int64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("jsontree: %s is not a number", v.kind)
	}
	return strconv.ParseInt(v.text, 10, 64)
}

// Float64 parses a number as a float.
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("jsontree: %s is not a number", v.kind)
	}
	return strconv.ParseFloat(v.text, 64)
}

// Len returns the number of array elements or object members.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.elems)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Index returns the i-th array element.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.elems) {
		return Value{}, false
	}
	return v.elems[i], true
}

// Get returns the member value stored under key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Elements returns a copy of the array elements.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]Value, len(v.elems))
	copy(out, v.elems)
	return out
}

// Members returns a copy of the object members in order.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	out := make([]Member, len(v.members))
	copy(out, v.members)
	return out
}

// Keys returns the object keys in order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// Equal reports whether two trees hold the same data. Object member order is
// ignored and numbers compare by literal text.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolean == other.boolean
	case KindNumber, KindString:
		return v.text == other.text
	case KindArray:
		if len(v.elems) != len(other.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(other.elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.members) != len(other.members) {
			return false
		}
		for _, m := range v.members {
			ov, ok := other.Get(m.Key)
			if !ok || !m.Value.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String returns the canonical JSON text, or a diagnostic when the tree cannot
// be marshalled.
func (v Value) String() string {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Sprintf("<invalid json: %v>", err)
	}
	return string(data)
}

type objectBuilder struct {
	members []Member
	index   map[string]int
}

func newObjectBuilder(size int) *objectBuilder {
	return &objectBuilder{
		members: make([]Member, 0, size),
		index:   make(map[string]int, size),
	}
}

func (b *objectBuilder) has(key string) bool {
	_, ok := b.index[key]
	return ok
}

func (b *objectBuilder) set(key string, value Value) {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = value
		return
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: value})
}

func (b *objectBuilder) build() Value {
	return Value{kind: KindObject, members: b.members}
}
