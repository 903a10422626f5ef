package jsontree

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FromAny builds a tree from the generic values produced by JSON decoders
// (nil, bool, string, numbers, json.Number, []any, map[string]any). Map keys
// are sorted since Go maps carry no order.
func FromAny(in any) (Value, error) {
	switch v := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		if !validNumber(string(v)) {
			return Value{}, fmt.Errorf("jsontree: invalid number literal %q", string(v))
		}
		return Number(string(v)), nil
	case float64:
		return Float(v), nil
	case float32:
		return Float(float64(v)), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Uint(uint64(v)), nil
	case uint8:
		return Uint(uint64(v)), nil
	case uint16:
		return Uint(uint64(v)), nil
	case uint32:
		return Uint(uint64(v)), nil
	case uint64:
		return Uint(v), nil
	case []any:
		elems := make([]Value, len(v))
		for i, raw := range v {
			elem, err := FromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("%w (at index %d)", err, i)
			}
			elems[i] = elem
		}
		return Value{kind: KindArray, elems: elems}, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b := newObjectBuilder(len(keys))
		for _, k := range keys {
			member, err := FromAny(v[k])
			if err != nil {
				return Value{}, fmt.Errorf("%w (at key %q)", err, k)
			}
			b.set(k, member)
		}
		return b.build(), nil
	default:
		return Value{}, fmt.Errorf("jsontree: unsupported type %T", in)
	}
}

// Interface converts the tree back into generic Go values. Numbers become
// json.Number so no precision is lost; object order is not kept.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		return json.Number(v.text)
	case KindString:
		return v.text
	case KindArray:
		out := make([]any, len(v.elems))
		for i, elem := range v.elems {
			out[i] = elem.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			out[m.Key] = m.Value.Interface()
		}
		return out
	default:
		return nil
	}
}
