package ledger

import (
	"errors"
	"fmt"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	// ValueBytes holds an opaque byte string.
	ValueBytes ValueKind = iota + 1
	// ValueUint holds an unsigned integer.
	ValueUint
)

// Value is the tagged variant used by cross-module setters. The kind is
// always explicit; it is never inferred from a separate flag argument.
type Value struct {
	Kind  ValueKind
	Bytes []byte
	Uint  uint64
}

// BytesValue wraps raw bytes in a Value.
func BytesValue(b []byte) Value {
	return Value{Kind: ValueBytes, Bytes: append([]byte(nil), b...)}
}

// UintValue wraps an unsigned integer in a Value.
func UintValue(v uint64) Value {
	return Value{Kind: ValueUint, Uint: v}
}

// ErrBadValueKind reports a Value whose tag is not one of the two variants.
var ErrBadValueKind = errors.New("ledger: unknown value kind")

// Encode serializes the value for storage: a one-byte tag followed by the
// payload. Uint payloads are fixed-width big-endian.
func (v Value) Encode() ([]byte, error) {
	switch v.Kind {
	case ValueBytes:
		out := make([]byte, 1+len(v.Bytes))
		out[0] = byte(ValueBytes)
		copy(out[1:], v.Bytes)
		return out, nil
	case ValueUint:
		out := make([]byte, 9)
		out[0] = byte(ValueUint)
		copy(out[1:], EncodeUint64(v.Uint))
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadValueKind, v.Kind)
	}
}

// DecodeValue reverses Encode.
func DecodeValue(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Value{}, errors.New("ledger: empty value encoding")
	}
	switch ValueKind(raw[0]) {
	case ValueBytes:
		return BytesValue(raw[1:]), nil
	case ValueUint:
		if len(raw) != 9 {
			return Value{}, fmt.Errorf("ledger: uint value must be 9 bytes, got %d", len(raw))
		}
		u, err := Uint64Arg(raw[1:])
		if err != nil {
			return Value{}, err
		}
		return UintValue(u), nil
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrBadValueKind, raw[0])
	}
}
