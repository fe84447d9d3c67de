// Package codec serializes cell values to the text stored in storage areas
// and classifies values by the kind they take in that text form.
//
// The text form is JSON. Kinds follow what a decoder of that text can tell
// apart: strings, numbers, booleans and objects (which include arrays and
// null).
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrEmpty is returned when decoding empty or whitespace-only text.
var ErrEmpty = errors.New("codec: empty input")

// Kind is the runtime kind of a value in its serialized form.
type Kind int

const (
	// KindInvalid is reported for values that cannot be serialized.
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBoolean
	// KindObject covers objects, arrays and null.
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Encode returns the text form of v.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return string(b), nil
}

// Decode parses text into its generic form: string, float64, bool, nil,
// map[string]any or []any.
func Decode(text string) (any, error) {
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return nil, ErrEmpty
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}

// DecodeAs parses text into a T.
func DecodeAs[T any](text string) (T, error) {
	var v T
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return v, ErrEmpty
	}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Convert re-types a generic decoded value as T by round-tripping it
// through the text form. Values that already are a T are returned as is.
func Convert[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	text, err := Encode(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeAs[T](text)
}

// KindOf reports the kind v has once serialized.
// Values whose type implements json.Marshaler are classified by their
// encoded text.
func KindOf(v any) Kind {
	if v == nil {
		return KindObject
	}

	if _, ok := v.(json.Marshaler); !ok {
		if k, ok := kindOfType(reflect.ValueOf(v)); ok {
			return k
		}
	}

	text, err := Encode(v)
	if err != nil {
		return KindInvalid
	}
	return kindOfText(text)
}

// kindOfType classifies by reflection. It reports ok=false when the
// encoded form has to be inspected.
func kindOfType(rv reflect.Value) (Kind, bool) {
	switch rv.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Bool:
		return KindBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return KindNumber, true
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return KindObject, true
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return KindObject, true
		}
		return KindInvalid, false
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return KindInvalid, true
	default:
		return KindInvalid, false
	}
}

// kindOfText classifies an encoded value by its first significant byte.
func kindOfText(text string) Kind {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return KindInvalid
	}
	switch c := trimmed[0]; {
	case c == '"':
		return KindString
	case c == 't' || c == 'f':
		return KindBoolean
	case c == 'n' || c == '{' || c == '[':
		return KindObject
	case c == '-' || (c >= '0' && c <= '9'):
		return KindNumber
	default:
		return KindInvalid
	}
}

// KindOfText classifies serialized text without decoding it, so numbers
// are never widened to float64 on the way. It fails with ErrEmpty on
// blank text and with a decode error on text that is not valid JSON.
func KindOfText(text string) (Kind, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return KindInvalid, ErrEmpty
	}
	if !json.Valid(trimmed) {
		var v any
		err := json.Unmarshal(trimmed, &v)
		if err == nil {
			err = errors.New("invalid JSON text")
		}
		return KindInvalid, fmt.Errorf("decode: %w", err)
	}
	return kindOfText(text), nil
}

// SameKind reports whether a and b serialize to the same kind.
func SameKind(a, b any) bool {
	return KindOf(a) == KindOf(b)
}

// Equal reports whether a and b serialize to the same text. Object keys are
// encoded in sorted order, so two maps with equal contents compare equal,
// and an int compares equal to a float64 holding the same number.
func Equal(a, b any) bool {
	ta, errA := Encode(a)
	tb, errB := Encode(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta == tb
}
