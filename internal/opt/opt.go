// Package opt distinguishes a field that was omitted from a request from a
// field that was explicitly set, including explicitly set to null.
package opt

import (
	"bytes"
	"encoding/json"
)

// Value holds an optional T. The zero Value is "not provided".
type Value[T any] struct {
	Set bool
	V   T
}

// Of returns a provided value.
func Of[T any](v T) Value[T] { return Value[T]{Set: true, V: v} }

// Get returns the value and whether it was provided.
func (o Value[T]) Get() (T, bool) { return o.V, o.Set }

// Or returns the value if provided, def otherwise.
func (o Value[T]) Or(def T) T {
	if o.Set {
		return o.V
	}
	return def
}

// UnmarshalJSON marks the value as provided. A JSON null decodes to the zero
// value of T, which for pointer types means "clear".
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.V = zero
		return nil
	}
	return json.Unmarshal(data, &o.V)
}

// MarshalJSON writes the held value, or null when not provided.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.V)
}
