// Package jsonx reads fields out of loosely decoded JSON without trusting
// the upstream schema: every accessor reports absence or a wrong type
// through its boolean result instead of panicking.
package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Decode parses b into a generic JSON value.
func Decode(b []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return v, nil
}

// Field returns data[key] converted to T.
func Field[T any](data any, key string) (T, bool) {
	var zero T
	m, ok := data.(map[string]any)
	if !ok {
		return zero, false
	}
	v, ok := m[key]
	if !ok || v == nil {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Index returns data[i] converted to T.
func Index[T any](data any, i int) (T, bool) {
	var zero T
	arr, ok := data.([]any)
	if !ok || i < 0 || i >= len(arr) || arr[i] == nil {
		return zero, false
	}
	t, ok := arr[i].(T)
	return t, ok
}

// Path walks nested objects by key and returns the final value as T.
func Path[T any](data any, keys ...string) (T, bool) {
	var zero T
	cur := data
	for _, k := range keys {
		next, ok := Field[any](cur, k)
		if !ok {
			return zero, false
		}
		cur = next
	}
	t, ok := cur.(T)
	return t, ok
}

// PositivePrice reports whether v is usable as a price.
func PositivePrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
