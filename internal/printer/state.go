package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
)

// maxExactInteger is the largest magnitude float64 holds without rounding (2^53).
const maxExactInteger = 1 << 53

// State is the merged telemetry of a printer, keyed by top-level report field.
//
// Values are nil, bool, float64, json.Number, string, []any or
// map[string]any. Numbers decode to float64 unless that would lose
// precision: integers beyond ±2^53 are kept as json.Number with their
// original digits.
type State map[string]any

// Merge applies a partial update in place.
//
// Merging is shallow: each top-level field of update replaces the field of
// the same name, nested objects included. Fields absent from update are
// untouched. Merge never deletes a field.
func (s State) Merge(update State) {
	for k, v := range update {
		s[k] = v
	}
}

// Clone returns a deep copy of the state. Nested maps and slices are copied
// so the result shares no memory with s.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	return State(deepCopyMap(s))
}

// Fields returns the top-level field names in sorted order.
func (s State) Fields() []string {
	fields := make([]string, 0, len(s))
	for k := range s {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// ChangedFields returns the sorted top-level fields whose value differs
// between prev and next, including fields only present in next.
//
// Because merges never delete, fields only present in prev are ignored.
func ChangedFields(prev, next State) []string {
	var changed []string
	for k, v := range next {
		old, ok := prev[k]
		if !ok || !reflect.DeepEqual(old, v) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// decodePayload parses a report. Anything other than a JSON object is
// rejected, including null.
func decodePayload(payload []byte) (State, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var update State
	if err := dec.Decode(&update); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: data after the top-level object", ErrInvalidPayload)
	}

	for k, v := range update {
		update[k] = normalizeNumbers(v)
	}
	return update, nil
}

// normalizeNumbers replaces json.Number values with float64 wherever the
// conversion is exact.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		return normalizeNumber(val)
	case map[string]any:
		for k, elem := range val {
			val[k] = normalizeNumbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = normalizeNumbers(elem)
		}
		return val
	default:
		return v
	}
}

func normalizeNumber(n json.Number) any {
	if !strings.ContainsAny(n.String(), ".eE") {
		i, err := n.Int64()
		if err != nil || i > maxExactInteger || i < -maxExactInteger {
			return n
		}
		return float64(i)
	}
	f, err := n.Float64()
	if err != nil {
		return n
	}
	return f
}

// deepCopyMap creates a deep copy of a map[string]any.
// Handles nested maps and slices recursively.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case State:
		return State(deepCopyMap(val))
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// JSON scalars are immutable.
		return v
	}
}
