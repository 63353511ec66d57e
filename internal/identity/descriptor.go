// Package identity holds reference descriptor sets and decides enrollment
// completion and identity matches by Euclidean distance.
package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
)

// ErrInvalidDocument is returned when an imported document is neither a JSON
// array nor a JSON object.
var ErrInvalidDocument = errors.New("descriptor document must be a JSON array or object")

// Descriptor is a face descriptor vector produced by the inference backend.
type Descriptor []float64

// Clone returns a copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}

// Distance returns the Euclidean distance between a and b.
// The second return value is false when the vectors are empty or differ in length.
func Distance(a, b Descriptor) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum), true
}

// Export serializes a descriptor set as an indented JSON array of arrays.
func Export(set []Descriptor) ([]byte, error) {
	if set == nil {
		set = []Descriptor{}
	}
	return json.MarshalIndent(set, "", "  ")
}

// Import parses a descriptor document. The top level may be an array or an
// object (its values are taken in key order). Each entry must be a non-empty
// array of numbers or an object whose values are all numbers; anything else
// is logged and skipped.
func Import(data []byte) ([]Descriptor, error) {
	entries, err := topLevelEntries(data)
	if err != nil {
		return nil, err
	}

	set := make([]Descriptor, 0, len(entries))
	for i, raw := range entries {
		d, err := parseEntry(raw)
		if err != nil {
			log.Printf("skipping descriptor %d: %v", i, err)
			continue
		}
		set = append(set, d)
	}
	return set, nil
}

func topLevelEntries(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidDocument
	}

	switch data[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse descriptor document: %w", err)
		}
		return entries, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("parse descriptor document: %w", err)
		}
		return orderedValues(obj), nil
	default:
		return nil, ErrInvalidDocument
	}
}

func parseEntry(raw json.RawMessage) (Descriptor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty entry")
	}

	var values []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, err
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		values = orderedValues(obj)
	default:
		return nil, fmt.Errorf("expected array or object, got %s", truncate(raw))
	}

	if len(values) == 0 {
		return nil, errors.New("empty vector")
	}

	d := make(Descriptor, len(values))
	for i, v := range values {
		var f float64
		// null would otherwise decode as 0
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, fmt.Errorf("element %d is null", i)
		}
		if err := json.Unmarshal(v, &f); err != nil {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		d[i] = f
	}
	return d, nil
}

// orderedValues returns object values ordered by key. Integer keys sort
// numerically so that serialized typed arrays ({"0":..,"1":..}) keep their order.
func orderedValues(obj map[string]json.RawMessage) []json.RawMessage {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})

	values := make([]json.RawMessage, len(keys))
	for i, k := range keys {
		values[i] = obj[k]
	}
	return values
}

func truncate(raw []byte) string {
	if len(raw) > 32 {
		return string(raw[:32]) + "..."
	}
	return string(raw)
}
