// Package testdata holds descriptor documents shared by tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
)

// Fixture document names.
const (
	// Alice is a plain array of three 128-d descriptors of one face.
	Alice = "alice.json"
	// TypedArrays holds three descriptors of a second face, serialized as
	// index-keyed objects.
	TypedArrays = "typed_arrays.json"
	// Malformed mixes two of Alice's descriptors with unusable entries.
	Malformed = "malformed.json"
	// NotADocument is a JSON scalar.
	NotADocument = "not_a_document.json"
)

//go:embed descriptors/*.json
var descriptorsFS embed.FS

// Document returns the raw bytes of a descriptor document.
func Document(name string) ([]byte, error) {
	data, err := descriptorsFS.ReadFile("descriptors/" + name)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	return data, nil
}

// Vectors decodes an array-form document.
func Vectors(name string) ([][]float64, error) {
	data, err := Document(name)
	if err != nil {
		return nil, err
	}

	var vectors [][]float64
	if err := json.Unmarshal(data, &vectors); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", name, err)
	}
	return vectors, nil
}
