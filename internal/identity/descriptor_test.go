package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport_FiltersMalformedEntries(t *testing.T) {
	set, err := Import([]byte(`[[1,2,3], "bad", [4,5,6]]`))
	require.NoError(t, err)
	assert.Equal(t, []Descriptor{{1, 2, 3}, {4, 5, 6}}, set)
}

func TestImport_Shapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []Descriptor
	}{
		{
			name: "object of arrays",
			doc:  `{"a": [1, 2], "b": [3, 4]}`,
			want: []Descriptor{{1, 2}, {3, 4}},
		},
		{
			name: "typed array objects",
			doc:  `[{"0": 0.5, "1": 0.25, "10": 3, "2": 1}]`,
			want: []Descriptor{{0.5, 0.25, 1, 3}},
		},
		{
			name: "numeric keys keep order",
			doc:  `{"10": [3], "2": [2], "1": [1]}`,
			want: []Descriptor{{1}, {2}, {3}},
		},
		{
			name: "empty and non-numeric entries dropped",
			doc:  `[[], [1, "x"], null, 7, {"0": true}, [0.1]]`,
			want: []Descriptor{{0.1}},
		},
		{
			name: "null elements drop the entry",
			doc:  `[[1, null, 3], {"0": 1, "1": null}, [4, 5, 6]]`,
			want: []Descriptor{{4, 5, 6}},
		},
		{
			name: "empty document",
			doc:  `[]`,
			want: []Descriptor{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Import([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImport_RejectsScalarDocument(t *testing.T) {
	for _, doc := range []string{``, `"text"`, `42`, `null`} {
		_, err := Import([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidDocument, "doc %q", doc)
	}
}

func TestImport_RejectsBrokenJSON(t *testing.T) {
	_, err := Import([]byte(`[[1,2`))
	assert.Error(t, err)
}

func TestExport_RoundTripsThroughImport(t *testing.T) {
	set := []Descriptor{{0.1, -0.2}, {0.3, 0.4}}

	data, err := Export(set)
	require.NoError(t, err)

	var raw [][]float64
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 2)

	got, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestExport_NilSet(t *testing.T) {
	data, err := Export(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
