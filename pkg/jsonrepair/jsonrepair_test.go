package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_WellFormed(t *testing.T) {
	t.Parallel()

	obj, err := Extract(`{"status": "ok", "score": 82}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", obj["status"])
	n, ok := Number(obj["score"])
	require.True(t, ok)
	assert.InDelta(t, 82, n, 0.001)
}

func TestExtract_FenceIdempotence(t *testing.T) {
	t.Parallel()

	plain := `{"question": "What is a closure?", "difficulty": "medium"}`
	wrapped := "\n\n   ```json\n" + plain + "\n```   \n"

	a, err := Extract(plain)
	require.NoError(t, err)
	b, err := Extract(wrapped)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_ProsePrefix(t *testing.T) {
	t.Parallel()

	raw := "Sure! Here is the analysis you asked for:\n{\"clarity\": 80, \"notes\": \"solid {braces} inside\"}\nLet me know if you need more."
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "solid {braces} inside", obj["notes"])
}

func TestExtract_NestedBraces(t *testing.T) {
	t.Parallel()

	raw := `leading text {"outer": {"inner": 1}, "k": "v"} trailing`
	obj, err := Extract(raw)
	require.NoError(t, err)
	inner, ok := obj["outer"].(map[string]any)
	require.True(t, ok)
	n, ok := Number(inner["inner"])
	require.True(t, ok)
	assert.InDelta(t, 1, n, 0.001)
}

func TestExtract_FencedBlockAfterBrokenJSON(t *testing.T) {
	t.Parallel()

	// The braced span {not valid json} fails to decode; the tagged fence wins.
	raw := "{not valid json}\n```json\n{\"ok\": true}\n```"
	obj, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
}

func TestExtract_TotalFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   \n\t "},
		{name: "prose_only", raw: "I cannot answer that question."},
		{name: "array_not_object", raw: `[1, 2, 3]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Extract(tt.raw)
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Len(t, pe.Attempts, len(DefaultChain))
		})
	}
}

func TestParseError_Preview(t *testing.T) {
	t.Parallel()

	pe := &ParseError{Raw: "  abcdefghij  "}
	assert.Equal(t, "abcde", pe.Preview(5))
	assert.Equal(t, "abcdefghij", pe.Preview(100))
}

func TestStringList(t *testing.T) {
	t.Parallel()

	got, ok := StringList([]any{"a", 1, "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = StringList("not a list")
	assert.False(t, ok)
}
