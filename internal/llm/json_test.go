package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Here you go: {"a":1} hope that helps`, `{"a":1}`},
		{"think block", `<think>maybe {"a":2}</think>{"a":1}`, `{"a":1}`},
		{"braces in strings", `{"a":"}{"}`, `{"a":"}{"}`},
		{"nested", `{"a":{"b":[1,2]}}`, `{"a":{"b":[1,2]}}`},
		{"skips invalid first object", `{not json} {"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"unterminated": 1`, "[1,2,3]"} {
		_, err := extractJSONObject(in)
		assert.ErrorIs(t, err, errNoJSON, in)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		People []string `json:"people"`
	}

	got, err := decodeJSON[payload]("```\n{\"people\": [\"Nora\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nora"}, got.People)

	_, err = decodeJSON[payload](`{"people": "Nora"}`)
	assert.Error(t, err)
}
