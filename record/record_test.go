package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRepost(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"embedded original", `{"text":"RT","retweeted_status":{"id":1}}`, true},
		{"absent key", `{"text":"original"}`, false},
		{"explicit null", `{"text":"original","retweeted_status":null}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw Raw
			require.NoError(t, json.Unmarshal([]byte(tt.line), &raw))
			assert.Equal(t, tt.want, raw.IsRepost())
		})
	}
}

func TestRawUnmarshalKeepsUnknownBioDistinct(t *testing.T) {
	var raw Raw
	require.NoError(t, json.Unmarshal([]byte(`{"user":{"description":null}}`), &raw))
	assert.Nil(t, raw.User.Description)

	require.NoError(t, json.Unmarshal([]byte(`{"user":{"description":""}}`), &raw))
	require.NotNil(t, raw.User.Description)
	assert.Empty(t, *raw.User.Description)
}

func TestEnrichedMarshalOmitsAbsentSubRecords(t *testing.T) {
	enriched := Enriched{
		Text:        "hi",
		Source:      "Web",
		NounPhrases: []string{},
	}

	encoded, err := json.Marshal(enriched)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	_, hasPlace := decoded["place"]
	assert.False(t, hasPlace)

	user := decoded["user"].(map[string]any)
	_, hasDescription := user["description"]
	assert.False(t, hasDescription)

	// Empty phrase list stays an empty array, not null
	assert.Equal(t, []any{}, decoded["noun_phrases"])
}
