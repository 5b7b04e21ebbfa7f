package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityPayloadStrictShape(t *testing.T) {
	raw := `{"entities": [{"text": "Jane Doe", "type": "PERSON"}, {"text": "Acme Corp", "type": "ORG"}]}`

	entities, err := ParseEntityPayload(raw)

	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, ExtractedEntity{Text: "Jane Doe", Type: "PERSON"}, entities[0])
	assert.Equal(t, ExtractedEntity{Text: "Acme Corp", Type: "ORG"}, entities[1])
}

func TestParseEntityPayloadFencedJSON(t *testing.T) {
	raw := "```json\n{\"entities\": [{\"text\": \"12 March 2021\", \"type\": \"DATE\"}]}\n```"

	entities, err := ParseEntityPayload(raw)

	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "12 March 2021", entities[0].Text)
	assert.Equal(t, "DATE", entities[0].Type)
}

func TestParseEntityPayloadBareArray(t *testing.T) {
	raw := `[{"text": "Springfield", "type": "LOCATION"}]`

	entities, err := ParseEntityPayload(raw)

	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "LOCATION", entities[0].Type)
}

func TestParseEntityPayloadArrayEmbeddedInProse(t *testing.T) {
	raw := `Here are the extracted entities:
[{"text": "habeas corpus", "type": "LEGAL_TERM"}]
Let me know if you need anything else.`

	entities, err := ParseEntityPayload(raw)

	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "habeas corpus", entities[0].Text)
}

func TestParseEntityPayloadGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", "{broken"} {
		entities, err := ParseEntityPayload(raw)
		assert.Nil(t, entities)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	}
}

func TestParseEntityPayloadNormalizesAliases(t *testing.T) {
	raw := `{"entities": [
		{"text": "Acme Corp", "type": "ORGANIZATION"},
		{"text": "Springfield", "type": "place"},
		{"text": "res judicata", "type": "LEGALTERM"}
	]}`

	entities, err := ParseEntityPayload(raw)

	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "ORG", entities[0].Type)
	assert.Equal(t, "LOCATION", entities[1].Type)
	assert.Equal(t, "LEGAL_TERM", entities[2].Type)
}

func TestParseEntityPayloadDropsInvalidEntries(t *testing.T) {
	raw := `{"entities": [
		{"text": "", "type": "PERSON"},
		{"text": "   ", "type": "ORG"},
		{"text": "Jane Doe", "type": "EMOTION"},
		{"text": "Jane Doe", "type": "PERSON"}
	]}`

	entities, err := ParseEntityPayload(raw)

	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Jane Doe", entities[0].Text)
}

func TestDedup(t *testing.T) {
	in := []ExtractedEntity{
		{Text: "Jane Doe", Type: "PERSON"},
		{Text: "jane doe", Type: "PERSON"},
		{Text: "JANE DOE", Type: "PERSON"},
		{Text: "Jane Doe", Type: "ORG"},
		{Text: "Acme Corp", Type: "ORG"},
	}

	out := Dedup(in)

	require.Len(t, out, 3)
	// First occurrence wins.
	assert.Equal(t, "Jane Doe", out[0].Text)
	assert.Equal(t, "PERSON", out[0].Type)
	assert.Equal(t, "ORG", out[1].Type)
	assert.Equal(t, "Acme Corp", out[2].Text)
}
