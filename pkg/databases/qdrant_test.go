package databases

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
)

func TestPointIDRoundTrip(t *testing.T) {
	assert.Equal(t, "42", pointIDString(parsePointID("42")))
	assert.Equal(t, "a1b2-c3", pointIDString(parsePointID("a1b2-c3")))
	assert.Equal(t, "", pointIDString(nil))
}

func TestChunkFromPayload(t *testing.T) {
	meta, err := qdrant.NewValue(map[string]interface{}{
		"title":       "Norme NF EN 206",
		"source_url":  "http://fileserver:7700/download/abc",
		"hash":        "abc123",
		"token_count": int64(240),
		"section_path": []interface{}{
			"Béton", "Classes d'exposition",
		},
		"theme": "matériaux",
	})
	assert.NoError(t, err)

	text, err := qdrant.NewValue("Le béton doit respecter la classe XC1.")
	assert.NoError(t, err)

	chunk := chunkFromPayload("p1", map[string]*qdrant.Value{
		"chunk_text": text,
		"metadata":   meta,
	})

	assert.Equal(t, "p1", chunk.PointID)
	assert.Equal(t, "Le béton doit respecter la classe XC1.", chunk.Text)
	assert.Equal(t, "Norme NF EN 206", chunk.Title)
	assert.Equal(t, "http://fileserver:7700/download/abc", chunk.SourceURL)
	assert.Equal(t, "abc123", chunk.Hash)
	assert.Equal(t, 240, chunk.TokenCount)
	assert.Equal(t, []string{"Béton", "Classes d'exposition"}, chunk.SectionPath)
	assert.Equal(t, "matériaux", chunk.Extra["theme"])
}

func TestChunkFromPayloadEmpty(t *testing.T) {
	chunk := chunkFromPayload("p2", nil)
	assert.Equal(t, "p2", chunk.PointID)
	assert.Empty(t, chunk.Text)
	assert.Empty(t, chunk.SectionPath)
}
