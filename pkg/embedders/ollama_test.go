package embedders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentora-ai/mentora/pkg/config"
)

func newTestServer(t *testing.T, embedding []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embeddinggemma", req.Model)

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: embedding})
	}))
}

func TestEmbed(t *testing.T) {
	srv := newTestServer(t, []float32{0.1, 0.2, 0.3})
	defer srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "embeddinggemma", Dimension: 3, TimeoutS: 5,
	})

	vec, err := e.Embed(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "embeddinggemma", TimeoutS: 5,
	})

	_, err := e.Embed(context.Background(), "bonjour")
	assert.Error(t, err)
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{
		BaseURL: srv.URL, Model: "embeddinggemma", TimeoutS: 5,
	})

	_, err := e.Embed(context.Background(), "bonjour")
	assert.Error(t, err)
}
