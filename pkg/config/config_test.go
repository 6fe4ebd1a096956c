package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Address())
	assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "embeddinggemma", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 15, cfg.Retriever.TopK)
	assert.Equal(t, 5, cfg.Retriever.FinalK)
	assert.Equal(t, 0.5, cfg.Retriever.BM25Weight)
	assert.Equal(t, 0.5, cfg.Retriever.VectorWeight)
	assert.Equal(t, "gpt-oss:20b", cfg.RAG.Model)
	assert.Equal(t, 30, cfg.RAG.DefaultTopK)
	assert.Equal(t, 10*time.Millisecond, cfg.RAG.ChunkDelay)
	assert.Equal(t, 3, cfg.Course.EnhancerIterations)
	assert.Equal(t, 15, cfg.QCM.RetrieverTopK)
	assert.Equal(t, 5, cfg.QCM.AnswerTopK)
}

func TestValidateWeights(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Retriever.BM25Weight = 0.8
	cfg.Retriever.VectorWeight = 0.8
	assert.Error(t, cfg.Validate())

	cfg.Retriever.BM25Weight = 1.0
	cfg.Retriever.VectorWeight = 0.0
	assert.NoError(t, cfg.Validate())
}

func TestValidateCloudRequiresKey(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.LLM.UseCloud = true
	assert.Error(t, cfg.Validate())

	cfg.LLM.APIKey = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_URL", "http://es.internal:9200")
	t.Setenv("RETRIEVER_TOP_K", "20")
	t.Setenv("RAG_CHUNK_DELAY_MS", "25")
	t.Setenv("QDRANT_USE_TLS", "true")

	cfg := &Config{}
	cfg.applyEnv()
	cfg.SetDefaults()

	assert.Equal(t, "http://es.internal:9200", cfg.Elasticsearch.URL)
	assert.Equal(t, 20, cfg.Retriever.TopK)
	assert.Equal(t, 25*time.Millisecond, cfg.RAG.ChunkDelay)
	assert.True(t, cfg.Qdrant.UseTLS)
}

func TestParseRegistry(t *testing.T) {
	data := []byte(`{
		"btp": {"qdrant_collection": "btp_v", "es_index": "btp_l"},
		"droit": {"qdrant_collection": "droit_v", "es_index": "droit_l"}
	}`)

	reg, err := ParseRegistry(data)
	require.NoError(t, err)

	ref, ok := reg.Resolve("btp")
	require.True(t, ok)
	assert.Equal(t, "btp_v", ref.QdrantCollection)
	assert.Equal(t, "btp_l", ref.ESIndex)

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"btp", "droit"}, reg.Names())
}

func TestParseRegistryRejectsIncomplete(t *testing.T) {
	_, err := ParseRegistry([]byte(`{"bad": {"qdrant_collection": "only_v"}}`))
	assert.Error(t, err)
}
