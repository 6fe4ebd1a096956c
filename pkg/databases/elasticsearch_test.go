package databases

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

func newFakeES(t *testing.T, handler http.HandlerFunc) *ESStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewESStore(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return store
}

func TestESSearch(t *testing.T) {
	store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || r.URL.Path == "/" {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "/btp_l/_search", r.URL.Path)

		var body esSearchBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body.Size)
		assert.Equal(t, "norme béton", body.Query.Match["text"])
		assert.Equal(t, []string{"doc_id"}, body.StoredFields)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": {"hits": [
				{"_score": 9.1, "fields": {"doc_id": ["p1"]}},
				{"_score": 4.2, "fields": {"doc_id": ["p2"]}}
			]}
		}`))
	})

	hits, err := store.Search(context.Background(), "btp_l", "norme béton", 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].PointID)
	assert.Equal(t, 9.1, hits[0].Score)
	assert.Equal(t, "p2", hits[1].PointID)
}

func TestESSearchErrorStatus(t *testing.T) {
	store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "index_not_found_exception"}`))
	})

	_, err := store.Search(context.Background(), "missing", "q", 5)
	assert.Error(t, err)
}

func TestESSearchSkipsHitsWithoutDocID(t *testing.T) {
	store := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits": {"hits": [{"_score": 1.0, "fields": {}}]}}`))
	})

	hits, err := store.Search(context.Background(), "idx", "q", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
