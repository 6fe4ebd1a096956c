package databases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mentora-ai/mentora/pkg/config"
)

// ESStore runs BM25 match queries against pre-built lexical indexes. The
// indexed "text" field holds lemmatized content; queries must already be
// lemmatized by the caller.
type ESStore struct {
	client *elasticsearch.Client
}

func NewESStore(cfg config.ElasticsearchConfig) (*ESStore, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ESStore{client: client}, nil
}

type esSearchBody struct {
	Size         int      `json:"size"`
	Query        esQuery  `json:"query"`
	StoredFields []string `json:"stored_fields"`
}

type esQuery struct {
	Match map[string]string `json:"match"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Fields struct {
				DocID []string `json:"doc_id"`
			} `json:"fields"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns the topK BM25 hits for a lemmatized query, ordered by score.
func (s *ESStore) Search(ctx context.Context, index string, lemmatizedQuery string, topK int) ([]LexicalHit, error) {
	body, err := json.Marshal(esSearchBody{
		Size:         topK,
		Query:        esQuery{Match: map[string]string{"text": lemmatizedQuery}},
		StoredFields: []string{"doc_id"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	resp, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("BM25 search failed on index %s: %w", index, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("BM25 search failed on index %s: %s: %s", index, resp.Status(), bytes.TrimSpace(detail))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]LexicalHit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		if len(hit.Fields.DocID) == 0 {
			continue
		}
		hits = append(hits, LexicalHit{PointID: hit.Fields.DocID[0], Score: hit.Score})
	}
	return hits, nil
}
