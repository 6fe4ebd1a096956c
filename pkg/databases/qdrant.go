package databases

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/mentora-ai/mentora/pkg/config"
)

// QdrantStore is a read-only client over pre-populated Qdrant collections.
type QdrantStore struct {
	client *qdrant.Client
}

func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return &QdrantStore{client: client}, nil
}

// Search returns the topK nearest neighbors with payloads.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]VectorHit, error) {
	request := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	result, err := s.client.GetPointsClient().Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}

	hits := make([]VectorHit, 0, len(result.Result))
	for _, point := range result.Result {
		hits = append(hits, VectorHit{
			Chunk: chunkFromPayload(pointIDString(point.Id), point.Payload),
			Score: point.Score,
		})
	}
	return hits, nil
}

// Fetch hydrates chunks by point id, preserving the requested order. Missing
// points are skipped.
func (s *QdrantStore) Fetch(ctx context.Context, collection string, pointIDs []string) ([]Chunk, error) {
	if len(pointIDs) == 0 {
		return nil, nil
	}

	ids := make([]*qdrant.PointId, 0, len(pointIDs))
	for _, id := range pointIDs {
		ids = append(ids, parsePointID(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch points from %s: %w", collection, err)
	}

	byID := make(map[string]Chunk, len(points))
	for _, point := range points {
		id := pointIDString(point.Id)
		byID[id] = chunkFromPayload(id, point.Payload)
	}

	chunks := make([]Chunk, 0, len(pointIDs))
	for _, id := range pointIDs {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func parsePointID(id string) *qdrant.PointId {
	if num, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(num)
	}
	return qdrant.NewID(id)
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	}
	return ""
}

// chunkFromPayload maps the ingestion payload layout (chunk_text plus a
// nested metadata object) onto a Chunk.
func chunkFromPayload(id string, payload map[string]*qdrant.Value) Chunk {
	chunk := Chunk{PointID: id, Extra: map[string]string{}}
	if payload == nil {
		return chunk
	}

	chunk.Text = stringValue(payload["chunk_text"])

	meta := payload["metadata"].GetStructValue()
	if meta == nil {
		return chunk
	}
	for key, value := range meta.Fields {
		switch key {
		case "title":
			chunk.Title = stringValue(value)
		case "source_url":
			chunk.SourceURL = stringValue(value)
		case "hash":
			chunk.Hash = stringValue(value)
		case "token_count":
			chunk.TokenCount = int(value.GetIntegerValue())
		case "section_path":
			if list := value.GetListValue(); list != nil {
				for _, item := range list.Values {
					if s := stringValue(item); s != "" {
						chunk.SectionPath = append(chunk.SectionPath, s)
					}
				}
			}
		default:
			if s := stringValue(value); s != "" {
				chunk.Extra[key] = s
			}
		}
	}
	return chunk
}

func stringValue(v *qdrant.Value) string {
	if v == nil {
		return ""
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	}
	return ""
}
