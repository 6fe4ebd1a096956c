// Package databases wraps the two retrieval backends: Qdrant for dense
// vectors and Elasticsearch for BM25 over lemmatized text.
package databases

// Chunk is the atomic retrievable unit stored in both backends under the
// same point id.
type Chunk struct {
	PointID     string
	Text        string
	Title       string
	SourceURL   string
	Hash        string
	SectionPath []string
	TokenCount  int
	Extra       map[string]string
}

// VectorHit is a scored chunk returned by the vector backend. The payload is
// carried along so fusion can hydrate without a second round trip.
type VectorHit struct {
	Chunk
	Score float32
}

// LexicalHit is a scored point id returned by the BM25 backend. The lexical
// index stores only the lemmatized text, so hydration goes through Qdrant.
type LexicalHit struct {
	PointID string
	Score   float64
}
