package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// CollectionRef names the two storage backends of a collection.
type CollectionRef struct {
	QdrantCollection string `json:"qdrant_collection"`
	ESIndex          string `json:"es_index"`
}

// Registry maps user-facing collection names to their backing indexes.
// Loaded once at startup; read-only afterwards.
type Registry struct {
	collections map[string]CollectionRef
}

// LoadRegistry reads a JSON registry file of the form
// {"name": {"qdrant_collection": "...", "es_index": "..."}}.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection registry: %w", err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var collections map[string]CollectionRef
	if err := json.Unmarshal(data, &collections); err != nil {
		return nil, fmt.Errorf("failed to parse collection registry: %w", err)
	}
	for name, ref := range collections {
		if ref.QdrantCollection == "" || ref.ESIndex == "" {
			return nil, fmt.Errorf("collection %q is missing a backend index", name)
		}
	}
	return &Registry{collections: collections}, nil
}

// Resolve returns the backend pair for a collection name.
func (r *Registry) Resolve(name string) (CollectionRef, bool) {
	ref, ok := r.collections[name]
	return ref, ok
}

// Names returns all collection names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
