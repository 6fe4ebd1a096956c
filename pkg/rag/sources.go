// Package rag implements the retrieval-augmented answer engine: knowledge
// base assembly, prompt construction, streaming generation, and inline
// citation rewriting.
package rag

import (
	"fmt"
	"strings"

	"github.com/mentora-ai/mentora/pkg/retriever"
)

// Source is one retrieved chunk as presented to the LLM, numbered from 1.
type Source struct {
	ID          int
	Title       string
	URL         string
	SectionPath []string
	Text        string
}

// URLResolver maps a chunk's stored source URL to the public link shown to
// users. fileserver.Client satisfies it.
type URLResolver interface {
	SourceURL(rawURL, hash string) string
}

// BuildSources numbers the retrieved chunks and resolves their public URLs.
func BuildSources(chunks []retriever.RankedChunk, resolver URLResolver) []Source {
	sources := make([]Source, 0, len(chunks))
	for i, chunk := range chunks {
		title := chunk.Title
		if title == "" {
			title = "Document sans titre"
		}
		url := ""
		if chunk.SourceURL != "" || chunk.Hash != "" {
			url = resolver.SourceURL(chunk.SourceURL, chunk.Hash)
		}
		sources = append(sources, Source{
			ID:          i + 1,
			Title:       title,
			URL:         url,
			SectionPath: chunk.SectionPath,
			Text:        chunk.Text,
		})
	}
	return sources
}

// KnowledgeBase renders the sources as the knowledge block fed to the LLM.
func KnowledgeBase(sources []Source) string {
	var b strings.Builder
	for i, s := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[SOURCE %d] %s", s.ID, s.Title)
		if len(s.SectionPath) > 0 {
			b.WriteString(" — " + strings.Join(s.SectionPath, " / "))
		}
		b.WriteString("\n" + s.Text)
	}
	return b.String()
}
