// Package lemma normalizes French query text for BM25 search. The lexical
// index is built from lemmatized text, so queries must go through the same
// markdown cleanup and lemma mapping to share a vocabulary with the index.
package lemma

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

var (
	reCodeBlock  = regexp.MustCompile("```[\\s\\S]*?```")
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reHeading    = regexp.MustCompile(`#+\s*`)
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reEmphasis   = regexp.MustCompile(`[*_]{1,3}`)
	reListItem   = regexp.MustCompile(`(?m)^\s*[-*+]\s*`)
	reBlockquote = regexp.MustCompile(`(?m)^\s*>\s*`)
	reTableRow   = regexp.MustCompile(`\|.*\|`)
	reRule       = regexp.MustCompile(`[-*_]{3,}`)
	reBrackets   = regexp.MustCompile(`[{}\[\]]`)
	reHTMLTag    = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Clean strips markdown formatting, collapses whitespace and lowercases.
// This mirrors the cleanup applied at indexing time.
func Clean(text string) string {
	text = reCodeBlock.ReplaceAllString(text, " ")
	text = reImage.ReplaceAllString(text, " ")
	text = reLink.ReplaceAllString(text, "$1")
	text = reHeading.ReplaceAllString(text, " ")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reEmphasis.ReplaceAllString(text, " ")
	text = reListItem.ReplaceAllString(text, " ")
	text = reBlockquote.ReplaceAllString(text, " ")
	text = reTableRow.ReplaceAllString(text, " ")
	text = reRule.ReplaceAllString(text, " ")
	text = reBrackets.ReplaceAllString(text, " ")
	text = reHTMLTag.ReplaceAllString(text, " ")
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// Normalizer maps French surface forms to lemmas using a lookup table plus
// suffix rules for regular inflections.
type Normalizer struct {
	dict map[string]string
}

// New returns a Normalizer backed by the embedded lemma table.
func New() *Normalizer {
	dict := make(map[string]string, len(baseLemmas))
	for form, l := range baseLemmas {
		dict[form] = l
	}
	return &Normalizer{dict: dict}
}

// NewFromFile loads an additional form→lemma table (JSON object) exported by
// the ingestion pipeline and merges it over the embedded defaults. Entries in
// the file win.
func NewFromFile(path string) (*Normalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lemma table: %w", err)
	}
	var extra map[string]string
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse lemma table: %w", err)
	}
	n := New()
	for form, l := range extra {
		n.dict[strings.ToLower(form)] = strings.ToLower(l)
	}
	return n, nil
}

// Normalize cleans the text and replaces each token with its lemma.
// The output is a single-space-joined lowercase token sequence, and the
// function is idempotent: Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return ""
	}

	tokens := tokenize(cleaned)
	lemmas := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		lemmas = append(lemmas, n.lemmaOf(tok))
	}
	return strings.Join(lemmas, " ")
}

func (n *Normalizer) lemmaOf(token string) string {
	if l, ok := n.dict[token]; ok {
		return l
	}
	return applySuffixRules(token)
}

// tokenize splits on non-letter, non-digit runes, expanding French elisions
// (l'entreprise → le entreprise) through the elision table.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if full, ok := elisions[f]; ok {
			tokens = append(tokens, full)
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Fallback normalizes without a lemma table, warning once. Used when the
// table failed to load but the service chose to keep serving.
var fallbackOnce sync.Once

func Fallback(text string) string {
	fallbackOnce.Do(func() {
		slog.Warn("lemma table unavailable, falling back to cleaned lowercase queries")
	})
	return Clean(text)
}
