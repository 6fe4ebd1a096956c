package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tokenRe matches one complete citation token at the start of the input.
var tokenRe = regexp.MustCompile(`^(?i)\[\s*source\s+(\d+)\s*\]`)

// maxPendingToken bounds how long a partial token may be held back before it
// is declared plain text.
const maxPendingToken = 64

// UsedSource is a source that was actually cited in the answer.
type UsedSource struct {
	Index int
	Title string
	URL   string
}

// Rewriter converts [SOURCE k] tokens to markdown links [k](url) as text
// streams through it. Tokens naming an unknown source are stripped, and
// consecutive duplicate citations separated only by whitespace collapse to
// one. A lookahead buffer keeps a token spanning several deltas from being
// emitted half-written.
type Rewriter struct {
	byID     map[int]Source
	seen     map[int]bool
	urlIndex map[string]int
	used     []UsedSource

	pending      string
	lastCitation string
	heldSpace    string
}

func NewRewriter(sources []Source) *Rewriter {
	byID := make(map[int]Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}
	return &Rewriter{
		byID:     byID,
		seen:     make(map[int]bool),
		urlIndex: make(map[string]int),
	}
}

// Feed pushes one delta through the rewriter and returns the text ready to
// emit. The tail that may still be part of an unfinished token stays buffered.
func (r *Rewriter) Feed(delta string) string {
	r.pending += delta
	return r.process(false)
}

// Close flushes everything still buffered. The rewriter is done after this.
func (r *Rewriter) Close() string {
	out := r.process(true)
	out += r.heldSpace
	r.heldSpace = ""
	r.lastCitation = ""
	return out
}

// Used returns the cited sources in first-use order, collapsed by URL with
// the lowest index retained.
func (r *Rewriter) Used() []UsedSource {
	return r.used
}

func (r *Rewriter) process(final bool) string {
	var out strings.Builder
	s := r.pending
	for {
		i := strings.IndexByte(s, '[')
		if i < 0 {
			r.emitText(&out, s)
			s = ""
			break
		}
		r.emitText(&out, s[:i])
		s = s[i:]

		if m := tokenRe.FindStringSubmatch(s); m != nil {
			k, _ := strconv.Atoi(m[1])
			r.emitCitation(&out, k)
			s = s[len(m[0]):]
			continue
		}
		if !final && len(s) <= maxPendingToken && isTokenPrefix(s) {
			break
		}
		r.emitText(&out, "[")
		s = s[1:]
	}
	r.pending = s
	return out.String()
}

func (r *Rewriter) emitText(out *strings.Builder, text string) {
	if text == "" {
		return
	}
	if r.lastCitation != "" && strings.TrimSpace(text) == "" {
		r.heldSpace += text
		return
	}
	out.WriteString(r.heldSpace)
	r.heldSpace = ""
	r.lastCitation = ""
	out.WriteString(text)
}

func (r *Rewriter) emitCitation(out *strings.Builder, id int) {
	src, known := r.byID[id]
	if !known {
		return
	}

	if !r.seen[id] {
		r.seen[id] = true
		r.recordUse(id, src)
	}

	citation := fmt.Sprintf("[%d]", id)
	if src.URL != "" {
		citation = fmt.Sprintf("[%d](%s)", id, src.URL)
	}

	if citation == r.lastCitation {
		// Duplicate right after itself: drop it and the whitespace between.
		r.heldSpace = ""
		return
	}
	out.WriteString(r.heldSpace)
	r.heldSpace = ""
	out.WriteString(citation)
	r.lastCitation = citation
}

func (r *Rewriter) recordUse(id int, src Source) {
	if src.URL == "" {
		r.used = append(r.used, UsedSource{Index: id, Title: src.Title})
		return
	}
	if pos, ok := r.urlIndex[src.URL]; ok {
		if id < r.used[pos].Index {
			r.used[pos].Index = id
			r.used[pos].Title = src.Title
		}
		return
	}
	r.urlIndex[src.URL] = len(r.used)
	r.used = append(r.used, UsedSource{Index: id, Title: src.Title, URL: src.URL})
}

// isTokenPrefix reports whether s could grow into a complete citation token.
func isTokenPrefix(s string) bool {
	i, n := 0, len(s)
	if s[i] != '[' {
		return false
	}
	i++
	for i < n && isSpace(s[i]) {
		i++
	}
	const word = "source"
	for j := 0; j < len(word); j++ {
		if i >= n {
			return true
		}
		if lower(s[i]) != word[j] {
			return false
		}
		i++
	}
	if i >= n {
		return true
	}
	if !isSpace(s[i]) {
		return false
	}
	for i < n && isSpace(s[i]) {
		i++
	}
	if i >= n {
		return true
	}
	if !isDigit(s[i]) {
		return false
	}
	for i < n && isDigit(s[i]) {
		i++
	}
	for i < n && isSpace(s[i]) {
		i++
	}
	// A ']' here would have made a complete token, which the caller already
	// checked for.
	return i >= n
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// RewriteCitations rewrites a complete text in one pass.
func RewriteCitations(text string, sources []Source) (string, []UsedSource) {
	r := NewRewriter(sources)
	out := r.Feed(text) + r.Close()
	return out, r.Used()
}

// FormatSources renders the cited-sources list shown under an answer.
func FormatSources(used []UsedSource) string {
	lines := make([]string, len(used))
	for i, s := range used {
		url := s.URL
		if url == "" {
			url = "(no url)"
		}
		lines[i] = fmt.Sprintf("[%d] %s — %s", s.Index, s.Title, url)
	}
	return strings.Join(lines, "\n")
}
