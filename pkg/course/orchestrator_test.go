package course

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/databases"
	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/rag"
	"github.com/mentora-ai/mentora/pkg/retriever"
)

type fakeRetriever struct {
	mu      sync.Mutex
	byQuery map[string][]retriever.RankedChunk
	calls   []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, collection, query string, initialK, finalK int) ([]retriever.RankedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if chunks, ok := f.byQuery[query]; ok {
		return chunks, nil
	}
	return f.byQuery[""], nil
}

// gateRetriever blocks gap queries until released, so tests can observe that
// they are in flight at the same time.
type gateRetriever struct {
	fakeRetriever
	gatePrefix string
	arrived    chan string
	release    chan struct{}
}

func (g *gateRetriever) Retrieve(ctx context.Context, collection, query string, initialK, finalK int) ([]retriever.RankedChunk, error) {
	if strings.HasPrefix(query, g.gatePrefix) {
		g.arrived <- query
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.fakeRetriever.Retrieve(ctx, collection, query, initialK, finalK)
}

type fakeLLM struct {
	subQueries []string
	gapRounds  [][]string
	gapCall    int
	outline    outline
	chapter    string
	synthesis  string
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llms.Message, opts llms.Options) (string, error) {
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "Synthesize this knowledge"):
		return f.synthesis, nil
	case strings.Contains(prompt, "Integrate the new information"):
		return f.synthesis + " (enrichi)", nil
	default:
		return f.chapter, nil
	}
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, messages []llms.Message, opts llms.Options, out any) error {
	prompt := messages[len(messages)-1].Content
	var payload []byte
	switch {
	case strings.Contains(prompt, "search queries"):
		payload, _ = json.Marshal(f.subQueries)
	case strings.Contains(prompt, "identify gaps"):
		var gaps []string
		if f.gapCall < len(f.gapRounds) {
			gaps = f.gapRounds[f.gapCall]
		}
		f.gapCall++
		payload, _ = json.Marshal(gaps)
	default:
		payload, _ = json.Marshal(f.outline)
	}
	return json.Unmarshal(payload, out)
}

type passResolver struct{}

func (passResolver) SourceURL(rawURL, hash string) string { return rawURL }

func courseConfig() config.CourseConfig {
	return config.CourseConfig{
		RetrieverTopK:      5,
		EnhancerIterations: 3,
		EnhancerTopK:       5,
		Heartbeat:          50 * time.Millisecond,
		MaxTokens:          8000,
		Deadline:           time.Minute,
	}
}

func chunk(id, title, url, text string) retriever.RankedChunk {
	return retriever.RankedChunk{Chunk: databases.Chunk{PointID: id, Title: title, SourceURL: url, Text: text}}
}

func collectEvents(ch <-chan rag.Event) []rag.Event {
	var events []rag.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestBuildCourseEndToEnd(t *testing.T) {
	retr := &fakeRetriever{byQuery: map[string][]retriever.RankedChunk{
		"q1":     {chunk("p1", "Doc 1", "https://u1", "texte 1")},
		"q2":     {chunk("p2", "Doc 2", "https://u2", "texte 2")},
		"lacune": {chunk("p3", "Doc 3", "https://u3", "texte 3")},
	}}
	llmFake := &fakeLLM{
		subQueries: []string{"q1", "q2"},
		gapRounds:  [][]string{{"lacune"}, {}},
		synthesis:  "Base de connaissances. [SOURCE 1]",
		outline: outline{
			CourseTitle:    "Cours complet",
			Description:    "Un cours",
			TargetAudience: "Étudiants",
			Chapters: []chapterRef{
				{ChapterNumber: 1, Title: "Introduction", Description: "Les bases"},
				{ChapterNumber: 2, Title: "Approfondissement", Description: "La suite"},
			},
		},
		chapter: "Contenu du chapitre. [SOURCE 1] [SOURCE 3]",
	}

	o := NewOrchestrator(retr, llmFake, passResolver{}, courseConfig())
	events := collectEvents(o.Build(context.Background(), "btp", "Le béton"))

	require.NotEmpty(t, events)
	assert.Equal(t, rag.EventDone, events[len(events)-1].Kind)

	doneCount := 0
	var content strings.Builder
	for _, ev := range events {
		if ev.Kind == rag.EventDone {
			doneCount++
		}
		if ev.Kind == rag.EventContent {
			content.WriteString(ev.Text)
		}
	}
	assert.Equal(t, 1, doneCount)

	doc := content.String()
	assert.Contains(t, doc, "# Cours complet")
	assert.Contains(t, doc, "## Chapitre 1 : Introduction")
	assert.Contains(t, doc, "## Chapitre 2 : Approfondissement")
	// Citations rewritten to links against the cumulative source pool.
	assert.Contains(t, doc, "[1](https://u1)")
	assert.Contains(t, doc, "[3](https://u3)")
	assert.Contains(t, doc, "**Sources**")
	assert.NotContains(t, doc, "[SOURCE")

	// The enhancer round retrieved the gap query.
	assert.Contains(t, retr.calls, "lacune")
}

func TestBuildCourseNoKnowledge(t *testing.T) {
	o := NewOrchestrator(&fakeRetriever{}, &fakeLLM{subQueries: []string{"q1"}}, passResolver{}, courseConfig())

	events := collectEvents(o.Build(context.Background(), "btp", "Sujet inconnu"))

	assert.Equal(t, generationFailedMessage, events[len(events)-2].Text)
	assert.Equal(t, rag.EventDone, events[len(events)-1].Kind)
}

func TestEnhancerStopsOnZeroNewChunks(t *testing.T) {
	retr := &fakeRetriever{byQuery: map[string][]retriever.RankedChunk{
		"q1": {chunk("p1", "Doc 1", "https://u1", "texte 1")},
		// The gap query returns the same chunk: nothing new.
		"lacune": {chunk("p1", "Doc 1", "https://u1", "texte 1")},
	}}
	llmFake := &fakeLLM{
		subQueries: []string{"q1"},
		gapRounds:  [][]string{{"lacune"}, {"lacune"}, {"lacune"}},
		synthesis:  "Base. [SOURCE 1]",
		outline: outline{CourseTitle: "C", Chapters: []chapterRef{
			{ChapterNumber: 1, Title: "Un", Description: "d"},
		}},
		chapter: "Corps. [SOURCE 1]",
	}

	o := NewOrchestrator(retr, llmFake, passResolver{}, courseConfig())
	collectEvents(o.Build(context.Background(), "btp", "Sujet"))

	// One gap round ran, found nothing new, and the enhancer stopped.
	assert.Equal(t, 1, llmFake.gapCall)
}

func TestEnhancerGapQueriesRetrieveConcurrently(t *testing.T) {
	retr := &gateRetriever{
		fakeRetriever: fakeRetriever{byQuery: map[string][]retriever.RankedChunk{
			"q1":       {chunk("p1", "Doc 1", "https://u1", "texte 1")},
			"lacune 1": {chunk("p2", "Doc 2", "https://u2", "texte 2")},
			"lacune 2": {chunk("p3", "Doc 3", "https://u3", "texte 3")},
		}},
		gatePrefix: "lacune",
		arrived:    make(chan string, 2),
		release:    make(chan struct{}),
	}
	llmFake := &fakeLLM{
		subQueries: []string{"q1"},
		gapRounds:  [][]string{{"lacune 1", "lacune 2"}, {}},
		synthesis:  "Base. [SOURCE 1]",
		outline: outline{CourseTitle: "C", Chapters: []chapterRef{
			{ChapterNumber: 1, Title: "Un", Description: "d"},
		}},
		chapter: "Corps. [SOURCE 1]",
	}

	o := NewOrchestrator(retr, llmFake, passResolver{}, courseConfig())
	events := o.Build(context.Background(), "btp", "Sujet")

	// Both gap retrievals must be in flight before either is released.
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-retr.arrived:
		case <-timeout:
			t.Fatal("gap retrievals did not run concurrently")
		}
	}
	close(retr.release)

	collected := collectEvents(events)
	require.NotEmpty(t, collected)
	assert.Equal(t, rag.EventDone, collected[len(collected)-1].Kind)
	// Both gap chunks joined the pool after the merge.
	assert.Contains(t, retr.calls, "lacune 1")
	assert.Contains(t, retr.calls, "lacune 2")
}

func TestSourcePoolDeduplicatesAndNumbersCumulatively(t *testing.T) {
	pool := newSourcePool()

	first := pool.add([]retriever.RankedChunk{
		chunk("p1", "A", "https://a", "ta"),
		chunk("p2", "B", "https://b", "tb"),
	}, passResolver{})
	require.Len(t, first, 2)
	assert.Equal(t, 1, first[0].ID)
	assert.Equal(t, 2, first[1].ID)

	second := pool.add([]retriever.RankedChunk{
		chunk("p2", "B", "https://b", "tb"),
		chunk("p3", "C", "https://c", "tc"),
	}, passResolver{})
	require.Len(t, second, 1)
	assert.Equal(t, 3, second[0].ID)
	assert.Len(t, pool.sources, 3)
}
