// Package course implements the course builder: three sequential agents
// (researcher, enhancer, writer) that turn a subject into a cited markdown
// course grounded in retrieved chunks.
package course

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/rag"
	"github.com/mentora-ai/mentora/pkg/retriever"
)

const generationFailedMessage = "La génération du cours a échoué. Veuillez réessayer."

const (
	researcherInitialK = 8
	researcherFinalK   = 5
	maxSubQueries      = 6
	maxGapQueries      = 4
)

// LLM is the completion dependency.
type LLM interface {
	Complete(ctx context.Context, messages []llms.Message, opts llms.Options) (string, error)
	CompleteJSON(ctx context.Context, messages []llms.Message, opts llms.Options, out any) error
}

type Orchestrator struct {
	retriever rag.Retriever
	llm       LLM
	resolver  rag.URLResolver
	cfg       config.CourseConfig
}

func NewOrchestrator(r rag.Retriever, llm LLM, resolver rag.URLResolver, cfg config.CourseConfig) *Orchestrator {
	return &Orchestrator{
		retriever: r,
		llm:       llm,
		resolver:  resolver,
		cfg:       cfg,
	}
}

// sourcePool accumulates unique chunks across agents, numbering them
// cumulatively so citations stay stable from synthesis to final document.
type sourcePool struct {
	seen    map[string]bool
	sources []rag.Source
}

func newSourcePool() *sourcePool {
	return &sourcePool{seen: make(map[string]bool)}
}

// add appends the chunks not seen before and returns them as sources.
func (p *sourcePool) add(chunks []retriever.RankedChunk, resolver rag.URLResolver) []rag.Source {
	var fresh []retriever.RankedChunk
	for _, c := range chunks {
		if p.seen[c.PointID] {
			continue
		}
		p.seen[c.PointID] = true
		fresh = append(fresh, c)
	}
	built := rag.BuildSources(fresh, resolver)
	for i := range built {
		built[i].ID = len(p.sources) + i + 1
	}
	p.sources = append(p.sources, built...)
	return built
}

// Build generates a course for the subject, streaming progress events and a
// final markdown document. The channel closes after the terminal done event.
func (o *Orchestrator) Build(ctx context.Context, collection, subject string) <-chan rag.Event {
	events := make(chan rag.Event, 32)
	go func() {
		defer close(events)
		o.run(ctx, events, collection, subject)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, events chan<- rag.Event, collection, subject string) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	// Keep streaming intermediaries alive through long LLM calls.
	hbCtx, hbCancel := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		ticker := time.NewTicker(o.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				select {
				case events <- rag.Event{Kind: rag.EventProgress, Text: "Génération du cours en cours..."}:
				case <-hbCtx.Done():
					return
				}
			}
		}
	}()
	stopHeartbeat := func() {
		hbCancel()
		<-hbDone
	}

	pool := newSourcePool()

	knowledge, err := o.research(ctx, events, collection, subject, pool)
	if err != nil {
		slog.Error("course research failed", "subject", subject, "error", err)
		stopHeartbeat()
		emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: generationFailedMessage})
		emit(ctx, events, rag.Event{Kind: rag.EventDone})
		return
	}

	knowledge = o.enhance(ctx, events, collection, subject, knowledge, pool)

	document, err := o.write(ctx, events, subject, knowledge, pool)
	if err != nil {
		slog.Error("course writing failed", "subject", subject, "error", err)
		stopHeartbeat()
		emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: generationFailedMessage})
		emit(ctx, events, rag.Event{Kind: rag.EventDone})
		return
	}

	stopHeartbeat()
	emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: document})
	emit(ctx, events, rag.Event{Kind: rag.EventDone})
}

func (o *Orchestrator) research(ctx context.Context, events chan<- rag.Event, collection, subject string, pool *sourcePool) (string, error) {
	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf("Agent 1 : collecte des connaissances sur « %s »...", subject)})

	queries := o.subQueries(ctx, subject)
	var sections []string
	for i, query := range queries {
		emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf("Requête %d/%d : %s", i+1, len(queries), query)})
		chunks, err := o.retriever.Retrieve(ctx, collection, query, researcherInitialK, researcherFinalK)
		if err != nil {
			slog.Warn("course research query failed", "query", query, "error", err)
			continue
		}
		fresh := pool.add(chunks, o.resolver)
		if len(fresh) > 0 {
			sections = append(sections, fmt.Sprintf("=== Requête %d : %s ===\n%s", i+1, query, rag.KnowledgeBase(fresh)))
		}
	}
	if len(pool.sources) == 0 {
		return "", fmt.Errorf("no knowledge found for subject %q", subject)
	}

	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf("Synthèse des connaissances (%d sources)...", len(pool.sources))})
	messages := []llms.Message{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: synthesisUserPrompt(subject, strings.Join(sections, "\n"))},
	}
	return o.llm.Complete(ctx, messages, o.opts())
}

// subQueries asks the LLM for focused sub-queries, falling back to canned
// variants when the model output is unusable.
func (o *Orchestrator) subQueries(ctx context.Context, subject string) []string {
	var queries []string
	messages := []llms.Message{
		{Role: "system", Content: queryGeneratorSystemPrompt},
		{Role: "user", Content: queryGeneratorUserPrompt(subject)},
	}
	if err := o.llm.CompleteJSON(ctx, messages, o.opts(), &queries); err != nil || len(queries) == 0 {
		slog.Warn("sub-query generation failed, using fallback queries", "error", err)
		return []string{
			subject,
			subject + " concepts fondamentaux",
			subject + " principes",
			subject + " applications pratiques",
			subject + " techniques avancées",
		}
	}
	if len(queries) > maxSubQueries {
		queries = queries[:maxSubQueries]
	}
	return queries
}

func (o *Orchestrator) enhance(ctx context.Context, events chan<- rag.Event, collection, subject, knowledge string, pool *sourcePool) string {
	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: "Agent 2 : amélioration des connaissances..."})

	for round := 1; round <= o.cfg.EnhancerIterations; round++ {
		gaps := o.gapQueries(ctx, subject, knowledge)
		if len(gaps) == 0 {
			slog.Info("enhancer done, no gaps identified", "round", round)
			break
		}

		// Gap retrievals run concurrently; results merge in gap order so the
		// pool numbering stays deterministic.
		retrieved := make([][]retriever.RankedChunk, len(gaps))
		var wg sync.WaitGroup
		for i, gap := range gaps {
			wg.Add(1)
			go func() {
				defer wg.Done()
				chunks, err := o.retriever.Retrieve(ctx, collection, gap, o.cfg.EnhancerTopK, o.cfg.EnhancerTopK)
				if err != nil {
					slog.Warn("gap retrieval failed", "gap", gap, "error", err)
					return
				}
				retrieved[i] = chunks
			}()
		}
		wg.Wait()

		var sections []string
		newChunks := 0
		for i, gap := range gaps {
			fresh := pool.add(retrieved[i], o.resolver)
			newChunks += len(fresh)
			if len(fresh) > 0 {
				sections = append(sections, fmt.Sprintf("=== Lacune : %s ===\n%s", gap, rag.KnowledgeBase(fresh)))
			}
		}

		slog.Info("enhancer iteration", "round", round, "gap_queries", len(gaps), "new_chunks", newChunks)
		emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf("Itération %d : %d lacunes, %d nouveaux extraits", round, len(gaps), newChunks)})
		if newChunks == 0 {
			break
		}

		messages := []llms.Message{
			{Role: "system", Content: integrationSystemPrompt},
			{Role: "user", Content: integrationUserPrompt(subject, knowledge, strings.Join(sections, "\n"))},
		}
		integrated, err := o.llm.Complete(ctx, messages, o.opts())
		if err != nil {
			slog.Warn("knowledge integration failed, keeping previous knowledge", "round", round, "error", err)
			break
		}
		knowledge = integrated
	}
	return knowledge
}

func (o *Orchestrator) gapQueries(ctx context.Context, subject, knowledge string) []string {
	var gaps []string
	messages := []llms.Message{
		{Role: "system", Content: gapIdentifierSystemPrompt},
		{Role: "user", Content: gapIdentifierUserPrompt(subject, knowledge)},
	}
	if err := o.llm.CompleteJSON(ctx, messages, o.opts(), &gaps); err != nil {
		slog.Warn("gap identification failed", "error", err)
		return nil
	}
	if len(gaps) > maxGapQueries {
		gaps = gaps[:maxGapQueries]
	}
	return gaps
}

type outline struct {
	CourseTitle    string       `json:"course_title"`
	Description    string       `json:"description"`
	TargetAudience string       `json:"target_audience"`
	Chapters       []chapterRef `json:"chapters"`
}

type chapterRef struct {
	ChapterNumber int    `json:"chapter_number"`
	Title         string `json:"title"`
	Description   string `json:"description"`
}

func (o *Orchestrator) write(ctx context.Context, events chan<- rag.Event, subject, knowledge string, pool *sourcePool) (string, error) {
	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: "Agent 3 : rédaction du cours..."})

	var plan outline
	messages := []llms.Message{
		{Role: "system", Content: outlineSystemPrompt},
		{Role: "user", Content: outlineUserPrompt(subject, knowledge)},
	}
	if err := o.llm.CompleteJSON(ctx, messages, o.opts(), &plan); err != nil {
		return "", fmt.Errorf("outline generation failed: %w", err)
	}
	if len(plan.Chapters) == 0 {
		return "", fmt.Errorf("outline contains no chapters")
	}

	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s\n\n", plan.CourseTitle)
	if plan.Description != "" {
		fmt.Fprintf(&doc, "**Description:** %s\n\n", plan.Description)
	}
	if plan.TargetAudience != "" {
		fmt.Fprintf(&doc, "**Public cible:** %s\n\n", plan.TargetAudience)
	}
	fmt.Fprintf(&doc, "**Nombre de chapitres:** %d\n\n---\n", len(plan.Chapters))

	for i, chapter := range plan.Chapters {
		emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf("Chapitre %d/%d : %s", i+1, len(plan.Chapters), chapter.Title)})

		body, err := o.llm.Complete(ctx, []llms.Message{
			{Role: "system", Content: chapterWriterSystemPrompt},
			{Role: "user", Content: chapterWriterUserPrompt(subject, knowledge, i+1, chapter.Title, chapter.Description)},
		}, o.opts())
		if err != nil {
			return "", fmt.Errorf("chapter %d failed: %w", i+1, err)
		}

		fmt.Fprintf(&doc, "\n## Chapitre %d : %s\n\n%s\n\n---\n", i+1, chapter.Title, strings.TrimSpace(body))
	}

	rewritten, used := rag.RewriteCitations(doc.String(), pool.sources)
	if len(used) > 0 {
		rewritten += "\n\n**Sources**\n" + rag.FormatSources(used)
	}
	return rewritten, nil
}

func (o *Orchestrator) opts() llms.Options {
	return llms.Options{MaxTokens: o.cfg.MaxTokens}
}

func emit(ctx context.Context, events chan<- rag.Event, ev rag.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
