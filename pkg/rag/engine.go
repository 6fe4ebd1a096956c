package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/retriever"
)

// Event kinds emitted by the engine.
const (
	EventProgress = "progress"
	EventContent  = "content"
	EventDone     = "done"
)

// Event is one unit of engine output. The stream always terminates with
// exactly one done event.
type Event struct {
	Kind string
	Text string
}

// Retriever is the hybrid retrieval dependency.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, initialK, finalK int) ([]retriever.RankedChunk, error)
}

// LLM is the completion dependency.
type LLM interface {
	Complete(ctx context.Context, messages []llms.Message, opts llms.Options) (string, error)
	Stream(ctx context.Context, messages []llms.Message, opts llms.Options) (<-chan llms.StreamChunk, error)
}

const (
	retrievalTimeout = 10 * time.Second
	completeTimeout  = 60 * time.Second

	progressRetrieving = "Retrieving context..."
	progressGenerating = "Generating answer..."

	noContextMessage        = "Je n'ai trouvé aucune information pertinente dans la base de connaissances pour répondre à cette question."
	retrievalDownMessage    = "La recherche documentaire est momentanément indisponible. Veuillez réessayer dans quelques instants."
	generationFailedMessage = "Une erreur est survenue lors de la génération de la réponse. Veuillez réessayer."
)

type Engine struct {
	retriever Retriever
	llm       LLM
	resolver  URLResolver
	cfg       config.RAGConfig
	initialK  int
}

func NewEngine(r Retriever, llm LLM, resolver URLResolver, cfg config.RAGConfig, retrCfg config.RetrieverConfig) *Engine {
	return &Engine{
		retriever: r,
		llm:       llm,
		resolver:  resolver,
		cfg:       cfg,
		initialK:  retrCfg.TopK,
	}
}

// StreamRAG answers the question from the collection, streaming progress and
// content events. The channel closes after the terminal done event. A topK of
// zero or less means "use the configured default"; callers validating external
// input must reject non-positive values before reaching here.
func (e *Engine) StreamRAG(ctx context.Context, collection, question string, topK int) <-chan Event {
	events := make(chan Event, 32)
	go func() {
		defer close(events)
		e.run(ctx, events, collection, question, topK)
	}()
	return events
}

func (e *Engine) run(ctx context.Context, events chan<- Event, collection, question string, topK int) {
	if !e.emit(ctx, events, Event{Kind: EventProgress, Text: progressRetrieving}) {
		return
	}

	chunks, err := e.retrieve(ctx, collection, question, topK)
	if err != nil {
		slog.Error("retrieval failed", "collection", collection, "error", err)
		e.emit(ctx, events, Event{Kind: EventContent, Text: retrievalDownMessage})
		e.emit(ctx, events, Event{Kind: EventDone})
		return
	}
	if len(chunks) == 0 {
		e.emit(ctx, events, Event{Kind: EventContent, Text: noContextMessage})
		e.emit(ctx, events, Event{Kind: EventDone})
		return
	}

	sources := BuildSources(chunks, e.resolver)
	messages := []llms.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(question, KnowledgeBase(sources))},
	}

	if !e.emit(ctx, events, Event{Kind: EventProgress, Text: progressGenerating}) {
		return
	}

	stream, err := e.llm.Stream(ctx, messages, llms.Options{})
	if err != nil {
		slog.Error("llm stream failed to start", "error", err)
		e.emit(ctx, events, Event{Kind: EventContent, Text: generationFailedMessage})
		e.emit(ctx, events, Event{Kind: EventDone})
		return
	}

	rewriter := NewRewriter(sources)
	for chunk := range stream {
		switch chunk.Type {
		case llms.ChunkTypeThinking:
			if !e.emit(ctx, events, Event{Kind: EventProgress, Text: chunk.Text}) {
				return
			}
		case llms.ChunkTypeText:
			if out := rewriter.Feed(chunk.Text); out != "" {
				if !e.emit(ctx, events, Event{Kind: EventContent, Text: out}) {
					return
				}
			}
		case llms.ChunkTypeError:
			slog.Error("llm stream failed", "error", chunk.Error)
			e.emit(ctx, events, Event{Kind: EventContent, Text: generationFailedMessage})
			e.emit(ctx, events, Event{Kind: EventDone})
			return
		}
	}

	if tail := rewriter.Close(); tail != "" {
		if !e.emit(ctx, events, Event{Kind: EventContent, Text: tail}) {
			return
		}
	}
	if used := rewriter.Used(); len(used) > 0 {
		section := "\n\n**Sources**\n" + FormatSources(used)
		if !e.emit(ctx, events, Event{Kind: EventContent, Text: section}) {
			return
		}
	}
	e.emit(ctx, events, Event{Kind: EventDone})
}

// Query is the non-streaming variant. Errors are returned to the caller for
// HTTP status mapping instead of being folded into the answer. As with
// StreamRAG, a topK of zero or less selects the configured default.
func (e *Engine) Query(ctx context.Context, collection, question string, topK int) (string, []UsedSource, error) {
	chunks, err := e.retrieve(ctx, collection, question, topK)
	if err != nil {
		return "", nil, err
	}
	if len(chunks) == 0 {
		return noContextMessage, nil, nil
	}

	sources := BuildSources(chunks, e.resolver)
	messages := []llms.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(question, KnowledgeBase(sources))},
	}

	cctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()
	answer, err := e.llm.Complete(cctx, messages, llms.Options{})
	if err != nil {
		return "", nil, err
	}

	rewritten, used := RewriteCitations(answer, sources)
	if len(used) > 0 {
		rewritten += "\n\n**Sources**\n" + FormatSources(used)
	}
	return rewritten, used, nil
}

func (e *Engine) retrieve(ctx context.Context, collection, question string, topK int) ([]retriever.RankedChunk, error) {
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	if topK > 100 {
		topK = 100
	}
	initialK := e.initialK
	if initialK < topK {
		initialK = topK
	}

	rctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()
	return e.retriever.Retrieve(rctx, collection, question, initialK, topK)
}

func (e *Engine) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
