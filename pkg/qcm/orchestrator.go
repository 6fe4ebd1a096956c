package qcm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/rag"
)

const generationFailedMessage = "La génération du QCM a échoué. Veuillez réessayer."

const launchMessage = "Lancement de la génération du QCM...\n\n"

// LLM is the structured-output completion dependency.
type LLM interface {
	CompleteJSON(ctx context.Context, messages []llms.Message, opts llms.Options, out any) error
}

// Uploader stores the downloadable quiz JSON. fileserver.Client satisfies it.
type Uploader interface {
	UploadJSON(ctx context.Context, filename string, v any) (string, error)
}

// Item is one fully generated quiz question. The correct answer always comes
// first; display layers shuffle.
type Item struct {
	Question     string
	RightChoice  string
	WrongChoice1 string
	WrongChoice2 string
	SourceText   string
	SourceTitle  string
	SourceURL    string
}

type Orchestrator struct {
	retriever rag.Retriever
	llm       LLM
	resolver  rag.URLResolver
	uploader  Uploader
	cfg       config.QCMConfig
}

func NewOrchestrator(r rag.Retriever, llm LLM, resolver rag.URLResolver, uploader Uploader, cfg config.QCMConfig) *Orchestrator {
	return &Orchestrator{
		retriever: r,
		llm:       llm,
		resolver:  resolver,
		uploader:  uploader,
		cfg:       cfg,
	}
}

// HandleTurn processes one conversation turn. Until parameters are confirmed
// it answers with the next collection prompt; once confirmed it streams the
// full generation. The channel closes after the terminal done event.
func (o *Orchestrator) HandleTurn(ctx context.Context, collection string, messages []llms.Message) <-chan rag.Event {
	events := make(chan rag.Event, 32)
	go func() {
		defer close(events)
		o.run(ctx, events, collection, messages)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, events chan<- rag.Event, collection string, messages []llms.Message) {
	state, params, reply := Replay(messages)
	if state != StateRunning {
		emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: reply})
		emit(ctx, events, rag.Event{Kind: rag.EventDone})
		return
	}

	if params.Count > o.cfg.MaxQuestions {
		params.Count = o.cfg.MaxQuestions
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	if !emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: launchMessage}) {
		return
	}
	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf(
		"Sujet: %s\nDifficulté: %s\nQuestions: %d", params.Topic, DifficultyLabel(params.Difficulty), params.Count)})

	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: "Phase 1 : génération des questions..."})
	questions, err := o.generateQuestions(ctx, collection, params)
	if err != nil {
		slog.Error("qcm question generation failed", "topic", params.Topic, "error", err)
		emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: generationFailedMessage})
		emit(ctx, events, rag.Event{Kind: rag.EventDone})
		return
	}

	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: "Phase 2 : génération des réponses et choix..."})
	var items []Item
	for i, question := range questions {
		if !emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: fmt.Sprintf("[%d/%d] %s", i+1, len(questions), truncate(question, 50))}) {
			return
		}
		item, err := o.generateItem(ctx, collection, question, params)
		if err != nil {
			slog.Warn("qcm answer generation failed, skipping question", "question", truncate(question, 50), "error", err)
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: generationFailedMessage})
		emit(ctx, events, rag.Event{Kind: rag.EventDone})
		return
	}

	markdown := formatMarkdown(items, params)
	quiz := downloadable(items, params)

	emit(ctx, events, rag.Event{Kind: rag.EventProgress, Text: "Upload du JSON téléchargeable..."})
	filename := "qcm_" + truncate(params.Topic, 20) + ".json"
	if url, err := o.uploader.UploadJSON(ctx, filename, quiz); err != nil {
		slog.Warn("qcm upload failed, omitting download link", "error", err)
	} else {
		markdown += fmt.Sprintf("\n\n---\n\n**[Télécharger le QCM (JSON)](%s)**\n", url)
	}

	emit(ctx, events, rag.Event{Kind: rag.EventContent, Text: markdown})
	emit(ctx, events, rag.Event{Kind: rag.EventDone})
}

func (o *Orchestrator) generateQuestions(ctx context.Context, collection string, params Params) ([]string, error) {
	chunks, err := o.retriever.Retrieve(ctx, collection, params.Topic, o.cfg.RetrieverTopK, o.cfg.RetrieverTopK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no context found for topic %q", params.Topic)
	}
	knowledge := rag.KnowledgeBase(rag.BuildSources(chunks, o.resolver))

	var out struct {
		Questions []string `json:"questions"`
	}
	messages := []llms.Message{
		{Role: "system", Content: questionSystemPrompt(params.Topic, params.Count, params.Difficulty)},
		{Role: "user", Content: questionUserPrompt(params.Topic, params.Count, params.Difficulty, knowledge)},
	}
	if err := o.llm.CompleteJSON(ctx, messages, llms.Options{MaxTokens: o.cfg.MaxTokens}, &out); err != nil {
		return nil, err
	}
	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("llm returned no questions")
	}
	if len(out.Questions) > params.Count {
		out.Questions = out.Questions[:params.Count]
	}
	return out.Questions, nil
}

func (o *Orchestrator) generateItem(ctx context.Context, collection, question string, params Params) (Item, error) {
	chunks, err := o.retriever.Retrieve(ctx, collection, question, o.cfg.AnswerTopK, o.cfg.AnswerTopK)
	if err != nil {
		return Item{}, err
	}
	sources := rag.BuildSources(chunks, o.resolver)
	knowledge := rag.KnowledgeBase(sources)

	var out struct {
		RightChoice  string `json:"right_choice"`
		WrongChoice1 string `json:"wrong_choice_1"`
		WrongChoice2 string `json:"wrong_choice_2"`
		SourceText   string `json:"source_text"`
	}
	messages := []llms.Message{
		{Role: "system", Content: answerSystemPrompt(params.Topic, params.Difficulty)},
		{Role: "user", Content: answerUserPrompt(question, params.Difficulty, knowledge)},
	}
	if err := o.llm.CompleteJSON(ctx, messages, llms.Options{MaxTokens: o.cfg.MaxTokens}, &out); err != nil {
		return Item{}, err
	}
	if out.RightChoice == "" || out.WrongChoice1 == "" || out.WrongChoice2 == "" {
		return Item{}, fmt.Errorf("llm answer output missing required choices")
	}

	item := Item{
		Question:     question,
		RightChoice:  out.RightChoice,
		WrongChoice1: out.WrongChoice1,
		WrongChoice2: out.WrongChoice2,
		SourceText:   out.SourceText,
	}
	if src, ok := pickSource(sources, out.SourceText); ok {
		// The full chunk, untruncated, is the supporting source.
		item.SourceText = src.Text
		item.SourceTitle = src.Title
		item.SourceURL = src.URL
	}
	return item, nil
}

// pickSource selects the retrieved chunk that best supports the LLM's quoted
// source text, preferring higher fused rank on ties.
func pickSource(sources []rag.Source, quoted string) (rag.Source, bool) {
	if len(sources) == 0 {
		return rag.Source{}, false
	}
	if quoted == "" {
		return sources[0], true
	}

	words := strings.Fields(strings.ToLower(quoted))
	best, bestScore := 0, -1
	for i, src := range sources {
		text := strings.ToLower(src.Text)
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return sources[best], true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func emit(ctx context.Context, events chan<- rag.Event, ev rag.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
