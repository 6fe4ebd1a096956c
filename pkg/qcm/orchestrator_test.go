package qcm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
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
	byQuery map[string][]retriever.RankedChunk
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, collection, query string, initialK, finalK int) ([]retriever.RankedChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if chunks, ok := f.byQuery[query]; ok {
		return chunks, nil
	}
	return f.byQuery[""], nil
}

type fakeLLM struct {
	questions []string
	answers   map[string]string // question substring -> right choice
	err       error
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, messages []llms.Message, opts llms.Options, out any) error {
	if f.err != nil {
		return f.err
	}
	prompt := messages[len(messages)-1].Content
	if strings.Contains(prompt, "tableau de questions") {
		payload, _ := json.Marshal(map[string]any{"questions": f.questions})
		return json.Unmarshal(payload, out)
	}
	right := "Bonne réponse"
	for sub, r := range f.answers {
		if strings.Contains(prompt, sub) {
			right = r
		}
	}
	payload, _ := json.Marshal(map[string]string{
		"right_choice":   right,
		"wrong_choice_1": "Mauvais 1",
		"wrong_choice_2": "Mauvais 2",
		"source_text":    "texte du chunk",
	})
	return json.Unmarshal(payload, out)
}

type fakeUploader struct {
	url      string
	err      error
	gotName  string
	gotQuizz Quiz
}

func (f *fakeUploader) UploadJSON(ctx context.Context, filename string, v any) (string, error) {
	f.gotName = filename
	if q, ok := v.(Quiz); ok {
		f.gotQuizz = q
	}
	return f.url, f.err
}

type passResolver struct{}

func (passResolver) SourceURL(rawURL, hash string) string { return rawURL }

func qcmConfig() config.QCMConfig {
	return config.QCMConfig{
		RetrieverTopK: 15,
		AnswerTopK:    5,
		MaxQuestions:  50,
		MaxTokens:     8000,
		Deadline:      time.Minute,
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

func confirmedHistory() []llms.Message {
	return []llms.Message{user("Python"), user("moyen"), user("2"), user("oui")}
}

func TestHandleTurnCollectsParameters(t *testing.T) {
	o := NewOrchestrator(&fakeRetriever{}, &fakeLLM{}, passResolver{}, &fakeUploader{}, qcmConfig())

	events := collectEvents(o.HandleTurn(context.Background(), "btp", []llms.Message{user("Python")}))

	require.Len(t, events, 2)
	assert.Equal(t, rag.EventContent, events[0].Kind)
	assert.Contains(t, events[0].Text, "difficulté")
	assert.Equal(t, rag.EventDone, events[1].Kind)
}

func TestHandleTurnGeneratesQuiz(t *testing.T) {
	retr := &fakeRetriever{byQuery: map[string][]retriever.RankedChunk{
		"": {chunk("p1", "Guide Python", "https://files.example/download/h1", "texte du chunk avec détails")},
	}}
	llmFake := &fakeLLM{questions: []string{"Question un ?", "Question deux ?"}}
	up := &fakeUploader{url: "https://files.example/download/abcd1234abcd1234"}

	o := NewOrchestrator(retr, llmFake, passResolver{}, up, qcmConfig())
	events := collectEvents(o.HandleTurn(context.Background(), "btp", confirmedHistory()))

	require.NotEmpty(t, events)
	assert.Equal(t, rag.EventDone, events[len(events)-1].Kind)

	var content strings.Builder
	for _, ev := range events {
		if ev.Kind == rag.EventContent {
			content.WriteString(ev.Text)
		}
	}
	md := content.String()
	assert.Contains(t, md, "# QCM: Python")
	assert.Contains(t, md, "## Question 1")
	assert.Contains(t, md, "## Question 2")
	assert.Contains(t, md, "<details><summary>Voir la réponse</summary>")
	assert.Contains(t, md, "Télécharger le QCM (JSON)")
	assert.Contains(t, md, up.url)

	// The uploaded artifact keeps the correct answer at index 0.
	assert.Equal(t, "qcm_Python.json", up.gotName)
	require.Len(t, up.gotQuizz.Questions, 2)
	for _, q := range up.gotQuizz.Questions {
		require.Len(t, q.AnsList, 3)
		assert.Equal(t, "Bonne réponse", q.AnsList[0])
	}
	assert.Equal(t, 2, up.gotQuizz.Metadata.TotalQuestions)
	// Source chunk kept in full, not the LLM's quote.
	assert.Equal(t, "texte du chunk avec détails", up.gotQuizz.Questions[0].Source.Text)
}

func TestHandleTurnUploadFailureDegrades(t *testing.T) {
	retr := &fakeRetriever{byQuery: map[string][]retriever.RankedChunk{
		"": {chunk("p1", "T", "https://u", "texte")},
	}}
	o := NewOrchestrator(retr, &fakeLLM{questions: []string{"Q ?"}}, passResolver{}, &fakeUploader{err: errors.New("down")}, qcmConfig())

	events := collectEvents(o.HandleTurn(context.Background(), "btp", confirmedHistory()))

	var content strings.Builder
	for _, ev := range events {
		if ev.Kind == rag.EventContent {
			content.WriteString(ev.Text)
		}
	}
	assert.Contains(t, content.String(), "# QCM: Python")
	assert.NotContains(t, content.String(), "Télécharger le QCM")
	assert.Equal(t, rag.EventDone, events[len(events)-1].Kind)
}

func TestHandleTurnRetrievalFailure(t *testing.T) {
	o := NewOrchestrator(&fakeRetriever{err: retriever.ErrRetrievalUnavailable}, &fakeLLM{}, passResolver{}, &fakeUploader{}, qcmConfig())

	events := collectEvents(o.HandleTurn(context.Background(), "btp", confirmedHistory()))

	assert.Equal(t, generationFailedMessage, events[len(events)-2].Text)
	assert.Equal(t, rag.EventDone, events[len(events)-1].Kind)
}

func TestPickSourcePrefersTextualMatch(t *testing.T) {
	sources := []rag.Source{
		{ID: 1, Text: "le gil empêche le vrai multi-threading"},
		{ID: 2, Text: "python utilise l'indentation pour délimiter les blocs"},
	}
	src, ok := pickSource(sources, "l'indentation délimite les blocs")
	require.True(t, ok)
	assert.Equal(t, 2, src.ID)

	src, ok = pickSource(sources, "")
	require.True(t, ok)
	assert.Equal(t, 1, src.ID)
}

func TestFormatMarkdownSourcesNumberedInQuestionOrder(t *testing.T) {
	items := []Item{
		{Question: "Q1", RightChoice: "r", WrongChoice1: "w1", WrongChoice2: "w2", SourceTitle: "Doc A", SourceURL: "https://a", SourceText: "tA"},
		{Question: "Q2", RightChoice: "r", WrongChoice1: "w1", WrongChoice2: "w2", SourceTitle: "Doc B", SourceURL: "https://b", SourceText: "tB"},
		{Question: "Q3", RightChoice: "r", WrongChoice1: "w1", WrongChoice2: "w2", SourceTitle: "Doc A", SourceURL: "https://a", SourceText: "tA"},
	}
	md := formatMarkdown(items, Params{Topic: "T", Difficulty: DifficultyEasy})

	assert.Contains(t, md, "- [1] [Doc A](https://a)")
	assert.Contains(t, md, "- [2] [Doc B](https://b)")
	assert.NotContains(t, md, "- [3]")
	assert.Less(t, strings.Index(md, "[1](https://a)"), strings.Index(md, "[2](https://b)"))
}
