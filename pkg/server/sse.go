package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// chunkResponse is one OpenAI-compatible streaming frame.
type chunkResponse struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

type delta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

func newStreamID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// sseWriter serializes events as server-sent OpenAI chunks.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	model   string
	created int64
}

// newSSEWriter sends the SSE response headers. It fails when the underlying
// writer cannot flush, which streaming requires.
func newSSEWriter(w http.ResponseWriter, model string) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{
		w:       w,
		flusher: flusher,
		id:      newStreamID(),
		model:   model,
		created: time.Now().Unix(),
	}, true
}

func (s *sseWriter) writeContent(text string) error {
	return s.writeChunk(chunkChoice{Delta: delta{Content: text}})
}

// writeProgress carries reasoning text so OpenAI-compatible clients render
// it as a thinking trace instead of answer content.
func (s *sseWriter) writeProgress(text string) error {
	return s.writeChunk(chunkChoice{Delta: delta{Role: "assistant", ReasoningContent: text}})
}

func (s *sseWriter) writeDone() error {
	stop := "stop"
	if err := s.writeChunk(chunkChoice{Delta: delta{}, FinishReason: &stop}); err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) writeChunk(choice chunkChoice) error {
	payload, err := json.Marshal(chunkResponse{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []chunkChoice{choice},
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
