package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/rag"
	"github.com/mentora-ai/mentora/pkg/retriever"
	"github.com/mentora-ai/mentora/pkg/utils"
)

// chatRequest is the OpenAI-compatible request body. The model field names
// a collection from the registry.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []llms.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   completionUsage    `json:"usage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleModels lists the registry collections as OpenAI models so chat
// frontends can offer them in their model picker.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	list := modelList{Object: "list", Data: make([]modelInfo, 0, len(names))}
	for _, name := range names {
		list.Data = append(list.Data, modelInfo{
			ID:      name,
			Object:  "model",
			Created: s.started,
			OwnedBy: "mentora",
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRAGChat(w http.ResponseWriter, r *http.Request) {
	req, query, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if req.Stream {
		s.streamEvents(w, r, req.Model, s.rag.StreamRAG(r.Context(), req.Model, query, 0), true)
		return
	}
	s.completeRAG(w, r, req, query)
}

func (s *Server) handleCourseChat(w http.ResponseWriter, r *http.Request) {
	req, subject, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if !req.Stream {
		writeError(w, http.StatusBadRequest, "course generation requires stream: true")
		return
	}
	s.streamEvents(w, r, req.Model, s.course.Build(r.Context(), req.Model, subject), false)
}

func (s *Server) handleQCMChat(w http.ResponseWriter, r *http.Request) {
	req, _, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if !req.Stream {
		writeError(w, http.StatusBadRequest, "qcm generation requires stream: true")
		return
	}
	s.streamEvents(w, r, req.Model, s.qcm.HandleTurn(r.Context(), req.Model, req.Messages), false)
}

// decodeChat parses and validates the request body. It returns the last user
// message, which every feature treats as the current query.
func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, string, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, "", false
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return req, "", false
	}
	if _, ok := s.registry.Resolve(req.Model); !ok {
		writeError(w, http.StatusBadRequest, "unknown collection: "+req.Model)
		return req, "", false
	}

	query := lastUserMessage(req.Messages)
	if query == "" {
		writeError(w, http.StatusBadRequest, "no user message found")
		return req, "", false
	}
	return req, query, true
}

func lastUserMessage(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			if text := strings.TrimSpace(messages[i].Content); text != "" {
				return text
			}
		}
	}
	return ""
}

// streamEvents forwards service events as SSE frames. RAG answer content is
// re-chunked into small deltas so frontends render it progressively.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, model string, events <-chan rag.Event, paced bool) {
	sw, ok := newSSEWriter(w, model)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	for ev := range events {
		var err error
		switch ev.Kind {
		case rag.EventContent:
			if paced {
				err = s.pacedContent(r, sw, ev.Text)
			} else {
				err = sw.writeContent(ev.Text)
			}
		case rag.EventProgress:
			err = sw.writeProgress(ev.Text)
		case rag.EventDone:
			err = sw.writeDone()
		}
		if err != nil {
			// Client gone; producers stop via the request context.
			slog.Debug("sse write failed", "error", err)
			return
		}
	}
}

func (s *Server) pacedContent(r *http.Request, sw *sseWriter, text string) error {
	size := s.cfg.RAG.ChunkSize
	if size <= 0 || len(text) <= size {
		return sw.writeContent(text)
	}

	runes := []rune(text)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		if err := sw.writeContent(string(runes[start:end])); err != nil {
			return err
		}
		if end < len(runes) && s.cfg.RAG.ChunkDelay > 0 {
			select {
			case <-time.After(s.cfg.RAG.ChunkDelay):
			case <-r.Context().Done():
				return r.Context().Err()
			}
		}
	}
	return nil
}

func (s *Server) completeRAG(w http.ResponseWriter, r *http.Request, req chatRequest, query string) {
	answer, _, err := s.rag.Query(r.Context(), req.Model, query, 0)
	if err != nil {
		switch {
		case errors.Is(err, retriever.ErrUnknownCollection):
			writeError(w, http.StatusBadRequest, "unknown collection: "+req.Model)
		case errors.Is(err, retriever.ErrRetrievalUnavailable):
			writeError(w, http.StatusServiceUnavailable, "retrieval unavailable")
		default:
			slog.Error("rag completion failed", "collection", req.Model, "error", err)
			writeError(w, http.StatusBadGateway, "generation failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, completionResponse{
		ID:      newStreamID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []completionChoice{{
			Message:      completionMessage{Role: "assistant", Content: answer},
			FinishReason: "stop",
		}},
		Usage: s.countUsage(req.Messages, answer),
	})
}

// tokenCounter lazily builds the tiktoken counter for the configured model.
// Unavailable encodings degrade to the rough character estimate.
func (s *Server) tokenCounter() *utils.TokenCounter {
	s.counterOnce.Do(func() {
		counter, err := utils.NewTokenCounter(s.cfg.RAG.Model)
		if err != nil {
			slog.Warn("token counter unavailable, using estimates", "error", err)
			return
		}
		s.counter = counter
	})
	return s.counter
}

func (s *Server) countUsage(messages []llms.Message, answer string) completionUsage {
	var prompt, completion int
	if tc := s.tokenCounter(); tc != nil {
		prompt = tc.CountMessages(messages)
		completion = tc.Count(answer)
	} else {
		for _, msg := range messages {
			prompt += utils.EstimateTokens(msg.Content) + 4
		}
		completion = utils.EstimateTokens(answer)
	}
	return completionUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
