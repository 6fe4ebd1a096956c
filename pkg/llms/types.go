// Package llms provides the chat-completions client used by every feature.
// The wire format is OpenAI-compatible; the backend is either a local Ollama
// instance or the Ollama cloud API.
package llms

import "fmt"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune one completion call. Zero values fall back to the provider's
// configured defaults.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// StreamChunk is one unit of streamed LLM output.
type StreamChunk struct {
	// Type is one of "text", "thinking", "thinking_complete", "done", "error".
	Type  string
	Text  string
	Error error
}

const (
	ChunkTypeText             = "text"
	ChunkTypeThinking         = "thinking"
	ChunkTypeThinkingComplete = "thinking_complete"
	ChunkTypeDone             = "done"
	ChunkTypeError            = "error"
)

// ProviderError carries the HTTP status of a failed LLM call.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider error (status %d): %s", e.StatusCode, e.Message)
}
