// Package utils holds small helpers shared across packages.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mentora-ai/mentora/pkg/llms"
)

// TokenCounter estimates token usage for OpenAI-compatible responses.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	// Cache encodings, initialization is expensive.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// NewTokenCounter returns a counter for the given model, falling back to the
// cl100k_base encoding for models tiktoken does not know about.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &TokenCounter{encoding: enc}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCache[model] = enc
	return &TokenCounter{encoding: enc}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts tokens in a message list, including the per-message
// role overhead and the assistant reply priming, following OpenAI's
// documented counting scheme.
func (tc *TokenCounter) CountMessages(messages []llms.Message) int {
	total := 0
	for _, msg := range messages {
		total += 3
		total += tc.Count(msg.Role)
		total += tc.Count(msg.Content)
	}
	return total + 3
}

// EstimateTokens is the rough fallback used when no encoding is available.
func EstimateTokens(text string) int {
	return len(text) / 4
}
