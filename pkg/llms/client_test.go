package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentora-ai/mentora/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(
		config.LLMConfig{BaseURL: server.URL, TimeoutS: 5},
		config.RAGConfig{Model: "gpt-oss:20b", Temperature: 0.7, MaxTokens: 512},
	)
}

func TestCompleteReturnsContent(t *testing.T) {
	var gotBody chatRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"bonjour"}}]}`)
	})

	content, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "salut"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", content)
	assert.Equal(t, "gpt-oss:20b", gotBody.Model)
	assert.False(t, gotBody.Stream)
}

func TestCompleteProviderError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found"}}`)
	})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, Options{})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.StatusCode)
	assert.Contains(t, provErr.Message, "model not found")
}

func TestCloudModelSuffix(t *testing.T) {
	client := NewClient(
		config.LLMConfig{BaseURL: "http://localhost:11434", CloudHost: "https://ollama.com", APIKey: "k", UseCloud: true, TimeoutS: 5},
		config.RAGConfig{Model: "gpt-oss:120b"},
	)
	assert.Equal(t, "gpt-oss:120b-cloud", client.Model())
	assert.Equal(t, "other-cloud", client.resolveModel(Options{Model: "other"}))
	assert.Equal(t, "already-cloud", client.resolveModel(Options{Model: "already-cloud"}))
}

func sseHandler(t *testing.T, lines ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func collect(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestStreamContentChunks(t *testing.T) {
	client := testClient(t, sseHandler(t,
		`{"choices":[{"delta":{"content":"Bon"}}]}`,
		`{"choices":[{"delta":{"content":"jour"}}]}`,
	))

	ch, err := client.Stream(context.Background(), []Message{{Role: "user", Content: "q"}}, Options{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 3)
	assert.Equal(t, StreamChunk{Type: ChunkTypeText, Text: "Bon"}, chunks[0])
	assert.Equal(t, StreamChunk{Type: ChunkTypeText, Text: "jour"}, chunks[1])
	assert.Equal(t, ChunkTypeDone, chunks[2].Type)
}

func TestStreamThinkingTransition(t *testing.T) {
	client := testClient(t, sseHandler(t,
		`{"choices":[{"delta":{"reasoning":"hmm"}}]}`,
		`{"choices":[{"delta":{"reasoning":" ok"}}]}`,
		`{"choices":[{"delta":{"content":"réponse"}}]}`,
	))

	ch, err := client.Stream(context.Background(), []Message{{Role: "user", Content: "q"}}, Options{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 5)
	assert.Equal(t, ChunkTypeThinking, chunks[0].Type)
	assert.Equal(t, ChunkTypeThinking, chunks[1].Type)
	assert.Equal(t, ChunkTypeThinkingComplete, chunks[2].Type)
	assert.Equal(t, StreamChunk{Type: ChunkTypeText, Text: "réponse"}, chunks[3])
	assert.Equal(t, ChunkTypeDone, chunks[4].Type)
}

func TestStreamErrorStatus(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	})

	_, err := client.Stream(context.Background(), []Message{{Role: "user", Content: "q"}}, Options{})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
}

func TestStreamCancelReleasesProducer(t *testing.T) {
	// The server streams frames until the connection drops, far more than the
	// channel buffer holds.
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for {
			select {
			case <-r.Context().Done():
				return
			default:
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
				flusher.Flush()
			}
		}
	})

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := client.Stream(ctx, []Message{{Role: "user", Content: "q"}}, Options{})
	require.NoError(t, err)

	// Let the producer fill the channel buffer, then walk away without
	// reading anything.
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond, "stream producer still running after cancellation")
	_ = ch
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	client := testClient(t, sseHandler(t,
		`not json at all`,
		`{"choices":[{"delta":{"content":"ok"}}]}`,
	))

	ch, err := client.Stream(context.Background(), []Message{{Role: "user", Content: "q"}}, Options{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 2)
	assert.Equal(t, StreamChunk{Type: ChunkTypeText, Text: "ok"}, chunks[0])
	assert.Equal(t, ChunkTypeDone, chunks[1].Type)
}
