package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/httpclient"
	"github.com/mentora-ai/mentora/pkg/observability"
)

const streamChannelBuffer = 100

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	cloud       bool
	model       string
	temperature float64
	maxTokens   int
	httpClient  *httpclient.Client
	metrics     *observability.Metrics
}

type ClientOption func(*Client)

// WithMetrics enables LLM call metrics recording.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *httpclient.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client from config. When cfg.UseCloud is set the base
// URL switches to the cloud host, requests carry the API key, and model
// names get the "-cloud" suffix the cloud API expects.
func NewClient(cfg config.LLMConfig, defaults config.RAGConfig, opts ...ClientOption) *Client {
	baseURL := cfg.BaseURL
	if cfg.UseCloud {
		baseURL = cfg.CloudHost
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.APIKey,
		cloud:       cfg.UseCloud,
		model:       defaults.Model,
		temperature: defaults.Temperature,
		maxTokens:   defaults.MaxTokens,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second}),
			httpclient.WithMaxRetries(2),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the effective model name sent on the wire.
func (c *Client) Model() string {
	return c.resolveModel(Options{})
}

func (c *Client) resolveModel(opts Options) string {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	if c.cloud && !strings.HasSuffix(model, "-cloud") {
		model += "-cloud"
	}
	return model
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type streamDelta struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

type streamResponse struct {
	Choices []struct {
		Delta        streamDelta `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) buildRequest(ctx context.Context, messages []Message, opts Options, stream bool) (*http.Request, error) {
	body := chatRequest{
		Model:       c.resolveModel(opts),
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
	if opts.Temperature > 0 {
		body.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		body.MaxTokens = opts.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	return req, nil
}

// Complete runs one non-streaming completion and returns the content.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	req, err := c.buildRequest(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(opts, start, err)
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := c.parseErrorResponse(resp)
		c.recordCall(opts, start, err)
		return "", err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.recordCall(opts, start, err)
		return "", fmt.Errorf("failed to decode llm response: %w", err)
	}
	if parsed.Error != nil {
		err := &ProviderError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
		c.recordCall(opts, start, err)
		return "", err
	}
	if len(parsed.Choices) == 0 {
		err := fmt.Errorf("llm response contained no choices")
		c.recordCall(opts, start, err)
		return "", err
	}

	c.recordCall(opts, start, nil)
	return parsed.Choices[0].Message.Content, nil
}

// Stream runs one streaming completion. The returned channel is closed after
// the terminal chunk ("done" on success, "error" on failure).
func (c *Client) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	req, err := c.buildRequest(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(opts, start, err)
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := c.parseErrorResponse(resp)
		resp.Body.Close()
		c.recordCall(opts, start, err)
		return nil, err
	}

	out := make(chan StreamChunk, streamChannelBuffer)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		err := c.readStream(ctx, resp.Body, out)
		c.recordCall(opts, start, err)
		if err != nil {
			sendChunk(ctx, out, StreamChunk{Type: ChunkTypeError, Error: err})
			return
		}
		sendChunk(ctx, out, StreamChunk{Type: ChunkTypeDone})
	}()
	return out, nil
}

// sendChunk delivers a chunk unless the consumer is gone. Every send must go
// through here: an abandoned stream otherwise parks the producer goroutine on
// a full channel forever.
func sendChunk(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) readStream(ctx context.Context, body io.Reader, out chan<- StreamChunk) error {
	reader := bufio.NewReader(body)
	thinking := false

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			data, ok := bytes.CutPrefix(bytes.TrimSpace(line), []byte("data: "))
			if ok {
				if bytes.Equal(data, []byte("[DONE]")) {
					return nil
				}
				var parsed streamResponse
				if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
					slog.Debug("skipping malformed stream line", "error", jsonErr)
					continue
				}
				for _, choice := range parsed.Choices {
					if choice.Delta.Reasoning != "" {
						thinking = true
						if !sendChunk(ctx, out, StreamChunk{Type: ChunkTypeThinking, Text: choice.Delta.Reasoning}) {
							return ctx.Err()
						}
					}
					if choice.Delta.Content != "" {
						if thinking {
							thinking = false
							if !sendChunk(ctx, out, StreamChunk{Type: ChunkTypeThinkingComplete}) {
								return ctx.Err()
							}
						}
						if !sendChunk(ctx, out, StreamChunk{Type: ChunkTypeText, Text: choice.Delta.Content}) {
							return ctx.Err()
						}
					}
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: message}
}

func (c *Client) recordCall(opts Options, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.RecordLLMCall(c.resolveModel(opts), time.Since(start), err)
	}
}
