package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// CleanJSON strips markdown code fences and any prose around the outermost
// JSON object or array. Models routinely wrap JSON answers this way.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	end := strings.LastIndexByte(s, '}')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start = arrStart
		end = strings.LastIndexByte(s, ']')
	}
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// CompleteJSON runs a completion and unmarshals the cleaned result into out.
// On a parse failure it asks the model once to repair its own output before
// giving up.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message, opts Options, out any) error {
	raw, err := c.Complete(ctx, messages, opts)
	if err != nil {
		return err
	}

	cleaned := CleanJSON(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	slog.Warn("llm returned malformed JSON, requesting repair", "model", c.resolveModel(opts))

	repairMessages := []Message{
		{Role: "system", Content: "You fix malformed JSON. Return only the corrected JSON, nothing else."},
		{Role: "user", Content: "Fix this JSON so it parses:\n\n" + raw},
	}
	repaired, err := c.Complete(ctx, repairMessages, opts)
	if err != nil {
		return fmt.Errorf("json repair call failed: %w", err)
	}
	if err := json.Unmarshal([]byte(CleanJSON(repaired)), out); err != nil {
		return fmt.Errorf("llm output is not valid JSON after repair: %w", err)
	}
	return nil
}
