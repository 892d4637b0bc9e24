package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yureehh/Extractly/internal/llm"
)

// Complete implements llm.ChatCompleter against an OpenAI-compatible
// chat/completions endpoint. Transient failures are retried MaxRetries times
// with backoff RetryBackoff * attempt number; the last error is returned once
// retries are exhausted.
func (c *Client) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model":       req.Model,
		"temperature": req.Temperature,
		"messages":    wireMessages(req.Messages),
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	c.log.Info("llm.chat.start",
		"req_id", rid,
		"model", req.Model,
		"messages", len(req.Messages),
	)

	attempts := c.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
		if err == nil {
			content, derr := decodeChatContent(raw)
			if derr != nil {
				c.log.Error("llm.chat.decode_error",
					"req_id", rid, "error", derr,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return "", derr
			}
			c.log.Info("llm.chat.ok",
				"req_id", rid,
				"attempt", attempt,
				"reply_len", len(content),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return content, nil
		}
		lastErr = err
		c.log.Warn("llm.chat.attempt_failed",
			"req_id", rid,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}

	c.log.Error("llm.chat.exhausted",
		"req_id", rid,
		"attempts", attempts,
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return "", fmt.Errorf("chat completion after %d attempts: %w", attempts, lastErr)
}

// wireMessages converts messages into the OpenAI wire shape: plain strings for
// text-only messages, typed part lists otherwise.
func wireMessages(msgs []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		if len(m.Parts) == 0 {
			out = append(out, map[string]any{"role": m.Role, "content": m.Text})
			continue
		}
		parts := make([]map[string]any, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Image != nil {
				parts = append(parts, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": p.Image.DataURI()},
				})
				continue
			}
			parts = append(parts, map[string]any{"type": "text", "text": p.Text})
		}
		out = append(out, map[string]any{"role": m.Role, "content": parts})
	}
	return out
}

func decodeChatContent(raw []byte) (string, error) {
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
