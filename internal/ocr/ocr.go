// Package ocr transcribes page images to plain text through a vision-capable
// completion model. The pipeline treats it as an opaque text-producing
// service: one call per page, best-effort across the batch.
package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Yureehh/Extractly/internal/llm"
)

// DefaultPrompt asks for a faithful transcription and nothing else.
const DefaultPrompt = `You are an OCR engine. Transcribe all readable text in natural reading order.
Preserve line breaks and spacing where useful.
Return plain text only without commentary.
`

type Config struct {
	Model  string
	Prompt string // empty = DefaultPrompt
}

type Engine struct {
	completer llm.ChatCompleter
	cfg       Config
	log       *slog.Logger
}

func NewEngine(completer llm.ChatCompleter, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{completer: completer, cfg: cfg, log: logger}
}

// Run transcribes each page independently and joins the page texts with a
// blank line. A failing page contributes an empty string rather than aborting
// the batch.
func (e *Engine) Run(ctx context.Context, images []llm.Image) string {
	start := time.Now()
	chunks := make([]string, 0, len(images))
	failed := 0

	for i, img := range images {
		text, err := e.transcribe(ctx, img)
		if err != nil {
			e.log.Warn("ocr.page_failed", "page", i+1, "error", err)
			failed++
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			chunks = append(chunks, text)
		}
	}

	e.log.Info("ocr.done",
		"pages", len(images),
		"failed", failed,
		"chars", totalLen(chunks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.Join(chunks, "\n\n")
}

func (e *Engine) transcribe(ctx context.Context, img llm.Image) (string, error) {
	return e.completer.Complete(ctx, llm.ChatRequest{
		Model: e.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Text: e.cfg.Prompt},
			{Role: llm.RoleUser, Parts: []llm.ContentPart{
				llm.TextPart("Extract all text."),
				llm.ImagePart(img),
			}},
		},
	})
}

func totalLen(chunks []string) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}
