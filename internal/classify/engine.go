// Package classify decides a document's type from a candidate label set by
// issuing independent completion votes and taking the plurality.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Yureehh/Extractly/internal/llm"
)

// DefaultSystemPrompt instructs the model to answer with exactly one label.
const DefaultSystemPrompt = `You are a strict document classifier.
Choose exactly one label from the provided list based on layout, visual cues, and text.
If nothing fits, return "Unknown".
Return only the label string with no extra words or punctuation.
`

// ocrSnippetBudget caps how much document text rides along as extra context.
const ocrSnippetBudget = 4000

// Options controls one classification decision.
type Options struct {
	UseConfidence bool   // false = single cheap call, no confidence reported
	NVotes        int    // independent votes when confidence is requested
	SystemPrompt  string // empty = DefaultSystemPrompt
	OCRText       string // optional extra context
	Model         string
	Temperature   float32
}

// Result is the aggregated classification outcome. Confidence is nil when it
// was not requested.
type Result struct {
	DocType    string
	Confidence *float64
}

// Engine runs classification votes against an injected completion service.
type Engine struct {
	completer llm.ChatCompleter
	log       *slog.Logger
}

func NewEngine(completer llm.ChatCompleter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{completer: completer, log: logger}
}

// Classify picks one label from candidates.
//
// Without confidence it issues exactly one call. With confidence it issues
// NVotes independent calls and aggregates by plurality, first-seen label
// winning ties; confidence = votes-for-winner / NVotes. An unparseable or
// empty reply counts as a literal vote (it loses the plurality unless
// repeated); a transport error during any vote propagates to the caller.
func (e *Engine) Classify(ctx context.Context, images []llm.Image, candidates []string, opts Options) (Result, error) {
	start := time.Now()

	if !opts.UseConfidence {
		label, err := e.singleVote(ctx, images, candidates, opts)
		if err != nil {
			return Result{}, err
		}
		e.log.Info("classify.ok", "doc_type", label, "votes", 1, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{DocType: label}, nil
	}

	nVotes := opts.NVotes
	if nVotes < 1 {
		nVotes = 1
	}
	if nVotes == 1 {
		label, err := e.singleVote(ctx, images, candidates, opts)
		if err != nil {
			return Result{}, err
		}
		conf := 1.0
		e.log.Info("classify.ok", "doc_type", label, "votes", 1, "confidence", conf, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{DocType: label, Confidence: &conf}, nil
	}

	votes := make([]string, 0, nVotes)
	for i := 0; i < nVotes; i++ {
		label, err := e.singleVote(ctx, images, candidates, opts)
		if err != nil {
			return Result{}, fmt.Errorf("classification vote %d/%d: %w", i+1, nVotes, err)
		}
		votes = append(votes, label)
	}

	winner, count := plurality(votes)
	conf := float64(count) / float64(nVotes)
	e.log.Info("classify.ok",
		"doc_type", winner,
		"votes", nVotes,
		"winning_votes", count,
		"confidence", conf,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{DocType: winner, Confidence: &conf}, nil
}

// singleVote is one independent trial: one completion call, no shared state.
func (e *Engine) singleVote(ctx context.Context, images []llm.Image, candidates []string, opts Options) (string, error) {
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	parts := []llm.ContentPart{
		llm.TextPart(fmt.Sprintf("Choose one type from: %s.", strings.Join(candidates, ", "))),
	}
	if snippet := strings.TrimSpace(opts.OCRText); snippet != "" {
		if len(snippet) > ocrSnippetBudget {
			snippet = snippet[:ocrSnippetBudget]
		}
		parts = append(parts, llm.TextPart("Document text:\n"+snippet))
	}
	for _, img := range images {
		parts = append(parts, llm.ImagePart(img))
	}

	reply, err := e.completer.Complete(ctx, llm.ChatRequest{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Text: prompt},
			{Role: llm.RoleUser, Parts: parts},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// plurality returns the most frequent vote and its count. Ties break by
// first-seen order, so the result is a stable mode over the vote sequence.
func plurality(votes []string) (string, int) {
	counts := make(map[string]int, len(votes))
	var order []string
	for _, v := range votes {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount
}
