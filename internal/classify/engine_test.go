package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yureehh/Extractly/internal/llm"
)

// scriptedCompleter replays canned replies in call order.
type scriptedCompleter struct {
	replies  []string
	err      error
	calls    int
	requests []llm.ChatRequest
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	s.requests = append(s.requests, req)
	idx := s.calls
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx], nil
}

var candidates = []string{"Invoice", "Receipt", "Unknown", "Other"}

func TestClassify_WithoutConfidenceSingleCall(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{" Invoice \n"}}
	eng := NewEngine(fake, nil)

	res, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: false, NVotes: 5})
	require.NoError(t, err)
	assert.Equal(t, "Invoice", res.DocType)
	assert.Nil(t, res.Confidence)
	assert.Equal(t, 1, fake.calls)
}

func TestClassify_UnanimousVotes(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"Invoice"}}
	eng := NewEngine(fake, nil)

	res, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: true, NVotes: 5})
	require.NoError(t, err)
	assert.Equal(t, "Invoice", res.DocType)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 1.0, *res.Confidence, 1e-9)
	assert.Equal(t, 5, fake.calls)
}

func TestClassify_SplitVotes(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"Invoice", "Receipt", "Invoice", "Receipt", "Invoice"}}
	eng := NewEngine(fake, nil)

	res, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: true, NVotes: 5})
	require.NoError(t, err)
	assert.Equal(t, "Invoice", res.DocType)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.6, *res.Confidence, 1e-9)
}

func TestClassify_TieBreaksFirstSeen(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"Receipt", "Invoice", "Invoice", "Receipt"}}
	eng := NewEngine(fake, nil)

	res, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: true, NVotes: 4})
	require.NoError(t, err)
	assert.Equal(t, "Receipt", res.DocType)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.5, *res.Confidence, 1e-9)
}

func TestClassify_SingleVoteWithConfidence(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"Other"}}
	eng := NewEngine(fake, nil)

	res, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: true, NVotes: 1})
	require.NoError(t, err)
	assert.Equal(t, "Other", res.DocType)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 1.0, *res.Confidence, 1e-9)
	assert.Equal(t, 1, fake.calls)
}

func TestClassify_EmptyReplyCountsAsVote(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"", "", "Invoice"}}
	eng := NewEngine(fake, nil)

	res, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: true, NVotes: 3})
	require.NoError(t, err)
	assert.Equal(t, "", res.DocType)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 2.0/3.0, *res.Confidence, 1e-9)
}

func TestClassify_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	fake := &scriptedCompleter{err: boom}
	eng := NewEngine(fake, nil)

	_, err := eng.Classify(context.Background(), nil, candidates, Options{UseConfidence: true, NVotes: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "classification vote 1/3")
}

func TestClassify_PromptCarriesCandidatesAndText(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"Invoice"}}
	eng := NewEngine(fake, nil)

	img := llm.Image{MediaType: "image/png", Data: []byte{1, 2, 3}}
	_, err := eng.Classify(context.Background(), []llm.Image{img}, candidates, Options{
		OCRText: "ACME Corp invoice no 42",
	})
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)

	msgs := fake.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Text)

	parts := msgs[1].Parts
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, "Invoice, Receipt, Unknown, Other")
	assert.Contains(t, parts[1].Text, "ACME Corp invoice no 42")
	require.NotNil(t, parts[2].Image)
	assert.Equal(t, "image/png", parts[2].Image.MediaType)
}

func TestPlurality_StableMode(t *testing.T) {
	winner, count := plurality([]string{"b", "a", "a", "b", "c"})
	assert.Equal(t, "b", winner)
	assert.Equal(t, 2, count)
}
