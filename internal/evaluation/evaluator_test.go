package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/llm"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/prompts"
)

type scriptedProvider struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt string
}

func (p *scriptedProvider) GenerateReply(ctx context.Context, systemPrompt string, history []llm.ChatMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(history) > 0 {
		p.prompt = history[len(history)-1].Content
	}
	return p.reply, p.err
}

func (p *scriptedProvider) GetProviderName() string { return "scripted" }

func transcript() []models.InterviewMessage {
	return []models.InterviewMessage{
		{Role: models.RoleAssistant, Content: "Tell me about a project you are proud of."},
		{Role: models.RoleUser, Content: "I built a distributed job queue in Go."},
	}
}

func newEvaluator(t *testing.T, provider llm.Provider) *Evaluator {
	t.Helper()
	mgr, err := prompts.NewManager()
	if err != nil {
		t.Fatalf("failed to load prompt templates: %v", err)
	}
	return New(provider, mgr)
}

func TestEvaluateParsesProviderJSON(t *testing.T) {
	provider := &scriptedProvider{reply: `{"score": 81, "summary": "Strong answers", "recommendation": "HIRE"}`}
	e := newEvaluator(t, provider)

	score, summary, recommendation, err := e.Evaluate(context.Background(), transcript(), "Backend Engineer")
	assert.NoError(t, err)
	assert.Equal(t, 81.0, score)
	assert.Equal(t, "Strong answers", summary)
	assert.Equal(t, "HIRE", recommendation)

	assert.True(t, strings.Contains(provider.prompt, "Candidate: I built a distributed job queue in Go."))
	assert.True(t, strings.Contains(provider.prompt, "Interviewer: Tell me about a project you are proud of."))
}

func TestEvaluateStripsMarkdownFences(t *testing.T) {
	provider := &scriptedProvider{reply: "```json\n{\"score\": 55, \"summary\": \"ok\", \"recommendation\": \"MAYBE\"}\n```"}
	e := newEvaluator(t, provider)

	score, _, _, err := e.Evaluate(context.Background(), transcript(), "Backend Engineer")
	assert.NoError(t, err)
	assert.Equal(t, 55.0, score)
}

func TestEvaluateClampsScore(t *testing.T) {
	provider := &scriptedProvider{reply: `{"score": 140, "summary": "s", "recommendation": "HIRE"}`}
	e := newEvaluator(t, provider)

	score, _, _, err := e.Evaluate(context.Background(), transcript(), "Backend Engineer")
	assert.NoError(t, err)
	assert.Equal(t, 100.0, score)

	provider.reply = `{"score": -5, "summary": "s", "recommendation": "NO_HIRE"}`
	score, _, _, err = e.Evaluate(context.Background(), transcript(), "Backend Engineer")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestEvaluateEmptyTranscript(t *testing.T) {
	e := newEvaluator(t, &scriptedProvider{})
	_, _, _, err := e.Evaluate(context.Background(), nil, "Backend Engineer")
	assert.Error(t, err)
}

func TestEvaluateProviderFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("provider down")}
	e := newEvaluator(t, provider)
	_, _, _, err := e.Evaluate(context.Background(), transcript(), "Backend Engineer")
	assert.Error(t, err)
}

func TestEvaluateUnparseableReply(t *testing.T) {
	provider := &scriptedProvider{reply: "I would rate this candidate very highly."}
	e := newEvaluator(t, provider)
	_, _, _, err := e.Evaluate(context.Background(), transcript(), "Backend Engineer")
	assert.Error(t, err)
}
