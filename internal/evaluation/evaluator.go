package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/llm"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/prompts"
)

// Evaluator scores completed interview transcripts with the LLM provider.
// Best-effort: callers treat a failure as "unscored", never as a blocker.
type Evaluator struct {
	provider  llm.Provider
	promptMgr *prompts.Manager
}

func New(provider llm.Provider, promptMgr *prompts.Manager) *Evaluator {
	return &Evaluator{provider: provider, promptMgr: promptMgr}
}

type result struct {
	Score          float64 `json:"score"`
	Summary        string  `json:"summary"`
	Recommendation string  `json:"recommendation"`
}

func (e *Evaluator) Evaluate(ctx context.Context, messages []models.InterviewMessage, jobRole string) (float64, string, string, error) {
	if len(messages) == 0 {
		return 0, "", "", fmt.Errorf("empty transcript")
	}

	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
			sb.WriteString("Candidate: ")
		case models.RoleAssistant:
			sb.WriteString("Interviewer: ")
		default:
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	prompt, err := e.promptMgr.BuildPrompt("evaluation", map[string]string{
		"JobRole":    jobRole,
		"Transcript": sb.String(),
	})
	if err != nil {
		return 0, "", "", err
	}

	reply, err := e.provider.GenerateReply(ctx, "", []llm.ChatMessage{{Role: models.RoleUser, Content: prompt}})
	if err != nil {
		return 0, "", "", err
	}

	var res result
	if err := json.Unmarshal([]byte(extractJSON(reply)), &res); err != nil {
		return 0, "", "", fmt.Errorf("unparseable evaluation response: %w", err)
	}
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	return res.Score, res.Summary, res.Recommendation, nil
}

// extractJSON strips markdown code fences and surrounding prose the model
// sometimes wraps around the JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
