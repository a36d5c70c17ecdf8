package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/hub"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/llm"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/prompts"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/testhelpers"
)

type fakeProvider struct {
	mu        sync.Mutex
	delay     time.Duration
	err       error
	calls     [][]llm.ChatMessage
	active    int
	maxActive int
}

func (p *fakeProvider) GenerateReply(ctx context.Context, systemPrompt string, history []llm.ChatMessage) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]llm.ChatMessage(nil), history...))
	n := len(p.calls)
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	delay, err := p.delay, p.err
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", &llm.ProviderError{Provider: "fake", Code: llm.ErrCodeTimeout, Message: "cancelled", Err: ctx.Err()}
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reply-%d", n), nil
}

func (p *fakeProvider) GetProviderName() string { return "fake" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) maxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

type fakeSink struct {
	mu      sync.Mutex
	replies []string
	errors  []string
}

func (s *fakeSink) SendReply(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, text)
}

func (s *fakeSink) SendAudio([]byte) {}

func (s *fakeSink) SendError(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, code)
}

func (s *fakeSink) allReplies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.replies...)
}

func (s *fakeSink) allErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

func newTestOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, *repositories.MessageRepository) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	messages := &repositories.MessageRepository{DB: db}

	promptMgr, err := prompts.NewManager()
	if err != nil {
		t.Fatalf("failed to load prompt templates: %v", err)
	}
	h := hub.NewHub(nil, nil, zap.NewNop())
	t.Cleanup(h.Close)

	return New(messages, provider, promptMgr, nil, h, zap.NewNop()), messages
}

func testInterview() *models.Interview {
	started := time.Now()
	return &models.Interview{
		ID:               uuid.New().String(),
		RecruiterID:      "recruiter-1",
		CandidateEmail:   "candidate@example.com",
		JobRole:          "Backend Engineer",
		Type:             models.TypeText,
		Status:           models.StatusInProgress,
		TimeLimitMinutes: 30,
		StartedAt:        &started,
		ExpiresAt:        time.Now().Add(time.Hour),
	}
}

func TestTakeTurnPersistsBothSides(t *testing.T) {
	provider := &fakeProvider{}
	o, messages := newTestOrchestrator(t, provider)
	iv := testInterview()

	reply, err := o.TakeTurn(context.Background(), iv, "Tell me about yourself")
	assert.NoError(t, err)
	assert.Equal(t, "reply-1", reply)

	msgs, err := messages.ListByInterview(iv.ID)
	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Tell me about yourself", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "reply-1", msgs[1].Content)
}

func TestTakeTurnRejectsConcurrentTurn(t *testing.T) {
	provider := &fakeProvider{delay: 200 * time.Millisecond}
	o, _ := newTestOrchestrator(t, provider)
	iv := testInterview()

	done := make(chan error, 1)
	go func() {
		_, err := o.TakeTurn(context.Background(), iv, "first")
		done <- err
	}()

	assert.Eventually(t, func() bool {
		return provider.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := o.TakeTurn(context.Background(), iv, "second")
	assert.ErrorIs(t, err, ErrTurnInProgress)
	assert.NoError(t, <-done)
}

func TestSubmitDeliversReplyToSink(t *testing.T) {
	provider := &fakeProvider{}
	o, _ := newTestOrchestrator(t, provider)
	iv := testInterview()
	sink := &fakeSink{}

	assert.NoError(t, o.Register(iv, sink))
	defer o.Unregister(iv.ID)

	assert.NoError(t, o.Submit(iv.ID, "hello"))
	assert.Eventually(t, func() bool {
		return len(sink.allReplies()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "reply-1", sink.allReplies()[0])
}

func TestSubmitWithoutSessionFails(t *testing.T) {
	provider := &fakeProvider{}
	o, _ := newTestOrchestrator(t, provider)

	assert.ErrorIs(t, o.Submit("unknown", "hello"), ErrNoSession)
}

func TestSubmitQueuesWhileProcessing(t *testing.T) {
	provider := &fakeProvider{delay: 100 * time.Millisecond}
	o, messages := newTestOrchestrator(t, provider)
	iv := testInterview()
	sink := &fakeSink{}

	assert.NoError(t, o.Register(iv, sink))
	defer o.Unregister(iv.ID)

	assert.NoError(t, o.Submit(iv.ID, "first"))
	assert.NoError(t, o.Submit(iv.ID, "second part one"))
	assert.NoError(t, o.Submit(iv.ID, "second part two"))

	assert.Eventually(t, func() bool {
		return len(sink.allReplies()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// queued fragments were joined into a single follow-up turn
	assert.Equal(t, 2, provider.callCount())
	msgs, err := messages.ListByInterview(iv.ID)
	assert.NoError(t, err)
	assert.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second part one second part two", msgs[2].Content)
}

func TestProviderFailureReleasesLock(t *testing.T) {
	provider := &fakeProvider{err: &llm.ProviderError{Provider: "fake", Code: llm.ErrCodeServiceDown, Message: "down"}}
	o, messages := newTestOrchestrator(t, provider)
	iv := testInterview()
	sink := &fakeSink{}

	assert.NoError(t, o.Register(iv, sink))
	defer o.Unregister(iv.ID)

	assert.NoError(t, o.Submit(iv.ID, "hello"))
	assert.Eventually(t, func() bool {
		return len(sink.allErrors()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, llm.ErrCodeServiceDown, sink.allErrors()[0])

	// the failed turn left no assistant message behind
	msgs, err := messages.ListByInterview(iv.ID)
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)

	// the lock is free again: recovery retries the same utterance
	provider.mu.Lock()
	provider.err = nil
	provider.mu.Unlock()

	assert.NoError(t, o.Submit(iv.ID, "hello again"))
	assert.Eventually(t, func() bool {
		return len(sink.allReplies()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWatchdogForcesLockRelease(t *testing.T) {
	provider := &fakeProvider{delay: 10 * time.Second}
	o, _ := newTestOrchestrator(t, provider)
	o.lockWatchdog = 50 * time.Millisecond
	iv := testInterview()
	sink := &fakeSink{}

	assert.NoError(t, o.Register(iv, sink))
	defer o.Unregister(iv.ID)

	assert.NoError(t, o.Submit(iv.ID, "hello"))
	assert.Eventually(t, func() bool {
		for _, code := range sink.allErrors() {
			if code == "lock_timeout" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// a fresh turn can acquire the lock after the forced release
	o.mu.Lock()
	processing := o.sessions[iv.ID].processing
	o.mu.Unlock()
	assert.False(t, processing)
}

func TestContextWindowIsBounded(t *testing.T) {
	provider := &fakeProvider{}
	o, _ := newTestOrchestrator(t, provider)
	o.maxExchanges = 2
	iv := testInterview()

	for i := 0; i < 5; i++ {
		_, err := o.TakeTurn(context.Background(), iv, fmt.Sprintf("message %d", i))
		assert.NoError(t, err)
	}

	provider.mu.Lock()
	last := provider.calls[len(provider.calls)-1]
	provider.mu.Unlock()
	assert.LessOrEqual(t, len(last), 4)
}

func TestReconnectKeepsSingleTurnInFlight(t *testing.T) {
	provider := &fakeProvider{delay: 150 * time.Millisecond}
	o, messages := newTestOrchestrator(t, provider)
	iv := testInterview()

	first := &fakeSink{}
	assert.NoError(t, o.Register(iv, first))
	assert.NoError(t, o.Submit(iv.ID, "before reconnect"))
	assert.Eventually(t, func() bool {
		return provider.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	// the client reconnects while the first turn is still running; the
	// replacement connection must not get a lock of its own
	second := &fakeSink{}
	assert.NoError(t, o.Register(iv, second))
	assert.NoError(t, o.Submit(iv.ID, "after reconnect"))
	defer o.Unregister(iv.ID)

	assert.Eventually(t, func() bool {
		return len(second.allReplies()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, provider.maxConcurrent())
	assert.Equal(t, 2, provider.callCount())
	assert.Empty(t, first.allReplies())

	msgs, err := messages.ListByInterview(iv.ID)
	assert.NoError(t, err)
	assert.Len(t, msgs, 4)
	assert.Equal(t, "before reconnect", msgs[0].Content)
	assert.Equal(t, "after reconnect", msgs[2].Content)
}

func TestStaleSessionDoesNotDrainQueueAfterReconnect(t *testing.T) {
	provider := &fakeProvider{delay: 150 * time.Millisecond}
	o, _ := newTestOrchestrator(t, provider)
	iv := testInterview()

	first := &fakeSink{}
	assert.NoError(t, o.Register(iv, first))
	assert.NoError(t, o.Submit(iv.ID, "running turn"))
	assert.Eventually(t, func() bool {
		return provider.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, o.Submit(iv.ID, "queued behind it"))

	// a full disconnect/reconnect cycle replaces the session object; the
	// cancelled turn's release must not process the orphaned queue
	o.Unregister(iv.ID)
	second := &fakeSink{}
	assert.NoError(t, o.Register(iv, second))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, provider.callCount())

	// the fresh session starts clean and can take turns normally
	assert.NoError(t, o.Submit(iv.ID, "fresh turn"))
	assert.Eventually(t, func() bool {
		return len(second.allReplies()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	o.Unregister(iv.ID)
}

func TestRegisterRebuildsHistoryFromTranscript(t *testing.T) {
	provider := &fakeProvider{}
	o, messages := newTestOrchestrator(t, provider)
	iv := testInterview()

	assert.NoError(t, messages.Append(&models.InterviewMessage{
		ID: uuid.New().String(), InterviewID: iv.ID, Role: models.RoleUser, Content: "earlier question",
	}))
	assert.NoError(t, messages.Append(&models.InterviewMessage{
		ID: uuid.New().String(), InterviewID: iv.ID, Role: models.RoleAssistant, Content: "earlier answer",
	}))

	sink := &fakeSink{}
	assert.NoError(t, o.Register(iv, sink))
	defer o.Unregister(iv.ID)

	o.mu.Lock()
	history := append([]llm.ChatMessage(nil), o.sessions[iv.ID].history...)
	o.mu.Unlock()
	assert.Len(t, history, 2)
	assert.Equal(t, "earlier question", history[0].Content)
}
