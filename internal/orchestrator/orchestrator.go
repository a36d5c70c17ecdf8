package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/hub"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/llm"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/metrics"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/prompts"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech"
)

const (
	// DefaultGenerationTimeout bounds one model call. A turn is aborted and
	// surfaced as an error rather than left to hang.
	DefaultGenerationTimeout = 20 * time.Second

	// DefaultLockWatchdog force-releases a turn lock that was never cleanly
	// released, e.g. after an unclean disconnect mid-turn.
	DefaultLockWatchdog = 30 * time.Second

	// DefaultMaxExchanges bounds model context to the most recent exchanges.
	DefaultMaxExchanges = 10
)

// ErrTurnInProgress is returned on the synchronous path when a turn is
// already running for the interview.
var ErrTurnInProgress = errors.New("a turn is already being processed")

// ErrNoSession is returned when no live session exists for the interview.
var ErrNoSession = errors.New("no active session for interview")

// Sink receives pipeline output for one live connection.
type Sink interface {
	SendReply(text string)
	SendAudio(frame []byte)
	SendError(code, message string)
}

// session is the in-memory per-connection state. Bounded to the connection
// lifetime and rebuilt from persisted messages on reconnect.
type session struct {
	interview    *models.Interview
	systemPrompt string
	history      []llm.ChatMessage
	sink         Sink

	processing bool
	queued     string
	turnSeq    uint64
	watchdog   *time.Timer
	cancelTurn context.CancelFunc
}

// Orchestrator is the turn-taking engine: at most one in-flight model call
// per interview, message order equal to lock-acquisition order.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*session

	messages  *repositories.MessageRepository
	provider  llm.Provider
	promptMgr *prompts.Manager
	synth     speech.Synthesizer
	hub       *hub.Hub
	logger    *zap.Logger

	genTimeout   time.Duration
	lockWatchdog time.Duration
	maxExchanges int
}

func New(
	messages *repositories.MessageRepository,
	provider llm.Provider,
	promptMgr *prompts.Manager,
	synth speech.Synthesizer,
	h *hub.Hub,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:     make(map[string]*session),
		messages:     messages,
		provider:     provider,
		promptMgr:    promptMgr,
		synth:        synth,
		hub:          h,
		logger:       logger,
		genTimeout:   DefaultGenerationTimeout,
		lockWatchdog: DefaultLockWatchdog,
		maxExchanges: DefaultMaxExchanges,
	}
}

// Register creates (or rebuilds) the session for a live connection. History
// is reloaded from the persisted transcript so reconnects resume cleanly.
func (o *Orchestrator) Register(iv *models.Interview, sink Sink) error {
	systemPrompt, err := o.buildSystemPrompt(iv)
	if err != nil {
		return err
	}

	msgs, err := o.messages.ListByInterview(iv.ID)
	if err != nil {
		return err
	}
	history := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			continue
		}
		history = append(history, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.sessions[iv.ID]; ok {
		// Reconnect for an interview that already has a session. The lock
		// state carries over: if a turn is still in flight it stays the only
		// one, and its output is redirected to the new connection.
		prev.sink = sink
		if !prev.processing {
			prev.interview = iv
			prev.systemPrompt = systemPrompt
			prev.history = history
		}
		return nil
	}
	o.sessions[iv.ID] = &session{
		interview:    iv,
		systemPrompt: systemPrompt,
		history:      history,
		sink:         sink,
	}
	return nil
}

// Unregister tears a session down. Any in-flight turn is cancelled and the
// lock released so the interview is never left permanently locked.
func (o *Orchestrator) Unregister(interviewID string) {
	o.mu.Lock()
	sess, ok := o.sessions[interviewID]
	if ok {
		if sess.cancelTurn != nil {
			sess.cancelTurn()
		}
		if sess.watchdog != nil {
			sess.watchdog.Stop()
		}
		delete(o.sessions, interviewID)
	}
	o.mu.Unlock()
}

// Submit hands one completed utterance to the engine. If a turn is already
// running the utterance is appended to the queue, never dropped and never
// processed concurrently.
func (o *Orchestrator) Submit(interviewID, utterance string) error {
	o.mu.Lock()
	sess, ok := o.sessions[interviewID]
	if !ok {
		o.mu.Unlock()
		return ErrNoSession
	}
	if sess.processing {
		if sess.queued == "" {
			sess.queued = utterance
		} else {
			sess.queued += " " + utterance
		}
		o.mu.Unlock()
		return nil
	}
	seq := o.acquireLocked(sess)
	o.mu.Unlock()

	go o.runTurn(sess, seq, utterance, nil)
	return nil
}

// TakeTurn runs one synchronous turn for the text path and returns the
// assistant reply. Concurrent calls for the same interview fail with
// ErrTurnInProgress instead of queueing, so the caller can retry.
func (o *Orchestrator) TakeTurn(ctx context.Context, iv *models.Interview, utterance string) (string, error) {
	o.mu.Lock()
	sess, ok := o.sessions[iv.ID]
	if !ok {
		systemPrompt, err := o.buildSystemPrompt(iv)
		if err != nil {
			o.mu.Unlock()
			return "", err
		}
		msgs, err := o.messages.ListByInterview(iv.ID)
		if err != nil {
			o.mu.Unlock()
			return "", err
		}
		history := make([]llm.ChatMessage, 0, len(msgs))
		for _, m := range msgs {
			if m.Role == models.RoleSystem {
				continue
			}
			history = append(history, llm.ChatMessage{Role: m.Role, Content: m.Content})
		}
		sess = &session{interview: iv, systemPrompt: systemPrompt, history: history}
		o.sessions[iv.ID] = sess
	}
	if sess.processing {
		o.mu.Unlock()
		return "", ErrTurnInProgress
	}
	seq := o.acquireLocked(sess)
	o.mu.Unlock()

	reply := make(chan string, 1)
	errc := make(chan error, 1)
	go o.runTurn(sess, seq, utterance, func(text string, err error) {
		if err != nil {
			errc <- err
			return
		}
		reply <- text
	})

	select {
	case r := <-reply:
		return r, nil
	case err := <-errc:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// acquireLocked marks the session processing and arms the lock watchdog.
// Callers hold o.mu.
func (o *Orchestrator) acquireLocked(sess *session) uint64 {
	sess.processing = true
	sess.turnSeq++
	seq := sess.turnSeq
	sess.watchdog = time.AfterFunc(o.lockWatchdog, func() {
		o.watchdogFired(sess, seq)
	})
	return seq
}

// currentSink reads the session's sink, which a reconnect may have swapped.
func (o *Orchestrator) currentSink(sess *session) Sink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sess.sink
}

// watchdogFired force-releases a lock held past the watchdog deadline.
func (o *Orchestrator) watchdogFired(sess *session, seq uint64) {
	o.mu.Lock()
	stale := sess.processing && sess.turnSeq == seq
	cancel := sess.cancelTurn
	sink := sess.sink
	o.mu.Unlock()
	if !stale {
		return
	}

	o.logger.Warn("turn lock watchdog fired, forcing release",
		zap.String("interview_id", sess.interview.ID))
	if cancel != nil {
		cancel()
	}
	if sink != nil {
		sink.SendError("lock_timeout", "The previous turn timed out. Please try again.")
	}
	o.release(sess, seq)
}

func (o *Orchestrator) runTurn(sess *session, seq uint64, utterance string, done func(string, error)) {
	start := time.Now()
	turnCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	sess.cancelTurn = cancel
	o.mu.Unlock()
	defer cancel()

	reply, err := o.executeTurn(turnCtx, sess, utterance)
	sink := o.currentSink(sess)
	if err != nil {
		o.logger.Error("turn failed",
			zap.String("interview_id", sess.interview.ID), zap.Error(err))
		if sink != nil {
			sink.SendError(providerErrorCode(err), "Failed to generate a response. Please try again.")
		}
		o.release(sess, seq)
		if done != nil {
			done("", err)
		}
		return
	}

	if sink != nil {
		sink.SendReply(reply)
	}
	if sess.interview.Type == models.TypeVoice && o.synth != nil {
		o.streamSpeech(turnCtx, sess, sink, reply)
	}

	o.hub.BroadcastInterview(sess.interview.ID, sess.interview.RecruiterID, "interview:message",
		map[string]interface{}{
			"interviewId": sess.interview.ID,
			"user":        utterance,
			"assistant":   reply,
		})

	metrics.ObserveTurn(time.Since(start))
	o.release(sess, seq)
	if done != nil {
		done(reply, nil)
	}
}

// executeTurn persists the utterance, runs one bounded model call and
// persists the reply. Strict write order keeps the transcript equal to
// lock-acquisition order.
func (o *Orchestrator) executeTurn(ctx context.Context, sess *session, utterance string) (string, error) {
	userMsg := &models.InterviewMessage{
		ID:          uuid.New().String(),
		InterviewID: sess.interview.ID,
		Role:        models.RoleUser,
		Content:     utterance,
	}
	if err := o.messages.Append(userMsg); err != nil {
		return "", err
	}

	o.mu.Lock()
	sess.history = append(sess.history, llm.ChatMessage{Role: models.RoleUser, Content: utterance})
	window := o.contextWindowLocked(sess)
	o.mu.Unlock()

	genCtx, cancel := context.WithTimeout(ctx, o.genTimeout)
	defer cancel()

	reply, err := o.provider.GenerateReply(genCtx, sess.systemPrompt, window)
	if err != nil {
		// No automatic retry mid-conversation: the lock is released and the
		// candidate resends.
		return "", err
	}

	assistantMsg := &models.InterviewMessage{
		ID:          uuid.New().String(),
		InterviewID: sess.interview.ID,
		Role:        models.RoleAssistant,
		Content:     reply,
	}
	if err := o.messages.Append(assistantMsg); err != nil {
		return "", err
	}

	o.mu.Lock()
	sess.history = append(sess.history, llm.ChatMessage{Role: models.RoleAssistant, Content: reply})
	o.mu.Unlock()

	return reply, nil
}

// contextWindowLocked returns the bounded model context. Callers hold o.mu.
func (o *Orchestrator) contextWindowLocked(sess *session) []llm.ChatMessage {
	limit := o.maxExchanges * 2
	if len(sess.history) <= limit {
		return append([]llm.ChatMessage(nil), sess.history...)
	}
	return append([]llm.ChatMessage(nil), sess.history[len(sess.history)-limit:]...)
}

func (o *Orchestrator) streamSpeech(ctx context.Context, sess *session, sink Sink, text string) {
	frames := make(chan []byte, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- o.synth.Synthesize(ctx, text, frames)
		close(frames)
	}()

	for frame := range frames {
		if sink != nil {
			sink.SendAudio(frame)
		}
	}
	if err := <-errc; err != nil && ctx.Err() == nil {
		o.logger.Warn("speech synthesis failed",
			zap.String("interview_id", sess.interview.ID), zap.Error(err))
		if sink != nil {
			sink.SendError("synthesis_failed", "Audio synthesis failed; the reply was delivered as text.")
		}
	}
}

// release clears the lock and immediately starts the next queued turn, if
// any. Still one turn at a time.
func (o *Orchestrator) release(sess *session, seq uint64) {
	o.mu.Lock()
	if sess.turnSeq != seq || !sess.processing {
		o.mu.Unlock()
		return
	}
	sess.processing = false
	sess.cancelTurn = nil
	if sess.watchdog != nil {
		sess.watchdog.Stop()
		sess.watchdog = nil
	}
	next := sess.queued
	sess.queued = ""
	if next == "" {
		o.mu.Unlock()
		return
	}
	// Drain only if this session is still the live one for the interview.
	// After an unregister/reconnect cycle the replacement owns the queue.
	if o.sessions[sess.interview.ID] != sess {
		o.mu.Unlock()
		return
	}
	nextSeq := o.acquireLocked(sess)
	o.mu.Unlock()

	go o.runTurn(sess, nextSeq, next, nil)
}

func (o *Orchestrator) buildSystemPrompt(iv *models.Interview) (string, error) {
	candidateName := "the candidate"
	if iv.CandidateName != nil && *iv.CandidateName != "" {
		candidateName = *iv.CandidateName
	}
	company := iv.Company
	if company == "" {
		company = "the hiring company"
	}
	return o.promptMgr.BuildPrompt("interviewer", map[string]string{
		"JobRole":        iv.JobRole,
		"JobDescription": iv.JobDescription,
		"Company":        company,
		"CandidateName":  candidateName,
	})
}

func providerErrorCode(err error) string {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return "provider_failure"
}
