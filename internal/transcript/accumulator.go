package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech"
)

const (
	// DefaultDebounce is the quiet period after the last final fragment
	// before the accumulated transcript is handed off as one utterance.
	DefaultDebounce = 1000 * time.Millisecond

	// MinConfidence is the floor below which fragments are discarded as noise.
	MinConfidence = 0.6
)

// Accumulator buffers partial speech-to-text fragments into coherent
// utterances. Interim fragments are surfaced for display only; final
// fragments accumulate until a debounce window of silence elapses.
type Accumulator struct {
	mu          sync.Mutex
	pending     string
	timer       *time.Timer
	debounce    time.Duration
	onUtterance func(string)
	onInterim   func(string)
	stopped     bool
}

func NewAccumulator(debounce time.Duration, onUtterance func(string), onInterim func(string)) *Accumulator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Accumulator{
		debounce:    debounce,
		onUtterance: onUtterance,
		onInterim:   onInterim,
	}
}

// Ingest processes one provider fragment.
func (a *Accumulator) Ingest(ev speech.TranscriptEvent) {
	if ev.Confidence < MinConfidence {
		return
	}

	if !ev.IsFinal {
		if a.onInterim != nil && strings.TrimSpace(ev.Transcript) != "" {
			a.onInterim(ev.Transcript)
		}
		return
	}

	text := strings.TrimSpace(ev.Transcript)
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	if a.pending == "" {
		a.pending = text
	} else {
		a.pending += " " + text
	}

	if a.timer == nil {
		a.timer = time.AfterFunc(a.debounce, a.flush)
	} else {
		a.timer.Reset(a.debounce)
	}
}

// flush hands the accumulated transcript off and resets the buffer. An
// empty or whitespace-only accumulation is silently discarded.
func (a *Accumulator) flush() {
	a.mu.Lock()
	utterance := strings.TrimSpace(a.pending)
	a.pending = ""
	stopped := a.stopped
	a.mu.Unlock()

	if stopped || utterance == "" {
		return
	}
	a.onUtterance(utterance)
}

// Flush forces an immediate hand-off, used on connection teardown so a
// trailing utterance is not lost.
func (a *Accumulator) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	a.flush()
}

// Stop discards pending state and prevents further hand-offs.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.pending = ""
	if a.timer != nil {
		a.timer.Stop()
	}
}
