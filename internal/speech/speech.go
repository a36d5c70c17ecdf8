package speech

import (
	"context"
	"fmt"
)

// TranscriptEvent is one fragment from a streaming speech-to-text provider.
type TranscriptEvent struct {
	Transcript string
	IsFinal    bool
	Confidence float64
}

// Recognizer is the streaming speech-to-text contract. Stream consumes raw
// audio chunks and emits transcript events until the audio channel closes
// or the context is cancelled.
type Recognizer interface {
	Stream(ctx context.Context, audio <-chan []byte, events chan<- TranscriptEvent) error
	Name() string
}

// Synthesizer is the text-to-speech contract. Synthesize emits audio frames
// on the channel as they arrive from the provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, frames chan<- []byte) error
	Name() string
}

type RecognizerFactory func() (Recognizer, error)
type SynthesizerFactory func() (Synthesizer, error)

var (
	recognizers  = make(map[string]RecognizerFactory)
	synthesizers = make(map[string]SynthesizerFactory)
)

func RegisterRecognizer(name string, factory RecognizerFactory) {
	recognizers[name] = factory
}

func RegisterSynthesizer(name string, factory SynthesizerFactory) {
	synthesizers[name] = factory
}

// NewRecognizer resolves a provider by name. Called once at startup from
// validated configuration; the choice is never re-checked per call.
func NewRecognizer(name string) (Recognizer, error) {
	factory, exists := recognizers[name]
	if !exists {
		return nil, fmt.Errorf("unsupported speech-to-text provider: %s", name)
	}
	return factory()
}

func NewSynthesizer(name string) (Synthesizer, error) {
	factory, exists := synthesizers[name]
	if !exists {
		return nil, fmt.Errorf("unsupported text-to-speech provider: %s", name)
	}
	return factory()
}
