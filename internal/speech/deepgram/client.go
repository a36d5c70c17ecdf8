package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech"
)

const (
	listenURL = "wss://api.deepgram.com/v1/listen?model=nova-2&interim_results=true&smart_format=true"
	speakURL  = "https://api.deepgram.com/v1/speak?model=aura-asteria-en"
)

type Config struct {
	APIKey string
}

func NewConfig() (*Config, error) {
	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		return nil, errors.New("DEEPGRAM_API_KEY environment variable is required")
	}
	return &Config{APIKey: apiKey}, nil
}

// Recognizer streams audio to Deepgram's live transcription endpoint.
type Recognizer struct {
	config *Config
	dial   func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)
}

func NewRecognizer(config *Config) *Recognizer {
	return &Recognizer{
		config: config,
		dial: func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
			return conn, err
		},
	}
}

func (r *Recognizer) Name() string { return "deepgram" }

// listen result payload, trimmed to the fields the pipeline needs
type listenResult struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r *Recognizer) Stream(ctx context.Context, audio <-chan []byte, events chan<- speech.TranscriptEvent) error {
	header := http.Header{"Authorization": {"Token " + r.config.APIKey}}
	conn, err := r.dial(ctx, listenURL, header)
	if err != nil {
		return fmt.Errorf("deepgram dial failed: %w", err)
	}
	defer conn.Close()

	writeErr := make(chan error, 1)
	go func() {
		defer close(writeErr)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-audio:
				if !ok {
					// Signal end of audio so the server flushes final results.
					_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
					return
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case werr, ok := <-writeErr:
				if ok && werr != nil {
					return fmt.Errorf("deepgram write failed: %w", werr)
				}
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("deepgram read failed: %w", err)
		}

		var result listenResult
		if err := json.Unmarshal(payload, &result); err != nil {
			continue
		}
		if len(result.Channel.Alternatives) == 0 {
			continue
		}
		alt := result.Channel.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" && !result.IsFinal {
			continue
		}
		select {
		case events <- speech.TranscriptEvent{
			Transcript: alt.Transcript,
			IsFinal:    result.IsFinal,
			Confidence: alt.Confidence,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Synthesizer streams Deepgram Aura TTS audio.
type Synthesizer struct {
	config *Config
	client *http.Client
}

func NewSynthesizer(config *Config) *Synthesizer {
	return &Synthesizer{config: config, client: http.DefaultClient}
}

func (s *Synthesizer) Name() string { return "deepgram" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string, frames chan<- []byte) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deepgram speak request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deepgram speak returned status %d", resp.StatusCode)
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			select {
			case frames <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("deepgram speak stream failed: %w", err)
		}
	}
}

func init() {
	speech.RegisterRecognizer("deepgram", func() (speech.Recognizer, error) {
		config, err := NewConfig()
		if err != nil {
			return nil, err
		}
		return NewRecognizer(config), nil
	})
	speech.RegisterSynthesizer("deepgram", func() (speech.Synthesizer, error) {
		config, err := NewConfig()
		if err != nil {
			return nil, err
		}
		return NewSynthesizer(config), nil
	})
}
