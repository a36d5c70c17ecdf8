package cartesia

import (
	"bytes"
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
	sttURL = "wss://api.cartesia.ai/stt/websocket?model=ink-whisper&encoding=pcm_s16le&sample_rate=16000"
	ttsURL = "https://api.cartesia.ai/tts/bytes"
)

type Config struct {
	APIKey string
	Voice  string
}

func NewConfig() (*Config, error) {
	apiKey := os.Getenv("CARTESIA_API_KEY")
	if apiKey == "" {
		return nil, errors.New("CARTESIA_API_KEY environment variable is required")
	}
	voice := os.Getenv("CARTESIA_VOICE_ID")
	if voice == "" {
		voice = "a0e99841-438c-4a64-b679-ae501e7d6091" // default voice
	}
	return &Config{APIKey: apiKey, Voice: voice}, nil
}

// Recognizer streams audio to Cartesia's websocket transcription endpoint.
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

func (r *Recognizer) Name() string { return "cartesia" }

type sttMessage struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	IsFinal     bool    `json:"is_final"`
	Probability float64 `json:"probability"`
}

func (r *Recognizer) Stream(ctx context.Context, audio <-chan []byte, events chan<- speech.TranscriptEvent) error {
	header := http.Header{"X-API-Key": {r.config.APIKey}}
	conn, err := r.dial(ctx, sttURL, header)
	if err != nil {
		return fmt.Errorf("cartesia dial failed: %w", err)
	}
	defer conn.Close()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-audio:
				if !ok {
					_ = conn.WriteMessage(websocket.TextMessage, []byte("finalize"))
					return
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
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
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("cartesia read failed: %w", err)
		}

		var msg sttMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.Type == "done" {
			return nil
		}
		if msg.Type != "transcript" || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		select {
		case events <- speech.TranscriptEvent{
			Transcript: msg.Text,
			IsFinal:    msg.IsFinal,
			Confidence: msg.Probability,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Synthesizer streams Cartesia Sonic TTS audio.
type Synthesizer struct {
	config *Config
	client *http.Client
}

func NewSynthesizer(config *Config) *Synthesizer {
	return &Synthesizer{config: config, client: http.DefaultClient}
}

func (s *Synthesizer) Name() string { return "cartesia" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string, frames chan<- []byte) error {
	payload := map[string]interface{}{
		"model_id":   "sonic-2",
		"transcript": text,
		"voice":      map[string]string{"mode": "id", "id": s.config.Voice},
		"output_format": map[string]interface{}{
			"container":   "raw",
			"encoding":    "pcm_s16le",
			"sample_rate": 16000,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ttsURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", s.config.APIKey)
	req.Header.Set("Cartesia-Version", "2024-11-13")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("cartesia tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cartesia tts returned status %d", resp.StatusCode)
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
			return fmt.Errorf("cartesia tts stream failed: %w", err)
		}
	}
}

func init() {
	speech.RegisterRecognizer("cartesia", func() (speech.Recognizer, error) {
		config, err := NewConfig()
		if err != nil {
			return nil, err
		}
		return NewRecognizer(config), nil
	})
	speech.RegisterSynthesizer("cartesia", func() (speech.Synthesizer, error) {
		config, err := NewConfig()
		if err != nil {
			return nil, err
		}
		return NewSynthesizer(config), nil
	})
}
