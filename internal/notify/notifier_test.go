package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSendWhatsAppPostsToGateway(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan map[string]string, 1)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- r
		bodies <- body
	}))
	defer gateway.Close()
	t.Setenv("WHATSAPP_API_URL", gateway.URL)
	t.Setenv("WHATSAPP_API_TOKEN", "gw-secret")

	n := NewNotifier(zap.NewNop())
	n.SendWhatsApp("+6581234567", "your interview link")

	select {
	case r := <-received:
		assert.Equal(t, "Bearer gw-secret", r.Header.Get("Authorization"))
		body := <-bodies
		assert.Equal(t, "+6581234567", body["to"])
		assert.Equal(t, "your interview link", body["body"])
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never received the dispatch")
	}
}

func TestLoadSMTPDefaults(t *testing.T) {
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("SMTP_USER", "mailer")
	t.Setenv("SMTP_PASS", "hunter2")
	t.Setenv("SMTP_FROM", "")

	cfg, err := loadSMTP()
	assert.NoError(t, err)
	assert.Equal(t, "587", cfg.port)
	assert.Equal(t, "mailer", cfg.from)
}

func TestLoadSMTPRequiresCredentials(t *testing.T) {
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASS", "")

	_, err := loadSMTP()
	assert.Error(t, err)
}
