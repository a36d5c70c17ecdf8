package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Notifier dispatches candidate invitations and recruiter updates.
// Fire-and-forget: delivery failures are logged, never propagated.
type Notifier struct {
	logger *zap.Logger
	client *http.Client
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger, client: http.DefaultClient}
}

// SendInvite emails the candidate their interview link in the background.
func (n *Notifier) SendInvite(email, candidateName, jobRole, link string) {
	go func() {
		name := candidateName
		if name == "" {
			name = "there"
		}
		body := fmt.Sprintf(
			"Hi %s,\n\nYou have been invited to an AI-led interview for the role of %s.\n\nJoin here: %s\n\nThe link expires; please complete the interview before then.\n",
			name, jobRole, link)
		if err := SendEmail(email, "Your interview invitation", body); err != nil {
			n.logger.Warn("invite email failed", zap.String("email", email), zap.Error(err))
		}
	}()
}

// SendCompletionNotice emails the recruiter when an interview finishes.
func (n *Notifier) SendCompletionNotice(recruiterEmail, candidateEmail, jobRole string) {
	go func() {
		body := fmt.Sprintf(
			"The interview with %s for the role of %s has been completed.\nLog in to review the transcript and evaluation.\n",
			candidateEmail, jobRole)
		if err := SendEmail(recruiterEmail, "Interview completed", body); err != nil {
			n.logger.Warn("completion email failed", zap.String("email", recruiterEmail), zap.Error(err))
		}
	}()
}

// SendWhatsApp posts an invitation through the configured WhatsApp gateway.
// Delivery status callbacks arrive via webhook elsewhere.
func (n *Notifier) SendWhatsApp(phone, message string) {
	endpoint := os.Getenv("WHATSAPP_API_URL")
	token := os.Getenv("WHATSAPP_API_TOKEN")
	if endpoint == "" || token == "" {
		return
	}
	go func() {
		payload, err := json.Marshal(map[string]string{
			"to":   phone,
			"body": message,
		})
		if err != nil {
			return
		}
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("whatsapp dispatch failed", zap.Error(err))
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.logger.Warn("whatsapp dispatch rejected", zap.Int("status", resp.StatusCode))
		}
	}()
}
