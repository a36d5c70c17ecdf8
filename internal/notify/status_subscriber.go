package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/hub"
)

// StatusEvent is the shape posted by notification delivery webhooks
// (email/WhatsApp gateways) onto the status channel.
type StatusEvent struct {
	InterviewID string `json:"interviewId"`
	RecruiterID string `json:"recruiterId"`
	Channel     string `json:"channel"` // "email" or "whatsapp"
	Status      string `json:"status"`  // "delivered", "read", "failed", ...
}

// StatusSubscriber relays delivery-status signals from the webhook intake
// onto the recruiter's live channel.
type StatusSubscriber struct {
	rdb    *redis.Client
	hub    *hub.Hub
	logger *zap.Logger
}

func NewStatusSubscriber(rdb *redis.Client, h *hub.Hub, logger *zap.Logger) *StatusSubscriber {
	return &StatusSubscriber{rdb: rdb, hub: h, logger: logger}
}

// Subscribe listens for notification status events until ctx is cancelled.
func (s *StatusSubscriber) Subscribe(ctx context.Context) {
	subscriber := s.rdb.Subscribe(ctx, "notification_status")
	defer subscriber.Close()
	ch := subscriber.Channel()

	s.logger.Info("subscribed to notification status events")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("failed to unmarshal status event", zap.Error(err))
				continue
			}
			s.hub.Broadcast(hub.UserChannel(event.RecruiterID), hub.Event{
				Type:    "notification:status",
				Payload: event,
			})
		}
	}
}
