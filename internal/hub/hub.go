package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const fanoutChannel = "hub:events"

// ErrUnauthorizedChannel is returned when a join request fails the
// ownership check. Cross-interview joins are rejected, never redirected.
var ErrUnauthorizedChannel = errors.New("not authorized for channel")

// Identity kinds connecting to the hub.
const (
	KindUser      = "user"      // authenticated platform user
	KindCandidate = "candidate" // interview-token holder
)

// RoleAdmin may join any interview channel.
const RoleAdmin = "ADMIN"

// Identity describes who a connection belongs to.
type Identity struct {
	Kind        string
	UserID      string
	Role        string
	InterviewID string
}

// UserChannel is the personal channel for a platform user.
func UserChannel(userID string) string { return "user:" + userID }

// InterviewChannel is the per-interview channel candidates and observers share.
func InterviewChannel(interviewID string) string { return "interview:" + interviewID }

// OwnershipChecker answers whether a platform user owns an interview.
type OwnershipChecker interface {
	OwnsInterview(userID, interviewID string) (bool, error)
}

// fanoutEnvelope carries an event between service instances over Redis.
type fanoutEnvelope struct {
	InstanceID string    `json:"instanceId"`
	Channel    string    `json:"channel"`
	Event      Event     `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hub is the room-based broadcast layer. Constructed once at process start
// and passed by reference to everything that broadcasts.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]struct{}
	members    map[*Client]map[string]struct{}
	identities map[*Client]Identity

	checker    OwnershipChecker
	rdb        *redis.Client
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger
}

func NewHub(checker OwnershipChecker, rdb *redis.Client, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		members:    make(map[*Client]map[string]struct{}),
		identities: make(map[*Client]Identity),
		checker:    checker,
		rdb:        rdb,
		instanceID: uuid.New().String(),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
	if rdb != nil {
		go h.subscribeFanout()
	}
	return h
}

// Connect registers a client and auto-joins its personal channel: a user
// channel for platform users, the interview channel for token holders.
func (h *Hub) Connect(c *Client, id Identity) {
	h.mu.Lock()
	h.identities[c] = id
	h.members[c] = make(map[string]struct{})
	h.mu.Unlock()

	switch id.Kind {
	case KindUser:
		h.joinLocked(c, UserChannel(id.UserID))
	case KindCandidate:
		h.joinLocked(c, InterviewChannel(id.InterviewID))
	}
}

// Join validates an explicit channel-join request before granting it.
func (h *Hub) Join(c *Client, channel string) error {
	h.mu.RLock()
	id, ok := h.identities[c]
	h.mu.RUnlock()
	if !ok {
		return ErrUnauthorizedChannel
	}

	if err := h.authorize(id, channel); err != nil {
		return err
	}
	h.joinLocked(c, channel)
	return nil
}

func (h *Hub) authorize(id Identity, channel string) error {
	switch id.Kind {
	case KindCandidate:
		// A token holder is locked to its own interview channel.
		if channel != InterviewChannel(id.InterviewID) {
			return ErrUnauthorizedChannel
		}
		return nil
	case KindUser:
		if channel == UserChannel(id.UserID) {
			return nil
		}
		interviewID, ok := parseInterviewChannel(channel)
		if !ok {
			return ErrUnauthorizedChannel
		}
		if id.Role == RoleAdmin {
			return nil
		}
		owns, err := h.checker.OwnsInterview(id.UserID, interviewID)
		if err != nil {
			return err
		}
		if !owns {
			return ErrUnauthorizedChannel
		}
		return nil
	}
	return ErrUnauthorizedChannel
}

func parseInterviewChannel(channel string) (string, bool) {
	const prefix = "interview:"
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return "", false
	}
	return channel[len(prefix):], true
}

func (h *Hub) joinLocked(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[channel]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[channel] = room
	}
	room[c] = struct{}{}
	if m, ok := h.members[c]; ok {
		m[channel] = struct{}{}
	}
}

// Leave removes a client from one channel.
func (h *Hub) Leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveChannel(c, channel)
}

func (h *Hub) leaveChannel(c *Client, channel string) {
	if room, ok := h.rooms[channel]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, channel)
		}
	}
	if m, ok := h.members[c]; ok {
		delete(m, channel)
	}
}

// Disconnect removes a client from every channel it joined.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.members[c] {
		if room, ok := h.rooms[channel]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, channel)
			}
		}
	}
	delete(h.members, c)
	delete(h.identities, c)
}

// Broadcast delivers an event to every local member of a channel and relays
// it to other instances. At-most-once, best-effort: nothing is queued for
// disconnected clients.
func (h *Hub) Broadcast(channel string, ev Event) {
	ev.Channel = channel
	h.deliverLocal(channel, ev)

	if h.rdb == nil {
		return
	}
	envelope := fanoutEnvelope{
		InstanceID: h.instanceID,
		Channel:    channel,
		Event:      ev,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to marshal fanout envelope", zap.Error(err))
		return
	}
	if err := h.rdb.Publish(h.ctx, fanoutChannel, data).Err(); err != nil {
		h.logger.Warn("fanout publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

// BroadcastInterview sends a lifecycle event to the interview channel and
// the owning recruiter's personal channel.
func (h *Hub) BroadcastInterview(interviewID, recruiterID string, event string, payload interface{}) {
	ev := Event{Type: event, Payload: payload}
	h.Broadcast(InterviewChannel(interviewID), ev)
	h.Broadcast(UserChannel(recruiterID), ev)
}

func (h *Hub) deliverLocal(channel string, ev Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[channel]))
	for c := range h.rooms[channel] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(ev)
	}
}

// subscribeFanout applies events published by other service instances.
func (h *Hub) subscribeFanout() {
	pubsub := h.rdb.Subscribe(h.ctx, fanoutChannel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				h.logger.Warn("failed to unmarshal fanout envelope", zap.Error(err))
				continue
			}
			if envelope.InstanceID == h.instanceID {
				continue
			}
			h.deliverLocal(envelope.Channel, envelope.Event)
		}
	}
}

// MemberCount reports how many clients are in a channel on this instance.
func (h *Hub) MemberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channel])
}

// Close stops the fanout subscriber.
func (h *Hub) Close() {
	h.cancel()
}
