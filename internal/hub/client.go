package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one frame relayed to connected clients.
type Event struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

type Client struct {
	Conn *websocket.Conn
	mu   sync.Mutex
	hook func(Event)
}

func NewClient(conn *websocket.Conn) *Client { return &Client{Conn: conn} }

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(Event)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send delivers one event, best-effort. Write errors are ignored; a client
// that misses events re-fetches state from the persisted message log.
func (c *Client) Send(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(ev)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(ev)
}
