package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`  // Event topic, e.g. "pass.completed", or "*" for everything
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // Event topic, "subscribed", "unsubscribed" or "error"
	Payload interface{} `json:"payload"` // Event-specific data
}

// topicSubscriptions tracks which event topics a client asked for.
type topicSubscriptions struct {
	mu     sync.RWMutex
	topics map[string]bool
}

func newTopicSubscriptions() *topicSubscriptions {
	return &topicSubscriptions{topics: make(map[string]bool)}
}

func (s *topicSubscriptions) Subscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = true
}

func (s *topicSubscriptions) Unsubscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)
}

func (s *topicSubscriptions) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.topics["*"] {
		return true
	}
	return s.topics[topic]
}

// TopicFromChannel maps a Redis channel name to its client-facing topic
// ("assetx:pass.completed" -> "pass.completed"). Exported for testing.
func TopicFromChannel(channel string) string {
	if !strings.HasPrefix(channel, "assetx:") {
		return ""
	}
	return strings.TrimPrefix(channel, "assetx:")
}

// HandleWebSocket upgrades the HTTP connection and streams pipeline events.
//
// Protocol:
// Client sends: {"action": "subscribe", "topic": "pass.completed"}
// Client sends: {"action": "subscribe", "topic": "*"}
// Client sends: {"action": "unsubscribe", "topic": "pass.completed"}
//
// Server sends:
// - {"type": "pass.completed", "payload": {...}}
// - {"type": "project.discovered", "payload": {...}}
// - {"type": "refresh.completed", "payload": {...}}
// - {"type": "subscribed", "payload": {"topic": "..."}}
// - {"type": "error", "payload": {"message": "..."}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(err))
		}
	}()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newTopicSubscriptions()
	send := make(chan ServerMessage, 256)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r, "redis subscriber")
		c.forwardEvents(ctx, send, subs)
	}()
	go func() {
		defer wg.Done()
		defer c.recoverWS(cancel, r, "message writer")
		c.writeMessages(ctx, conn, send)
	}()

	// Blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverWS(cancel context.CancelFunc, r *http.Request, where string) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket goroutine",
			zap.String("goroutine", where),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", r.RemoteAddr))
		cancel()
	}
}

// forwardEvents bridges Redis Pub/Sub to the client's send channel with
// automatic resubscription. Events are filtered server-side by topic.
func (c *Controller) forwardEvents(ctx context.Context, send chan<- ServerMessage, subs *topicSubscriptions) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := c.App.RedisClient.PSubscribe(ctx, "assetx:*")
		ch := pubsub.Channel()

	recv:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				backoff = time.Second

				topic := TopicFromChannel(msg.Channel)
				if topic == "" || !subs.IsSubscribed(topic) {
					continue
				}

				var payload map[string]interface{}
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					c.App.Logger.Error("Failed to parse event payload",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}

				select {
				case send <- ServerMessage{Type: topic, Payload: payload}:
				case <-ctx.Done():
					_ = pubsub.Close()
					return
				}
			}
		}

		_ = pubsub.Close()
		c.App.Logger.Warn("Event subscription lost, retrying",
			zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// writeMessages drains the send channel into the connection and keeps it
// alive with periodic pings.
func (c *Controller) writeMessages(ctx context.Context, conn *websocket.Conn, send <-chan ServerMessage) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		case msg, ok := <-send:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				c.App.Logger.Error("Failed to write WebSocket message", zap.Error(err))
				return
			}
		}
	}
}

// readClientMessages reads subscription requests until the client goes away.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *topicSubscriptions, send chan<- ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.App.Logger.Error("WebSocket read error", zap.Error(err))
				}
				cancel()
				return
			}
			if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
				c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
				return
			}

			switch msg.Action {
			case "subscribe":
				if msg.Topic == "" {
					send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "topic is required"}}
					continue
				}
				subs.Subscribe(msg.Topic)
				c.App.Logger.Debug("Client subscribed", zap.String("topic", msg.Topic))
				send <- ServerMessage{Type: "subscribed", Payload: map[string]string{"topic": msg.Topic}}

			case "unsubscribe":
				if msg.Topic == "" {
					send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "topic is required"}}
					continue
				}
				subs.Unsubscribe(msg.Topic)
				c.App.Logger.Debug("Client unsubscribed", zap.String("topic", msg.Topic))
				send <- ServerMessage{Type: "unsubscribed", Payload: map[string]string{"topic": msg.Topic}}

			default:
				send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
			}
		}
	}
}
