// internal/messaging/client.go

package messaging

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/heartwing-backend/internal/common/apperrors"
	"github.com/imadgeboyega/heartwing-backend/internal/dating"
)

// requestTimeout bounds one inbound frame's service call
const requestTimeout = 15 * time.Second

// Client represents a websocket client
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   int64
	service  dating.Service
	sessions *SessionBuffer

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64, service dating.Service, sessions *SessionBuffer) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, maxQueuedMessages),
		userID:   userID,
		service:  service,
		sessions: sessions,
	}
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// enqueue never blocks. It reports false when the client is closed or its
// queue is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump; it is safe to call more than once
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for user %d: %v", c.userID, err)
			}
			break
		}

		// Frames are handled in order; samples of one session must not race
		// its end frame.
		c.processMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) processMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(errorMessage("", apperrors.Validation("malformed frame")))
		return
	}
	inboundFrames.WithLabelValues(msg.Type).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reply, err := c.handle(ctx, msg)
	if err != nil {
		c.reply(errorMessage(msg.RequestID, err))
		return
	}
	if reply != nil {
		c.reply(*reply)
	}
}

func (c *Client) handle(ctx context.Context, msg WSMessage) (*WSMessage, error) {
	switch WSMessageType(msg.Type) {
	case WSTypeInteraction:
		var p InteractionPayload
		if err := decodePayload(msg.Data, &p); err != nil {
			return nil, err
		}
		outcome, err := c.service.RecordInteraction(ctx, p.MatchID, c.userID, &p.RecordInteractionDTO)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, WSTypeInteractionResult, outcome), nil

	case WSTypeHeartSyncStart:
		var p HeartSyncStartPayload
		if err := decodePayload(msg.Data, &p); err != nil {
			return nil, err
		}
		handle, err := c.service.StartHeartSync(ctx, p.MatchID, c.userID)
		if err != nil {
			return nil, err
		}
		return replyTo(msg, WSTypeHeartSyncSession, handle), nil

	case WSTypeHeartSyncSample:
		var p HeartSyncSamplePayload
		if err := decodePayload(msg.Data, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, apperrors.Validation("session_id is required")
		}
		if !c.sessions.Has(p.SessionID) {
			m, err := c.service.GetMatch(ctx, p.MatchID, c.userID)
			if err != nil {
				return nil, err
			}
			if err := c.sessions.Open(m, p.SessionID); err != nil {
				return nil, err
			}
		}
		// Samples are acknowledged only on failure
		return nil, c.sessions.Add(p.MatchID, p.SessionID, p.heartSamples(c.userID))

	case WSTypeHeartSyncEnd:
		var p HeartSyncEndPayload
		if err := decodePayload(msg.Data, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, apperrors.Validation("session_id is required")
		}
		// Samples stay buffered until the outcome is stored, so a failed end
		// can be retried. An ended session only replays its stored outcome.
		samples, state, err := c.sessions.Peek(p.MatchID, p.SessionID)
		if err != nil {
			return nil, err
		}
		if state == sessionOpen && len(samples) == 0 {
			return nil, ErrNoSamples
		}
		result, err := c.service.EndHeartSync(ctx, p.MatchID, c.userID, &dating.EndHeartSyncDTO{
			SessionID:      p.SessionID,
			Samples:        samples,
			ElapsedSeconds: p.ElapsedSeconds,
			ReplayOnly:     state == sessionEnded,
		})
		if err != nil {
			return nil, err
		}
		c.sessions.Finish(p.SessionID)
		return replyTo(msg, WSTypeHeartSyncEnded, result), nil

	case WSTypePing:
		return replyTo(msg, WSTypePong, nil), nil
	}

	return nil, apperrors.Validation("unknown frame type: " + msg.Type)
}

func (c *Client) reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling reply: %v", err)
		return
	}
	if !c.enqueue(data) {
		log.Printf("Reply to user %d dropped", c.userID)
	}
}

func replyTo(req WSMessage, t WSMessageType, data interface{}) *WSMessage {
	msg := newWSMessage(string(t), req.RequestID, data)
	return &msg
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return apperrors.Validation("missing data")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Validation("malformed data")
	}
	return nil
}
