// internal/messaging/websocket.go

package messaging

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/heartwing-backend/internal/common/apperrors"
	"github.com/imadgeboyega/heartwing-backend/internal/common/utils"
)

// WebSocket configuration constants
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 256 * 1024

	// Maximum number of queued messages per client
	maxQueuedMessages = 256
)

// NewUpgrader accepts any origin when allowedOrigins is empty
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return allowed[r.Header.Get("Origin")]
		},
	}
}

// WSError represents a WebSocket error message
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newWSMessage(msgType string, requestID string, data interface{}) WSMessage {
	return WSMessage{
		Type:      msgType,
		RequestID: requestID,
		Data:      mustMarshalJSON(data),
		Timestamp: time.Now().UTC(),
	}
}

// errorMessage hides causes of server side failures the same way the REST
// responses do.
func errorMessage(requestID string, err error) WSMessage {
	code := apperrors.CodeOf(err)
	message := err.Error()
	if utils.StatusFor(code) >= http.StatusInternalServerError {
		log.Printf("websocket request failed (%s): %v", code, err)
		if ae, ok := apperrors.As(err); ok {
			message = ae.Message
		} else {
			message = "Internal server error"
		}
	}
	return newWSMessage(string(WSTypeError), requestID, WSError{
		Code:    string(code),
		Message: message,
	})
}

func mustMarshalJSON(v interface{}) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling: %v", err)
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(data)
}
