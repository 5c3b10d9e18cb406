// internal/messaging/models.go

package messaging

import (
	"encoding/json"
	"time"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/imadgeboyega/heartwing-backend/internal/dating"
)

// WSMessage is the envelope for every frame in both directions
type WSMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type WSMessageType string

// Inbound frame types
const (
	WSTypeInteraction     WSMessageType = "interaction"
	WSTypeHeartSyncStart  WSMessageType = "heart_sync_start"
	WSTypeHeartSyncSample WSMessageType = "heart_sync_sample"
	WSTypeHeartSyncEnd    WSMessageType = "heart_sync_end"
	WSTypePing            WSMessageType = "ping"
)

// Outbound replies to the sender. Fan-out events reuse the dating event
// type names.
const (
	WSTypeInteractionResult WSMessageType = "interaction_result"
	WSTypeHeartSyncSession  WSMessageType = "heart_sync_session"
	WSTypeHeartSyncEnded    WSMessageType = "heart_sync_ended"
	WSTypePong              WSMessageType = "pong"
	WSTypeError             WSMessageType = "error"
)

// InteractionPayload is an interaction sent over the socket
type InteractionPayload struct {
	MatchID int64 `json:"match_id"`
	dating.RecordInteractionDTO
}

type HeartSyncStartPayload struct {
	MatchID int64 `json:"match_id"`
}

// SampleReading is one reading of the sending member. The member id is
// taken from the connection.
type SampleReading struct {
	Seq  int `json:"seq"`
	Rate int `json:"rate"`
}

type HeartSyncSamplePayload struct {
	MatchID   int64           `json:"match_id"`
	SessionID string          `json:"session_id"`
	Samples   []SampleReading `json:"samples"`
}

type HeartSyncEndPayload struct {
	MatchID        int64   `json:"match_id"`
	SessionID      string  `json:"session_id"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (p HeartSyncSamplePayload) heartSamples(userID int64) []butterfly.HeartSample {
	out := make([]butterfly.HeartSample, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = butterfly.HeartSample{UserID: userID, Seq: s.Seq, Rate: s.Rate}
	}
	return out
}
