package dating

import (
	"encoding/json"
	"time"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/lib/pq"
)

// Event kinds stored in reward_events.
const (
	EventInteraction = "interaction"
	EventHeartSync   = "heart_sync"
	EventMilestone   = "milestone"
)

// RewardEvent is the durable record of a processed event. It is written in
// the same transaction as the mutation it describes, so a replayed event id
// always finds the original outcome.
type RewardEvent struct {
	EventID   string          `json:"event_id" db:"event_id"`
	MatchID   int64           `json:"match_id" db:"match_id"`
	Kind      string          `json:"kind" db:"kind"`
	Outcome   json.RawMessage `json:"outcome" db:"outcome"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type LikeResult struct {
	Match   *butterfly.Match `json:"match"`
	Matched bool             `json:"matched"`
}

// SessionHandle carries advisory parameters for the client sampling loop.
type SessionHandle struct {
	SessionID         string    `json:"session_id"`
	MatchID           int64     `json:"match_id"`
	DurationSeconds   int       `json:"duration_seconds"`
	SampleIntervalMs  int       `json:"sample_interval_ms"`
	TargetSyncPercent int       `json:"target_sync_percent"`
	StartedAt         time.Time `json:"started_at"`
}

type GhostingReport struct {
	MatchID        int64                       `json:"match_id"`
	IsGhosted      bool                        `json:"is_ghosted"`
	DetectionState butterfly.GhostingDetection `json:"detection_state"`
	SilentUserIDs  []int64                     `json:"silent_user_ids,omitempty"`
}

type CollectResult struct {
	MatchID           int64          `json:"match_id"`
	Tier              butterfly.Tier `json:"tier"`
	NewCollectionRate float64        `json:"new_collection_rate"`
}

// Row types mirror the tables. JSONB columns are scanned as raw bytes and
// decoded explicitly.

type matchRow struct {
	ID                 int64     `db:"id"`
	User1ID            int64     `db:"user1_id"`
	User2ID            int64     `db:"user2_id"`
	Status             string    `db:"status"`
	SyncLevel          int       `db:"sync_level"`
	CompatibilityScore float64   `db:"compatibility_score"`
	ConversationDepth  int       `db:"conversation_depth"`
	ButterflyType      string    `db:"butterfly_type"`
	HeartSyncSessions  int       `db:"heart_sync_sessions"`
	HeartSyncHistory   []byte    `db:"heart_sync_history"`
	Milestones         []byte    `db:"conversation_milestones"`
	Ghosting           []byte    `db:"ghosting_detection"`
	MutualLikes        []byte    `db:"mutual_likes"`
	Rewards            []byte    `db:"rewards"`
	Version            int64     `db:"version"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r *matchRow) toMatch() (*butterfly.Match, error) {
	m := &butterfly.Match{
		ID:                 r.ID,
		User1ID:            r.User1ID,
		User2ID:            r.User2ID,
		Status:             butterfly.MatchStatus(r.Status),
		SyncLevel:          r.SyncLevel,
		CompatibilityScore: r.CompatibilityScore,
		ConversationDepth:  r.ConversationDepth,
		ButterflyType:      butterfly.Tier(r.ButterflyType),
		HeartSyncSessions:  r.HeartSyncSessions,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	for _, col := range []struct {
		raw []byte
		dst interface{}
	}{
		{r.HeartSyncHistory, &m.HeartSyncHistory},
		{r.Milestones, &m.Milestones},
		{r.Ghosting, &m.Ghosting},
		{r.MutualLikes, &m.MutualLikes},
		{r.Rewards, &m.Rewards},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newMatchRow(m *butterfly.Match) (*matchRow, error) {
	r := &matchRow{
		ID:                 m.ID,
		User1ID:            m.User1ID,
		User2ID:            m.User2ID,
		Status:             string(m.Status),
		SyncLevel:          m.SyncLevel,
		CompatibilityScore: m.CompatibilityScore,
		ConversationDepth:  m.ConversationDepth,
		ButterflyType:      string(m.ButterflyType),
		HeartSyncSessions:  m.HeartSyncSessions,
		Version:            m.Version,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	var err error
	if r.HeartSyncHistory, err = encodeJSON(nonNil(m.HeartSyncHistory)); err != nil {
		return nil, err
	}
	if r.Milestones, err = encodeJSON(nonNil(m.Milestones)); err != nil {
		return nil, err
	}
	if r.Ghosting, err = encodeJSON(m.Ghosting); err != nil {
		return nil, err
	}
	if r.MutualLikes, err = encodeJSON(m.MutualLikes); err != nil {
		return nil, err
	}
	if r.Rewards, err = encodeJSON(nonNil(m.Rewards)); err != nil {
		return nil, err
	}
	return r, nil
}

type memberRow struct {
	ID                   int64          `db:"user_id"`
	Username             string         `db:"username"`
	Email                *string        `db:"email"`
	Phone                *string        `db:"phone"`
	PushTokens           pq.StringArray `db:"push_tokens"`
	Interests            pq.StringArray `db:"interests"`
	CollectionRate       float64        `db:"collection_rate"`
	ButterfliesCollected []byte         `db:"butterflies_collected"`
	HeartRateHistory     []byte         `db:"heart_rate_history"`
	Version              int64          `db:"version"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r *memberRow) toMember() (*butterfly.Member, error) {
	mb := &butterfly.Member{
		ID:             r.ID,
		Username:       r.Username,
		Email:          r.Email,
		Phone:          r.Phone,
		PushTokens:     []string(r.PushTokens),
		Interests:      []string(r.Interests),
		CollectionRate: r.CollectionRate,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := decodeJSON(r.ButterfliesCollected, &mb.ButterfliesCollected); err != nil {
		return nil, err
	}
	if err := decodeJSON(r.HeartRateHistory, &mb.HeartRateHistory); err != nil {
		return nil, err
	}
	return mb, nil
}

type messageRow struct {
	ID                 int64     `db:"id"`
	MatchID            int64     `db:"match_id"`
	SenderID           int64     `db:"sender_id"`
	Content            string    `db:"content"`
	MessageType        string    `db:"message_type"`
	HasReward          bool      `db:"has_reward"`
	RewardInteractions []byte    `db:"reward_interactions"`
	Sentiment          []byte    `db:"sentiment"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r *messageRow) toMessage() (*butterfly.Message, error) {
	msg := &butterfly.Message{
		ID:          r.ID,
		MatchID:     r.MatchID,
		SenderID:    r.SenderID,
		Content:     r.Content,
		MessageType: butterfly.MessageType(r.MessageType),
		HasReward:   r.HasReward,
		CreatedAt:   r.CreatedAt,
	}
	if err := decodeJSON(r.RewardInteractions, &msg.RewardInteractions); err != nil {
		return nil, err
	}
	if len(r.Sentiment) > 0 {
		var s butterfly.Sentiment
		if err := decodeJSON(r.Sentiment, &s); err != nil {
			return nil, err
		}
		msg.Sentiment = &s
	}
	return msg, nil
}

func decodeJSON(raw []byte, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// nonNil keeps JSONB arrays as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
