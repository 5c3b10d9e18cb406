// internal/butterfly/models.go

package butterfly

import (
	"time"
)

type MatchStatus string

const (
	StatusPending MatchStatus = "pending"
	StatusActive  MatchStatus = "active"
	StatusPaused  MatchStatus = "paused"
	StatusEnded   MatchStatus = "ended"
	StatusBlocked MatchStatus = "blocked"
)

// Valid reports whether s is one of the known match statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusPaused, StatusEnded, StatusBlocked:
		return true
	}
	return false
}

type MessageType string

const (
	MessageText            MessageType = "text"
	MessageVoiceMood       MessageType = "voice_mood"
	MessageGhostGlimpse    MessageType = "ghost_glimpse"
	MessageFlutterTap      MessageType = "flutter_tap"
	MessageImage           MessageType = "image"
	MessageHeartSyncInvite MessageType = "heart_sync_invite"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageVoiceMood, MessageGhostGlimpse, MessageFlutterTap, MessageImage, MessageHeartSyncInvite:
		return true
	}
	return false
}

type InteractionKind string

const (
	InteractionLanded    InteractionKind = "landed"
	InteractionCollected InteractionKind = "collected"
	InteractionShared    InteractionKind = "shared"
)

type Mood string

const (
	MoodRoseEmber     Mood = "rose_ember"
	MoodGoldenPollen  Mood = "golden_pollen"
	MoodSilverWhisper Mood = "silver_whisper"
	MoodBlueMist      Mood = "blue_mist"
)

// Member holds the engine-relevant part of a user record.
type Member struct {
	ID                   int64                `json:"id"`
	Username             string               `json:"username"`
	Email                *string              `json:"email,omitempty"`
	Phone                *string              `json:"phone,omitempty"`
	PushTokens           []string             `json:"push_tokens,omitempty"`
	Interests            []string             `json:"interests"`
	CollectionRate       float64              `json:"collection_rate"`
	ButterfliesCollected []CollectedButterfly `json:"butterflies_collected"`
	HeartRateHistory     []HeartRateEntry     `json:"heart_rate_history"`
	Version              int64                `json:"-"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

type CollectedButterfly struct {
	Tier        Tier      `json:"tier"`
	CollectedAt time.Time `json:"collected_at"`
	SourceMatch int64     `json:"source_match"`
}

type HeartRateEntry struct {
	Rate      int       `json:"rate"`
	Mood      Mood      `json:"mood"`
	Timestamp time.Time `json:"timestamp"`
}

// Match is the per-pair aggregate. User1ID is always the smaller id.
type Match struct {
	ID                 int64              `json:"id"`
	User1ID            int64              `json:"user1_id"`
	User2ID            int64              `json:"user2_id"`
	Status             MatchStatus        `json:"status"`
	SyncLevel          int                `json:"sync_level"`
	CompatibilityScore float64            `json:"compatibility_score"`
	ConversationDepth  int                `json:"conversation_depth"`
	ButterflyType      Tier               `json:"butterfly_type,omitempty"`
	HeartSyncSessions  int                `json:"heart_sync_sessions"`
	HeartSyncHistory   []HeartSyncSession `json:"heart_sync_history"`
	Milestones         []Milestone        `json:"conversation_milestones"`
	Ghosting           GhostingDetection  `json:"ghosting_detection"`
	MutualLikes        MutualLikes        `json:"mutual_likes"`
	Rewards            []RewardRecord     `json:"rewards,omitempty"`
	Version            int64              `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type HeartSyncSession struct {
	SessionDate     time.Time `json:"session_date"`
	SyncPercentage  int       `json:"sync_percentage"`
	DurationMinutes float64   `json:"duration_minutes"`
	RewardGenerated bool      `json:"reward_generated"`
}

type Milestone struct {
	Kind       MilestoneKind `json:"milestone_kind"`
	AchievedAt time.Time     `json:"achieved_at"`
	RewardTier *Tier         `json:"reward_tier,omitempty"`
}

type GhostingDetection struct {
	LastResponseUser1     *time.Time `json:"last_response_user1,omitempty"`
	LastResponseUser2     *time.Time `json:"last_response_user2,omitempty"`
	SilenceThresholdHours int        `json:"silence_threshold_hours"`
	WarningSent           bool       `json:"warning_sent"`
	IsGhosted             bool       `json:"is_ghosted"`
}

type MutualLikes struct {
	User1Liked bool       `json:"user1_liked"`
	User2Liked bool       `json:"user2_liked"`
	MatchedAt  *time.Time `json:"matched_at,omitempty"`
}

// RewardRecord is one landed reward. The log feeds the anti-spam decay
// window and gates what participants may collect.
type RewardRecord struct {
	EventID     string    `json:"event_id"`
	Trigger     Trigger   `json:"trigger"`
	Tier        Tier      `json:"tier"`
	Probability float64   `json:"probability"`
	MessageID   *int64    `json:"message_id,omitempty"`
	LandedAt    time.Time `json:"landed_at"`
	CollectedBy []int64   `json:"collected_by,omitempty"`
}

// Message is a chat event. Only engine-relevant fields are kept.
type Message struct {
	ID                 int64               `json:"id"`
	MatchID            int64               `json:"match_id"`
	SenderID           int64               `json:"sender_id"`
	Content            string              `json:"content"`
	MessageType        MessageType         `json:"message_type"`
	HasReward          bool                `json:"has_reward"`
	RewardInteractions []RewardInteraction `json:"reward_interactions"`
	Sentiment          *Sentiment          `json:"sentiment,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

type RewardInteraction struct {
	UserID    int64           `json:"user"`
	Tier      Tier            `json:"tier"`
	Kind      InteractionKind `json:"interaction_kind"`
	Timestamp time.Time       `json:"timestamp"`
}

// Sentiment is produced outside the engine and only read here.
type Sentiment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (s *Sentiment) IsPositive() bool {
	return s != nil && s.Label == "positive"
}

// NewMatch builds a pending match for an unordered pair. The caller's order
// does not matter; ids are normalized so that User1ID < User2ID.
func NewMatch(a, b int64, settings Settings, now time.Time) (*Match, error) {
	if a == b {
		return nil, ErrSelfMatch
	}
	if a <= 0 || b <= 0 {
		return nil, ErrInvalidMember
	}
	if a > b {
		a, b = b, a
	}
	return &Match{
		User1ID: a,
		User2ID: b,
		Status:  StatusPending,
		Ghosting: GhostingDetection{
			SilenceThresholdHours: settings.SilenceThresholdHours,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasParticipant reports whether userID is one side of the match.
func (m *Match) HasParticipant(userID int64) bool {
	return userID == m.User1ID || userID == m.User2ID
}

// Partner returns the other side of the match.
func (m *Match) Partner(userID int64) int64 {
	if userID == m.User1ID {
		return m.User2ID
	}
	return m.User1ID
}

func (m *Match) Participants() [2]int64 {
	return [2]int64{m.User1ID, m.User2ID}
}

func (m *Match) IsActive() bool {
	return m.Status == StatusActive
}

// Clone returns a deep copy so a failed commit never leaks half-applied
// mutations into a retry.
func (m *Match) Clone() *Match {
	c := *m
	c.HeartSyncHistory = append([]HeartSyncSession(nil), m.HeartSyncHistory...)
	c.Milestones = make([]Milestone, len(m.Milestones))
	for i, ms := range m.Milestones {
		c.Milestones[i] = ms
		if ms.RewardTier != nil {
			t := *ms.RewardTier
			c.Milestones[i].RewardTier = &t
		}
	}
	c.Rewards = make([]RewardRecord, len(m.Rewards))
	for i, r := range m.Rewards {
		c.Rewards[i] = r
		c.Rewards[i].CollectedBy = append([]int64(nil), r.CollectedBy...)
		if r.MessageID != nil {
			id := *r.MessageID
			c.Rewards[i].MessageID = &id
		}
	}
	c.Ghosting.LastResponseUser1 = cloneTime(m.Ghosting.LastResponseUser1)
	c.Ghosting.LastResponseUser2 = cloneTime(m.Ghosting.LastResponseUser2)
	c.MutualLikes.MatchedAt = cloneTime(m.MutualLikes.MatchedAt)
	return &c
}

func (mb *Member) Clone() *Member {
	c := *mb
	c.PushTokens = append([]string(nil), mb.PushTokens...)
	c.Interests = append([]string(nil), mb.Interests...)
	c.ButterfliesCollected = append([]CollectedButterfly(nil), mb.ButterfliesCollected...)
	c.HeartRateHistory = append([]HeartRateEntry(nil), mb.HeartRateHistory...)
	return &c
}

func (msg *Message) Clone() *Message {
	c := *msg
	c.RewardInteractions = append([]RewardInteraction(nil), msg.RewardInteractions...)
	if msg.Sentiment != nil {
		s := *msg.Sentiment
		c.Sentiment = &s
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
