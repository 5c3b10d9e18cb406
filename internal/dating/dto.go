// internal/dating/dto.go
package dating

import "github.com/imadgeboyega/heartwing-backend/internal/butterfly"

// DTOs for API requests/responses

type LikeDTO struct {
	TargetUserID int64 `json:"target_user_id" validate:"required,gt=0"`
}

type SetStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=active paused ended blocked"`
}

type ProfileDTO struct {
	Username   string   `json:"username" validate:"required,min=2,max=50"`
	Email      string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string   `json:"phone,omitempty" validate:"omitempty,e164"`
	PushTokens []string `json:"push_tokens,omitempty" validate:"omitempty,max=10,dive,min=1,max=4096"`
	Interests  []string `json:"interests" validate:"max=50,dive,min=1,max=64"`
}

type MessageDTO struct {
	Content     string               `json:"content" validate:"max=5000"`
	MessageType string               `json:"message_type" validate:"required"`
	Sentiment   *butterfly.Sentiment `json:"sentiment,omitempty"`
}

// RecordInteractionDTO drives one reward roll. EventID makes the call
// idempotent; retries must reuse it.
type RecordInteractionDTO struct {
	EventID string                       `json:"event_id" validate:"omitempty,max=128"`
	Trigger string                       `json:"trigger" validate:"required"`
	Message *MessageDTO                  `json:"message,omitempty"`
	Context butterfly.InteractionContext `json:"context"`
}

type EndHeartSyncDTO struct {
	SessionID      string                  `json:"session_id" validate:"omitempty,max=128"`
	Samples        []butterfly.HeartSample `json:"samples" validate:"max=2000,dive"`
	ElapsedSeconds float64                 `json:"elapsed_seconds" validate:"gte=0"`

	// ReplayOnly answers from the stored outcome and never folds.
	ReplayOnly bool `json:"-"`
}

type AchieveMilestoneDTO struct {
	EventID    string  `json:"event_id,omitempty" validate:"omitempty,max=128"`
	Kind       string  `json:"milestone_kind" validate:"required"`
	RewardTier *string `json:"reward_tier,omitempty"`
}

type CollectRewardDTO struct {
	Tier string `json:"tier" validate:"required"`
}
