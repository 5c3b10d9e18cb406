package butterfly

import (
	"math"
	"time"
)

// Trigger names the interaction that may spawn a reward.
type Trigger string

const (
	TriggerMessage          Trigger = "message"
	TriggerFlutterTap       Trigger = "flutter_tap"
	TriggerVoiceMood        Trigger = "voice_mood"
	TriggerDeepConversation Trigger = "deep_conversation"
	TriggerHeartSync        Trigger = "heart_sync"
	TriggerMilestone        Trigger = "milestone"
	TriggerManual           Trigger = "manual"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerMessage, TriggerFlutterTap, TriggerVoiceMood, TriggerDeepConversation,
		TriggerHeartSync, TriggerMilestone, TriggerManual:
		return true
	}
	return false
}

const (
	MinProbability = 0.05
	MaxProbability = 0.95

	recentRewardPenalty = 0.10
	longMessageLength   = 100
)

// InteractionContext carries the optional, externally produced signals an
// interaction may come with.
type InteractionContext struct {
	MessageType           MessageType `json:"message_type,omitempty"`
	ContentLength         int         `json:"content_length,omitempty"`
	Sentiment             *Sentiment  `json:"sentiment,omitempty"`
	SessionSyncPercentage *int        `json:"session_sync_percentage,omitempty"`
}

// BaseRate is the trigger table of the general calculator.
func BaseRate(trigger Trigger, ctx InteractionContext) float64 {
	switch trigger {
	case TriggerFlutterTap:
		return 0.20
	case TriggerVoiceMood:
		if ctx.Sentiment.IsPositive() && ctx.Sentiment.Confidence > 0.8 {
			return 0.50
		}
		return 0.30
	case TriggerDeepConversation:
		return 0.40
	case TriggerHeartSync:
		if ctx.SessionSyncPercentage != nil && *ctx.SessionSyncPercentage > 80 {
			return 0.90
		}
		return 0.60
	case TriggerMilestone:
		return 0.80
	default:
		return 0.10
	}
}

// MatchBonus is the additive bonus derived from the aggregate.
func MatchBonus(m *Match) float64 {
	return m.CompatibilityScore/100*0.20 +
		float64(m.SyncLevel)/100*0.15 +
		float64(m.ConversationDepth)/10*0.10
}

// ProbabilityFor is the general calculator. It is deterministic given its
// inputs; only the later coin flip is random.
func ProbabilityFor(trigger Trigger, m *Match, ctx InteractionContext, recentRewards int) float64 {
	p := BaseRate(trigger, ctx) + MatchBonus(m)
	return ClampProbability(p - recentRewardPenalty*float64(recentRewards))
}

// MessageProbability derives the rate of a plain message send from its
// content instead of the trigger table. Match bonuses do not apply here.
func MessageProbability(ctx InteractionContext, recentRewards int) float64 {
	p := 0.10
	switch ctx.MessageType {
	case MessageVoiceMood:
		p += 0.20
	case MessageFlutterTap:
		p += 0.30
	}
	if ctx.Sentiment.IsPositive() {
		p += ctx.Sentiment.Confidence * 0.30
	}
	if ctx.ContentLength > longMessageLength {
		p += 0.10
	}
	return ClampProbability(p - recentRewardPenalty*float64(recentRewards))
}

func ClampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return MinProbability
	}
	return math.Min(MaxProbability, math.Max(MinProbability, p))
}

// RecentRewardCount counts rewards landed on the match within window
// before now.
func RecentRewardCount(m *Match, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, r := range m.Rewards {
		if r.LandedAt.After(cutoff) && !r.LandedAt.After(now) {
			n++
		}
	}
	return n
}

// Percent renders a probability the way clients display it.
func Percent(p float64) int {
	return int(math.Round(p * 100))
}
