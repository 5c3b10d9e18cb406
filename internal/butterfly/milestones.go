package butterfly

import (
	"errors"
	"time"
)

type MilestoneKind string

const (
	MilestoneFirstMessage        MilestoneKind = "first_message"
	MilestoneFirstVoice          MilestoneKind = "first_voice"
	MilestoneFirstHeartSync      MilestoneKind = "first_heart_sync"
	MilestoneDeepConversation    MilestoneKind = "deep_conversation"
	MilestoneButterflyCollection MilestoneKind = "butterfly_collection"
)

const MaxConversationDepth = 10

func (k MilestoneKind) Valid() bool {
	switch k {
	case MilestoneFirstMessage, MilestoneFirstVoice, MilestoneFirstHeartSync,
		MilestoneDeepConversation, MilestoneButterflyCollection:
		return true
	}
	return false
}

func ParseMilestoneKind(s string) (MilestoneKind, error) {
	k := MilestoneKind(s)
	if !k.Valid() {
		return "", ErrInvalidMilestone
	}
	return k, nil
}

// HasMilestone reports whether kind was already achieved on the match.
func (m *Match) HasMilestone(kind MilestoneKind) bool {
	for _, ms := range m.Milestones {
		if ms.Kind == kind {
			return true
		}
	}
	return false
}

// Achieve records a one-shot milestone. A duplicate kind returns
// ErrAlreadyAchieved and leaves the match untouched.
func Achieve(m *Match, kind MilestoneKind, rewardTier *Tier, now time.Time) error {
	if !kind.Valid() {
		return ErrInvalidMilestone
	}
	if rewardTier != nil && !rewardTier.Valid() {
		return ErrInvalidTier
	}
	if m.HasMilestone(kind) {
		return ErrAlreadyAchieved
	}

	ms := Milestone{Kind: kind, AchievedAt: now}
	if rewardTier != nil {
		t := *rewardTier
		ms.RewardTier = &t
	}
	m.Milestones = append(m.Milestones, ms)
	m.ConversationDepth = depthFor(len(m.Milestones))

	earned := TierFor(MatchScore(m))
	if rewardTier != nil {
		earned = MaxTier(earned, *rewardTier)
	}
	m.raiseButterflyType(earned)
	m.UpdatedAt = now
	return nil
}

func depthFor(n int) int {
	if n > MaxConversationDepth {
		return MaxConversationDepth
	}
	return n
}

// raiseButterflyType keeps butterfly_type monotonic.
func (m *Match) raiseButterflyType(t Tier) {
	m.ButterflyType = MaxTier(m.ButterflyType, t)
}

// ApplyLike records one side's like. The pending match becomes active on the
// mutual like, which also fires first_message with a monarch reward. It
// returns true when this call completed the match.
func ApplyLike(m *Match, from int64, now time.Time) (bool, error) {
	if !m.HasParticipant(from) {
		return false, ErrNotParticipant
	}
	if m.Status == StatusBlocked || m.Status == StatusEnded {
		return false, ErrInvalidStatus
	}
	if from == m.User1ID {
		m.MutualLikes.User1Liked = true
	} else {
		m.MutualLikes.User2Liked = true
	}
	m.UpdatedAt = now
	if m.Status != StatusPending || !m.MutualLikes.User1Liked || !m.MutualLikes.User2Liked {
		return false, nil
	}

	m.Status = StatusActive
	matchedAt := now
	m.MutualLikes.MatchedAt = &matchedAt
	monarch := TierMonarch
	if err := Achieve(m, MilestoneFirstMessage, &monarch, now); err != nil && !errors.Is(err, ErrAlreadyAchieved) {
		return false, err
	}
	return true, nil
}

// SetStatus applies a caller driven transition. Ended and blocked are
// terminal. A pending match can only be ended or blocked; activation goes
// through ApplyLike.
func SetStatus(m *Match, to MatchStatus, now time.Time) error {
	if !to.Valid() || to == StatusPending {
		return ErrInvalidStatus
	}
	switch m.Status {
	case StatusEnded, StatusBlocked:
		return ErrInvalidStatus
	case StatusPending:
		if to != StatusBlocked && to != StatusEnded {
			return ErrInvalidStatus
		}
	}
	m.Status = to
	m.UpdatedAt = now
	return nil
}
