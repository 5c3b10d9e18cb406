package butterfly

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRolls replays the given draws and then repeats the last one.
func fixedRolls(draws ...float64) RandomSource {
	i := 0
	return SourceFunc(func() float64 {
		d := draws[i]
		if i < len(draws)-1 {
			i++
		}
		return d
	})
}

func TestOnInteractionScenario(t *testing.T) {
	now := time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC)
	m := activeMatch(t, now.Add(-48*time.Hour))
	m.CompatibilityScore, m.ConversationDepth, m.SyncLevel = 80, 6, 70

	e := NewEngine(DefaultSettings(), fixedRolls(0))
	out, err := e.OnInteraction(m, Interaction{EventID: "e1", ActorID: 3, Trigger: TriggerDeepConversation, Now: now})
	require.NoError(t, err)
	assert.True(t, out.Generated)
	require.NotNil(t, out.Tier)
	assert.Equal(t, TierGlasswing, *out.Tier)
	assert.Equal(t, TierGlasswing, m.ButterflyType)
	// 0.40 + 0.16 + 0.105 + 0.06
	assert.InDelta(t, 0.725, out.Probability, 1e-9)

	sync := 95
	out, err = e.OnInteraction(m, Interaction{
		EventID: "e2", ActorID: 7, Trigger: TriggerHeartSync, Now: now,
		Context: InteractionContext{SessionSyncPercentage: &sync},
	})
	require.NoError(t, err)
	require.True(t, out.Generated)
	assert.Equal(t, 95, out.ProbabilityPercent)
	assert.Equal(t, TierRarePhoenix, *out.Tier)
	assert.Equal(t, TierRarePhoenix, m.ButterflyType)
	assert.Len(t, m.Rewards, 2)
}

func TestOnInteractionNoFire(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	e := NewEngine(DefaultSettings(), fixedRolls(0.99))

	out, err := e.OnInteraction(m, Interaction{EventID: "e1", ActorID: 3, Trigger: TriggerManual, Now: now})
	require.NoError(t, err)
	assert.False(t, out.Generated)
	assert.Nil(t, out.Tier)
	assert.InDelta(t, 0.10, out.Probability, 1e-9)
	assert.Empty(t, m.Rewards)
	assert.Equal(t, Tier(""), m.ButterflyType)
}

func TestOnInteractionFiresStrictlyBelow(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	e := NewEngine(DefaultSettings(), fixedRolls(0.40))

	out, err := e.OnInteraction(m, Interaction{ActorID: 3, Trigger: TriggerFlutterTap, Now: now})
	require.NoError(t, err)
	assert.InDelta(t, 0.40, out.Probability, 1e-9)
	assert.False(t, out.Generated)

	e = NewEngine(DefaultSettings(), fixedRolls(0.3999))
	out, err = e.OnInteraction(m, Interaction{ActorID: 3, Trigger: TriggerFlutterTap, Now: now})
	require.NoError(t, err)
	assert.True(t, out.Generated)
	assert.Equal(t, TierMonarch, *out.Tier)
}

func TestFlutterTapIgnoresDecay(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	for i := 0; i < 5; i++ {
		m.Rewards = append(m.Rewards, RewardRecord{Tier: TierMonarch, LandedAt: now.Add(-time.Hour)})
	}
	e := NewEngine(DefaultSettings(), fixedRolls(0.99))
	assert.InDelta(t, 0.40, e.Probability(m, Interaction{Trigger: TriggerFlutterTap, Now: now}), 1e-9)
	assert.InDelta(t, MinProbability, e.Probability(m, Interaction{Trigger: TriggerManual, Now: now}), 1e-9)
}

func TestOnInteractionMessagePath(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now.Add(-100*time.Hour))
	m.CompatibilityScore = 100
	m.Ghosting.IsGhosted = true
	msg := &Message{
		ID:          55,
		MatchID:     m.ID,
		SenderID:    7,
		Content:     strings.Repeat("a", 120),
		MessageType: MessageVoiceMood,
		Sentiment:   &Sentiment{Label: "positive", Confidence: 0.5},
	}

	e := NewEngine(DefaultSettings(), fixedRolls(0.1))
	out, err := e.OnInteraction(m, Interaction{EventID: "m1", ActorID: 7, Trigger: TriggerMessage, Message: msg, Now: now})
	require.NoError(t, err)

	// 0.10 + 0.20 voice + 0.15 sentiment + 0.10 length, no match bonuses
	assert.InDelta(t, 0.55, out.Probability, 1e-9)
	assert.True(t, out.Generated)
	require.NotNil(t, out.MessageID)
	assert.Equal(t, int64(55), *out.MessageID)

	assert.True(t, msg.HasReward)
	require.Len(t, msg.RewardInteractions, 1)
	assert.Equal(t, InteractionLanded, msg.RewardInteractions[0].Kind)
	assert.Equal(t, int64(7), msg.RewardInteractions[0].UserID)
	require.NotNil(t, m.Rewards[0].MessageID)

	assert.False(t, m.Ghosting.IsGhosted)
	require.NotNil(t, m.Ghosting.LastResponseUser2)
	assert.True(t, m.HasMilestone(MilestoneFirstVoice))
}

func TestOnInteractionRejects(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	e := NewEngine(DefaultSettings(), fixedRolls(0))

	_, err := e.OnInteraction(m, Interaction{ActorID: 3, Trigger: Trigger("wink"), Now: now})
	assert.ErrorIs(t, err, ErrInvalidTrigger)

	_, err = e.OnInteraction(m, Interaction{ActorID: 99, Trigger: TriggerManual, Now: now})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = e.OnInteraction(m, Interaction{ActorID: 3, Trigger: TriggerMessage, Message: &Message{MessageType: "gif"}, Now: now})
	assert.ErrorIs(t, err, ErrInvalidMessageType)

	m.Status = StatusPaused
	_, err = e.OnInteraction(m, Interaction{ActorID: 3, Trigger: TriggerManual, Now: now})
	assert.ErrorIs(t, err, ErrMatchNotActive)
	assert.Empty(t, m.Rewards)
}

func TestAchieveMilestoneRewards(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	m.Milestones = make([]Milestone, 7)
	for i := range m.Milestones {
		m.Milestones[i].Kind = MilestoneKind("legacy")
	}

	e := NewEngine(DefaultSettings(), fixedRolls(0))
	out, err := e.AchieveMilestone(m, MilestoneDeepConversation, nil, "ms1", now)
	require.NoError(t, err)
	assert.Equal(t, 8, out.ConversationDepth)
	require.NotNil(t, out.RewardTier)
	assert.Equal(t, TierRarePhoenix, *out.RewardTier)
	assert.Equal(t, TierRarePhoenix, *m.Milestones[7].RewardTier)
	require.Len(t, m.Rewards, 1)
	assert.Equal(t, TriggerMilestone, m.Rewards[0].Trigger)

	_, err = e.AchieveMilestone(m, MilestoneDeepConversation, nil, "ms2", now)
	assert.ErrorIs(t, err, ErrAlreadyAchieved)
	assert.Len(t, m.Rewards, 1)

	swallowtail := TierSwallowtail
	miss := NewEngine(DefaultSettings(), fixedRolls(0.999))
	out, err = miss.AchieveMilestone(m, MilestoneFirstVoice, &swallowtail, "ms3", now)
	require.NoError(t, err)
	assert.Equal(t, TierSwallowtail, *out.RewardTier)
	assert.Len(t, m.Rewards, 2)
	assert.Equal(t, TierRarePhoenix, m.ButterflyType)

	out, err = miss.AchieveMilestone(m, MilestoneFirstHeartSync, nil, "ms4", now)
	require.NoError(t, err)
	assert.Nil(t, out.RewardTier)
	assert.Len(t, m.Rewards, 2)
}

func TestEngineLikeLandsMonarch(t *testing.T) {
	now := time.Now()
	m, err := NewMatch(1, 2, DefaultSettings(), now)
	require.NoError(t, err)
	e := NewEngine(DefaultSettings(), fixedRolls(0))

	matched, err := e.Like(m, 1, "like-1", now)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Empty(t, m.Rewards)

	matched, err = e.Like(m, 2, "like-2", now)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, 1, m.ConversationDepth)
	require.Len(t, m.Rewards, 1)
	assert.Equal(t, TierMonarch, m.Rewards[0].Tier)
	assert.Equal(t, "like-2", m.Rewards[0].EventID)
}

func TestCollect(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	m.Rewards = []RewardRecord{
		{EventID: "a", Tier: TierMorpho, LandedAt: now.Add(-2 * time.Hour)},
		{EventID: "b", Tier: TierMorpho, LandedAt: now.Add(-time.Hour)},
		{EventID: "c", Tier: TierMonarch, LandedAt: now},
	}
	mb := &Member{ID: 3}
	msg := &Message{ID: 1, MatchID: m.ID}

	rate, err := Collect(m, mb, TierMorpho, msg, now)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, rate, 1e-9)
	assert.Equal(t, []int64{3}, m.Rewards[0].CollectedBy)
	assert.Empty(t, m.Rewards[1].CollectedBy)
	require.Len(t, msg.RewardInteractions, 1)
	assert.Equal(t, InteractionCollected, msg.RewardInteractions[0].Kind)
	assert.True(t, m.HasMilestone(MilestoneButterflyCollection))

	rate, err = Collect(m, mb, TierMorpho, nil, now)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, rate, 1e-9)
	assert.Len(t, mb.ButterfliesCollected, 2)

	_, err = Collect(m, mb, TierMorpho, nil, now)
	assert.ErrorIs(t, err, ErrNoLandedReward)

	rate, err = Collect(m, mb, TierMonarch, nil, now)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, rate, 1e-9)
	assert.Len(t, m.Milestones, 1)

	partner := &Member{ID: 7}
	rate, err = Collect(m, partner, TierMonarch, nil, now)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, rate, 1e-9)

	_, err = Collect(m, &Member{ID: 99}, TierMonarch, nil, now)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = Collect(m, mb, Tier("moth"), nil, now)
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestEngineHeartSyncValidation(t *testing.T) {
	now := time.Now()
	m := activeMatch(t, now)
	e := NewEngine(DefaultSettings(), fixedRolls(0))

	_, err := e.HeartSync(m, nil, SessionInput{ActorID: 3, Samples: samplesFor(m, []int{30}, []int{70}), Now: now})
	assert.ErrorIs(t, err, ErrHeartRateOutOfRange)
	assert.Zero(t, m.HeartSyncSessions)

	_, err = e.HeartSync(m, nil, SessionInput{ActorID: 3, ElapsedSeconds: -1, Now: now})
	assert.ErrorIs(t, err, ErrMalformedSamples)

	_, err = e.HeartSync(m, nil, SessionInput{ActorID: 42, Now: now})
	assert.ErrorIs(t, err, ErrNotParticipant)

	res, err := e.HeartSync(m, nil, SessionInput{ActorID: 3, Samples: samplesFor(m, []int{70, 72}, []int{71, 75}), ElapsedSeconds: 60, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 100, res.SyncPercentage)
	assert.Equal(t, 1.0, res.DurationMinutes)
}

func TestNewRandomSourceIsDeterministic(t *testing.T) {
	a, b := NewRandomSource(42), NewRandomSource(42)
	for i := 0; i < 10; i++ {
		v := a.Float64()
		assert.Equal(t, v, b.Float64())
		assert.True(t, v >= 0 && v < 1)
	}
}
