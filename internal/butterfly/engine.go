package butterfly

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource draws uniform values in [0,1).
type RandomSource interface {
	Float64() float64
}

// SourceFunc adapts a plain function to RandomSource.
type SourceFunc func() float64

func (f SourceFunc) Float64() float64 { return f() }

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a goroutine safe source seeded with seed.
func NewRandomSource(seed int64) RandomSource {
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// Interaction is one inbound engagement event against a match.
type Interaction struct {
	EventID string
	ActorID int64
	Trigger Trigger
	Context InteractionContext
	// Message is the chat message that carried the interaction, if any.
	Message *Message
	Now     time.Time
}

// RewardOutcome is what callers fan out to connected clients.
type RewardOutcome struct {
	EventID            string  `json:"event_id"`
	MatchID            int64   `json:"match_id"`
	MessageID          *int64  `json:"message_id,omitempty"`
	Generated          bool    `json:"generated"`
	Tier               *Tier   `json:"tier"`
	Probability        float64 `json:"probability"`
	ProbabilityPercent int     `json:"probability_percent"`
}

// MilestoneOutcome reports an achieved milestone and the reward it landed.
type MilestoneOutcome struct {
	Kind              MilestoneKind `json:"milestone_kind"`
	ConversationDepth int           `json:"conversation_depth"`
	RewardTier        *Tier         `json:"reward_tier"`
}

// Engine applies the reward rules to loaded aggregates. It performs no I/O;
// persistence and locking belong to the caller.
type Engine struct {
	settings Settings
	rarity   RarityTable
	rng      RandomSource
}

func NewEngine(settings Settings, rng RandomSource) *Engine {
	settings = settings.Normalize()
	if rng == nil {
		rng = NewRandomSource(time.Now().UnixNano())
	}
	return &Engine{
		settings: settings,
		rarity:   NewRarityTable(settings),
		rng:      rng,
	}
}

func (e *Engine) Settings() Settings { return e.settings }

func (e *Engine) Rarity() RarityTable { return e.rarity }

// Probability computes the generation probability of an interaction without
// rolling or mutating anything.
func (e *Engine) Probability(m *Match, in Interaction) float64 {
	ctx := fillContext(in.Context, in.Message)
	recent := RecentRewardCount(m, in.Now, e.settings.RecentRewardWindow)
	switch in.Trigger {
	case TriggerMessage:
		return MessageProbability(ctx, recent)
	case TriggerFlutterTap:
		return e.settings.FlutterTapProbability
	default:
		return ProbabilityFor(in.Trigger, m, ctx, recent)
	}
}

// OnInteraction rolls for a reward and applies the outcome to the match and
// the triggering message. The match must be active.
func (e *Engine) OnInteraction(m *Match, in Interaction) (RewardOutcome, error) {
	if !in.Trigger.Valid() {
		return RewardOutcome{}, ErrInvalidTrigger
	}
	if !m.HasParticipant(in.ActorID) {
		return RewardOutcome{}, ErrNotParticipant
	}
	if !m.IsActive() {
		return RewardOutcome{}, ErrMatchNotActive
	}
	if in.Message != nil && !in.Message.MessageType.Valid() {
		return RewardOutcome{}, ErrInvalidMessageType
	}

	p := e.Probability(m, in)
	out := RewardOutcome{
		EventID:            in.EventID,
		MatchID:            m.ID,
		Probability:        p,
		ProbabilityPercent: Percent(p),
	}
	if in.Message != nil {
		id := in.Message.ID
		out.MessageID = &id
		if err := RecordResponse(m, in.ActorID, in.Now); err != nil {
			return RewardOutcome{}, err
		}
		if in.Message.MessageType == MessageVoiceMood && !m.HasMilestone(MilestoneFirstVoice) {
			_ = Achieve(m, MilestoneFirstVoice, nil, in.Now)
		}
	}

	if e.rng.Float64() < p {
		tier := e.rarity.Resolve(in.Trigger, m, in.Context.SessionSyncPercentage)
		e.land(m, in.EventID, in.Trigger, tier, p, in.Message, in.ActorID, in.Now)
		out.Generated = true
		out.Tier = &tier
	}
	m.UpdatedAt = in.Now
	return out, nil
}

// AchieveMilestone records a milestone. An explicit tier is a guaranteed
// reward; without one the milestone rate is rolled and the tier resolved
// after the depth update.
func (e *Engine) AchieveMilestone(m *Match, kind MilestoneKind, tier *Tier, eventID string, now time.Time) (MilestoneOutcome, error) {
	if !m.IsActive() {
		return MilestoneOutcome{}, ErrMatchNotActive
	}
	if err := Achieve(m, kind, tier, now); err != nil {
		return MilestoneOutcome{}, err
	}
	out := MilestoneOutcome{Kind: kind, ConversationDepth: m.ConversationDepth}
	if tier != nil {
		t := *tier
		e.land(m, eventID, TriggerMilestone, t, 1, nil, 0, now)
		out.RewardTier = &t
		return out, nil
	}

	recent := RecentRewardCount(m, now, e.settings.RecentRewardWindow)
	p := ProbabilityFor(TriggerMilestone, m, InteractionContext{}, recent)
	if e.rng.Float64() < p {
		t := e.rarity.Resolve(TriggerMilestone, m, nil)
		ms := &m.Milestones[len(m.Milestones)-1]
		ms.RewardTier = &t
		e.land(m, eventID, TriggerMilestone, t, p, nil, 0, now)
		out.RewardTier = &t
	}
	return out, nil
}

// Like applies one side's like and lands the first_message monarch when the
// like is mutual.
func (e *Engine) Like(m *Match, from int64, eventID string, now time.Time) (bool, error) {
	already := m.HasMilestone(MilestoneFirstMessage)
	matched, err := ApplyLike(m, from, now)
	if err != nil || !matched {
		return matched, err
	}
	if !already {
		e.land(m, eventID, TriggerMilestone, TierMonarch, 1, nil, 0, now)
	}
	return true, nil
}

// HeartSync validates and folds a session.
func (e *Engine) HeartSync(m *Match, members map[int64]*Member, in SessionInput) (HeartSyncResult, error) {
	if !m.HasParticipant(in.ActorID) {
		return HeartSyncResult{}, ErrNotParticipant
	}
	if !m.IsActive() {
		return HeartSyncResult{}, ErrMatchNotActive
	}
	if err := ValidateSamples(m, in.Samples); err != nil {
		return HeartSyncResult{}, err
	}
	if in.ElapsedSeconds < 0 {
		return HeartSyncResult{}, ErrMalformedSamples
	}
	return ApplyHeartSync(m, members, in, e.settings, e.rarity), nil
}

func (e *Engine) land(m *Match, eventID string, trigger Trigger, tier Tier, p float64, msg *Message, actor int64, now time.Time) {
	m.raiseButterflyType(tier)
	rec := RewardRecord{
		EventID:     eventID,
		Trigger:     trigger,
		Tier:        tier,
		Probability: p,
		LandedAt:    now,
	}
	if msg != nil {
		id := msg.ID
		rec.MessageID = &id
		msg.HasReward = true
		msg.RewardInteractions = append(msg.RewardInteractions, RewardInteraction{
			UserID:    actor,
			Tier:      tier,
			Kind:      InteractionLanded,
			Timestamp: now,
		})
	}
	m.Rewards = append(m.Rewards, rec)
}

// FindCollectable returns the oldest landed reward of tier that userID has
// not collected yet.
func FindCollectable(m *Match, userID int64, tier Tier) (*RewardRecord, error) {
	if !m.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}
	for i := range m.Rewards {
		r := &m.Rewards[i]
		if r.Tier == tier && !containsID(r.CollectedBy, userID) {
			return r, nil
		}
	}
	return nil, ErrNoLandedReward
}

// Collect turns a landed reward into a personal collection entry and returns
// the member's new collection rate. msg is the message the reward landed on,
// when there is one.
func Collect(m *Match, mb *Member, tier Tier, msg *Message, now time.Time) (float64, error) {
	rec, err := FindCollectable(m, mb.ID, tier)
	if err != nil {
		return 0, err
	}
	firstCollect := true
	for _, r := range m.Rewards {
		if len(r.CollectedBy) > 0 {
			firstCollect = false
			break
		}
	}

	rec.CollectedBy = append(rec.CollectedBy, mb.ID)
	mb.ButterfliesCollected = append(mb.ButterfliesCollected, CollectedButterfly{
		Tier:        tier,
		CollectedAt: now,
		SourceMatch: m.ID,
	})
	mb.CollectionRate = CollectionRate(mb.ButterfliesCollected)
	mb.UpdatedAt = now

	if msg != nil {
		msg.RewardInteractions = append(msg.RewardInteractions, RewardInteraction{
			UserID:    mb.ID,
			Tier:      tier,
			Kind:      InteractionCollected,
			Timestamp: now,
		})
	}
	if firstCollect {
		_ = Achieve(m, MilestoneButterflyCollection, nil, now)
	}
	m.UpdatedAt = now
	return mb.CollectionRate, nil
}

// CollectionRate is the share of distinct tiers ever collected, 0 to 100.
func CollectionRate(collected []CollectedButterfly) float64 {
	distinct := make(map[Tier]struct{}, len(AllTiers))
	for _, c := range collected {
		if c.Tier.Valid() {
			distinct[c.Tier] = struct{}{}
		}
	}
	return float64(len(distinct)) / float64(len(AllTiers)) * 100
}

func fillContext(ctx InteractionContext, msg *Message) InteractionContext {
	if msg == nil {
		return ctx
	}
	if ctx.MessageType == "" {
		ctx.MessageType = msg.MessageType
	}
	if ctx.ContentLength == 0 {
		ctx.ContentLength = len([]rune(msg.Content))
	}
	if ctx.Sentiment == nil {
		ctx.Sentiment = msg.Sentiment
	}
	return ctx
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
