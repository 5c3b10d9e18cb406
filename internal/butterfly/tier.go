package butterfly

// Tier is the rarity class of a butterfly reward.
type Tier string

const (
	TierMonarch     Tier = "monarch"
	TierSwallowtail Tier = "swallowtail"
	TierMorpho      Tier = "morpho"
	TierGlasswing   Tier = "glasswing"
	TierRarePhoenix Tier = "rare_phoenix"
)

// AllTiers is ordered from most common to rarest.
var AllTiers = []Tier{TierMonarch, TierSwallowtail, TierMorpho, TierGlasswing, TierRarePhoenix}

// Rank orders tiers for comparisons. The zero Tier ranks 0 so that a match
// that never earned anything compares below monarch.
func (t Tier) Rank() int {
	switch t {
	case TierMonarch:
		return 1
	case TierSwallowtail:
		return 2
	case TierMorpho:
		return 3
	case TierGlasswing:
		return 4
	case TierRarePhoenix:
		return 5
	}
	return 0
}

func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// ParseTier validates a client supplied tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", ErrInvalidTier
	}
	return t, nil
}

// MaxTier returns the rarer of a and b.
func MaxTier(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// TierFor maps a score onto the rarity table. Thresholds are closed below.
func TierFor(score float64) Tier {
	switch {
	case score >= 150:
		return TierRarePhoenix
	case score >= 100:
		return TierGlasswing
	case score >= 70:
		return TierMorpho
	case score >= 40:
		return TierSwallowtail
	default:
		return TierMonarch
	}
}

// InteractionScore is the score used when a single interaction fires.
func InteractionScore(m *Match) float64 {
	return m.CompatibilityScore + float64(m.ConversationDepth)*5 + float64(m.SyncLevel)*0.5
}

// MatchScore adds the heart sync session bonus and is used when the
// aggregate itself is re-evaluated.
func MatchScore(m *Match) float64 {
	return InteractionScore(m) + float64(m.HeartSyncSessions)*2
}

// RarityTable resolves the tier of a fired reward, applying the trigger
// specific overrides before the generic score table.
type RarityTable struct {
	// MilestonePhoenixDepth forces rare_phoenix for milestone triggers at or
	// above this conversation depth.
	MilestonePhoenixDepth int
	// HeartSyncPhoenixAbove forces rare_phoenix for heart sync triggers whose
	// session sync is strictly greater than this value.
	HeartSyncPhoenixAbove int
}

func NewRarityTable(settings Settings) RarityTable {
	return RarityTable{
		MilestonePhoenixDepth: 8,
		HeartSyncPhoenixAbove: settings.HeartSyncPhoenixAbove,
	}
}

func (rt RarityTable) Resolve(trigger Trigger, m *Match, sessionSync *int) Tier {
	switch trigger {
	case TriggerMilestone:
		if m.ConversationDepth >= rt.MilestonePhoenixDepth {
			return TierRarePhoenix
		}
	case TriggerHeartSync:
		if sessionSync != nil && *sessionSync > rt.HeartSyncPhoenixAbove {
			return TierRarePhoenix
		}
	}
	return TierFor(InteractionScore(m))
}
