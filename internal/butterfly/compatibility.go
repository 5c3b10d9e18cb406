package butterfly

import (
	"math"
	"strings"
)

// CompatibilityBreakdown is the per-factor view exposed to clients.
type CompatibilityBreakdown struct {
	InterestScore     float64 `json:"interest_score"`
	CollectionScore   float64 `json:"collection_score"`
	HeartSyncScore    float64 `json:"heart_sync_score"`
	ConversationScore float64 `json:"conversation_score"`
}

type Compatibility struct {
	Score              float64                `json:"score"`
	Breakdown          CompatibilityBreakdown `json:"breakdown"`
	RecommendationText string                 `json:"recommendation_text"`
}

// Factor weights. They add up to 100 at their maxima.
const (
	interestWeight     = 40.0
	collectionWeight   = 20.0
	heartSyncWeight    = 0.25
	conversationWeight = 15.0
)

// ComputeCompatibility scores a pair from shared interests, collection-rate
// similarity, sync level and conversation depth.
func ComputeCompatibility(m *Match, a, b *Member) Compatibility {
	var br CompatibilityBreakdown
	if a != nil && b != nil {
		br.InterestScore = round2(interestSimilarity(a.Interests, b.Interests) * interestWeight)
		diff := math.Abs(a.CollectionRate - b.CollectionRate)
		br.CollectionScore = round2(math.Max(0, 100-diff) / 100 * collectionWeight)
	}
	br.HeartSyncScore = round2(float64(m.SyncLevel) * heartSyncWeight)
	br.ConversationScore = round2(float64(m.ConversationDepth) / MaxConversationDepth * conversationWeight)

	score := br.InterestScore + br.CollectionScore + br.HeartSyncScore + br.ConversationScore
	score = round2(math.Min(100, math.Max(0, score)))
	return Compatibility{
		Score:              score,
		Breakdown:          br,
		RecommendationText: recommendation(score),
	}
}

// ApplyCompatibility recomputes and stores the score on the match.
func ApplyCompatibility(m *Match, a, b *Member) Compatibility {
	c := ComputeCompatibility(m, a, b)
	m.CompatibilityScore = c.Score
	return c
}

func recommendation(score float64) string {
	switch {
	case score >= 80:
		return "Exceptional connection. Your butterflies fly in perfect formation."
	case score >= 60:
		return "Strong connection. Try a heart sync session to deepen it."
	case score >= 40:
		return "Growing connection. Keep the conversation going."
	default:
		return "Early days. Share more about yourselves to find common ground."
	}
}

// interestSimilarity is the Jaccard index of the two interest sets.
func interestSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, i := range a {
		set[strings.ToLower(strings.TrimSpace(i))] = true
	}
	union := make(map[string]bool, len(a)+len(b))
	for k := range set {
		union[k] = true
	}
	common := 0
	seen := make(map[string]bool, len(b))
	for _, i := range b {
		k := strings.ToLower(strings.TrimSpace(i))
		if seen[k] {
			continue
		}
		seen[k] = true
		if set[k] {
			common++
		}
		union[k] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(common) / float64(len(union))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
