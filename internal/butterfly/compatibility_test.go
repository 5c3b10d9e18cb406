package butterfly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCompatibility(t *testing.T) {
	a := &Member{ID: 1, Interests: []string{"Hiking", "jazz", "coffee"}, CollectionRate: 60}
	b := &Member{ID: 2, Interests: []string{"hiking", "Jazz", "chess", "Jazz"}, CollectionRate: 40}
	m := &Match{SyncLevel: 80, ConversationDepth: 4}

	c := ComputeCompatibility(m, a, b)
	// 2 shared of 4 distinct interests
	assert.InDelta(t, 20.0, c.Breakdown.InterestScore, 1e-9)
	assert.InDelta(t, 16.0, c.Breakdown.CollectionScore, 1e-9)
	assert.InDelta(t, 20.0, c.Breakdown.HeartSyncScore, 1e-9)
	assert.InDelta(t, 6.0, c.Breakdown.ConversationScore, 1e-9)
	assert.InDelta(t, 62.0, c.Score, 1e-9)
	assert.Contains(t, c.RecommendationText, "Strong connection")
}

func TestComputeCompatibilityBounds(t *testing.T) {
	same := []string{"art"}
	a := &Member{Interests: same, CollectionRate: 100}
	b := &Member{Interests: same, CollectionRate: 100}
	m := &Match{SyncLevel: 100, ConversationDepth: 10}
	c := ApplyCompatibility(m, a, b)
	assert.InDelta(t, 100.0, c.Score, 1e-9)
	assert.InDelta(t, 100.0, m.CompatibilityScore, 1e-9)

	empty := ComputeCompatibility(&Match{}, &Member{}, &Member{})
	assert.InDelta(t, 20.0, empty.Score, 1e-9)
	assert.Contains(t, empty.RecommendationText, "Early days")

	noMembers := ComputeCompatibility(&Match{SyncLevel: 40}, nil, nil)
	assert.InDelta(t, 10.0, noMembers.Score, 1e-9)
}
