package butterfly

import (
	"math"
	"sort"
	"time"
)

const (
	MinHeartRate = 40
	MaxHeartRate = 200

	syncToleranceBPM  = 10
	rewardSyncAbove   = 80
	maxSyncLevel      = 100
	secondsPerMinute  = 60.0
	minSamplesForSync = 2
)

// HeartSample is one reading from one participant. Seq orders the samples of
// a single side; arrival order is irrelevant.
type HeartSample struct {
	UserID int64 `json:"user_id" validate:"required"`
	Seq    int   `json:"seq" validate:"gte=0"`
	Rate   int   `json:"rate" validate:"required"`
}

// ValidateSamples rejects readings that do not belong to the match or fall
// outside the physiological range.
func ValidateSamples(m *Match, samples []HeartSample) error {
	seen := make(map[[2]int64]struct{}, len(samples))
	for _, s := range samples {
		if !m.HasParticipant(s.UserID) || s.Seq < 0 {
			return ErrMalformedSamples
		}
		if s.Rate < MinHeartRate || s.Rate > MaxHeartRate {
			return ErrHeartRateOutOfRange
		}
		key := [2]int64{s.UserID, int64(s.Seq)}
		if _, dup := seen[key]; dup {
			return ErrMalformedSamples
		}
		seen[key] = struct{}{}
	}
	return nil
}

// splitSides returns each participant's rates ordered by sequence number.
func splitSides(m *Match, samples []HeartSample) (side1, side2 []int) {
	sorted := append([]HeartSample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	for _, s := range sorted {
		if s.UserID == m.User1ID {
			side1 = append(side1, s.Rate)
		} else {
			side2 = append(side2, s.Rate)
		}
	}
	return side1, side2
}

// SessionSyncPercentage pairs the two sides index for index and reports the
// share of pairs within the sync tolerance.
func SessionSyncPercentage(side1, side2 []int) int {
	if len(side1)+len(side2) < minSamplesForSync {
		return 0
	}
	pairs := len(side1)
	if len(side2) < pairs {
		pairs = len(side2)
	}
	if pairs == 0 {
		return 0
	}
	synced := 0
	for i := 0; i < pairs; i++ {
		if abs(side1[i]-side2[i]) <= syncToleranceBPM {
			synced++
		}
	}
	return int(math.Round(100 * float64(synced) / float64(pairs)))
}

// SyncLevel folds the session history into the rolling sync level. Session i
// (1-indexed, oldest first) weighs i/N. Without normalization the weights are
// not divided by their sum, so the raw value is clamped to the valid range.
func SyncLevel(history []HeartSyncSession, normalize bool) int {
	n := len(history)
	if n == 0 {
		return 0
	}
	var sum, weights float64
	for i, s := range history {
		w := float64(i+1) / float64(n)
		sum += float64(s.SyncPercentage) * w
		weights += w
	}
	if normalize {
		sum /= weights
	}
	level := int(math.Round(sum))
	if level < 0 {
		return 0
	}
	if level > maxSyncLevel {
		return maxSyncLevel
	}
	return level
}

// ClassifyMood maps session sync and a member's average rate onto a mood.
func ClassifyMood(syncPercentage int, avgRate float64) Mood {
	switch {
	case syncPercentage > 80:
		if avgRate > 100 {
			return MoodRoseEmber
		}
		return MoodGoldenPollen
	case syncPercentage > 60:
		if avgRate > 90 {
			return MoodSilverWhisper
		}
		return MoodBlueMist
	default:
		if avgRate > 95 {
			return MoodRoseEmber
		}
		return MoodBlueMist
	}
}

// RecordHeartRate appends to the member's bounded ring, dropping the oldest
// entries beyond limit.
func RecordHeartRate(mb *Member, entry HeartRateEntry, limit int) {
	mb.HeartRateHistory = append(mb.HeartRateHistory, entry)
	if over := len(mb.HeartRateHistory) - limit; limit > 0 && over > 0 {
		mb.HeartRateHistory = append([]HeartRateEntry(nil), mb.HeartRateHistory[over:]...)
	}
}

// HeartSyncResult is returned to the caller once a session has been folded.
type HeartSyncResult struct {
	SyncPercentage  int     `json:"sync_percentage"`
	DurationMinutes float64 `json:"duration_minutes"`
	RewardGenerated bool    `json:"reward_generated"`
	Tier            *Tier   `json:"tier"`
	NewSyncLevel    int     `json:"new_sync_level"`
	TotalSessions   int     `json:"total_sessions"`
	AvgHeartRate    int     `json:"avg_heart_rate"`
	Mood            Mood    `json:"mood"`
}

// SessionInput is everything ApplyHeartSync needs besides the aggregates.
type SessionInput struct {
	EventID        string
	ActorID        int64
	Samples        []HeartSample
	ElapsedSeconds float64
	Now            time.Time
}

// ApplyHeartSync folds a finished (or early-ended) session into the match and
// both members. Members may be nil when their record is not loaded; their ring
// is then left alone. Samples must have passed ValidateSamples.
func ApplyHeartSync(m *Match, members map[int64]*Member, in SessionInput, settings Settings, rarity RarityTable) HeartSyncResult {
	side1, side2 := splitSides(m, in.Samples)
	pct := SessionSyncPercentage(side1, side2)
	duration := math.Round(in.ElapsedSeconds/secondsPerMinute*100) / 100
	if duration < 0 {
		duration = 0
	}
	rewarded := pct > rewardSyncAbove

	first := m.HeartSyncSessions == 0
	m.HeartSyncHistory = append(m.HeartSyncHistory, HeartSyncSession{
		SessionDate:     in.Now,
		SyncPercentage:  pct,
		DurationMinutes: duration,
		RewardGenerated: rewarded,
	})
	m.HeartSyncSessions = len(m.HeartSyncHistory)
	m.SyncLevel = SyncLevel(m.HeartSyncHistory, settings.NormalizeSyncLevel)
	m.raiseButterflyType(TierFor(MatchScore(m)))

	res := HeartSyncResult{
		SyncPercentage:  pct,
		DurationMinutes: duration,
		RewardGenerated: rewarded,
		NewSyncLevel:    m.SyncLevel,
		TotalSessions:   m.HeartSyncSessions,
	}
	if rewarded {
		tier := rarity.Resolve(TriggerHeartSync, m, &pct)
		m.raiseButterflyType(tier)
		m.Rewards = append(m.Rewards, RewardRecord{
			EventID:     in.EventID,
			Trigger:     TriggerHeartSync,
			Tier:        tier,
			Probability: 1,
			LandedAt:    in.Now,
		})
		res.Tier = &tier
	}

	averages := map[int64]float64{m.User1ID: average(side1), m.User2ID: average(side2)}
	for id, avg := range averages {
		mood := ClassifyMood(pct, avg)
		if id == in.ActorID {
			res.AvgHeartRate = int(math.Round(avg))
			res.Mood = mood
		}
		mb := members[id]
		if mb == nil || avg == 0 {
			continue
		}
		RecordHeartRate(mb, HeartRateEntry{Rate: int(math.Round(avg)), Mood: mood, Timestamp: in.Now}, settings.HeartRateHistoryLimit)
		mb.UpdatedAt = in.Now
	}

	if first {
		// first_heart_sync carries no reward tier of its own.
		_ = Achieve(m, MilestoneFirstHeartSync, nil, in.Now)
	}
	m.UpdatedAt = in.Now
	return res
}

func average(rates []int) float64 {
	if len(rates) == 0 {
		return 0
	}
	total := 0
	for _, r := range rates {
		total += r
	}
	return float64(total) / float64(len(rates))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
