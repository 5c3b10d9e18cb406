package dating

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/imadgeboyega/heartwing-backend/internal/common/apperrors"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// alwaysRoll makes every probability check succeed, neverRoll none.
func alwaysRoll() butterfly.RandomSource { return butterfly.SourceFunc(func() float64 { return 0 }) }
func neverRoll() butterfly.RandomSource  { return butterfly.SourceFunc(func() float64 { return 0.9999 }) }

type fixture struct {
	repo  *memoryRepository
	svc   *service
	clock *testClock
}

func newFixture(t *testing.T, rng butterfly.RandomSource, opts Options) *fixture {
	t.Helper()
	repo := newMemoryRepository()
	clock := newTestClock()
	opts.Clock = clock.Now
	svc := newService(repo, butterfly.NewEngine(butterfly.DefaultSettings(), rng), opts)

	profiles := map[int64]*ProfileDTO{
		3: {Username: "ada", Interests: []string{"hiking", "jazz", "coffee"}},
		7: {Username: "grace", Interests: []string{"jazz", "coffee", "chess"}},
		9: {Username: "linus", Interests: []string{"kernels"}},
	}
	for id, p := range profiles {
		_, err := svc.UpdateProfile(context.Background(), id, p)
		require.NoError(t, err)
	}
	return &fixture{repo: repo, svc: svc, clock: clock}
}

// activate runs the mutual like between members 3 and 7.
func (f *fixture) activate(t *testing.T) *butterfly.Match {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 7})
	require.NoError(t, err)
	res, err := f.svc.Like(ctx, 7, &LikeDTO{TargetUserID: 3})
	require.NoError(t, err)
	require.True(t, res.Matched)
	return res.Match
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperrors.As(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	assert.Equal(t, code, ae.Code)
}

type memberID int64

func (id memberID) Matches(x interface{}) bool {
	mb, ok := x.(*butterfly.Member)
	return ok && mb != nil && mb.ID == int64(id)
}

func (id memberID) String() string { return fmt.Sprintf("is member %d", int64(id)) }

func TestLike_MutualLikeActivatesMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)
	f := newFixture(t, neverRoll(), Options{Publisher: pub})
	ctx := context.Background()

	pub.EXPECT().Publish(gomock.Any(), []int64{3, 7}, EventTypeMatchActivated, gomock.Any()).Times(1)

	first, err := f.svc.Like(ctx, 7, &LikeDTO{TargetUserID: 3})
	require.NoError(t, err)
	assert.False(t, first.Matched)
	assert.Equal(t, butterfly.StatusPending, first.Match.Status)
	assert.Equal(t, int64(3), first.Match.User1ID)

	second, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 7})
	require.NoError(t, err)
	assert.True(t, second.Matched)
	assert.Equal(t, first.Match.ID, second.Match.ID)
	assert.Equal(t, butterfly.StatusActive, second.Match.Status)
	require.Len(t, second.Match.Rewards, 1)
	assert.Equal(t, butterfly.TierMonarch, second.Match.Rewards[0].Tier)
	assert.True(t, second.Match.HasMilestone(butterfly.MilestoneFirstMessage))

	// Liking an active match again lands nothing new.
	third, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 7})
	require.NoError(t, err)
	assert.False(t, third.Matched)
	assert.Len(t, third.Match.Rewards, 1)
}

func TestLike_Rejects(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()

	_, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 3})
	assert.ErrorIs(t, err, butterfly.ErrSelfMatch)

	_, err = f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 42})
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = f.svc.Like(ctx, 3, &LikeDTO{})
	requireCode(t, err, apperrors.CodeInvalid)

	m := f.activate(t)
	_, err = f.svc.SetStatus(ctx, m.ID, 3, &SetStatusDTO{Status: "ended"})
	require.NoError(t, err)
	_, err = f.svc.Like(ctx, 7, &LikeDTO{TargetUserID: 3})
	assert.ErrorIs(t, err, butterfly.ErrInvalidStatus)
}

func TestRecordInteraction_ReplaysByEventID(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	dto := &RecordInteractionDTO{
		EventID: "evt-1",
		Trigger: "message",
		Message: &MessageDTO{Content: "hello there", MessageType: "text"},
	}
	first, err := f.svc.RecordInteraction(ctx, m.ID, 3, dto)
	require.NoError(t, err)
	require.True(t, first.Generated)
	require.NotNil(t, first.MessageID)

	second, err := f.svc.RecordInteraction(ctx, m.ID, 3, dto)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Rewards, 2)
	assert.Len(t, f.repo.messages, 1)

	msg, err := f.repo.GetMessage(ctx, *first.MessageID)
	require.NoError(t, err)
	assert.True(t, msg.HasReward)
	require.Len(t, msg.RewardInteractions, 1)
	assert.Equal(t, butterfly.InteractionLanded, msg.RewardInteractions[0].Kind)
}

func TestRecordInteraction_ConcurrentEventsOnOneMatch(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := int64(3)
			if i%2 == 1 {
				actor = 7
			}
			_, err := f.svc.RecordInteraction(ctx, m.ID, actor, &RecordInteractionDTO{
				EventID: fmt.Sprintf("tap-%d", i),
				Trigger: "flutter_tap",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Rewards, n+1)
	// created, activated, then one commit per event
	assert.Equal(t, int64(n+2), stored.Version)
}

func TestRecordInteraction_ConcurrentRetriesOfOneEvent(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	const n = 8
	outcomes := make([]*butterfly.RewardOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{
				EventID: "same-tap",
				Trigger: "flutter_tap",
			})
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes[1:] {
		assert.Equal(t, outcomes[0], out)
	}
	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Rewards, 2)
}

func TestRecordInteraction_Rejects(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()

	pending, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 9})
	require.NoError(t, err)
	_, err = f.svc.RecordInteraction(ctx, pending.Match.ID, 3, &RecordInteractionDTO{Trigger: "flutter_tap"})
	assert.ErrorIs(t, err, butterfly.ErrMatchNotActive)

	m := f.activate(t)
	_, err = f.svc.RecordInteraction(ctx, m.ID, 9, &RecordInteractionDTO{Trigger: "flutter_tap"})
	assert.ErrorIs(t, err, butterfly.ErrNotParticipant)

	_, err = f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{Trigger: "wink"})
	assert.ErrorIs(t, err, butterfly.ErrInvalidTrigger)

	_, err = f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{
		Trigger: "message",
		Message: &MessageDTO{MessageType: "hologram"},
	})
	assert.ErrorIs(t, err, butterfly.ErrInvalidMessageType)

	_, err = f.svc.RecordInteraction(ctx, 999, 3, &RecordInteractionDTO{Trigger: "flutter_tap"})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestMutate_RetriesVersionConflicts(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{MaxCommitAttempts: 3})
	ctx := context.Background()
	m := f.activate(t)

	fails := 2
	f.repo.failCommit = func(*ChangeSet) error {
		if fails > 0 {
			fails--
			return ErrVersionConflict
		}
		return nil
	}
	_, err := f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{EventID: "e1", Trigger: "flutter_tap"})
	require.NoError(t, err)
	assert.Zero(t, fails)

	f.repo.failCommit = func(*ChangeSet) error { return ErrVersionConflict }
	_, err = f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{EventID: "e2", Trigger: "flutter_tap"})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestMutate_StorageFailureIsOutcomeUnknown(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	f.repo.failCommit = func(*ChangeSet) error { return errors.New("connection reset by peer") }
	_, err := f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{EventID: "e3", Trigger: "flutter_tap"})
	requireCode(t, err, apperrors.CodeOutcomeUnknown)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Version, stored.Version)
	assert.Len(t, stored.Rewards, 1)
	_, err = f.repo.GetRewardEvent(ctx, "e3")
	assert.ErrorIs(t, err, ErrNotFound)

	// The same event id can be retried once the store is back.
	f.repo.failCommit = nil
	out, err := f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{EventID: "e3", Trigger: "flutter_tap"})
	require.NoError(t, err)
	assert.True(t, out.Generated)
}

func heartSamples() []butterfly.HeartSample {
	return []butterfly.HeartSample{
		{UserID: 3, Seq: 0, Rate: 72},
		{UserID: 7, Seq: 0, Rate: 70},
		{UserID: 3, Seq: 1, Rate: 75},
		{UserID: 7, Seq: 1, Rate: 78},
	}
}

func TestEndHeartSync_FoldsAndReplays(t *testing.T) {
	ctrl := gomock.NewController(t)
	archive := NewMockSampleArchive(ctrl)
	f := newFixture(t, neverRoll(), Options{Archive: archive})
	ctx := context.Background()
	m := f.activate(t)

	samples := heartSamples()
	archive.EXPECT().
		Archive(gomock.Any(), m.ID, "sess-1", samples).
		Return("file:///var/lib/heartwing/sess-1.json", nil).
		Times(1)

	dto := &EndHeartSyncDTO{SessionID: "sess-1", Samples: samples, ElapsedSeconds: 90}
	res, err := f.svc.EndHeartSync(ctx, m.ID, 3, dto)
	require.NoError(t, err)
	assert.Equal(t, 100, res.SyncPercentage)
	assert.True(t, res.RewardGenerated)
	require.NotNil(t, res.Tier)
	assert.Equal(t, 1, res.TotalSessions)
	assert.Equal(t, 1.5, res.DurationMinutes)
	assert.Equal(t, 74, res.AvgHeartRate)

	again, err := f.svc.EndHeartSync(ctx, m.ID, 7, dto)
	require.NoError(t, err)
	assert.Equal(t, res, again)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.HeartSyncSessions)
	assert.True(t, stored.HasMilestone(butterfly.MilestoneFirstHeartSync))

	for _, id := range []int64{3, 7} {
		mb, err := f.svc.GetMember(ctx, id)
		require.NoError(t, err)
		require.Len(t, mb.HeartRateHistory, 1)
		assert.Equal(t, 74, mb.HeartRateHistory[0].Rate)
	}
}

func TestEndHeartSync_ArchiveFailureDoesNotFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	archive := NewMockSampleArchive(ctrl)
	f := newFixture(t, neverRoll(), Options{Archive: archive})
	m := f.activate(t)

	archive.EXPECT().Archive(gomock.Any(), m.ID, gomock.Any(), gomock.Any()).Return("", errors.New("bucket missing"))

	res, err := f.svc.EndHeartSync(context.Background(), m.ID, 3, &EndHeartSyncDTO{Samples: heartSamples(), ElapsedSeconds: 60})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSessions)
}

func TestEndHeartSync_RejectsSamples(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	_, err := f.svc.EndHeartSync(ctx, m.ID, 3, &EndHeartSyncDTO{Samples: []butterfly.HeartSample{
		{UserID: 3, Seq: 0, Rate: 230},
	}})
	assert.ErrorIs(t, err, butterfly.ErrHeartRateOutOfRange)

	_, err = f.svc.EndHeartSync(ctx, m.ID, 3, &EndHeartSyncDTO{Samples: []butterfly.HeartSample{
		{UserID: 9, Seq: 0, Rate: 80},
	}})
	assert.ErrorIs(t, err, butterfly.ErrMalformedSamples)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.HeartSyncSessions)
}

func TestEndHeartSync_ReplayOnlyNeverFolds(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	_, err := f.svc.EndHeartSync(ctx, m.ID, 3, &EndHeartSyncDTO{SessionID: "sess-lost", ElapsedSeconds: 60, ReplayOnly: true})
	assert.ErrorIs(t, err, ErrSessionUnknown)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.HeartSyncSessions)
	assert.Empty(t, stored.HeartSyncHistory)

	res, err := f.svc.EndHeartSync(ctx, m.ID, 3, &EndHeartSyncDTO{SessionID: "sess-2", Samples: heartSamples(), ElapsedSeconds: 60})
	require.NoError(t, err)
	again, err := f.svc.EndHeartSync(ctx, m.ID, 7, &EndHeartSyncDTO{SessionID: "sess-2", ReplayOnly: true})
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestStartHeartSync(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()

	pending, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 9})
	require.NoError(t, err)
	_, err = f.svc.StartHeartSync(ctx, pending.Match.ID, 3)
	assert.ErrorIs(t, err, butterfly.ErrMatchNotActive)

	m := f.activate(t)
	handle, err := f.svc.StartHeartSync(ctx, m.ID, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.SessionID)
	assert.Equal(t, 60, handle.DurationSeconds)
	assert.Equal(t, 1000, handle.SampleIntervalMs)
	assert.Equal(t, 80, handle.TargetSyncPercent)
}

func TestAchieveMilestone(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	tier := "glasswing"
	out, err := f.svc.AchieveMilestone(ctx, m.ID, 3, &AchieveMilestoneDTO{Kind: "deep_conversation", RewardTier: &tier})
	require.NoError(t, err)
	require.NotNil(t, out.RewardTier)
	assert.Equal(t, butterfly.TierGlasswing, *out.RewardTier)

	_, err = f.svc.AchieveMilestone(ctx, m.ID, 3, &AchieveMilestoneDTO{Kind: "deep_conversation"})
	requireCode(t, err, apperrors.CodeAlreadyAchieved)

	_, err = f.svc.AchieveMilestone(ctx, m.ID, 3, &AchieveMilestoneDTO{Kind: "first_kiss"})
	assert.ErrorIs(t, err, butterfly.ErrInvalidMilestone)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, butterfly.TierGlasswing, stored.Rewards[len(stored.Rewards)-1].Tier)
}

func TestAchieveMilestone_ReplaysByEventID(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	tier := "glasswing"
	dto := &AchieveMilestoneDTO{EventID: "ms-1", Kind: "first_voice", RewardTier: &tier}
	first, err := f.svc.AchieveMilestone(ctx, m.ID, 3, dto)
	require.NoError(t, err)

	// A retried call answers from the stored outcome instead of AlreadyAchieved.
	again, err := f.svc.AchieveMilestone(ctx, m.ID, 7, dto)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	landed := 0
	for _, r := range stored.Rewards {
		if r.Trigger == butterfly.TriggerMilestone {
			landed++
		}
	}
	assert.Equal(t, 1, landed)

	ev, err := f.repo.GetRewardEvent(ctx, "ms-1")
	require.NoError(t, err)
	assert.Equal(t, EventMilestone, ev.Kind)
}

func TestCollectReward(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	res, err := f.svc.CollectReward(ctx, m.ID, 3, &CollectRewardDTO{Tier: "monarch"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.NewCollectionRate)

	_, err = f.svc.CollectReward(ctx, m.ID, 3, &CollectRewardDTO{Tier: "monarch"})
	assert.ErrorIs(t, err, butterfly.ErrNoLandedReward)

	// Each participant collects on their own.
	_, err = f.svc.CollectReward(ctx, m.ID, 7, &CollectRewardDTO{Tier: "monarch"})
	require.NoError(t, err)

	_, err = f.svc.CollectReward(ctx, m.ID, 3, &CollectRewardDTO{Tier: "morpho"})
	assert.ErrorIs(t, err, butterfly.ErrNoLandedReward)

	_, err = f.svc.CollectReward(ctx, m.ID, 3, &CollectRewardDTO{Tier: "dragonfly"})
	assert.ErrorIs(t, err, butterfly.ErrInvalidTier)

	mb, err := f.svc.GetMember(ctx, 3)
	require.NoError(t, err)
	require.Len(t, mb.ButterfliesCollected, 1)
	assert.Equal(t, m.ID, mb.ButterfliesCollected[0].SourceMatch)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasMilestone(butterfly.MilestoneButterflyCollection))
}

// collectAll drains every uncollected reward of tier for userID.
func collectAll(t *testing.T, f *fixture, matchID, userID int64, tier butterfly.Tier) {
	t.Helper()
	for {
		_, err := f.svc.CollectReward(context.Background(), matchID, userID, &CollectRewardDTO{Tier: string(tier)})
		if err != nil {
			require.ErrorIs(t, err, butterfly.ErrNoLandedReward)
			return
		}
	}
}

func TestCollectReward_RecordsOnMessage(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	out, err := f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{
		Trigger: "message",
		Message: &MessageDTO{Content: "good morning", MessageType: "text"},
	})
	require.NoError(t, err)
	require.True(t, out.Generated)

	collectAll(t, f, m.ID, 7, *out.Tier)

	msg, err := f.repo.GetMessage(ctx, *out.MessageID)
	require.NoError(t, err)
	require.Len(t, msg.RewardInteractions, 2)
	assert.Equal(t, int64(3), msg.RewardInteractions[0].UserID)
	assert.Equal(t, butterfly.InteractionCollected, msg.RewardInteractions[1].Kind)
	assert.Equal(t, int64(7), msg.RewardInteractions[1].UserID)
}

func TestCollectReward_ExpiredMessage(t *testing.T) {
	f := newFixture(t, alwaysRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	out, err := f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{
		Trigger: "message",
		Message: &MessageDTO{Content: "now you see me", MessageType: "ghost_glimpse"},
	})
	require.NoError(t, err)
	require.True(t, out.Generated)
	f.repo.DeleteMessage(*out.MessageID)

	collectAll(t, f, m.ID, 3, *out.Tier)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	for _, r := range stored.Rewards {
		if r.Tier == *out.Tier {
			assert.Contains(t, r.CollectedBy, int64(3))
		}
	}
}

func TestCheckGhosting(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	report, err := f.svc.CheckGhosting(ctx, m.ID, 3)
	require.NoError(t, err)
	assert.False(t, report.IsGhosted)

	f.clock.Advance(73 * time.Hour)
	report, err = f.svc.CheckGhosting(ctx, m.ID, 3)
	require.NoError(t, err)
	assert.True(t, report.IsGhosted)
	assert.Equal(t, []int64{3, 7}, report.SilentUserIDs)

	// A message from one side clears the flag; the other side is still silent.
	_, err = f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{
		Trigger: "message",
		Message: &MessageDTO{Content: "sorry, busy week", MessageType: "text"},
	})
	require.NoError(t, err)
	report, err = f.svc.CheckGhosting(ctx, m.ID, 7)
	require.NoError(t, err)
	assert.True(t, report.IsGhosted)
	assert.Equal(t, []int64{7}, report.SilentUserIDs)
}

func TestSweepGhosting_WarnsOncePerEpisode(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := NewMockNotifier(ctrl)
	pub := NewMockPublisher(ctrl)
	f := newFixture(t, neverRoll(), Options{Notifier: notifier, Publisher: pub, SweepBatchSize: 1})
	ctx := context.Background()

	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), EventTypeMatchActivated, gomock.Any()).Times(1)
	m := f.activate(t)

	// Pending matches are not swept.
	_, err := f.svc.Like(ctx, 3, &LikeDTO{TargetUserID: 9})
	require.NoError(t, err)

	f.clock.Advance(80 * time.Hour)
	pub.EXPECT().Publish(gomock.Any(), []int64{3, 7}, EventTypeGhosting, gomock.Any()).Times(1)
	notifier.EXPECT().GhostingWarning(gomock.Any(), memberID(3), memberID(7), m.ID).Return(nil)
	notifier.EXPECT().GhostingWarning(gomock.Any(), memberID(7), memberID(3), m.ID).Return(nil)

	require.NoError(t, f.svc.SweepGhosting(ctx))
	require.NoError(t, f.svc.SweepGhosting(ctx))

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Ghosting.IsGhosted)
	assert.True(t, stored.Ghosting.WarningSent)
}

func TestSweepGhosting_NotifierFailureIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := NewMockNotifier(ctrl)
	f := newFixture(t, neverRoll(), Options{Notifier: notifier})
	m := f.activate(t)

	f.clock.Advance(80 * time.Hour)
	notifier.EXPECT().GhostingWarning(gomock.Any(), gomock.Any(), gomock.Any(), m.ID).
		Return(errors.New("no reachable channel")).Times(2)

	require.NoError(t, f.svc.SweepGhosting(context.Background()))
}

// unreachableMember fails lookups of one member with a storage error.
type unreachableMember struct {
	*memoryRepository
	id int64
}

func (r *unreachableMember) GetMember(ctx context.Context, id int64) (*butterfly.Member, error) {
	if id == r.id {
		return nil, errors.New("connection reset by peer")
	}
	return r.memoryRepository.GetMember(ctx, id)
}

func TestSweepGhosting_PartnerLookupFailureIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := NewMockNotifier(ctrl)
	f := newFixture(t, neverRoll(), Options{})
	m := f.activate(t)

	svc := newService(&unreachableMember{memoryRepository: f.repo, id: 7},
		butterfly.NewEngine(butterfly.DefaultSettings(), neverRoll()),
		Options{Clock: f.clock.Now, Notifier: notifier})

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	f.clock.Advance(80 * time.Hour)
	notifier.EXPECT().GhostingWarning(gomock.Any(), memberID(3), gomock.Nil(), m.ID).Return(nil).Times(1)

	require.NoError(t, svc.SweepGhosting(context.Background()))
	assert.Contains(t, logs.String(), "Partner lookup for ghosting warning to member 3 failed")
	assert.Contains(t, logs.String(), "Ghosting warning skipped for member 7")
}

func TestCompatibility(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	c, err := f.svc.GetCompatibility(ctx, m.ID, 3)
	require.NoError(t, err)
	assert.Greater(t, c.Breakdown.InterestScore, 0.0)

	stored, err := f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Score, stored.CompatibilityScore)

	// Dropping the shared interests lowers the score on the next refresh.
	_, err = f.svc.UpdateProfile(ctx, 7, &ProfileDTO{Username: "grace", Interests: []string{"sailing"}})
	require.NoError(t, err)
	require.NoError(t, f.svc.RefreshCompatibility(ctx))

	stored, err = f.repo.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Less(t, stored.CompatibilityScore, c.Score)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	paused, err := f.svc.SetStatus(ctx, m.ID, 3, &SetStatusDTO{Status: "paused"})
	require.NoError(t, err)
	assert.Equal(t, butterfly.StatusPaused, paused.Status)

	_, err = f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{Trigger: "flutter_tap"})
	assert.ErrorIs(t, err, butterfly.ErrMatchNotActive)

	_, err = f.svc.SetStatus(ctx, m.ID, 7, &SetStatusDTO{Status: "active"})
	require.NoError(t, err)
	_, err = f.svc.RecordInteraction(ctx, m.ID, 3, &RecordInteractionDTO{Trigger: "flutter_tap"})
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, m.ID, 9, &SetStatusDTO{Status: "blocked"})
	assert.ErrorIs(t, err, butterfly.ErrNotParticipant)

	_, err = f.svc.SetStatus(ctx, m.ID, 3, &SetStatusDTO{Status: "pending"})
	requireCode(t, err, apperrors.CodeInvalid)
}

func TestGetMatches(t *testing.T) {
	f := newFixture(t, neverRoll(), Options{})
	ctx := context.Background()
	m := f.activate(t)

	matches, err := f.svc.GetMatches(ctx, 7)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, m.ID, matches[0].ID)

	_, err = f.svc.GetMatch(ctx, m.ID, 9)
	assert.ErrorIs(t, err, butterfly.ErrNotParticipant)
}
