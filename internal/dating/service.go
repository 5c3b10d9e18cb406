// internal/dating/service.go

package dating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/imadgeboyega/heartwing-backend/internal/common/apperrors"
	"github.com/imadgeboyega/heartwing-backend/internal/common/utils"
)

var (
	ErrMatchNotFound  = apperrors.NotFound("match not found")
	ErrMemberNotFound = apperrors.NotFound("member not found")
	ErrSessionUnknown = apperrors.NotFound("heart sync session not found")
)

// Real-time event types pushed to participants.
const (
	EventTypeNewMessage      = "new_message"
	EventTypeRewardOutcome   = "butterfly_reward"
	EventTypeHeartSyncStart  = "heart_sync_started"
	EventTypeHeartSyncResult = "heart_sync_result"
	EventTypeMilestone       = "milestone_achieved"
	EventTypeMatchActivated  = "match_activated"
	EventTypeCollected       = "butterfly_collected"
	EventTypeGhosting        = "ghosting_detected"
)

//go:generate mockgen -destination=mock_deps_test.go -package=dating -self_package=github.com/imadgeboyega/heartwing-backend/internal/dating github.com/imadgeboyega/heartwing-backend/internal/dating Notifier,Publisher,SampleArchive

// Publisher fans committed outcomes out to connected clients.
type Publisher interface {
	Publish(ctx context.Context, userIDs []int64, eventType string, payload interface{})
}

// Notifier reaches members outside the app.
type Notifier interface {
	GhostingWarning(ctx context.Context, silent, partner *butterfly.Member, matchID int64) error
}

// SampleArchive keeps raw heart sync samples after a session was folded.
type SampleArchive interface {
	Archive(ctx context.Context, matchID int64, sessionID string, samples []butterfly.HeartSample) (string, error)
}

type Service interface {
	// Members
	UpdateProfile(ctx context.Context, userID int64, dto *ProfileDTO) (*butterfly.Member, error)
	GetMember(ctx context.Context, userID int64) (*butterfly.Member, error)

	// Match lifecycle
	Like(ctx context.Context, userID int64, dto *LikeDTO) (*LikeResult, error)
	GetMatches(ctx context.Context, userID int64) ([]*butterfly.Match, error)
	GetMatch(ctx context.Context, matchID, userID int64) (*butterfly.Match, error)
	SetStatus(ctx context.Context, matchID, userID int64, dto *SetStatusDTO) (*butterfly.Match, error)

	// Engine operations
	RecordInteraction(ctx context.Context, matchID, userID int64, dto *RecordInteractionDTO) (*butterfly.RewardOutcome, error)
	StartHeartSync(ctx context.Context, matchID, userID int64) (*SessionHandle, error)
	EndHeartSync(ctx context.Context, matchID, userID int64, dto *EndHeartSyncDTO) (*butterfly.HeartSyncResult, error)
	AchieveMilestone(ctx context.Context, matchID, userID int64, dto *AchieveMilestoneDTO) (*butterfly.MilestoneOutcome, error)
	CheckGhosting(ctx context.Context, matchID, userID int64) (*GhostingReport, error)
	CollectReward(ctx context.Context, matchID, userID int64, dto *CollectRewardDTO) (*CollectResult, error)
	GetCompatibility(ctx context.Context, matchID, userID int64) (*butterfly.Compatibility, error)

	// Scheduled Jobs
	SweepGhosting(ctx context.Context) error
	RefreshCompatibility(ctx context.Context) error
}

type Options struct {
	MaxCommitAttempts int
	SweepBatchSize    int
	Clock             func() time.Time
	Cache             OutcomeCache
	Publisher         Publisher
	Notifier          Notifier
	Archive           SampleArchive
}

type service struct {
	repo        Repository
	engine      *butterfly.Engine
	locks       *keyedLocks
	cache       OutcomeCache
	publisher   Publisher
	notifier    Notifier
	archive     SampleArchive
	clock       func() time.Time
	maxAttempts int
	batchSize   int
}

func NewService(repo Repository, engine *butterfly.Engine, opts Options) Service {
	return newService(repo, engine, opts)
}

func newService(repo Repository, engine *butterfly.Engine, opts Options) *service {
	s := &service{
		repo:        repo,
		engine:      engine,
		locks:       newKeyedLocks(),
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		notifier:    opts.Notifier,
		archive:     opts.Archive,
		clock:       opts.Clock,
		maxAttempts: opts.MaxCommitAttempts,
		batchSize:   opts.SweepBatchSize,
	}
	if s.cache == nil {
		s.cache = NewNoopOutcomeCache()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 3
	}
	if s.batchSize <= 0 {
		s.batchSize = 200
	}
	return s
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// txn is the working state of one attempt.
type txn struct {
	match   *butterfly.Match
	members map[int64]*butterfly.Member
	cs      ChangeSet
}

type mutation struct {
	matchID int64
	// actor must be a participant when set.
	actor int64
	// members lists member records to lock and load alongside the match.
	members func(m *butterfly.Match) []int64
	apply   func(ctx context.Context, tx *txn) error
}

// mutate runs one read-modify-write against a match. The match lock is held
// for the whole call, member locks are taken after it in ascending id order.
// Version conflicts reload fresh state and retry up to maxAttempts.
func (s *service) mutate(ctx context.Context, mu mutation) error {
	unlock, err := s.locks.Lock(ctx, matchKey(mu.matchID))
	if err != nil {
		return err
	}
	defer unlock()

	var unlockMembers func()
	defer func() {
		if unlockMembers != nil {
			unlockMembers()
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		m, err := s.loadMatch(ctx, mu.matchID)
		if err != nil {
			return err
		}
		if mu.actor > 0 && !m.HasParticipant(mu.actor) {
			return butterfly.ErrNotParticipant
		}

		tx := &txn{match: m, members: make(map[int64]*butterfly.Member)}
		if mu.members != nil {
			ids := mu.members(m)
			if unlockMembers == nil && len(ids) > 0 {
				if unlockMembers, err = s.locks.lockMembers(ctx, ids); err != nil {
					return err
				}
			}
			for _, id := range ids {
				mb, err := s.repo.GetMember(ctx, id)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return apperrors.Internal("failed to load member", err)
				}
				tx.members[id] = mb
			}
		}

		if err := mu.apply(ctx, tx); err != nil {
			return err
		}
		if tx.cs.empty() {
			return nil
		}

		err = s.repo.Commit(ctx, &tx.cs)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrVersionConflict):
			commitConflicts.Inc()
			lastErr = err
			log.Printf("match %d: version conflict on attempt %d/%d", mu.matchID, attempt, s.maxAttempts)
		case errors.Is(err, ErrDuplicateEvent):
			return err
		default:
			return apperrors.OutcomeUnknown("failed to persist changes, outcome unknown", err)
		}
	}
	return apperrors.Conflict(fmt.Sprintf("match %d is busy, retry later", mu.matchID), lastErr)
}

func (s *service) loadMatch(ctx context.Context, matchID int64) (*butterfly.Match, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load match", err)
	}
	return m, nil
}

func participants(m *butterfly.Match) []int64 {
	p := m.Participants()
	return p[:]
}

func membersOf(tx *txn) []*butterfly.Member {
	out := make([]*butterfly.Member, 0, len(tx.members))
	for _, mb := range tx.members {
		out = append(out, mb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validate(dto interface{}) error {
	if err := utils.ValidateStruct(dto); err != nil {
		return apperrors.Validation(err.Error())
	}
	return nil
}

// replay looks an event id up in the cache and then in the store. It reports
// whether a stored outcome was decoded into dst.
func (s *service) replay(ctx context.Context, eventID string, dst interface{}) (bool, error) {
	raw, ok, err := s.cache.Get(ctx, eventID)
	if err != nil {
		log.Printf("outcome cache lookup for %s failed: %v", eventID, err)
	}
	if ok && json.Unmarshal(raw, dst) == nil {
		idempotentReplays.WithLabelValues("cache").Inc()
		return true, nil
	}

	ev, err := s.repo.GetRewardEvent(ctx, eventID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internal("failed to look up event", err)
	}
	if err := json.Unmarshal(ev.Outcome, dst); err != nil {
		return false, apperrors.Internal("stored outcome is unreadable", err)
	}
	s.remember(ctx, eventID, ev.Outcome)
	idempotentReplays.WithLabelValues("store").Inc()
	return true, nil
}

func (s *service) remember(ctx context.Context, eventID string, outcome []byte) {
	if err := s.cache.Set(ctx, eventID, outcome); err != nil {
		log.Printf("outcome cache store for %s failed: %v", eventID, err)
	}
}

func (s *service) publish(ctx context.Context, userIDs []int64, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, userIDs, eventType, payload)
}

func observe(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Members

func (s *service) UpdateProfile(ctx context.Context, userID int64, dto *ProfileDTO) (*butterfly.Member, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}
	mb := &butterfly.Member{
		ID:         userID,
		Username:   dto.Username,
		PushTokens: dto.PushTokens,
		Interests:  dto.Interests,
	}
	if dto.Email != "" {
		mb.Email = &dto.Email
	}
	if dto.Phone != "" {
		mb.Phone = &dto.Phone
	}
	if err := s.repo.SaveProfile(ctx, mb); err != nil {
		return nil, apperrors.Internal("failed to save profile", err)
	}
	return s.GetMember(ctx, userID)
}

func (s *service) GetMember(ctx context.Context, userID int64) (*butterfly.Member, error) {
	mb, err := s.repo.GetMember(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load member", err)
	}
	return mb, nil
}

// Match lifecycle

func (s *service) Like(ctx context.Context, userID int64, dto *LikeDTO) (*LikeResult, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}
	target := dto.TargetUserID
	if target == userID {
		return nil, butterfly.ErrSelfMatch
	}
	for _, id := range []int64{userID, target} {
		if _, err := s.GetMember(ctx, id); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locks.Lock(ctx, pairLockKey(userID, target))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var existing *butterfly.Match
	for attempt := 1; existing == nil; attempt++ {
		m, err := s.repo.GetMatchByPair(ctx, userID, target)
		if err == nil {
			existing = m
			break
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, apperrors.Internal("failed to load match", err)
		}

		now := s.now()
		m, err = butterfly.NewMatch(userID, target, s.engine.Settings(), now)
		if err != nil {
			return nil, err
		}
		if _, err := s.engine.Like(m, userID, uuid.NewString(), now); err != nil {
			return nil, err
		}
		err = s.repo.CreateMatch(ctx, m)
		if err == nil {
			return &LikeResult{Match: m}, nil
		}
		if !errors.Is(err, ErrDuplicateMatch) || attempt >= s.maxAttempts {
			return nil, apperrors.OutcomeUnknown("failed to create match, outcome unknown", err)
		}
	}

	var res LikeResult
	err = s.mutate(ctx, mutation{
		matchID: existing.ID,
		actor:   userID,
		apply: func(ctx context.Context, tx *txn) error {
			matched, err := s.engine.Like(tx.match, userID, uuid.NewString(), s.now())
			if err != nil {
				return err
			}
			tx.cs.Match = tx.match
			res = LikeResult{Match: tx.match, Matched: matched}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if res.Matched {
		matchesActivated.Inc()
		rewardsLanded.WithLabelValues(string(butterfly.TriggerMilestone), string(butterfly.TierMonarch)).Inc()
		s.publish(ctx, participants(res.Match), EventTypeMatchActivated, res.Match)
	}
	return &res, nil
}

func (s *service) GetMatches(ctx context.Context, userID int64) ([]*butterfly.Match, error) {
	matches, err := s.repo.GetUserMatches(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load matches", err)
	}
	return matches, nil
}

func (s *service) GetMatch(ctx context.Context, matchID, userID int64) (*butterfly.Match, error) {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(userID) {
		return nil, butterfly.ErrNotParticipant
	}
	return m, nil
}

func (s *service) SetStatus(ctx context.Context, matchID, userID int64, dto *SetStatusDTO) (*butterfly.Match, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}
	var out *butterfly.Match
	err := s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		apply: func(ctx context.Context, tx *txn) error {
			if err := butterfly.SetStatus(tx.match, butterfly.MatchStatus(dto.Status), s.now()); err != nil {
				return err
			}
			tx.cs.Match = tx.match
			out = tx.match
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Engine operations

func (s *service) RecordInteraction(ctx context.Context, matchID, userID int64, dto *RecordInteractionDTO) (*butterfly.RewardOutcome, error) {
	defer observe("record_interaction", time.Now())

	if err := validate(dto); err != nil {
		return nil, err
	}
	trigger := butterfly.Trigger(dto.Trigger)
	if !trigger.Valid() {
		return nil, butterfly.ErrInvalidTrigger
	}
	if dto.Message != nil && !butterfly.MessageType(dto.Message.MessageType).Valid() {
		return nil, butterfly.ErrInvalidMessageType
	}

	eventID := dto.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	var out butterfly.RewardOutcome
	if ok, err := s.replay(ctx, eventID, &out); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return &out, nil
	}

	var messageID int64
	if dto.Message != nil {
		id, err := s.repo.NextMessageID(ctx)
		if err != nil {
			return nil, apperrors.Internal("failed to allocate message id", err)
		}
		messageID = id
	}

	var (
		replayed bool
		msg      *butterfly.Message
		parts    []int64
	)
	err := s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		apply: func(ctx context.Context, tx *txn) error {
			// Another request may have committed the event while we waited.
			ok, err := s.replay(ctx, eventID, &out)
			if err != nil {
				return err
			}
			if ok {
				replayed = true
				return nil
			}

			now := s.now()
			msg = nil
			if dto.Message != nil {
				msg = &butterfly.Message{
					ID:          messageID,
					MatchID:     matchID,
					SenderID:    userID,
					Content:     dto.Message.Content,
					MessageType: butterfly.MessageType(dto.Message.MessageType),
					Sentiment:   dto.Message.Sentiment,
					CreatedAt:   now,
				}
			}
			res, err := s.engine.OnInteraction(tx.match, butterfly.Interaction{
				EventID: eventID,
				ActorID: userID,
				Trigger: trigger,
				Context: dto.Context,
				Message: msg,
				Now:     now,
			})
			if err != nil {
				return err
			}
			raw, err := json.Marshal(res)
			if err != nil {
				return apperrors.Internal("failed to encode outcome", err)
			}

			out = res
			parts = participants(tx.match)
			tx.cs.Match = tx.match
			if msg != nil {
				tx.cs.NewMessages = append(tx.cs.NewMessages, msg)
			}
			tx.cs.Event = &RewardEvent{
				EventID:   eventID,
				MatchID:   matchID,
				Kind:      EventInteraction,
				Outcome:   raw,
				CreatedAt: now,
			}
			return nil
		},
	})
	if errors.Is(err, ErrDuplicateEvent) {
		ok, rerr := s.replay(ctx, eventID, &out)
		if rerr != nil {
			return nil, rerr
		}
		if !ok {
			return nil, apperrors.OutcomeUnknown("event was recorded but its outcome is unavailable", err)
		}
		return &out, nil
	}
	if err != nil {
		return nil, err
	}
	if replayed {
		return &out, nil
	}

	raw, _ := json.Marshal(out)
	s.remember(ctx, eventID, raw)

	interactionsTotal.WithLabelValues(string(trigger)).Inc()
	rewardProbability.WithLabelValues(string(trigger)).Observe(out.Probability)
	if out.Generated {
		rewardsLanded.WithLabelValues(string(trigger), string(*out.Tier)).Inc()
	}
	if msg != nil {
		s.publish(ctx, parts, EventTypeNewMessage, msg)
	}
	s.publish(ctx, parts, EventTypeRewardOutcome, out)
	return &out, nil
}

func (s *service) StartHeartSync(ctx context.Context, matchID, userID int64) (*SessionHandle, error) {
	m, err := s.GetMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() {
		return nil, butterfly.ErrMatchNotActive
	}
	settings := s.engine.Settings()
	handle := &SessionHandle{
		SessionID:         uuid.NewString(),
		MatchID:           matchID,
		DurationSeconds:   settings.SessionDurationSeconds,
		SampleIntervalMs:  settings.SampleIntervalMs,
		TargetSyncPercent: settings.TargetSyncPercent,
		StartedAt:         s.now(),
	}
	s.publish(ctx, participants(m), EventTypeHeartSyncStart, handle)
	return handle, nil
}

func (s *service) EndHeartSync(ctx context.Context, matchID, userID int64, dto *EndHeartSyncDTO) (*butterfly.HeartSyncResult, error) {
	defer observe("end_heart_sync", time.Now())

	if err := validate(dto); err != nil {
		return nil, err
	}

	var result butterfly.HeartSyncResult
	eventID := ""
	if dto.SessionID != "" {
		eventID = "heart_sync:" + dto.SessionID
		if ok, err := s.replay(ctx, eventID, &result); err != nil || ok {
			if err != nil {
				return nil, err
			}
			return &result, nil
		}
	}
	if dto.ReplayOnly {
		return nil, ErrSessionUnknown
	}

	var (
		replayed bool
		parts    []int64
	)
	err := s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		members: participants,
		apply: func(ctx context.Context, tx *txn) error {
			if eventID != "" {
				ok, err := s.replay(ctx, eventID, &result)
				if err != nil {
					return err
				}
				if ok {
					replayed = true
					return nil
				}
			}

			now := s.now()
			rewardEventID := eventID
			if rewardEventID == "" {
				rewardEventID = uuid.NewString()
			}
			res, err := s.engine.HeartSync(tx.match, tx.members, butterfly.SessionInput{
				EventID:        rewardEventID,
				ActorID:        userID,
				Samples:        dto.Samples,
				ElapsedSeconds: dto.ElapsedSeconds,
				Now:            now,
			})
			if err != nil {
				return err
			}

			result = res
			parts = participants(tx.match)
			tx.cs.Match = tx.match
			tx.cs.Members = membersOf(tx)
			if eventID != "" {
				raw, err := json.Marshal(res)
				if err != nil {
					return apperrors.Internal("failed to encode outcome", err)
				}
				tx.cs.Event = &RewardEvent{
					EventID:   eventID,
					MatchID:   matchID,
					Kind:      EventHeartSync,
					Outcome:   raw,
					CreatedAt: now,
				}
			}
			return nil
		},
	})
	if errors.Is(err, ErrDuplicateEvent) {
		if ok, rerr := s.replay(ctx, eventID, &result); rerr == nil && ok {
			return &result, nil
		}
		return nil, apperrors.OutcomeUnknown("session was recorded but its outcome is unavailable", err)
	}
	if err != nil {
		return nil, err
	}
	if replayed {
		return &result, nil
	}

	if eventID != "" {
		raw, _ := json.Marshal(result)
		s.remember(ctx, eventID, raw)
	}
	heartSyncSessions.Inc()
	heartSyncPercentage.Observe(float64(result.SyncPercentage))
	if result.Tier != nil {
		rewardsLanded.WithLabelValues(string(butterfly.TriggerHeartSync), string(*result.Tier)).Inc()
	}
	s.archiveSamples(ctx, matchID, dto.SessionID, dto.Samples)
	s.publish(ctx, parts, EventTypeHeartSyncResult, result)
	return &result, nil
}

func (s *service) archiveSamples(ctx context.Context, matchID int64, sessionID string, samples []butterfly.HeartSample) {
	if s.archive == nil || len(samples) == 0 {
		return
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	location, err := s.archive.Archive(ctx, matchID, sessionID, samples)
	if err != nil {
		log.Printf("Failed to archive heart sync samples for match %d: %v", matchID, err)
		return
	}
	log.Printf("Archived %d heart sync samples for match %d at %s", len(samples), matchID, location)
}

func (s *service) AchieveMilestone(ctx context.Context, matchID, userID int64, dto *AchieveMilestoneDTO) (*butterfly.MilestoneOutcome, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}
	kind, err := butterfly.ParseMilestoneKind(dto.Kind)
	if err != nil {
		return nil, err
	}
	var tier *butterfly.Tier
	if dto.RewardTier != nil {
		t, err := butterfly.ParseTier(*dto.RewardTier)
		if err != nil {
			return nil, err
		}
		tier = &t
	}
	eventID := dto.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	var out butterfly.MilestoneOutcome
	if ok, err := s.replay(ctx, eventID, &out); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return &out, nil
	}

	var (
		replayed bool
		parts    []int64
	)
	err = s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		apply: func(ctx context.Context, tx *txn) error {
			ok, err := s.replay(ctx, eventID, &out)
			if err != nil {
				return err
			}
			if ok {
				replayed = true
				return nil
			}

			now := s.now()
			res, err := s.engine.AchieveMilestone(tx.match, kind, tier, eventID, now)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(res)
			if err != nil {
				return apperrors.Internal("failed to encode outcome", err)
			}
			out = res
			parts = participants(tx.match)
			tx.cs.Match = tx.match
			tx.cs.Event = &RewardEvent{
				EventID:   eventID,
				MatchID:   matchID,
				Kind:      EventMilestone,
				Outcome:   raw,
				CreatedAt: now,
			}
			return nil
		},
	})
	if errors.Is(err, ErrDuplicateEvent) {
		if ok, rerr := s.replay(ctx, eventID, &out); rerr == nil && ok {
			return &out, nil
		}
		return nil, apperrors.OutcomeUnknown("milestone was recorded but its outcome is unavailable", err)
	}
	if err != nil {
		return nil, err
	}
	if replayed {
		return &out, nil
	}

	raw, _ := json.Marshal(out)
	s.remember(ctx, eventID, raw)
	if out.RewardTier != nil {
		rewardsLanded.WithLabelValues(string(butterfly.TriggerMilestone), string(*out.RewardTier)).Inc()
	}
	s.publish(ctx, parts, EventTypeMilestone, out)
	return &out, nil
}

func (s *service) CheckGhosting(ctx context.Context, matchID, userID int64) (*GhostingReport, error) {
	var report GhostingReport
	err := s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		apply: func(ctx context.Context, tx *txn) error {
			now := s.now()
			was := tx.match.Ghosting.IsGhosted
			ghosted := butterfly.CheckGhosting(tx.match, now)
			if ghosted && !was {
				tx.cs.Match = tx.match
			}
			report = GhostingReport{
				MatchID:        matchID,
				IsGhosted:      tx.match.Ghosting.IsGhosted,
				DetectionState: tx.match.Ghosting,
				SilentUserIDs:  butterfly.SilentSides(tx.match, now),
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *service) CollectReward(ctx context.Context, matchID, userID int64, dto *CollectRewardDTO) (*CollectResult, error) {
	if err := validate(dto); err != nil {
		return nil, err
	}
	tier, err := butterfly.ParseTier(dto.Tier)
	if err != nil {
		return nil, err
	}

	var (
		result CollectResult
		parts  []int64
	)
	err = s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		members: func(*butterfly.Match) []int64 { return []int64{userID} },
		apply: func(ctx context.Context, tx *txn) error {
			mb := tx.members[userID]
			if mb == nil {
				return ErrMemberNotFound
			}
			rec, err := butterfly.FindCollectable(tx.match, userID, tier)
			if err != nil {
				return err
			}

			// The message may be gone already (ghost glimpses expire).
			var msg *butterfly.Message
			if rec.MessageID != nil {
				msg, err = s.repo.GetMessage(ctx, *rec.MessageID)
				if errors.Is(err, ErrNotFound) {
					msg = nil
				} else if err != nil {
					return apperrors.Internal("failed to load message", err)
				}
			}

			rate, err := butterfly.Collect(tx.match, mb, tier, msg, s.now())
			if err != nil {
				return err
			}
			tx.cs.Match = tx.match
			tx.cs.Members = []*butterfly.Member{mb}
			if msg != nil {
				tx.cs.Messages = []*butterfly.Message{msg}
			}
			parts = participants(tx.match)
			result = CollectResult{MatchID: matchID, Tier: tier, NewCollectionRate: rate}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	rewardsCollected.WithLabelValues(string(tier)).Inc()
	s.publish(ctx, parts, EventTypeCollected, map[string]interface{}{
		"match_id": matchID,
		"user_id":  userID,
		"tier":     tier,
	})
	return &result, nil
}

func (s *service) GetCompatibility(ctx context.Context, matchID, userID int64) (*butterfly.Compatibility, error) {
	var out butterfly.Compatibility
	err := s.mutate(ctx, mutation{
		matchID: matchID,
		actor:   userID,
		apply: func(ctx context.Context, tx *txn) error {
			c, err := s.recomputeCompatibility(ctx, tx)
			out = c
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// recomputeCompatibility reads both members without locking them; only the
// match is written.
func (s *service) recomputeCompatibility(ctx context.Context, tx *txn) (butterfly.Compatibility, error) {
	var pair [2]*butterfly.Member
	for i, id := range participants(tx.match) {
		mb, err := s.repo.GetMember(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return butterfly.Compatibility{}, apperrors.Internal("failed to load member", err)
		}
		pair[i] = mb
	}
	before := tx.match.CompatibilityScore
	c := butterfly.ApplyCompatibility(tx.match, pair[0], pair[1])
	if c.Score != before {
		tx.match.UpdatedAt = s.now()
		tx.cs.Match = tx.match
	}
	return c, nil
}

// Scheduled Jobs

// SweepGhosting runs the detector over every active match and warns silent
// members once per ghosting episode.
func (s *service) SweepGhosting(ctx context.Context) error {
	var afterID int64
	warned := 0
	for {
		matches, err := s.repo.ListMatches(ctx, butterfly.StatusActive, afterID, s.batchSize)
		if err != nil {
			return fmt.Errorf("list active matches: %w", err)
		}
		if len(matches) == 0 {
			break
		}
		for _, m := range matches {
			afterID = m.ID
			n, err := s.sweepMatch(ctx, m.ID)
			if err != nil {
				log.Printf("Ghosting sweep failed for match %d: %v", m.ID, err)
				continue
			}
			warned += n
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	log.Printf("Ghosting sweep finished: %d warnings sent", warned)
	return nil
}

func (s *service) sweepMatch(ctx context.Context, matchID int64) (int, error) {
	var (
		silent []int64
		match  *butterfly.Match
		warn   bool
	)
	err := s.mutate(ctx, mutation{
		matchID: matchID,
		apply: func(ctx context.Context, tx *txn) error {
			silent, warn = nil, false
			if !tx.match.IsActive() {
				return nil
			}
			now := s.now()
			was := tx.match.Ghosting.IsGhosted
			if !butterfly.CheckGhosting(tx.match, now) {
				return nil
			}
			silent = butterfly.SilentSides(tx.match, now)
			if !tx.match.Ghosting.WarningSent {
				tx.match.Ghosting.WarningSent = true
				warn = true
			}
			if warn || !was {
				tx.cs.Match = tx.match
			}
			match = tx.match
			return nil
		},
	})
	if err != nil || !warn {
		return 0, err
	}

	s.publish(ctx, participants(match), EventTypeGhosting, GhostingReport{
		MatchID:        matchID,
		IsGhosted:      true,
		DetectionState: match.Ghosting,
		SilentUserIDs:  silent,
	})
	if s.notifier == nil {
		return 0, nil
	}
	sent := 0
	for _, id := range silent {
		member, err := s.repo.GetMember(ctx, id)
		if err != nil {
			log.Printf("Ghosting warning skipped for member %d: %v", id, err)
			continue
		}
		partner, err := s.repo.GetMember(ctx, match.Partner(id))
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("Partner lookup for ghosting warning to member %d failed: %v", id, err)
		}
		if err := s.notifier.GhostingWarning(ctx, member, partner, matchID); err != nil {
			log.Printf("Failed to send ghosting warning to member %d: %v", id, err)
			continue
		}
		ghostingWarnings.Inc()
		sent++
	}
	return sent, nil
}

// RefreshCompatibility recomputes the stored score of every active match.
func (s *service) RefreshCompatibility(ctx context.Context) error {
	var afterID int64
	updated := 0
	for {
		matches, err := s.repo.ListMatches(ctx, butterfly.StatusActive, afterID, s.batchSize)
		if err != nil {
			return fmt.Errorf("list active matches: %w", err)
		}
		if len(matches) == 0 {
			break
		}
		for _, m := range matches {
			afterID = m.ID
			before := m.CompatibilityScore
			var after float64
			err := s.mutate(ctx, mutation{
				matchID: m.ID,
				apply: func(ctx context.Context, tx *txn) error {
					c, err := s.recomputeCompatibility(ctx, tx)
					after = c.Score
					return err
				},
			})
			if err != nil {
				log.Printf("Compatibility refresh failed for match %d: %v", m.ID, err)
				continue
			}
			if after != before {
				updated++
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	log.Printf("Compatibility refresh finished: %d matches updated", updated)
	return nil
}
