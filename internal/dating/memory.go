package dating

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
)

// memoryRepository keeps everything in process. It honors the same version
// and duplicate-event contract as the Postgres repository and hands out deep
// copies so callers never share state with the store.
type memoryRepository struct {
	mu       sync.RWMutex
	matches  map[int64]*butterfly.Match
	pairs    map[[2]int64]int64
	members  map[int64]*butterfly.Member
	messages map[int64]*butterfly.Message
	events   map[string]*RewardEvent

	nextMatchID   int64
	nextMessageID int64

	// failCommit, when set, is returned by Commit before anything is written.
	failCommit func(cs *ChangeSet) error
}

func NewMemoryRepository() Repository {
	return newMemoryRepository()
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		matches:  make(map[int64]*butterfly.Match),
		pairs:    make(map[[2]int64]int64),
		members:  make(map[int64]*butterfly.Member),
		messages: make(map[int64]*butterfly.Message),
		events:   make(map[string]*RewardEvent),
	}
}

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func (r *memoryRepository) CreateMatch(ctx context.Context, m *butterfly.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(m.User1ID, m.User2ID)
	if _, ok := r.pairs[key]; ok {
		return ErrDuplicateMatch
	}
	r.nextMatchID++
	m.ID = r.nextMatchID
	m.Version = 1
	r.matches[m.ID] = m.Clone()
	r.pairs[key] = m.ID
	return nil
}

func (r *memoryRepository) GetMatch(ctx context.Context, id int64) (*butterfly.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (r *memoryRepository) GetMatchByPair(ctx context.Context, a, b int64) (*butterfly.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.pairs[pairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.matches[id].Clone(), nil
}

func (r *memoryRepository) ListMatches(ctx context.Context, status butterfly.MatchStatus, afterID int64, limit int) ([]*butterfly.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*butterfly.Match
	for id, m := range r.matches {
		if id > afterID && m.Status == status {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) GetUserMatches(ctx context.Context, userID int64) ([]*butterfly.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*butterfly.Match
	for _, m := range r.matches {
		if m.HasParticipant(userID) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memoryRepository) GetMember(ctx context.Context, id int64) (*butterfly.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mb, ok := r.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return mb.Clone(), nil
}

func (r *memoryRepository) SaveProfile(ctx context.Context, mb *butterfly.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, ok := r.members[mb.ID]
	if !ok {
		stored := mb.Clone()
		stored.CollectionRate = 0
		stored.ButterfliesCollected = nil
		stored.HeartRateHistory = nil
		stored.Version = 1
		stored.CreatedAt, stored.UpdatedAt = now, now
		r.members[mb.ID] = stored
		mb.Version, mb.CreatedAt, mb.UpdatedAt = 1, now, now
		return nil
	}
	existing.Username = mb.Username
	existing.Email = mb.Email
	existing.Phone = mb.Phone
	existing.PushTokens = append([]string(nil), mb.PushTokens...)
	existing.Interests = append([]string(nil), mb.Interests...)
	existing.Version++
	existing.UpdatedAt = now
	mb.Version, mb.CreatedAt, mb.UpdatedAt = existing.Version, existing.CreatedAt, now
	return nil
}

func (r *memoryRepository) NextMessageID(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextMessageID++
	return r.nextMessageID, nil
}

func (r *memoryRepository) GetMessage(ctx context.Context, id int64) (*butterfly.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg.Clone(), nil
}

// DeleteMessage drops a message, the way ghost glimpses expire.
func (r *memoryRepository) DeleteMessage(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
}

func (r *memoryRepository) GetRewardEvent(ctx context.Context, eventID string) (*RewardEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *ev
	c.Outcome = append([]byte(nil), ev.Outcome...)
	return &c, nil
}

func (r *memoryRepository) Commit(ctx context.Context, cs *ChangeSet) error {
	if cs == nil || cs.empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCommit != nil {
		if err := r.failCommit(cs); err != nil {
			return err
		}
	}

	// Validate everything before writing anything.
	if cs.Event != nil {
		if _, dup := r.events[cs.Event.EventID]; dup {
			return ErrDuplicateEvent
		}
	}
	if cs.Match != nil {
		stored, ok := r.matches[cs.Match.ID]
		if !ok {
			return ErrNotFound
		}
		if stored.Version != cs.Match.Version {
			return ErrVersionConflict
		}
	}
	for _, mb := range cs.Members {
		stored, ok := r.members[mb.ID]
		if !ok {
			return ErrNotFound
		}
		if stored.Version != mb.Version {
			return ErrVersionConflict
		}
	}

	if cs.Event != nil {
		ev := *cs.Event
		ev.Outcome = append([]byte(nil), cs.Event.Outcome...)
		r.events[ev.EventID] = &ev
	}
	if cs.Match != nil {
		cs.Match.Version++
		r.matches[cs.Match.ID] = cs.Match.Clone()
	}
	for _, mb := range cs.Members {
		mb.Version++
		r.members[mb.ID] = mb.Clone()
	}
	for _, msg := range cs.NewMessages {
		r.messages[msg.ID] = msg.Clone()
	}
	for _, msg := range cs.Messages {
		if _, ok := r.messages[msg.ID]; ok {
			r.messages[msg.ID] = msg.Clone()
		}
	}
	return nil
}
