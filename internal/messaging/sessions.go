package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/imadgeboyega/heartwing-backend/internal/common/apperrors"
)

var (
	ErrUnknownSession  = apperrors.NotFound("heart sync session not found")
	ErrSessionFull     = apperrors.Validation("heart sync session has too many samples")
	ErrTooManySessions = apperrors.Conflict("too many open heart sync sessions", errors.New("session buffer full"))
	ErrSessionMismatch = apperrors.Validation("session belongs to another match")
	ErrNoSamples       = apperrors.Validation("no heart sync samples buffered for this session")
)

type sessionState int

const (
	sessionUnknown sessionState = iota
	sessionOpen
	sessionEnded
)

type bufferedSession struct {
	match    butterfly.Match
	samples  []butterfly.HeartSample
	openedAt time.Time
}

// SessionBuffer collects samples streamed by both participants until the
// session is ended. Buffers are per process.
type SessionBuffer struct {
	mu         sync.Mutex
	sessions   map[string]*bufferedSession
	ended      map[string]time.Time
	maxSamples int
	maxOpen    int
	ttl        time.Duration
	clock      func() time.Time
}

func NewSessionBuffer(maxSamples, maxOpen int, ttl time.Duration) *SessionBuffer {
	return &SessionBuffer{
		sessions:   make(map[string]*bufferedSession),
		ended:      make(map[string]time.Time),
		maxSamples: maxSamples,
		maxOpen:    maxOpen,
		ttl:        ttl,
		clock:      time.Now,
	}
}

// Has reports whether sessionID is open in this buffer.
func (b *SessionBuffer) Has(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sessionID]
	return ok
}

// Open registers a session for m. Opening an already open session of the
// same match is a no-op.
func (b *SessionBuffer) Open(m *butterfly.Match, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.ended[sessionID]; done {
		return ErrUnknownSession
	}
	if s, ok := b.sessions[sessionID]; ok {
		if s.match.ID != m.ID {
			return ErrSessionMismatch
		}
		return nil
	}
	if len(b.sessions) >= b.maxOpen {
		return ErrTooManySessions
	}
	b.sessions[sessionID] = &bufferedSession{
		match:    butterfly.Match{ID: m.ID, User1ID: m.User1ID, User2ID: m.User2ID},
		openedAt: b.clock(),
	}
	return nil
}

// Add appends samples to an open session. A batch with a foreign sender,
// an out of range rate or a repeated sequence number is refused whole and
// leaves the buffered samples untouched.
func (b *SessionBuffer) Add(matchID int64, sessionID string, samples []butterfly.HeartSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.ended[sessionID]; done {
		return ErrUnknownSession
	}
	s, ok := b.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	if s.match.ID != matchID {
		return ErrSessionMismatch
	}
	if len(s.samples)+len(samples) > b.maxSamples {
		return ErrSessionFull
	}
	merged := append(append([]butterfly.HeartSample(nil), s.samples...), samples...)
	if err := butterfly.ValidateSamples(&s.match, merged); err != nil {
		return err
	}
	s.samples = merged
	return nil
}

// Peek returns a copy of the buffered samples without closing the session.
// An ended session reports sessionEnded with no samples.
func (b *SessionBuffer) Peek(matchID int64, sessionID string) ([]butterfly.HeartSample, sessionState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.ended[sessionID]; done {
		return nil, sessionEnded, nil
	}
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, sessionUnknown, ErrUnknownSession
	}
	if s.match.ID != matchID {
		return nil, sessionUnknown, ErrSessionMismatch
	}
	return append([]butterfly.HeartSample(nil), s.samples...), sessionOpen, nil
}

// Finish drops the samples of a session whose outcome has been stored.
func (b *SessionBuffer) Finish(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sessions, sessionID)
	b.ended[sessionID] = b.clock()
}

// Expire drops sessions and end markers older than the ttl.
func (b *SessionBuffer) Expire(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for id, s := range b.sessions {
		if now.Sub(s.openedAt) > b.ttl {
			delete(b.sessions, id)
			dropped++
		}
	}
	for id, at := range b.ended {
		if now.Sub(at) > b.ttl {
			delete(b.ended, id)
		}
	}
	return dropped
}

// Run expires stale sessions until ctx is done.
func (b *SessionBuffer) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Expire(b.clock())
		case <-ctx.Done():
			return
		}
	}
}

func (b *SessionBuffer) open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
