package dating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrDuplicateEvent  = errors.New("event already processed")
	ErrDuplicateMatch  = errors.New("match already exists for this pair")
)

// ChangeSet is one unit of work. Commit applies all of it atomically or
// nothing at all.
type ChangeSet struct {
	// Match is updated guarded by its version.
	Match *butterfly.Match
	// Members are updated guarded by their versions.
	Members []*butterfly.Member
	// NewMessages are inserted with preallocated ids.
	NewMessages []*butterfly.Message
	// Messages have their reward state updated. A message that vanished in
	// the meantime is skipped.
	Messages []*butterfly.Message
	// Event marks the event id processed.
	Event *RewardEvent
}

func (cs *ChangeSet) empty() bool {
	return cs.Match == nil && len(cs.Members) == 0 && len(cs.NewMessages) == 0 &&
		len(cs.Messages) == 0 && cs.Event == nil
}

type Repository interface {
	// Matches
	CreateMatch(ctx context.Context, m *butterfly.Match) error
	GetMatch(ctx context.Context, id int64) (*butterfly.Match, error)
	GetMatchByPair(ctx context.Context, a, b int64) (*butterfly.Match, error)
	ListMatches(ctx context.Context, status butterfly.MatchStatus, afterID int64, limit int) ([]*butterfly.Match, error)
	GetUserMatches(ctx context.Context, userID int64) ([]*butterfly.Match, error)

	// Members
	GetMember(ctx context.Context, id int64) (*butterfly.Member, error)
	SaveProfile(ctx context.Context, mb *butterfly.Member) error

	// Messages
	NextMessageID(ctx context.Context) (int64, error)
	GetMessage(ctx context.Context, id int64) (*butterfly.Message, error)

	// Events
	GetRewardEvent(ctx context.Context, eventID string) (*RewardEvent, error)

	Commit(ctx context.Context, cs *ChangeSet) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const matchColumns = `id, user1_id, user2_id, status, sync_level, compatibility_score,
	conversation_depth, butterfly_type, heart_sync_sessions, heart_sync_history,
	conversation_milestones, ghosting_detection, mutual_likes, rewards, version,
	created_at, updated_at`

const memberColumns = `user_id, username, email, phone, push_tokens, interests,
	collection_rate, butterflies_collected, heart_rate_history, version,
	created_at, updated_at`

// Match Methods

func (r *postgresRepository) CreateMatch(ctx context.Context, m *butterfly.Match) error {
	row, err := newMatchRow(m)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO butterfly_matches (
			user1_id, user2_id, status, sync_level, compatibility_score,
			conversation_depth, butterfly_type, heart_sync_sessions, heart_sync_history,
			conversation_milestones, ghosting_detection, mutual_likes, rewards,
			version, created_at, updated_at
		) VALUES (
			:user1_id, :user2_id, :status, :sync_level, :compatibility_score,
			:conversation_depth, :butterfly_type, :heart_sync_sessions, :heart_sync_history,
			:conversation_milestones, :ghosting_detection, :mutual_likes, :rewards,
			1, :created_at, :updated_at
		)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
		RETURNING id
	`
	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if err := stmt.GetContext(ctx, &m.ID, row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateMatch
		}
		return err
	}
	m.Version = 1
	return nil
}

func (r *postgresRepository) GetMatch(ctx context.Context, id int64) (*butterfly.Match, error) {
	var row matchRow
	query := `SELECT ` + matchColumns + ` FROM butterfly_matches WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toMatch()
}

func (r *postgresRepository) GetMatchByPair(ctx context.Context, a, b int64) (*butterfly.Match, error) {
	// Ensure consistent ordering
	if a > b {
		a, b = b, a
	}
	var row matchRow
	query := `SELECT ` + matchColumns + ` FROM butterfly_matches WHERE user1_id = $1 AND user2_id = $2`
	if err := r.db.GetContext(ctx, &row, query, a, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toMatch()
}

func (r *postgresRepository) ListMatches(ctx context.Context, status butterfly.MatchStatus, afterID int64, limit int) ([]*butterfly.Match, error) {
	var rows []matchRow
	query := `
		SELECT ` + matchColumns + `
		FROM butterfly_matches
		WHERE status = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &rows, query, string(status), afterID, limit); err != nil {
		return nil, err
	}
	return toMatches(rows)
}

func (r *postgresRepository) GetUserMatches(ctx context.Context, userID int64) ([]*butterfly.Match, error) {
	var rows []matchRow
	query := `
		SELECT ` + matchColumns + `
		FROM butterfly_matches
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY updated_at DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return toMatches(rows)
}

func toMatches(rows []matchRow) ([]*butterfly.Match, error) {
	matches := make([]*butterfly.Match, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toMatch()
		if err != nil {
			return nil, fmt.Errorf("decode match %d: %w", rows[i].ID, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Member Methods

func (r *postgresRepository) GetMember(ctx context.Context, id int64) (*butterfly.Member, error) {
	var row memberRow
	query := `SELECT ` + memberColumns + ` FROM butterfly_members WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toMember()
}

// SaveProfile upserts the profile part of a member. Engine owned fields are
// only initialized on insert.
func (r *postgresRepository) SaveProfile(ctx context.Context, mb *butterfly.Member) error {
	query := `
		INSERT INTO butterfly_members (
			user_id, username, email, phone, push_tokens, interests,
			collection_rate, butterflies_collected, heart_rate_history,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, '[]', '[]', 1, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			push_tokens = EXCLUDED.push_tokens,
			interests = EXCLUDED.interests,
			version = butterfly_members.version + 1,
			updated_at = NOW()
		RETURNING version, created_at, updated_at
	`
	return r.db.QueryRowxContext(
		ctx, query,
		mb.ID, mb.Username, mb.Email, mb.Phone,
		pq.StringArray(nonNil(mb.PushTokens)), pq.StringArray(nonNil(mb.Interests)),
	).Scan(&mb.Version, &mb.CreatedAt, &mb.UpdatedAt)
}

// Message Methods

func (r *postgresRepository) NextMessageID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT nextval(pg_get_serial_sequence('butterfly_messages', 'id'))`)
	return id, err
}

func (r *postgresRepository) GetMessage(ctx context.Context, id int64) (*butterfly.Message, error) {
	var row messageRow
	query := `
		SELECT id, match_id, sender_id, content, message_type, has_reward,
		       reward_interactions, sentiment, created_at
		FROM butterfly_messages
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toMessage()
}

// Event Methods

func (r *postgresRepository) GetRewardEvent(ctx context.Context, eventID string) (*RewardEvent, error) {
	var ev RewardEvent
	query := `SELECT event_id, match_id, kind, outcome, created_at FROM reward_events WHERE event_id = $1`
	if err := r.db.GetContext(ctx, &ev, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// Commit writes the change set in a single transaction. Versions on the
// in-memory aggregates are bumped only once the transaction committed.
func (r *postgresRepository) Commit(ctx context.Context, cs *ChangeSet) error {
	if cs == nil || cs.empty() {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if cs.Event != nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reward_events (event_id, match_id, kind, outcome, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`, cs.Event.EventID, cs.Event.MatchID, cs.Event.Kind, []byte(cs.Event.Outcome), cs.Event.CreatedAt)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrDuplicateEvent
		}
	}

	if cs.Match != nil {
		if err := r.updateMatch(ctx, tx, cs.Match); err != nil {
			return err
		}
	}
	for _, mb := range cs.Members {
		if err := r.updateMember(ctx, tx, mb); err != nil {
			return err
		}
	}
	for _, msg := range cs.NewMessages {
		if err := r.insertMessage(ctx, tx, msg); err != nil {
			return err
		}
	}
	for _, msg := range cs.Messages {
		if err := r.updateMessage(ctx, tx, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if cs.Match != nil {
		cs.Match.Version++
	}
	for _, mb := range cs.Members {
		mb.Version++
	}
	return nil
}

func (r *postgresRepository) updateMatch(ctx context.Context, tx *sqlx.Tx, m *butterfly.Match) error {
	row, err := newMatchRow(m)
	if err != nil {
		return err
	}
	res, err := tx.NamedExecContext(ctx, `
		UPDATE butterfly_matches SET
			status = :status,
			sync_level = :sync_level,
			compatibility_score = :compatibility_score,
			conversation_depth = :conversation_depth,
			butterfly_type = :butterfly_type,
			heart_sync_sessions = :heart_sync_sessions,
			heart_sync_history = :heart_sync_history,
			conversation_milestones = :conversation_milestones,
			ghosting_detection = :ghosting_detection,
			mutual_likes = :mutual_likes,
			rewards = :rewards,
			version = version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version
	`, row)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *postgresRepository) updateMember(ctx context.Context, tx *sqlx.Tx, mb *butterfly.Member) error {
	collected, err := encodeJSON(nonNil(mb.ButterfliesCollected))
	if err != nil {
		return err
	}
	history, err := encodeJSON(nonNil(mb.HeartRateHistory))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE butterfly_members SET
			collection_rate = $1,
			butterflies_collected = $2,
			heart_rate_history = $3,
			version = version + 1,
			updated_at = $4
		WHERE user_id = $5 AND version = $6
	`, mb.CollectionRate, collected, history, mb.UpdatedAt, mb.ID, mb.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *postgresRepository) insertMessage(ctx context.Context, tx *sqlx.Tx, msg *butterfly.Message) error {
	interactions, err := encodeJSON(nonNil(msg.RewardInteractions))
	if err != nil {
		return err
	}
	// NULL when the message carries no sentiment annotation.
	var sentiment interface{}
	if msg.Sentiment != nil {
		raw, err := encodeJSON(msg.Sentiment)
		if err != nil {
			return err
		}
		sentiment = raw
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO butterfly_messages (
			id, match_id, sender_id, content, message_type, has_reward,
			reward_interactions, sentiment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, msg.ID, msg.MatchID, msg.SenderID, msg.Content, string(msg.MessageType),
		msg.HasReward, interactions, sentiment, msg.CreatedAt)
	return err
}

func (r *postgresRepository) updateMessage(ctx context.Context, tx *sqlx.Tx, msg *butterfly.Message) error {
	interactions, err := encodeJSON(nonNil(msg.RewardInteractions))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE butterfly_messages SET has_reward = $1, reward_interactions = $2
		WHERE id = $3
	`, msg.HasReward, interactions, msg.ID)
	return err
}
