// internal/common/database/migrations.go
// Schema for the butterfly reward engine

package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ButterflyMigrations returns the schema statements in apply order. Every
// statement is idempotent.
func ButterflyMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS butterfly_members (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(100) NOT NULL,
			email VARCHAR(255),
			phone VARCHAR(20),
			push_tokens TEXT[] NOT NULL DEFAULT '{}',
			interests TEXT[] NOT NULL DEFAULT '{}',
			collection_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			butterflies_collected JSONB NOT NULL DEFAULT '[]',
			heart_rate_history JSONB NOT NULL DEFAULT '[]',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS butterfly_matches (
			id BIGSERIAL PRIMARY KEY,
			user1_id BIGINT NOT NULL REFERENCES butterfly_members(user_id),
			user2_id BIGINT NOT NULL REFERENCES butterfly_members(user_id),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			sync_level INTEGER NOT NULL DEFAULT 0,
			compatibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			conversation_depth INTEGER NOT NULL DEFAULT 0,
			butterfly_type VARCHAR(20) NOT NULL DEFAULT '',
			heart_sync_sessions INTEGER NOT NULL DEFAULT 0,
			heart_sync_history JSONB NOT NULL DEFAULT '[]',
			conversation_milestones JSONB NOT NULL DEFAULT '[]',
			ghosting_detection JSONB NOT NULL DEFAULT '{}',
			mutual_likes JSONB NOT NULL DEFAULT '{}',
			rewards JSONB NOT NULL DEFAULT '[]',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			CHECK (user1_id < user2_id),
			UNIQUE (user1_id, user2_id)
		)`,

		`CREATE TABLE IF NOT EXISTS butterfly_messages (
			id BIGSERIAL PRIMARY KEY,
			match_id BIGINT NOT NULL REFERENCES butterfly_matches(id) ON DELETE CASCADE,
			sender_id BIGINT NOT NULL,
			content TEXT NOT NULL,
			message_type VARCHAR(20) NOT NULL DEFAULT 'text',
			has_reward BOOLEAN NOT NULL DEFAULT FALSE,
			reward_interactions JSONB NOT NULL DEFAULT '[]',
			sentiment JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS reward_events (
			event_id VARCHAR(128) PRIMARY KEY,
			match_id BIGINT NOT NULL REFERENCES butterfly_matches(id) ON DELETE CASCADE,
			kind VARCHAR(32) NOT NULL,
			outcome JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_butterfly_matches_user1 ON butterfly_matches(user1_id)`,
		`CREATE INDEX IF NOT EXISTS idx_butterfly_matches_user2 ON butterfly_matches(user2_id)`,
		`CREATE INDEX IF NOT EXISTS idx_butterfly_matches_status ON butterfly_matches(status, id)`,
		`CREATE INDEX IF NOT EXISTS idx_butterfly_messages_match ON butterfly_messages(match_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reward_events_match ON reward_events(match_id, created_at)`,
	}
}

// RunMigrations applies the schema. Statements that report an existing
// object are skipped.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := ButterflyMigrations()
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
			log.Printf("Migration %d skipped (already exists)", i+1)
		}
	}
	log.Printf("Applied %d schema migrations", len(migrations))
	return nil
}
