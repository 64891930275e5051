package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the submission history tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id          TEXT PRIMARY KEY,
    username    TEXT NOT NULL DEFAULT '',
    submissions INTEGER NOT NULL DEFAULT 0,
    first_seen  TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS submissions (
    id              BIGSERIAL PRIMARY KEY,
    user_id         TEXT NOT NULL REFERENCES users(id),
    guild_id        TEXT NOT NULL DEFAULT '',
    channel_id      TEXT NOT NULL DEFAULT '',
    audio_format    TEXT NOT NULL DEFAULT '',
    audio_bytes     BIGINT NOT NULL DEFAULT 0,
    language        TEXT NOT NULL DEFAULT '',
    transcript_text TEXT NOT NULL DEFAULT '',
    corrected_text  TEXT NOT NULL DEFAULT '',
    grammar_success BOOLEAN NOT NULL DEFAULT false,
    method_used     TEXT NOT NULL DEFAULT '',
    retry_attempts  INTEGER NOT NULL DEFAULT 0,
    fallback_used   BOOLEAN NOT NULL DEFAULT false,
    duration_ms     BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// UpsertUser records a sighting of the user, bumping the submission counter
// and refreshing the username.
func (s *PostgresStore) UpsertUser(ctx context.Context, id, username string) error {
	const query = `
		INSERT INTO users (id, username, submissions)
		VALUES ($1, $2, 1)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			submissions = users.submissions + 1,
			last_seen = now()`

	if _, err := s.db.Exec(ctx, query, id, username); err != nil {
		return fmt.Errorf("storage: upsert user %q: %w", id, err)
	}
	return nil
}

// RecordSubmission inserts a submission row and fills sub.ID and
// sub.CreatedAt from the database.
func (s *PostgresStore) RecordSubmission(ctx context.Context, sub *Submission) error {
	const query = `
		INSERT INTO submissions (
			user_id, guild_id, channel_id, audio_format, audio_bytes,
			language, transcript_text, corrected_text, grammar_success,
			method_used, retry_attempts, fallback_used, duration_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at`

	err := s.db.QueryRow(ctx, query,
		sub.UserID, sub.GuildID, sub.ChannelID, sub.AudioFormat, sub.AudioBytes,
		sub.Language, sub.TranscriptText, sub.CorrectedText, sub.GrammarSuccess,
		sub.MethodUsed, sub.RetryAttempts, sub.FallbackUsed, sub.DurationMS,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: record submission: %w", err)
	}
	return nil
}

// RecentSubmissions returns the user's latest submissions, newest first.
func (s *PostgresStore) RecentSubmissions(ctx context.Context, userID string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT id, user_id, guild_id, channel_id, audio_format, audio_bytes,
		       language, transcript_text, corrected_text, grammar_success,
		       method_used, retry_attempts, fallback_used, duration_ms, created_at
		FROM submissions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.GuildID, &sub.ChannelID, &sub.AudioFormat,
			&sub.AudioBytes, &sub.Language, &sub.TranscriptText, &sub.CorrectedText,
			&sub.GrammarSuccess, &sub.MethodUsed, &sub.RetryAttempts,
			&sub.FallbackUsed, &sub.DurationMS, &sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: recent submissions scan: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: recent submissions: %w", err)
	}
	return subs, nil
}

// GetUser returns the user by ID, or (nil, nil) when unknown.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, username, submissions, first_seen, last_seen
		FROM users
		WHERE id = $1`

	var u User
	err := s.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Submissions, &u.FirstSeen, &u.LastSeen,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get user %q: %w", id, err)
	}
	return &u, nil
}

// Ping issues a trivial query to verify connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("storage: ping: %w", err)
	}
	return nil
}
