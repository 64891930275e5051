// Package storage persists submission history: who sent audio, what was
// transcribed, and how the grammar analysis went. A PostgreSQL store is used
// in production; an in-memory store serves single-node setups without a
// database.
package storage

import (
	"context"
	"time"
)

// User is a known submitter.
type User struct {
	ID          string
	Username    string
	Submissions int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Submission is one processed audio file.
type Submission struct {
	ID             int64
	UserID         string
	GuildID        string
	ChannelID      string
	AudioFormat    string
	AudioBytes     int64
	Language       string
	TranscriptText string
	CorrectedText  string
	GrammarSuccess bool
	MethodUsed     string
	RetryAttempts  int
	FallbackUsed   bool
	DurationMS     int64
	CreatedAt      time.Time
}

// Store persists users and their submissions.
type Store interface {
	// Migrate ensures the schema exists.
	Migrate(ctx context.Context) error

	// UpsertUser records that a user was seen, updating the username and
	// bumping the submission counter.
	UpsertUser(ctx context.Context, id, username string) error

	// RecordSubmission inserts a submission and fills its ID and CreatedAt.
	RecordSubmission(ctx context.Context, sub *Submission) error

	// RecentSubmissions returns a user's latest submissions, newest first.
	RecentSubmissions(ctx context.Context, userID string, limit int) ([]Submission, error)

	// GetUser returns a user by ID, or (nil, nil) when unknown.
	GetUser(ctx context.Context, id string) (*User, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
