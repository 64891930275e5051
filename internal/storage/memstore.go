package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory [Store] for setups without a database and for
// tests. Data does not survive a restart.
type MemStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	subs   []Submission
	nextID int64
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]*User), nextID: 1}
}

// Migrate is a no-op.
func (s *MemStore) Migrate(context.Context) error { return nil }

// UpsertUser records a sighting of the user.
func (s *MemStore) UpsertUser(_ context.Context, id, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	u, ok := s.users[id]
	if !ok {
		s.users[id] = &User{
			ID: id, Username: username, Submissions: 1,
			FirstSeen: now, LastSeen: now,
		}
		return nil
	}
	u.Username = username
	u.Submissions++
	u.LastSeen = now
	return nil
}

// RecordSubmission appends a submission, assigning ID and CreatedAt.
func (s *MemStore) RecordSubmission(_ context.Context, sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.ID = s.nextID
	s.nextID++
	sub.CreatedAt = time.Now()
	s.subs = append(s.subs, *sub)
	return nil
}

// RecentSubmissions returns the user's latest submissions, newest first.
func (s *MemStore) RecentSubmissions(_ context.Context, userID string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Submission
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetUser returns the user by ID, or (nil, nil) when unknown.
func (s *MemStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// Ping always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }
