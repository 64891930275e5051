// Package whitelist controls who may submit audio and who may administer
// the bot. The list lives in a YAML file so operators can edit it by hand;
// changes made through admin commands are persisted atomically and edits on
// disk are picked up by a background poller.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by the Remove methods when the entry is absent.
var ErrNotFound = errors.New("whitelist entry not found")

// fileFormat is the on-disk YAML shape.
type fileFormat struct {
	Enabled   bool     `yaml:"enabled"`
	UserIDs   []string `yaml:"user_ids"`
	Usernames []string `yaml:"usernames"`
	AdminIDs  []string `yaml:"admin_ids"`
}

// List is the in-memory whitelist, safe for concurrent use.
type List struct {
	path string

	mu        sync.RWMutex
	enabled   bool
	userIDs   []string
	usernames []string
	adminIDs  []string
	loadedAt  time.Time
}

// Load reads the whitelist from path. A missing file yields an empty,
// disabled list (everyone allowed) that will be created on the first
// mutation.
func Load(path string) (*List, error) {
	l := &List{path: path}
	if err := l.Reload(); err != nil {
		if os.IsNotExist(err) {
			slog.Info("whitelist file absent, starting open", "path", path)
			return l, nil
		}
		return nil, err
	}
	return l, nil
}

// Reload re-reads the file, replacing the in-memory state.
func (l *List) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}

	var f fileFormat
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return fmt.Errorf("parse whitelist %s: %w", l.path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = f.Enabled
	l.userIDs = f.UserIDs
	l.usernames = normalizeNames(f.Usernames)
	l.adminIDs = f.AdminIDs
	l.loadedAt = time.Now()
	return nil
}

// Enabled reports whether the whitelist is enforced.
func (l *List) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// Allowed reports whether the user may submit audio. When enforcement is
// off, everyone is allowed. Admins are always allowed.
func (l *List) Allowed(userID, username string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.enabled {
		return true
	}
	if slices.Contains(l.adminIDs, userID) {
		return true
	}
	if slices.Contains(l.userIDs, userID) {
		return true
	}
	return slices.Contains(l.usernames, strings.ToLower(username))
}

// IsAdmin reports whether the user may run admin commands.
func (l *List) IsAdmin(userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.adminIDs, userID)
}

// SetEnabled toggles enforcement and persists.
func (l *List) SetEnabled(on bool) error {
	return l.mutate(func() { l.enabled = on })
}

// AddUser whitelists a user ID. Adding an existing entry is a no-op.
func (l *List) AddUser(userID string) error {
	return l.mutate(func() {
		if !slices.Contains(l.userIDs, userID) {
			l.userIDs = append(l.userIDs, userID)
		}
	})
}

// RemoveUser removes a user ID. Returns [ErrNotFound] when absent.
func (l *List) RemoveUser(userID string) error {
	return l.remove(func() bool {
		i := slices.Index(l.userIDs, userID)
		if i < 0 {
			return false
		}
		l.userIDs = slices.Delete(l.userIDs, i, i+1)
		return true
	})
}

// AddUsername whitelists a username (case-insensitive).
func (l *List) AddUsername(name string) error {
	name = strings.ToLower(name)
	return l.mutate(func() {
		if !slices.Contains(l.usernames, name) {
			l.usernames = append(l.usernames, name)
		}
	})
}

// RemoveUsername removes a username. Returns [ErrNotFound] when absent.
func (l *List) RemoveUsername(name string) error {
	name = strings.ToLower(name)
	return l.remove(func() bool {
		i := slices.Index(l.usernames, name)
		if i < 0 {
			return false
		}
		l.usernames = slices.Delete(l.usernames, i, i+1)
		return true
	})
}

// AddAdmin grants admin rights to a user ID.
func (l *List) AddAdmin(userID string) error {
	return l.mutate(func() {
		if !slices.Contains(l.adminIDs, userID) {
			l.adminIDs = append(l.adminIDs, userID)
		}
	})
}

// RemoveAdmin revokes admin rights. Returns [ErrNotFound] when absent.
func (l *List) RemoveAdmin(userID string) error {
	return l.remove(func() bool {
		i := slices.Index(l.adminIDs, userID)
		if i < 0 {
			return false
		}
		l.adminIDs = slices.Delete(l.adminIDs, i, i+1)
		return true
	})
}

// Snapshot returns a copy of the current entries for display.
func (l *List) Snapshot() (userIDs, usernames, adminIDs []string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.userIDs), slices.Clone(l.usernames), slices.Clone(l.adminIDs)
}

// mutate applies fn under the write lock and persists the result.
func (l *List) mutate(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
	return l.persistLocked()
}

// remove applies fn under the write lock; fn reports whether an entry was
// actually deleted.
func (l *List) remove(fn func() bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !fn() {
		return ErrNotFound
	}
	return l.persistLocked()
}

// persistLocked writes the list to a temp file and renames it into place so
// a crash mid-write never corrupts the whitelist. Caller holds l.mu.
func (l *List) persistLocked() error {
	f := fileFormat{
		Enabled:   l.enabled,
		UserIDs:   l.userIDs,
		Usernames: l.usernames,
		AdminIDs:  l.adminIDs,
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encode whitelist: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".whitelist-*.yaml")
	if err != nil {
		return fmt.Errorf("write whitelist: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write whitelist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write whitelist: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write whitelist: %w", err)
	}
	l.loadedAt = time.Now()
	return nil
}

// Watch polls the file for external edits until ctx is cancelled. Changes
// written through this List are already in memory, so the poll only reloads
// when the file is newer than our last load or persist.
func (l *List) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(l.path)
			if err != nil {
				continue
			}
			l.mu.RLock()
			stale := info.ModTime().After(l.loadedAt)
			l.mu.RUnlock()
			if !stale {
				continue
			}
			if err := l.Reload(); err != nil {
				slog.Error("whitelist reload failed", "path", l.path, "error", err)
				continue
			}
			slog.Info("whitelist reloaded", "path", l.path)
		}
	}
}

// normalizeNames lowercases all usernames for case-insensitive matching.
func normalizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}
