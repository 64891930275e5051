// Package files manages the temporary audio files flowing through the
// pipeline: validation against format and size limits, temp file creation,
// and periodic sweeping of leftovers from crashed runs.
package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultMaxBytes caps accepted audio files at 25 MiB.
	DefaultMaxBytes = 25 << 20

	// DefaultMaxAge is how long a temp file may linger before the sweeper
	// removes it.
	DefaultMaxAge = 24 * time.Hour

	// tempPrefix marks files created by this store so the sweeper never
	// touches anything else in a shared directory.
	tempPrefix = "audio_"
)

// allowedExtensions is the set of accepted audio formats, keyed by lowercase
// file extension.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".flac": true,
	".aac":  true,
}

// AllowedExtension reports whether ext (with leading dot, any case) is an
// accepted audio format.
func AllowedExtension(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// ValidationError reports that a file was rejected before any provider call
// was made. The message is user-facing.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return "file validation: " + e.Reason
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes overrides the size limit. Default: 25 MiB.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithMaxAge overrides how old a temp file may get before sweeping.
// Default: 24h.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// Store owns a directory of temporary audio files.
type Store struct {
	dir      string
	maxBytes int64
	maxAge   time.Duration
}

// NewStore creates the directory if needed and returns a Store over it.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "talkscribe")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	s := &Store{dir: dir, maxBytes: DefaultMaxBytes, maxAge: DefaultMaxAge}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Dir returns the directory the store manages.
func (s *Store) Dir() string { return s.dir }

// Validate checks path against the format and size limits. All failures are
// *ValidationError; they happen before any network call and are not retried.
func (s *Store) Validate(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return &ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("unsupported audio format %q", ext),
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Path: path, Reason: "audio file not found"}
	}
	if info.Size() == 0 {
		return &ValidationError{Path: path, Reason: "audio file is empty"}
	}
	if info.Size() > s.maxBytes {
		return &ValidationError{
			Path: path,
			Reason: fmt.Sprintf("audio file too large: %d bytes (limit %d)",
				info.Size(), s.maxBytes),
		}
	}
	return nil
}

// Save streams r into a fresh temp file with the given extension and returns
// its path. The partial file is removed when the copy fails or the size limit
// is exceeded.
func (s *Store) Save(r io.Reader, ext string) (string, error) {
	if !AllowedExtension(ext) {
		return "", &ValidationError{Reason: fmt.Sprintf("unsupported audio format %q", ext)}
	}

	f, err := os.CreateTemp(s.dir, tempPrefix+"*"+strings.ToLower(ext))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(f.Name())
		return "", fmt.Errorf("write audio file: %w", err)
	case closeErr != nil:
		os.Remove(f.Name())
		return "", fmt.Errorf("write audio file: %w", closeErr)
	case n > s.maxBytes:
		os.Remove(f.Name())
		return "", &ValidationError{
			Path:   f.Name(),
			Reason: fmt.Sprintf("audio file too large (limit %d bytes)", s.maxBytes),
		}
	case n == 0:
		os.Remove(f.Name())
		return "", &ValidationError{Path: f.Name(), Reason: "audio file is empty"}
	}

	return f.Name(), nil
}

// Remove deletes a temp file, logging rather than failing when it is already
// gone.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove temp audio file", "path", path, "error", err)
	}
}

// Sweep removes temp files older than the configured max age and returns how
// many were deleted. Only files carrying the store's prefix are considered.
func (s *Store) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read audio dir: %w", err)
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("sweep failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("swept stale audio files", "count", removed, "dir", s.dir)
	}
	return removed, nil
}

// Run sweeps on the given interval until ctx is cancelled. Intended to be
// launched as a background goroutine from the entry point.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				slog.Error("audio sweep failed", "error", err)
			}
		}
	}
}
