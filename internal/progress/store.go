// Package progress is the local key/value store holding per-step workbook
// drafts. Values are JSON documents stored under fixed string keys.
//
// Reads never fail: a missing key, a backend error or an unparseable value
// all yield the caller's fallback. Writes never fail either; errors are
// logged and dropped. There is no transaction across keys, so readers must
// re-validate any id they load against its source collection.
package progress

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Backend is string storage keyed by name.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Store struct {
	backend Backend
	logger  *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger.With("component", "progress")}
}

// Backend returns the raw string storage.
func (s *Store) Backend() Backend { return s.backend }

// Load decodes the value at key into a T, or returns fallback.
func Load[T any](ctx context.Context, s *Store, key string, fallback T) T {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("progress load failed", "key", key, "error", err)
		return fallback
	}
	if !ok || raw == "" {
		return fallback
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Debug("progress value unparseable, using fallback", "key", key, "error", err)
		return fallback
	}
	return v
}

// Save encodes value and writes it under key.
func Save[T any](ctx context.Context, s *Store, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("progress encode failed", "key", key, "error", err)
		return
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		s.logger.Warn("progress save failed", "key", key, "error", err)
	}
}

// Remove deletes keys, logging failures.
func Remove(ctx context.Context, s *Store, keys ...string) {
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Warn("progress remove failed", "key", key, "error", err)
		}
	}
}
