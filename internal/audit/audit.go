// Package audit appends every ledger event to logs/ledger.jsonl so xp awards
// and resets can be reconstructed after the fact.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/shared"
)

type entry struct {
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"trace_id,omitempty"`
	domain.Event
}

var (
	mu      sync.Mutex
	file    *os.File
	written atomic.Int64
)

func Init(homeDir string) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		return nil
	}
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "ledger.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file = f
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// Written returns the number of entries appended since startup.
func Written() int64 {
	return written.Load()
}

// Record appends one event. It is a no-op before Init.
func Record(ctx context.Context, ev domain.Event) {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return
	}
	b, err := json.Marshal(entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		TraceID:   shared.TraceID(ctx),
		Event:     ev,
	})
	if err != nil {
		return
	}
	if _, err := file.Write(append(b, '\n')); err == nil {
		written.Add(1)
	}
}

// Follow records every progression event published on b until ctx is done.
// It blocks; run it in its own goroutine.
func Follow(ctx context.Context, b *bus.Bus, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	sub := b.Subscribe(bus.TopicProgress)
	defer b.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("ledger audit stopped", "written", Written())
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			e, isEvent := ev.Payload.(domain.Event)
			if !isEvent {
				continue
			}
			if e.Topic == "" {
				e.Topic = ev.Topic
			}
			Record(ctx, e)
		}
	}
}
