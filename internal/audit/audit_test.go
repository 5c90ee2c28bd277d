package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/shared"
)

func readEntries(t *testing.T, home string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(home, "logs", "ledger.jsonl"))
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	var out []map[string]any
	for i, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		out = append(out, e)
	}
	return out
}

func TestRecordWritesLedgerEntry(t *testing.T) {
	home := t.TempDir()
	if err := Init(home); err != nil {
		t.Fatalf("init audit: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	ctx := shared.WithTraceID(context.Background(), "trace-1")
	Record(ctx, domain.Event{Topic: bus.TopicXPAwarded, UserID: 7, XPGained: 50, Level: 1, ExperiencePoints: 50})

	entries := readEntries(t, home)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e["topic"] != bus.TopicXPAwarded || e["user_id"] != float64(7) || e["xp_gained"] != float64(50) {
		t.Fatalf("unexpected entry %#v", e)
	}
	if e["trace_id"] != "trace-1" || e["timestamp"] == "" {
		t.Fatalf("expected trace_id and timestamp: %#v", e)
	}
}

func TestRecordBeforeInitIsNoop(t *testing.T) {
	before := Written()
	Record(context.Background(), domain.Event{Topic: bus.TopicLevelUp})
	if Written() != before {
		t.Fatal("record without a file should not count")
	}
}

func TestLedgerAppendOnly(t *testing.T) {
	home := t.TempDir()
	if err := Init(home); err != nil {
		t.Fatalf("init audit: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
	ctx := context.Background()

	Record(ctx, domain.Event{Topic: bus.TopicQuestCompleted, UserID: 1, ActionID: 3})
	Record(ctx, domain.Event{Topic: bus.TopicXPAwarded, UserID: 1, XPGained: 30})
	info1, err := os.Stat(filepath.Join(home, "logs", "ledger.jsonl"))
	if err != nil {
		t.Fatalf("stat ledger file: %v", err)
	}

	Record(ctx, domain.Event{Topic: bus.TopicQuestsReset, Count: 2, PeriodType: "daily"})
	info2, err := os.Stat(filepath.Join(home, "logs", "ledger.jsonl"))
	if err != nil {
		t.Fatalf("stat ledger file after append: %v", err)
	}
	if info2.Size() <= info1.Size() {
		t.Fatalf("expected file to grow, size before=%d after=%d", info1.Size(), info2.Size())
	}

	entries := readEntries(t, home)
	if len(entries) != 3 || entries[0]["topic"] != bus.TopicQuestCompleted || entries[2]["period_type"] != "daily" {
		t.Fatalf("entries out of order: %#v", entries)
	}
}

func TestFollowRecordsBusEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	home := t.TempDir()
	if err := Init(home); err != nil {
		t.Fatalf("init audit: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Follow(ctx, b, nil)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	before := Written()
	b.Publish(bus.TopicLevelUp, domain.Event{UserID: 2, Level: 3, LevelsGained: 1})
	b.Publish(bus.TopicXPAwarded, "not an event")

	for Written() == before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	entries := readEntries(t, home)
	if len(entries) != 1 || entries[0]["topic"] != bus.TopicLevelUp || entries[0]["levels_gained"] != float64(1) {
		t.Fatalf("unexpected entries %#v", entries)
	}
}
