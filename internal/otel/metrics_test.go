package otel

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	p, err := Init(context.Background(), Config{
		Enabled:  true,
		Exporter: "none",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.RequestDuration == nil || m.QuestCompletions == nil || m.XPAwarded == nil ||
		m.LevelUps == nil || m.QuestResets == nil || m.RateLimitRejects == nil || m.StreamClients == nil {
		t.Fatalf("missing instrument: %+v", m)
	}
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics with noop: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
	// Recording against noop instruments must not panic.
	m.Record(context.Background(), bus.Event{Topic: bus.TopicXPAwarded, Payload: domain.Event{XPGained: 5}})
}

func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[md.Name] += dp.Value
			}
		}
	}
	return out
}

func TestRecord_CountsProgressEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter(MeterName))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.Record(ctx, bus.Event{Topic: bus.TopicQuestCompleted, Payload: domain.Event{UserID: 1, ActionID: 3}})
	m.Record(ctx, bus.Event{Topic: bus.TopicXPAwarded, Payload: domain.Event{UserID: 1, XPGained: 50}})
	m.Record(ctx, bus.Event{Topic: bus.TopicXPAwarded, Payload: domain.Event{UserID: 2, XPGained: 30}})
	m.Record(ctx, bus.Event{Topic: bus.TopicLevelUp, Payload: domain.Event{UserID: 1, LevelsGained: 2}})
	m.Record(ctx, bus.Event{Topic: bus.TopicQuestsReset, Payload: domain.Event{UserID: 1, Count: 4}})
	m.Record(ctx, bus.Event{Topic: bus.TopicXPAwarded, Payload: "not an event"})

	got := counterTotals(t, reader)
	want := map[string]int64{
		"gocraft.quest.completions": 1,
		"gocraft.xp.awarded":        80,
		"gocraft.level.ups":         2,
		"gocraft.quest.resets":      4,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestRecordProgress_SubscribesUntilCancel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	m, err := NewMetrics(mp.Meter(MeterName))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RecordProgress(ctx, b, m, nil)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("recorder never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.Publish(bus.TopicQuestCompleted, domain.Event{UserID: 1})

	for counterTotals(t, reader)["gocraft.quest.completions"] != 1 {
		if time.Now().After(deadline) {
			t.Fatal("completion not recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
	if b.SubscriberCount() != 0 {
		t.Fatalf("recorder should unsubscribe on exit")
	}
}
