package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
)

// Record adds one progression event to the counters. Payloads that are not
// domain events are ignored.
func (m *Metrics) Record(ctx context.Context, ev bus.Event) {
	e, ok := ev.Payload.(domain.Event)
	if !ok {
		return
	}
	user := metric.WithAttributes(AttrUserID.Int64(e.UserID))
	switch ev.Topic {
	case bus.TopicQuestCompleted:
		m.QuestCompletions.Add(ctx, 1, user)
	case bus.TopicXPAwarded:
		m.XPAwarded.Add(ctx, int64(e.XPGained), user)
	case bus.TopicLevelUp:
		m.LevelUps.Add(ctx, int64(e.LevelsGained), user)
	case bus.TopicQuestsReset:
		m.QuestResets.Add(ctx, int64(e.Count), user)
	}
}

// RecordProgress feeds every progression event on b into m until ctx is
// done. It blocks; run it in its own goroutine.
func RecordProgress(ctx context.Context, b *bus.Bus, m *Metrics, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	sub := b.Subscribe(bus.TopicProgress)
	defer b.Unsubscribe(sub)
	logger.Debug("progress metrics recorder started")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			m.Record(ctx, ev)
		}
	}
}
