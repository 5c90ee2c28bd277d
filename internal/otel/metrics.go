package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds the gocraft metric instruments.
type Metrics struct {
	RequestDuration  metric.Float64Histogram
	QuestCompletions metric.Int64Counter
	XPAwarded        metric.Int64Counter
	LevelUps         metric.Int64Counter
	QuestResets      metric.Int64Counter
	RateLimitRejects metric.Int64Counter
	StreamClients    metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestDuration, err = meter.Float64Histogram("gocraft.request.duration",
		metric.WithDescription("API request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.QuestCompletions, err = meter.Int64Counter("gocraft.quest.completions",
		metric.WithDescription("Quests completed"),
	)
	if err != nil {
		return nil, err
	}

	m.XPAwarded, err = meter.Int64Counter("gocraft.xp.awarded",
		metric.WithDescription("Experience points awarded"),
	)
	if err != nil {
		return nil, err
	}

	m.LevelUps, err = meter.Int64Counter("gocraft.level.ups",
		metric.WithDescription("Levels gained"),
	)
	if err != nil {
		return nil, err
	}

	m.QuestResets, err = meter.Int64Counter("gocraft.quest.resets",
		metric.WithDescription("Recurring quests reset to not started"),
	)
	if err != nil {
		return nil, err
	}

	m.RateLimitRejects, err = meter.Int64Counter("gocraft.ratelimit.rejects",
		metric.WithDescription("Requests rejected by rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	m.StreamClients, err = meter.Int64UpDownCounter("gocraft.stream.clients",
		metric.WithDescription("Connected event stream clients"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
