package bus

import (
	"strings"
	"testing"
)

func TestTopics_SharePrefix(t *testing.T) {
	seen := map[string]bool{}
	for _, topic := range Topics() {
		if !strings.HasPrefix(topic, TopicProgress) {
			t.Fatalf("topic %q does not start with %q", topic, TopicProgress)
		}
		if seen[topic] {
			t.Fatalf("duplicate topic %q", topic)
		}
		seen[topic] = true
	}
}

func TestTopics_ProgressSubscriberSeesAll(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicProgress)
	defer b.Unsubscribe(sub)

	for _, topic := range Topics() {
		b.Publish(topic, nil)
	}
	b.Publish("system.status", nil)

	for _, want := range Topics() {
		got := <-sub.Ch()
		if got.Topic != want {
			t.Fatalf("topic = %q, want %q", got.Topic, want)
		}
	}
	select {
	case ev := <-sub.Ch():
		t.Fatalf("unexpected event %q", ev.Topic)
	default:
	}
}
