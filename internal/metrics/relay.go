package metrics

import (
	"context"
	"fmt"

	"reelbot/internal/domain"
	"reelbot/internal/pipeline"
)

// Relay holds the metrics recorded for every processed message.
type Relay struct {
	collector *Collector
	messages  *Counter
	latency   *Histogram
}

// NewRelay registers the relay metrics on c.
func NewRelay(c *Collector) *Relay {
	r := &Relay{
		collector: c,
		messages:  c.Counter("reelbot_messages_total", "Total messages processed", ""),
		latency: c.Histogram("reelbot_resolve_latency_seconds", "Time to produce a reply for messages that reached the lookup service", "",
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),
	}
	// Pre-register every outcome so the series exist from the first scrape.
	for _, o := range domain.Outcomes {
		r.replies(o)
	}
	return r
}

func (r *Relay) replies(o domain.Outcome) *Counter {
	return r.collector.Counter("reelbot_replies_total", "Replies sent, by outcome", fmt.Sprintf(`outcome=%q`, string(o)))
}

// Observe implements pipeline.Observer.
func (r *Relay) Observe(_ context.Context, ev pipeline.Event) {
	r.messages.Inc()
	r.replies(ev.Outcome).Inc()
	if ev.ReelID != "" {
		r.latency.Observe(ev.Duration.Seconds())
	}
}

var _ pipeline.Observer = (*Relay)(nil)
