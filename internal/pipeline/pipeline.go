// Package pipeline turns inbound text into a reply: detect an Instagram
// link, extract the reel shortcode, resolve it to a media URL.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"reelbot/internal/domain"
	"reelbot/internal/link"
)

// Event describes one finished Process call.
type Event struct {
	Channel  string
	Outcome  domain.Outcome
	ReelID   string
	Duration time.Duration
}

// Observer is notified after every Process call. Observers must not block for long.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Pipeline is stateless between calls and safe for concurrent use.
type Pipeline struct {
	apiKey    string
	resolver  domain.MediaResolver
	observers []Observer
	logger    *slog.Logger
}

type Config struct {
	APIKey    string
	Resolver  domain.MediaResolver
	Observers []Observer
	Logger    *slog.Logger
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		apiKey:    cfg.APIKey,
		resolver:  cfg.Resolver,
		observers: cfg.Observers,
		logger:    cfg.Logger,
	}
}

// Process runs the decision chain for one message. The first matching rule wins:
// missing API key, no Instagram link, no reel id, then the external lookup.
func (p *Pipeline) Process(ctx context.Context, msg domain.InboundMessage) domain.Reply {
	start := time.Now()
	reply := p.decide(ctx, msg.Text)

	p.logger.Debug("message processed",
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"outcome", reply.Outcome,
		"reel_id", reply.ReelID,
	)

	ev := Event{
		Channel:  msg.Channel,
		Outcome:  reply.Outcome,
		ReelID:   reply.ReelID,
		Duration: time.Since(start),
	}
	for _, o := range p.observers {
		o.Observe(ctx, ev)
	}
	return reply
}

func (p *Pipeline) decide(ctx context.Context, text string) domain.Reply {
	if p.apiKey == "" {
		return domain.Reply{Outcome: domain.OutcomeNotConfigured}
	}
	if !link.ContainsInstagramLink(text) {
		return domain.Reply{Outcome: domain.OutcomeNoLink}
	}
	reelID := link.ExtractReelID(text)
	if reelID == "" {
		return domain.Reply{Outcome: domain.OutcomeNoReelID}
	}
	if p.resolver == nil {
		p.logger.Error("no media resolver configured")
		return domain.Reply{Outcome: domain.OutcomeUnexpectedError, ReelID: reelID}
	}

	res := p.resolver.Resolve(ctx, reelID, p.apiKey)
	return domain.Reply{
		Outcome:  res.Outcome(),
		ReelID:   reelID,
		MediaURL: res.MediaURL,
	}
}
