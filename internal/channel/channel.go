package channel

import (
	"context"

	"reelbot/internal/domain"
)

// Processor produces the reply for one inbound message. *pipeline.Pipeline
// satisfies it; tests substitute fakes.
type Processor interface {
	Process(ctx context.Context, msg domain.InboundMessage) domain.Reply
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, msg domain.InboundMessage) domain.Reply

func (f ProcessorFunc) Process(ctx context.Context, msg domain.InboundMessage) domain.Reply {
	return f(ctx, msg)
}
