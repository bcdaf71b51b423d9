package domain

import (
	"context"
	"time"
)

// AuditEntry records the outcome of one relay request. Message text is never stored.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Outcome   Outcome   `json:"outcome"`
	ReelID    string    `json:"reel_id,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditStore persists relay outcomes for later inspection.
type AuditStore interface {
	Record(ctx context.Context, entry AuditEntry) error
	CountByOutcome(ctx context.Context, since time.Time) (map[Outcome]int64, error)
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}
