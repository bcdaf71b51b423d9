package domain

import "context"

// Channel is a user-facing transport (Telegram, HTTP) run by the supervisor.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
}
