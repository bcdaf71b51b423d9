package domain

import "time"

// InboundMessage is a piece of text received from a transport. Only Text
// drives the reply; the rest is carried for logging and auditing.
type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Text      string
	Timestamp time.Time
}
