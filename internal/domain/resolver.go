package domain

import "context"

// FailureReason classifies why a media lookup did not produce a URL.
type FailureReason string

const (
	FailureNone            FailureReason = ""
	FailureDecodeError     FailureReason = "decode_error"
	FailureMissingField    FailureReason = "missing_field"
	FailureUnexpectedError FailureReason = "unexpected_error"
	FailureNotConfigured   FailureReason = "not_configured"
)

// Resolution is the tagged result of a media lookup: either MediaURL is set
// and Failure is empty, or Failure names what went wrong.
type Resolution struct {
	MediaURL string
	Failure  FailureReason
}

func Resolved(mediaURL string) Resolution { return Resolution{MediaURL: mediaURL} }

func Failed(reason FailureReason) Resolution { return Resolution{Failure: reason} }

// OK reports whether the lookup produced a media URL.
func (r Resolution) OK() bool { return r.Failure == FailureNone }

// Outcome maps the resolution onto the reply outcome set.
func (r Resolution) Outcome() Outcome {
	switch r.Failure {
	case FailureNone:
		return OutcomeResolved
	case FailureDecodeError:
		return OutcomeDecodeError
	case FailureMissingField:
		return OutcomeMissingField
	case FailureNotConfigured:
		return OutcomeNotConfigured
	default:
		return OutcomeUnexpectedError
	}
}

// MediaResolver turns a reel identifier into a direct media URL. It performs
// one external call per invocation and never returns an error: every failure
// is folded into the Resolution.
type MediaResolver interface {
	Resolve(ctx context.Context, reelID, apiKey string) Resolution
}
