package domain

// Outcome is the closed set of results a relay request can end in.
type Outcome string

const (
	OutcomeNotConfigured   Outcome = "not_configured"
	OutcomeNoLink          Outcome = "no_link"
	OutcomeNoReelID        Outcome = "no_reel_id"
	OutcomeResolved        Outcome = "resolved"
	OutcomeDecodeError     Outcome = "decode_error"
	OutcomeMissingField    Outcome = "missing_field"
	OutcomeUnexpectedError Outcome = "unexpected_error"
)

// Outcomes lists every outcome in a stable order (used by stats output).
var Outcomes = []Outcome{
	OutcomeNotConfigured,
	OutcomeNoLink,
	OutcomeNoReelID,
	OutcomeResolved,
	OutcomeDecodeError,
	OutcomeMissingField,
	OutcomeUnexpectedError,
}

// Fixed reply texts.
const (
	TextNotConfigured   = "RapidAPI key is not configured."
	TextNoLink          = "No Instagram link detected"
	TextNoReelID        = "Reel ID not found"
	TextResolvedPrefix  = "Extracted URL: "
	TextDecodeError     = "Error decoding API response"
	TextMissingField    = "Error processing API response"
	TextUnexpectedError = "Error fetching data from RapidAPI"
)

// Reply is the pipeline's answer to one inbound message. Adapters render it
// with Text at the transport boundary.
type Reply struct {
	Outcome  Outcome
	ReelID   string
	MediaURL string
}

// Text renders the reply for the user. It is never empty.
func (r Reply) Text() string {
	switch r.Outcome {
	case OutcomeNotConfigured:
		return TextNotConfigured
	case OutcomeNoLink:
		return TextNoLink
	case OutcomeNoReelID:
		return TextNoReelID
	case OutcomeResolved:
		return TextResolvedPrefix + r.MediaURL
	case OutcomeDecodeError:
		return TextDecodeError
	case OutcomeMissingField:
		return TextMissingField
	default:
		return TextUnexpectedError
	}
}
