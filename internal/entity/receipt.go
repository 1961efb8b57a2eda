package entity

// ParsedReceipt is one decoded ride record. All four fields are resolvable
// from the source message or parsing fails as a whole; there is no
// partially-populated receipt.
type ParsedReceipt struct {
	// RideDate is normalized to YYYY-MM-DD.
	RideDate string `json:"ride_date"`
	// RideTime is normalized to HH:mm, 24-hour.
	RideTime string `json:"ride_time"`
	// Vehicle is the normalized identifier (fullwidth folded, trailing
	// punctuation stripped).
	Vehicle string `json:"vehicle"`
	// Fare is a non-negative amount, rounded to 2 decimal places.
	Fare float64 `json:"fare"`
}

// ParseStatus tags the outcome of parsing one message.
type ParseStatus string

const (
	ParseOK    ParseStatus = "OK"
	ParseError ParseStatus = "ERROR"
)

// ParseOutcome is the tagged result of attempting to parse one message.
type ParseOutcome struct {
	Status ParseStatus    `json:"status"`
	Parsed *ParsedReceipt `json:"parsed,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// OK wraps a successfully parsed receipt.
func OK(r ParsedReceipt) ParseOutcome {
	return ParseOutcome{Status: ParseOK, Parsed: &r}
}

// Failed wraps a terminal parse failure with its reason.
func Failed(reason string) ParseOutcome {
	return ParseOutcome{Status: ParseError, Reason: reason}
}
