package entity

import "time"

// ResultRow is one appended line of a label's results sheet.
type ResultRow struct {
	RideDate     string
	RideTime     string
	Vehicle      string
	Fare         float64
	ArtifactPath string
}

// ErrorRow is one appended line of a label's errors sheet. Rows are
// deduplicated by MessageID across the lifetime of the label.
type ErrorRow struct {
	ReceivedAt time.Time
	Subject    string
	Reason     string
	MessageID  string
	Snippet    string
}
