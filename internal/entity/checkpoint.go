package entity

// CheckpointState is the durable scan position for one mail label.
// The zero value is the implicit state of a label that has never been
// scanned.
type CheckpointState struct {
	// Offset counts fully-processed threads within the label's listing.
	Offset int `json:"offset"`
	// Completed marks that a full pass over the label has finished.
	Completed bool `json:"completed"`
	// UpdatedAt is a unix-milli timestamp of the last save, 0 if never saved.
	UpdatedAt int64 `json:"updated_at"`
}
