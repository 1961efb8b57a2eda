package constants

import "time"

// Scan loop tunables.
const (
	// ThreadPageSize is the number of conversation threads fetched per page.
	ThreadPageSize = 25
	// CheckpointEvery is the number of fully processed threads between
	// periodic flush+checkpoint saves.
	CheckpointEvery = 10
	// RowBatchSize is the number of buffered rows per sheet write.
	RowBatchSize = 50
)

// DefaultBudget is the wall-clock allowance per invocation, a safety margin
// under a six-minute host-style execution ceiling.
const DefaultBudget = 5 * time.Minute

// DefaultLockWait bounds how long an invocation waits for the advisory lock.
const DefaultLockWait = 3 * time.Second

// TimeSearchWindow is how many characters after a date match the time token
// is searched for before falling back to the remainder of the text.
const TimeSearchWindow = 300

// SnippetMaxLen caps the body snippet recorded on error rows.
const SnippetMaxLen = 200

// FileNameMaxLen caps generated artifact filenames.
const FileNameMaxLen = 120
