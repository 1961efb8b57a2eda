package entity

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary is the per-invocation report returned by the orchestrator.
type RunSummary struct {
	RunID   uuid.UUID `json:"run_id"`
	Label   string    `json:"label"`
	Elapsed time.Duration `json:"elapsed"`

	Appended      int `json:"appended"`
	ErrorsLogged  int `json:"errors_logged"`
	Duplicates    int `json:"duplicates"`
	Cancellations int `json:"cancellations"`
	ParseFailures int `json:"parse_failures"`

	ResultSheet string `json:"result_sheet"`
	ErrorSheet  string `json:"error_sheet"`
	FolderPath  string `json:"folder_path"`

	Checkpoint CheckpointState `json:"checkpoint"`
	Completed  bool            `json:"completed"`
}
