package core

import "time"

// RunStatus is the status of a transfer run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TransferRun is one execution of a transfer configuration.
type TransferRun struct {
	ID          string
	ConfigID    string
	Trigger     TriggerKind
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string

	// Aggregated counts across all batches.
	Transferred int
	Created     int
	Skipped     int
	Failed      int

	Batches []*BatchResult
}

// BatchStatus is the status of one batch within a run.
type BatchStatus string

// Batch status constants.
const (
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusSkipped   BatchStatus = "skipped"
)

// BatchResult records the outcome of one batch with enough context to
// retry it or follow up manually.
type BatchResult struct {
	ID        string
	RunID     string
	Index     int
	Status    BatchStatus
	Error     string
	RecordIDs []string

	Transferred int
	Created     int
	Skipped     int
}
