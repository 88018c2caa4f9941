package core

// Store defines persistence for transfer configurations, runs, and the
// scheduler's bookkeeping.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Configuration operations
	CreateConfig(cfg *TransferConfig) error
	GetConfig(id string) (*TransferConfig, error)
	GetConfigByName(projectID, name string) (*TransferConfig, error)
	ListConfigs(projectID string) ([]*TransferConfig, error)
	ListEnabledByTrigger(trigger TriggerKind) ([]*TransferConfig, error)
	UpdateConfig(cfg *TransferConfig) error
	RenameConfig(id, newName string) error
	DeleteConfig(id string) error

	// Run operations
	CreateRun(configID string, trigger TriggerKind) (*TransferRun, error)
	CompleteRun(run *TransferRun, status RunStatus, errMsg string) error
	RecordBatch(batch *BatchResult) error
	GetRun(id string) (*TransferRun, error)
	ListRuns(configID string, limit int) ([]*TransferRun, error)

	// FailedRecordIDs returns the record IDs of failed batches from the
	// most recent run of a configuration, for opt-in batch retry.
	FailedRecordIDs(configID string) ([]string, error)

	// ClaimScheduleSlot atomically test-and-sets the "already processed"
	// marker for a (date, hour) pair. Returns false when another scheduler
	// invocation has already claimed the slot.
	ClaimScheduleSlot(date string, hour int) (bool, error)

	// IncrementRunCount bumps and returns the per-configuration run count
	// for a date. Shares the schedule marker's atomic update discipline.
	IncrementRunCount(configID, date string) (int, error)
}
