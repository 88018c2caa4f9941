package core

import (
	"fmt"
	"strings"
)

// ConfigDisabledError reports an attempt to run a disabled configuration.
// Fatal before any data movement.
type ConfigDisabledError struct {
	Name string
}

func (e *ConfigDisabledError) Error() string {
	return fmt.Sprintf("configuration %q is disabled", e.Name)
}

// ConfigInvalidError reports a structurally invalid configuration. Fatal
// before any data movement.
type ConfigInvalidError struct {
	Name    string
	Reasons []string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("configuration %q is invalid: %s", e.Name, strings.Join(e.Reasons, "; "))
}

// PermissionError reports a denied modify/rename/delete attempt on a
// configuration.
type PermissionError struct {
	User   string
	Action string
	Config string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %q may not %s configuration %q", e.User, e.Action, e.Config)
}

// ScheduleLimitError reports that a configuration has reached its daily
// run cap. Fatal for that job only; other jobs in the same pass proceed.
type ScheduleLimitError struct {
	Config string
	Limit  int
}

func (e *ScheduleLimitError) Error() string {
	return fmt.Sprintf("configuration %q reached its limit of %d runs per day", e.Config, e.Limit)
}

// AuthError reports a credential failure against a project. Fatal: once
// authentication fails, retrying remaining batches cannot succeed.
type AuthError struct {
	Location string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Location, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransferError reports a failed batch. Batch-scoped: it is recorded
// against the run summary and does not stop subsequent batches.
type TransferError struct {
	Batch     int
	RecordIDs []string
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("batch %d (%d records) failed: %v", e.Batch, len(e.RecordIDs), e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ResolutionError reports a fatal field-map resolution outcome: at least
// one row carried error severity.
type ResolutionError struct {
	Messages []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("field map resolution failed: %s", strings.Join(e.Messages, "; "))
}
