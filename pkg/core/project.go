package core

import "context"

// Record is the field values of one record at one event. For classic
// projects Event is empty.
type Record struct {
	ID     string
	Event  string
	DAG    string
	Values map[string]string
}

// RecordFilter narrows the candidate record-ID set pulled from a project.
type RecordFilter struct {
	// Logic is an optional filter expression in the project platform's
	// logic syntax.
	Logic string
	// RecordIDs, when non-empty, restricts the pull to these records
	// (a single record for an on-save trigger).
	RecordIDs []string
}

// WriteResult summarizes one write call against a project.
type WriteResult struct {
	Updated int
	Created int
}

// ProjectClient is the collaborator surface of one project, local or
// remote. Implementations are stateless per call; both sides of a
// transfer hold one each.
type ProjectClient interface {
	// Schema returns the project's field dictionary.
	Schema(ctx context.Context) (*Schema, error)

	// DAGs enumerates the project's data access groups.
	DAGs(ctx context.Context) ([]string, error)

	// RecordIDs returns the candidate record identifiers, in the
	// project's own order, optionally filtered.
	RecordIDs(ctx context.Context, filter RecordFilter) ([]string, error)

	// ReadRecords fetches the given fields for the given records. Events
	// is nil for classic projects or "all events".
	ReadRecords(ctx context.Context, ids []string, fields []string, events []string) ([]Record, error)

	// WriteRecords writes records, honoring the overwrite policy.
	// Implementations return an *AuthError for credential failures so the
	// orchestrator can abort remaining batches.
	WriteRecords(ctx context.Context, records []Record, overwrite OverwritePolicy) (*WriteResult, error)

	// AssignDAG sets a record's data access group in the destination.
	AssignDAG(ctx context.Context, recordID, dag string) error
}
