package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// PostgresClient reads and writes a project hosted in the local platform
// database. Records are stored in long format: one row per record, event
// and field.
type PostgresClient struct {
	db        *sql.DB
	projectID string
	logger    *slog.Logger
}

// NewPostgresClient wraps an open platform database handle. The caller
// owns the handle's lifecycle.
func NewPostgresClient(db *sql.DB, projectID string, logger *slog.Logger) *PostgresClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresClient{db: db, projectID: projectID, logger: logger}
}

// Schema loads the project's field dictionary from the platform tables.
func (c *PostgresClient) Schema(ctx context.Context) (*core.Schema, error) {
	var longitudinal bool
	err := c.db.QueryRowContext(ctx,
		`SELECT longitudinal FROM projects WHERE id = $1`, c.projectID).
		Scan(&longitudinal)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", c.projectID, err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT name, form, events_json, field_type, validation,
		       min_value, max_value, required, choices_json, identifier
		FROM project_fields
		WHERE project_id = $1
		ORDER BY position`, c.projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	defer rows.Close()

	var vars []*core.Variable
	for rows.Next() {
		var (
			v           core.Variable
			eventsJSON  sql.NullString
			choicesJSON sql.NullString
			validation  sql.NullString
			minVal      sql.NullString
			maxVal      sql.NullString
		)
		if err := rows.Scan(&v.Name, &v.Form, &eventsJSON, &v.Type, &validation,
			&minVal, &maxVal, &v.Required, &choicesJSON, &v.IsIdentifier); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		v.Validation = core.ValidationKind(validation.String)
		v.Min = minVal.String
		v.Max = maxVal.String
		if eventsJSON.Valid && eventsJSON.String != "" {
			if err := json.Unmarshal([]byte(eventsJSON.String), &v.Events); err != nil {
				return nil, fmt.Errorf("failed to decode events for %s: %w", v.Name, err)
			}
		}
		if choicesJSON.Valid && choicesJSON.String != "" {
			if err := json.Unmarshal([]byte(choicesJSON.String), &v.Choices); err != nil {
				return nil, fmt.Errorf("failed to decode choices for %s: %w", v.Name, err)
			}
		}
		vars = append(vars, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}

	return core.NewSchema(vars, longitudinal), nil
}

// DAGs enumerates the project's data access groups.
func (c *PostgresClient) DAGs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM project_dags WHERE project_id = $1 ORDER BY name`,
		c.projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dags: %w", err)
	}
	defer rows.Close()

	var dags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dag: %w", err)
		}
		dags = append(dags, name)
	}
	return dags, rows.Err()
}

// RecordIDs returns record identifiers in platform order, optionally
// narrowed to an explicit list. Filter logic is evaluated by the remote
// API only; locally it narrows nothing.
func (c *PostgresClient) RecordIDs(ctx context.Context, filter core.RecordFilter) ([]string, error) {
	query := `SELECT DISTINCT record_id FROM record_values WHERE project_id = $1 ORDER BY record_id`
	rows, err := c.db.QueryContext(ctx, query, c.projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list record ids: %w", err)
	}
	defer rows.Close()

	var want map[string]bool
	if len(filter.RecordIDs) > 0 {
		want = make(map[string]bool, len(filter.RecordIDs))
		for _, id := range filter.RecordIDs {
			want[id] = true
		}
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		if want != nil && !want[id] {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReadRecords fetches the given fields for the given records, one Record
// per (record, event) pair.
func (c *PostgresClient) ReadRecords(ctx context.Context, ids []string, fields []string, events []string) ([]core.Record, error) {
	query := `
		SELECT v.record_id, v.event, v.field, v.value, COALESCE(d.dag, '')
		FROM record_values v
		LEFT JOIN record_dags d
		  ON d.project_id = v.project_id AND d.record_id = v.record_id
		WHERE v.project_id = $1
		  AND v.record_id = ANY($2)
		  AND v.field = ANY($3)`
	args := []any{c.projectID, ids, fields}
	if len(events) > 0 {
		query += ` AND v.event = ANY($4)`
		args = append(args, events)
	}
	query += ` ORDER BY v.record_id, v.event`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	defer rows.Close()

	byKey := make(map[[2]string]*core.Record)
	var order [][2]string
	for rows.Next() {
		var recordID, event, field, value, dag string
		if err := rows.Scan(&recordID, &event, &field, &value, &dag); err != nil {
			return nil, fmt.Errorf("failed to scan record value: %w", err)
		}
		key := [2]string{recordID, event}
		rec, ok := byKey[key]
		if !ok {
			rec = &core.Record{ID: recordID, Event: event, DAG: dag, Values: map[string]string{}}
			byKey[key] = rec
			order = append(order, key)
		}
		rec.Values[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]core.Record, len(order))
	for i, key := range order {
		records[i] = *byKey[key]
	}
	return records, nil
}

// WriteRecords upserts field values. Under the skip-blanks policy the
// caller has already dropped blank values, so every incoming value is
// written; under overwrite-with-blanks, blanks clear the stored value.
func (c *PostgresClient) WriteRecords(ctx context.Context, records []core.Record, overwrite core.OverwritePolicy) (*core.WriteResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &core.WriteResult{}
	for _, rec := range records {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM record_values WHERE project_id = $1 AND record_id = $2)`,
			c.projectID, rec.ID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check record %s: %w", rec.ID, err)
		}

		for field, value := range rec.Values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO record_values (project_id, record_id, event, field, value)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (project_id, record_id, event, field)
				DO UPDATE SET value = EXCLUDED.value`,
				c.projectID, rec.ID, rec.Event, field, value)
			if err != nil {
				return nil, fmt.Errorf("failed to write %s.%s: %w", rec.ID, field, err)
			}
		}

		if exists {
			result.Updated++
		} else {
			result.Created++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit records: %w", err)
	}

	c.logger.Debug("records written", "project", c.projectID,
		"updated", result.Updated, "created", result.Created)
	return result, nil
}

// AssignDAG sets a record's data access group.
func (c *PostgresClient) AssignDAG(ctx context.Context, recordID, dag string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO record_dags (project_id, record_id, dag)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, record_id)
		DO UPDATE SET dag = EXCLUDED.dag`,
		c.projectID, recordID, dag)
	if err != nil {
		return fmt.Errorf("failed to assign dag: %w", err)
	}
	return nil
}
