package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// CreateRun records the start of a transfer run.
func (s *SQLiteStore) CreateRun(configID string, trigger core.TriggerKind) (*core.TransferRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.TransferRun{
		ID:        generateID(),
		ConfigID:  configID,
		Trigger:   trigger,
		Status:    core.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", "run_id", run.ID, "config_id", configID, "trigger", trigger)

	_, err := s.db.Exec(
		`INSERT INTO transfer_runs (id, config_id, trigger_kind, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ConfigID, string(run.Trigger), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run terminal and persists its aggregate counts.
func (s *SQLiteStore) CompleteRun(run *core.TransferRun, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Error = errMsg

	_, err := s.db.Exec(
		`UPDATE transfer_runs SET status = ?, completed_at = ?, error = ?,
			transferred = ?, created = ?, skipped = ?, failed = ?
		 WHERE id = ?`,
		string(status), now, errMsg,
		run.Transferred, run.Created, run.Skipped, run.Failed,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// RecordBatch persists the outcome of one batch.
func (s *SQLiteStore) RecordBatch(batch *core.BatchResult) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if batch.ID == "" {
		batch.ID = generateID()
	}
	idsJSON, err := json.Marshal(batch.RecordIDs)
	if err != nil {
		return fmt.Errorf("failed to encode batch record ids: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO batch_results (id, run_id, batch_index, status, error, record_ids_json,
			transferred, created, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.RunID, batch.Index, string(batch.Status), batch.Error, string(idsJSON),
		batch.Transferred, batch.Created, batch.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}
	return nil
}

// GetRun retrieves a run with its batch results.
func (s *SQLiteStore) GetRun(id string) (*core.TransferRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := s.scanRun(s.db.QueryRow(
		`SELECT id, config_id, trigger_kind, status, started_at, completed_at, error,
			transferred, created, skipped, failed
		 FROM transfer_runs WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	run.Batches, err = s.batchesForRun(run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns a configuration's most recent runs, without batch
// detail.
func (s *SQLiteStore) ListRuns(configID string, limit int) ([]*core.TransferRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, config_id, trigger_kind, status, started_at, completed_at, error,
			transferred, created, skipped, failed
		 FROM transfer_runs WHERE config_id = ? ORDER BY started_at DESC LIMIT ?`,
		configID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.TransferRun
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FailedRecordIDs returns the record IDs of failed batches from the most
// recent terminal run of a configuration. Runs still in progress are
// skipped; the caller is typically inside one.
func (s *SQLiteStore) FailedRecordIDs(configID string) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT b.record_ids_json FROM batch_results b
		 WHERE b.status = ? AND b.run_id = (
			SELECT id FROM transfer_runs WHERE config_id = ? AND status <> ?
			ORDER BY started_at DESC LIMIT 1)
		 ORDER BY b.batch_index`,
		string(core.BatchStatusFailed), configID, string(core.RunStatusRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed batches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var batchIDs []string
		if err := json.Unmarshal([]byte(raw), &batchIDs); err != nil {
			return nil, fmt.Errorf("failed to decode batch record ids: %w", err)
		}
		ids = append(ids, batchIDs...)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) scanRun(row rowScanner) (*core.TransferRun, error) {
	run := &core.TransferRun{}
	var (
		trigger, status string
		completedAt     sql.NullTime
		errMsg          sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.ConfigID, &trigger, &status, &run.StartedAt, &completedAt, &errMsg,
		&run.Transferred, &run.Created, &run.Skipped, &run.Failed,
	)
	if err != nil {
		return nil, err
	}
	run.Trigger = core.TriggerKind(trigger)
	run.Status = core.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

func (s *SQLiteStore) batchesForRun(runID string) ([]*core.BatchResult, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, batch_index, status, error, record_ids_json,
			transferred, created, skipped
		 FROM batch_results WHERE run_id = ? ORDER BY batch_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []*core.BatchResult
	for rows.Next() {
		b := &core.BatchResult{}
		var status string
		var errMsg sql.NullString
		var idsJSON string
		if err := rows.Scan(&b.ID, &b.RunID, &b.Index, &status, &errMsg, &idsJSON,
			&b.Transferred, &b.Created, &b.Skipped); err != nil {
			return nil, err
		}
		b.Status = core.BatchStatus(status)
		b.Error = errMsg.String
		if err := json.Unmarshal([]byte(idsJSON), &b.RecordIDs); err != nil {
			return nil, fmt.Errorf("failed to decode batch record ids: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
