package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

const configColumns = `id, project_id, name, owner, enabled, direction,
	source_json, destination_json, trigger_kind, match_json, create_policy,
	create_ids_json, overwrite_policy, filter_logic, batch_size, retry_failed,
	field_map_json, dag_map_json, schedule_json, created_at, updated_at`

// CreateConfig persists a new transfer configuration. A missing ID is
// generated; timestamps are set.
func (s *SQLiteStore) CreateConfig(cfg *core.TransferConfig) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if cfg.ID == "" {
		cfg.ID = generateID()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	enc, err := encodeConfig(cfg)
	if err != nil {
		return err
	}

	s.logger.Debug("creating configuration", "id", cfg.ID, "name", cfg.Name)

	_, err = s.db.Exec(
		`INSERT INTO configurations (`+configColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.ProjectID, cfg.Name, cfg.Owner, cfg.Enabled, string(cfg.Direction),
		enc.source, enc.destination, string(cfg.Trigger), enc.match, string(cfg.Create),
		enc.createIDs, string(cfg.Overwrite), cfg.FilterLogic, cfg.BatchSize, cfg.RetryFailedBatches,
		enc.fieldMap, enc.dagMap, enc.schedule, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	return nil
}

// GetConfig retrieves a configuration by ID.
func (s *SQLiteStore) GetConfig(id string) (*core.TransferConfig, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(`SELECT `+configColumns+` FROM configurations WHERE id = ?`, id)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("configuration not found: %s", id)
	}
	return cfg, err
}

// GetConfigByName retrieves a configuration by project and name.
func (s *SQLiteStore) GetConfigByName(projectID, name string) (*core.TransferConfig, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(
		`SELECT `+configColumns+` FROM configurations WHERE project_id = ? AND name = ?`,
		projectID, name,
	)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("configuration not found: %s", name)
	}
	return cfg, err
}

// ListConfigs returns a project's configurations, newest first.
func (s *SQLiteStore) ListConfigs(projectID string) ([]*core.TransferConfig, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT `+configColumns+` FROM configurations WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

// ListEnabledByTrigger returns every enabled configuration with the given
// trigger kind, in creation order. The scheduler and the save-trigger
// handler discover their work through this.
func (s *SQLiteStore) ListEnabledByTrigger(trigger core.TriggerKind) ([]*core.TransferConfig, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT `+configColumns+` FROM configurations
		 WHERE enabled = 1 AND trigger_kind = ? ORDER BY created_at`,
		string(trigger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

// UpdateConfig rewrites a configuration's mutable fields.
func (s *SQLiteStore) UpdateConfig(cfg *core.TransferConfig) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	cfg.UpdatedAt = time.Now().UTC()
	enc, err := encodeConfig(cfg)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(
		`UPDATE configurations SET
			name = ?, enabled = ?, direction = ?, source_json = ?, destination_json = ?,
			trigger_kind = ?, match_json = ?, create_policy = ?, create_ids_json = ?,
			overwrite_policy = ?, filter_logic = ?, batch_size = ?, retry_failed = ?,
			field_map_json = ?, dag_map_json = ?, schedule_json = ?, updated_at = ?
		 WHERE id = ?`,
		cfg.Name, cfg.Enabled, string(cfg.Direction), enc.source, enc.destination,
		string(cfg.Trigger), enc.match, string(cfg.Create), enc.createIDs,
		string(cfg.Overwrite), cfg.FilterLogic, cfg.BatchSize, cfg.RetryFailedBatches,
		enc.fieldMap, enc.dagMap, enc.schedule, cfg.UpdatedAt,
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("configuration not found: %s", cfg.ID)
	}
	return nil
}

// RenameConfig changes a configuration's name.
func (s *SQLiteStore) RenameConfig(id, newName string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	result, err := s.db.Exec(
		`UPDATE configurations SET name = ?, updated_at = ? WHERE id = ?`,
		newName, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename configuration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("configuration not found: %s", id)
	}
	return nil
}

// DeleteConfig removes a configuration.
func (s *SQLiteStore) DeleteConfig(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	result, err := s.db.Exec(`DELETE FROM configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("configuration not found: %s", id)
	}
	return nil
}

// encodedConfig holds the JSON-encoded columns of one configuration row.
type encodedConfig struct {
	source      string
	destination string
	match       string
	createIDs   string
	fieldMap    string
	dagMap      string
	schedule    string
}

func encodeConfig(cfg *core.TransferConfig) (*encodedConfig, error) {
	enc := &encodedConfig{}
	for _, col := range []struct {
		out *string
		val any
	}{
		{&enc.source, cfg.Source},
		{&enc.destination, cfg.Destination},
		{&enc.match, cfg.Match},
		{&enc.createIDs, cfg.CreateIDs},
		{&enc.fieldMap, cfg.FieldMap},
		{&enc.dagMap, cfg.DagMap},
		{&enc.schedule, cfg.Schedule},
	} {
		b, err := json.Marshal(col.val)
		if err != nil {
			return nil, fmt.Errorf("failed to encode configuration: %w", err)
		}
		*col.out = string(b)
	}
	return enc, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*core.TransferConfig, error) {
	cfg := &core.TransferConfig{}
	var (
		direction, trigger, createPolicy, overwrite        string
		srcJSON, dstJSON, matchJSON, fieldMapJSON          string
		createIDsJSON, dagMapJSON, scheduleJSON, filterLog sql.NullString
	)

	err := row.Scan(
		&cfg.ID, &cfg.ProjectID, &cfg.Name, &cfg.Owner, &cfg.Enabled, &direction,
		&srcJSON, &dstJSON, &trigger, &matchJSON, &createPolicy,
		&createIDsJSON, &overwrite, &filterLog, &cfg.BatchSize, &cfg.RetryFailedBatches,
		&fieldMapJSON, &dagMapJSON, &scheduleJSON, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.Direction = core.Direction(direction)
	cfg.Trigger = core.TriggerKind(trigger)
	cfg.Create = core.CreatePolicy(createPolicy)
	cfg.Overwrite = core.OverwritePolicy(overwrite)
	cfg.FilterLogic = filterLog.String

	for _, col := range []struct {
		raw string
		out any
	}{
		{srcJSON, &cfg.Source},
		{dstJSON, &cfg.Destination},
		{matchJSON, &cfg.Match},
		{createIDsJSON.String, &cfg.CreateIDs},
		{fieldMapJSON, &cfg.FieldMap},
		{dagMapJSON.String, &cfg.DagMap},
		{scheduleJSON.String, &cfg.Schedule},
	} {
		if col.raw == "" || col.raw == "null" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw), col.out); err != nil {
			return nil, fmt.Errorf("failed to decode configuration %s: %w", cfg.ID, err)
		}
	}

	return cfg, nil
}

func scanConfigs(rows *sql.Rows) ([]*core.TransferConfig, error) {
	var configs []*core.TransferConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
