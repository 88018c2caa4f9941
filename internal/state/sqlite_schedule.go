package state

import (
	"fmt"
	"time"
)

// ClaimScheduleSlot atomically test-and-sets the "already processed"
// marker for a (date, hour) pair. INSERT OR IGNORE against the primary
// key makes the claim a compare-and-swap: of two racing scheduler
// invocations, exactly one inserts a row.
func (s *SQLiteStore) ClaimScheduleSlot(date string, hour int) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO schedule_marks (date, hour, claimed_at) VALUES (?, ?, ?)`,
		date, hour, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim schedule slot: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim schedule slot: %w", err)
	}
	claimed := n > 0
	s.logger.Debug("schedule slot claim", "date", date, "hour", hour, "claimed", claimed)
	return claimed, nil
}

// IncrementRunCount bumps and returns the per-configuration run count for
// a date, using the same atomic upsert discipline as the schedule marker.
func (s *SQLiteStore) IncrementRunCount(configID, date string) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	var count int
	err := s.db.QueryRow(
		`INSERT INTO run_counts (config_id, date, count) VALUES (?, ?, 1)
		 ON CONFLICT (config_id, date) DO UPDATE SET count = count + 1
		 RETURNING count`,
		configID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment run count: %w", err)
	}
	return count, nil
}
