// Package transfer orchestrates batched record movement between two
// projects: validate the configuration, resolve the field map, partition
// the record-ID set, and push batches sequentially with partial-failure
// isolation.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fieldshift-labs/fieldshift/internal/resolve"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// Options carries the trigger context of one run.
type Options struct {
	Trigger core.TriggerKind

	// RecordID scopes a save-triggered run to the record that was saved.
	RecordID string
}

// Transferer executes transfer runs for one configuration against a fixed
// pair of project clients.
type Transferer struct {
	store  core.Store
	source core.ProjectClient
	dest   core.ProjectClient
	logger *slog.Logger
}

// New creates a transferer. If logger is nil, a discard logger is used.
func New(store core.Store, source, dest core.ProjectClient, logger *slog.Logger) *Transferer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transferer{store: store, source: source, dest: dest, logger: logger}
}

// Run executes one transfer run: Validating -> Resolving -> Batching ->
// Transferring -> Summarizing. Batches run strictly sequentially; a batch
// failure is recorded and isolated, while an authentication failure
// aborts the remaining batches. The returned run is also persisted
// through the store.
func (t *Transferer) Run(ctx context.Context, cfg *core.TransferConfig, opts Options) (*core.TransferRun, error) {
	// Validating: fatal before any data movement.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t.logger.Info("starting transfer run", "config", cfg.Name, "trigger", opts.Trigger)

	run, err := t.store.CreateRun(cfg.ID, opts.Trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	// Resolving: build the concrete field-pair list against both schemas.
	resolved, err := t.resolveFieldMap(ctx, cfg)
	if err != nil {
		t.logger.Error("run failed during resolution", "run_id", run.ID, "error", err.Error())
		_ = t.store.CompleteRun(run, core.RunStatusFailed, err.Error())
		return run, err
	}

	// Batching: pull the candidate record-ID set and partition it.
	batches, err := t.collectBatches(ctx, cfg, opts)
	if err != nil {
		t.logger.Error("run failed during batching", "run_id", run.ID, "error", err.Error())
		_ = t.store.CompleteRun(run, core.RunStatusFailed, err.Error())
		return run, err
	}

	t.logger.Info("transferring", "run_id", run.ID,
		"records", batches.Total(), "batches", batches.Len(), "batch_size", cfg.BatchSize)

	// Transferring: batches are processed one at a time, bounding peak
	// memory to one batch's records and respecting remote rate limits.
	fatal := t.transferBatches(ctx, run, cfg, resolved, batches)

	// Summarizing.
	if fatal != nil {
		t.logger.Error("run failed", "run_id", run.ID, "error", fatal.Error())
		_ = t.store.CompleteRun(run, core.RunStatusFailed, fatal.Error())
		return run, fatal
	}

	t.logger.Info("run completed", "run_id", run.ID,
		"transferred", run.Transferred, "created", run.Created,
		"skipped", run.Skipped, "failed", run.Failed)
	_ = t.store.CompleteRun(run, core.RunStatusCompleted, "")
	return run, nil
}

// CheckMapping validates a single mapping row against both schemas, for
// the interactive status check.
func (t *Transferer) CheckMapping(ctx context.Context, row core.FieldMapping) (*core.MappingStatus, error) {
	srcSchema, err := t.source.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source schema: %w", err)
	}
	dstSchema, err := t.dest.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination schema: %w", err)
	}
	return resolve.New(srcSchema, dstSchema, t.logger).CheckRow(row), nil
}

// resolveFieldMap loads both schemas and resolves the configuration's
// field map. Error severity is fatal; incomplete rows were skipped during
// resolution and are surfaced as warnings.
func (t *Transferer) resolveFieldMap(ctx context.Context, cfg *core.TransferConfig) (*resolve.Resolved, error) {
	srcSchema, err := t.source.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source schema: %w", err)
	}
	dstSchema, err := t.dest.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination schema: %w", err)
	}

	resolved := resolve.New(srcSchema, dstSchema, t.logger).Resolve(cfg.FieldMap)
	if resolved.Status.IsError() {
		return nil, &core.ResolutionError{Messages: resolved.Status.Messages()}
	}
	for _, msg := range resolved.Status.Messages() {
		t.logger.Warn("mapping row skipped", "config", cfg.Name, "reason", msg)
	}
	if len(resolved.Pairs) == 0 {
		return nil, &core.ResolutionError{Messages: []string{"field map resolved to no field pairs"}}
	}
	return resolved, nil
}

// collectBatches pulls the candidate record IDs and partitions them. A
// save trigger narrows the pull to the saved record, so the source also
// vouches that the record exists; otherwise the full filtered set is
// pulled, extended by the previous run's failed records when the
// configuration opts into batch retry.
func (t *Transferer) collectBatches(ctx context.Context, cfg *core.TransferConfig, opts Options) (*core.IDBatches, error) {
	filter := core.RecordFilter{Logic: cfg.FilterLogic}
	if opts.RecordID != "" {
		filter.RecordIDs = []string{opts.RecordID}
	}

	ids, err := t.source.RecordIDs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to pull record ids: %w", err)
	}

	if opts.RecordID == "" && cfg.RetryFailedBatches && opts.Trigger == core.TriggerSchedule {
		failed, err := t.store.FailedRecordIDs(cfg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load failed record ids: %w", err)
		}
		ids = appendMissing(ids, failed)
	}

	return core.NewIDBatches(ids, cfg.BatchSize)
}

// transferBatches runs every batch sequentially. It returns a non-nil
// error only for fatal failures; batch-scoped failures are recorded on
// the run and isolated.
func (t *Transferer) transferBatches(ctx context.Context, run *core.TransferRun, cfg *core.TransferConfig, resolved *resolve.Resolved, batches *core.IDBatches) error {
	matcher, err := t.buildMatcher(ctx, cfg)
	if err != nil {
		return err
	}

	for i := 0; i < batches.Len(); i++ {
		ids := batches.Batch(i)
		result := &core.BatchResult{
			RunID:     run.ID,
			Index:     i,
			RecordIDs: ids,
		}

		err := t.processBatch(ctx, cfg, resolved, matcher, ids, result)
		if err == nil {
			result.Status = core.BatchStatusSucceeded
		} else {
			result.Status = core.BatchStatusFailed
			result.Error = err.Error()
		}

		run.Transferred += result.Transferred
		run.Created += result.Created
		run.Skipped += result.Skipped
		if err != nil {
			run.Failed += len(ids)
		}
		run.Batches = append(run.Batches, result)
		if recErr := t.store.RecordBatch(result); recErr != nil {
			t.logger.Error("failed to record batch result", "run_id", run.ID, "batch", i, "error", recErr.Error())
		}

		if err == nil {
			t.logger.Debug("batch transferred", "run_id", run.ID, "batch", i, "records", len(ids))
			continue
		}

		var authErr *core.AuthError
		if errors.As(err, &authErr) {
			// Credential failures cannot succeed on retry; skip the rest.
			t.skipRemaining(run, batches, i+1)
			return authErr
		}

		t.logger.Warn("batch failed", "run_id", run.ID, "batch", i, "error", err.Error())
	}

	return nil
}

// skipRemaining records the batches abandoned after a fatal failure.
func (t *Transferer) skipRemaining(run *core.TransferRun, batches *core.IDBatches, from int) {
	for j := from; j < batches.Len(); j++ {
		ids := batches.Batch(j)
		run.Skipped += len(ids)
		result := &core.BatchResult{
			RunID:     run.ID,
			Index:     j,
			Status:    core.BatchStatusSkipped,
			Error:     "skipped: authentication failed in an earlier batch",
			RecordIDs: ids,
			Skipped:   len(ids),
		}
		run.Batches = append(run.Batches, result)
		_ = t.store.RecordBatch(result)
	}
}

// processBatch moves one batch: read source values, route groups, match
// records, apply the create and overwrite policies, and write.
func (t *Transferer) processBatch(ctx context.Context, cfg *core.TransferConfig, resolved *resolve.Resolved, matcher *recordMatcher, ids []string, result *core.BatchResult) error {
	fields := resolved.SourceFields()
	if !cfg.Match.ByPrimary() {
		// The matcher needs the secondary field even when the field map
		// does not copy it.
		fields = appendMissing(fields, []string{cfg.Match.SourceField})
	}
	records, err := t.source.ReadRecords(ctx, ids, fields, nil)
	if err != nil {
		return &core.TransferError{Batch: result.Index, RecordIDs: ids, Err: err}
	}

	var writes []core.Record
	var dagAssignments []dagAssignment
	created := 0

	for _, rec := range records {
		route := cfg.DagMap.Route(rec.DAG)
		if route.Kind == core.DagRouteExclude {
			result.Skipped++
			continue
		}

		destID, exists := matcher.match(rec)
		if !exists {
			destID, exists = t.applyCreatePolicy(cfg, rec)
			if !exists {
				result.Skipped++
				continue
			}
			created++
		}

		writes = append(writes, projectRecord(rec, destID, resolved.Pairs, cfg.Overwrite)...)
		if route.Kind == core.DagRouteMap {
			dagAssignments = append(dagAssignments, dagAssignment{recordID: destID, dag: route.Destination})
		}
	}

	if len(writes) == 0 {
		return nil
	}

	wr, err := t.dest.WriteRecords(ctx, writes, cfg.Overwrite)
	if err != nil {
		var authErr *core.AuthError
		if errors.As(err, &authErr) {
			return err
		}
		return &core.TransferError{Batch: result.Index, RecordIDs: ids, Err: err}
	}

	for _, a := range dagAssignments {
		if err := t.dest.AssignDAG(ctx, a.recordID, a.dag); err != nil {
			return &core.TransferError{Batch: result.Index, RecordIDs: ids, Err: err}
		}
	}

	result.Transferred = wr.Updated + wr.Created
	result.Created = created
	return nil
}

// applyCreatePolicy decides the destination ID for an unmatched source
// record. Returns false when the record is skipped.
func (t *Transferer) applyCreatePolicy(cfg *core.TransferConfig, rec core.Record) (string, bool) {
	switch cfg.Create {
	case core.CreateAlways:
		return rec.ID, true
	case core.CreateMapped:
		destID, ok := cfg.CreateIDs[rec.ID]
		return destID, ok
	default:
		return "", false
	}
}

type dagAssignment struct {
	recordID string
	dag      string
}

// projectRecord applies the resolved field pairs to one source record,
// producing destination records grouped by destination event. Blank
// source values are dropped under the skip-blanks policy so they cannot
// clear existing destination values.
func projectRecord(rec core.Record, destID string, pairs []core.FieldPair, overwrite core.OverwritePolicy) []core.Record {
	byEvent := make(map[string]map[string]string)
	var eventOrder []string

	for _, p := range pairs {
		if p.SourceEvent != rec.Event {
			continue
		}
		val, ok := rec.Values[p.Source.Name]
		if !ok {
			continue
		}
		if val == "" && overwrite == core.OverwriteSkipBlanks {
			continue
		}
		if byEvent[p.DestinationEvent] == nil {
			byEvent[p.DestinationEvent] = make(map[string]string)
			eventOrder = append(eventOrder, p.DestinationEvent)
		}
		byEvent[p.DestinationEvent][p.Destination.Name] = val
	}

	var out []core.Record
	for _, ev := range eventOrder {
		out = append(out, core.Record{ID: destID, Event: ev, Values: byEvent[ev]})
	}
	return out
}

// appendMissing appends the elements of extra that are not already in ids,
// preserving both orders.
func appendMissing(ids, extra []string) []string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
