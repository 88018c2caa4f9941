package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldshift-labs/fieldshift/internal/state"
	"github.com/fieldshift-labs/fieldshift/internal/testutil"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// fakeProject is an in-memory ProjectClient for both sides of a transfer.
type fakeProject struct {
	schema  *core.Schema
	dags    []string
	ids     []string
	records []core.Record

	writeCalls int
	writes     []core.Record
	writeErrs  map[int]error // call index -> injected error
	dagAssigns map[string]string
}

func (f *fakeProject) Schema(ctx context.Context) (*core.Schema, error) { return f.schema, nil }
func (f *fakeProject) DAGs(ctx context.Context) ([]string, error)       { return f.dags, nil }

func (f *fakeProject) RecordIDs(ctx context.Context, filter core.RecordFilter) ([]string, error) {
	if len(filter.RecordIDs) == 0 {
		return append([]string(nil), f.ids...), nil
	}
	want := make(map[string]bool, len(filter.RecordIDs))
	for _, id := range filter.RecordIDs {
		want[id] = true
	}
	var out []string
	for _, id := range f.ids {
		if want[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeProject) ReadRecords(ctx context.Context, ids []string, fields []string, events []string) ([]core.Record, error) {
	if ids == nil {
		return append([]core.Record(nil), f.records...), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []core.Record
	for _, rec := range f.records {
		if want[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeProject) WriteRecords(ctx context.Context, records []core.Record, overwrite core.OverwritePolicy) (*core.WriteResult, error) {
	call := f.writeCalls
	f.writeCalls++
	if err := f.writeErrs[call]; err != nil {
		return nil, err
	}
	f.writes = append(f.writes, records...)
	return &core.WriteResult{Updated: len(records)}, nil
}

func (f *fakeProject) AssignDAG(ctx context.Context, recordID, dag string) error {
	if f.dagAssigns == nil {
		f.dagAssigns = make(map[string]string)
	}
	f.dagAssigns[recordID] = dag
	return nil
}

func testSchema() *core.Schema {
	return core.NewSchema([]*core.Variable{
		{Name: "record_id", Form: "intake", Type: core.FieldText},
		{Name: "weight", Form: "intake", Type: core.FieldText, Validation: core.ValidationNumber},
		{Name: "note", Form: "intake", Type: core.FieldText},
	}, false)
}

// sourceWithRecords builds a source project with n sequential records.
func sourceWithRecords(n int) *fakeProject {
	f := &fakeProject{schema: testSchema()}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("r%04d", i+1)
		f.ids = append(f.ids, id)
		f.records = append(f.records, core.Record{
			ID:     id,
			Values: map[string]string{"weight": fmt.Sprintf("%d", 60+i%40), "note": "seen"},
		})
	}
	return f
}

func destProject(existing ...string) *fakeProject {
	return &fakeProject{schema: testSchema(), ids: existing}
}

func testConfig() *core.TransferConfig {
	return &core.TransferConfig{
		ProjectID: "p1",
		Name:      "nightly-sync",
		Owner:     "alice",
		Enabled:   true,
		Direction: core.DirectionExport,
		Source:    core.ProjectLocation{Kind: core.LocationLocal, ProjectID: "p1"},
		Destination: core.ProjectLocation{
			Kind: core.LocationAPI, APIURL: "https://dest.example.org/api", APIToken: "secret",
		},
		Trigger:   core.TriggerManual,
		Create:    core.CreateAlways,
		Overwrite: core.OverwriteSkipBlanks,
		BatchSize: 500,
		FieldMap: core.FieldMap{{
			SourceField:      core.Locator{Kind: core.LocatorAll},
			DestinationField: core.Locator{Kind: core.LocatorEquivalent},
		}},
	}
}

func openStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	st := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, st.Open(":memory:"))
	require.NoError(t, st.Migrate())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createConfig(t *testing.T, st *state.SQLiteStore, cfg *core.TransferConfig) {
	t.Helper()
	require.NoError(t, st.CreateConfig(cfg))
}

func TestRun_PartitionsAndTransfers(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	createConfig(t, st, cfg)

	source := sourceWithRecords(1050)
	dest := destProject()
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Equal(t, 1050, run.Transferred)
	assert.Equal(t, 1050, run.Created)
	assert.Zero(t, run.Skipped)
	assert.Zero(t, run.Failed)

	assert.Equal(t, 3, dest.writeCalls)
	assert.Len(t, dest.writes, 1050)

	// The returned run carries the batch detail without a re-fetch.
	require.Len(t, run.Batches, 3)
	assert.Equal(t, core.BatchStatusSucceeded, run.Batches[2].Status)

	stored, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Len(t, stored.Batches, 3)
	for i, want := range []int{500, 500, 50} {
		assert.Equal(t, i, stored.Batches[i].Index)
		assert.Equal(t, core.BatchStatusSucceeded, stored.Batches[i].Status)
		assert.Len(t, stored.Batches[i].RecordIDs, want)
	}
}

func TestRun_BatchFailureIsIsolated(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	createConfig(t, st, cfg)

	source := sourceWithRecords(1050)
	dest := destProject()
	dest.writeErrs = map[int]error{1: errors.New("destination rejected the batch")}
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.NoError(t, err, "a batch-scoped failure must not fail the run")

	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Equal(t, 550, run.Transferred)
	assert.Equal(t, 500, run.Failed)

	stored, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Len(t, stored.Batches, 3)
	assert.Equal(t, core.BatchStatusSucceeded, stored.Batches[0].Status)
	assert.Equal(t, core.BatchStatusFailed, stored.Batches[1].Status)
	assert.Equal(t, core.BatchStatusSucceeded, stored.Batches[2].Status)

	// The failed batch's records are queued for opt-in retry.
	failed, err := st.FailedRecordIDs(cfg.ID)
	require.NoError(t, err)
	assert.Len(t, failed, 500)
	assert.Equal(t, "r0501", failed[0])
}

func TestRun_AuthErrorAbortsRemainingBatches(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	createConfig(t, st, cfg)

	source := sourceWithRecords(1050)
	dest := destProject()
	dest.writeErrs = map[int]error{
		0: &core.AuthError{Location: "destination", Err: errors.New("token revoked")},
	}
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.Error(t, err)
	var authErr *core.AuthError
	assert.ErrorAs(t, err, &authErr)

	require.NotNil(t, run)
	assert.Equal(t, core.RunStatusFailed, run.Status)
	assert.Equal(t, 500, run.Failed)
	assert.Equal(t, 550, run.Skipped)
	assert.Equal(t, 1, dest.writeCalls, "no further writes after a credential failure")

	require.Len(t, run.Batches, 3)
	assert.Equal(t, core.BatchStatusFailed, run.Batches[0].Status)
	assert.Equal(t, core.BatchStatusSkipped, run.Batches[1].Status)
	assert.Equal(t, core.BatchStatusSkipped, run.Batches[2].Status)

	stored, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Len(t, stored.Batches, 3)
	assert.Equal(t, core.BatchStatusFailed, stored.Batches[0].Status)
	assert.Equal(t, core.BatchStatusSkipped, stored.Batches[1].Status)
	assert.Equal(t, core.BatchStatusSkipped, stored.Batches[2].Status)
}

func TestRun_DisabledConfigRefused(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.Enabled = false
	createConfig(t, st, cfg)

	tr := New(st, sourceWithRecords(1), destProject(), nil)
	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})

	require.Error(t, err)
	var disabled *core.ConfigDisabledError
	assert.ErrorAs(t, err, &disabled)
	assert.Nil(t, run, "no run row for a refused configuration")
}

func TestRun_SaveTriggerScopesToOneRecord(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	createConfig(t, st, cfg)

	source := sourceWithRecords(20)
	dest := destProject()
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerSave, RecordID: "r0007"})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Transferred)
	require.Len(t, dest.writes, 1)
	assert.Equal(t, "r0007", dest.writes[0].ID)
}

func TestRun_SaveTriggerUnknownRecordMovesNothing(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	createConfig(t, st, cfg)

	source := sourceWithRecords(5)
	dest := destProject()
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	// The record-ID pull goes through the source, which does not vouch
	// for r9999.
	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerSave, RecordID: "r9999"})
	require.NoError(t, err)

	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Zero(t, run.Transferred)
	assert.Empty(t, run.Batches)
	assert.Empty(t, dest.writes)
}

func TestRun_CreateNeverSkipsUnmatched(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.Create = core.CreateNever
	createConfig(t, st, cfg)

	source := sourceWithRecords(3)
	dest := destProject("r0001") // only r0001 exists downstream
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Transferred)
	assert.Zero(t, run.Created)
	assert.Equal(t, 2, run.Skipped)
	require.Len(t, dest.writes, 1)
	assert.Equal(t, "r0001", dest.writes[0].ID)
}

func TestRun_CreateMappedUsesDestinationIDs(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.Create = core.CreateMapped
	cfg.CreateIDs = map[string]string{"r0002": "d-200"}
	createConfig(t, st, cfg)

	source := sourceWithRecords(3)
	dest := destProject()
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 2, run.Skipped)
	require.Len(t, dest.writes, 1)
	assert.Equal(t, "d-200", dest.writes[0].ID)
}

func TestRun_DagRouting(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.DagMap = core.DagMap{
		"east": {Kind: core.DagRouteMap, Destination: "east-mirror"},
		"west": {Kind: core.DagRouteExclude},
	}
	createConfig(t, st, cfg)

	source := sourceWithRecords(3)
	source.records[0].DAG = "east"
	source.records[1].DAG = "west"
	// records[2] has no group and is transferred untouched
	dest := destProject()
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.NoError(t, err)

	assert.Equal(t, 2, run.Transferred)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, map[string]string{"r0001": "east-mirror"}, dest.dagAssigns)
}

func TestRun_OverwritePolicy(t *testing.T) {
	blankWeight := func() *fakeProject {
		f := &fakeProject{schema: testSchema(), ids: []string{"r1"}}
		f.records = []core.Record{{ID: "r1", Values: map[string]string{"weight": "", "note": "hi"}}}
		return f
	}

	t.Run("skip blanks drops blank values", func(t *testing.T) {
		st := openStore(t)
		cfg := testConfig()
		createConfig(t, st, cfg)

		dest := destProject()
		tr := New(st, blankWeight(), dest, testutil.NewTestLogger(t))
		_, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
		require.NoError(t, err)

		require.Len(t, dest.writes, 1)
		assert.Equal(t, map[string]string{"note": "hi"}, dest.writes[0].Values)
	})

	t.Run("overwrite with blanks keeps them", func(t *testing.T) {
		st := openStore(t)
		cfg := testConfig()
		cfg.Overwrite = core.OverwriteWithBlanks
		createConfig(t, st, cfg)

		dest := destProject()
		tr := New(st, blankWeight(), dest, testutil.NewTestLogger(t))
		_, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
		require.NoError(t, err)

		require.Len(t, dest.writes, 1)
		assert.Equal(t, map[string]string{"weight": "", "note": "hi"}, dest.writes[0].Values)
	})
}

func TestRun_SecondaryMatchStrategy(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.Create = core.CreateNever
	cfg.Match = core.MatchStrategy{SourceField: "mrn", DestinationField: "mrn"}
	cfg.FieldMap = core.FieldMap{{
		SourceField:      core.Locator{Kind: core.LocatorLiteral, Name: "note"},
		DestinationField: core.Locator{Kind: core.LocatorEquivalent},
	}}
	createConfig(t, st, cfg)

	mrnSchema := core.NewSchema([]*core.Variable{
		{Name: "record_id", Form: "intake", Type: core.FieldText},
		{Name: "mrn", Form: "intake", Type: core.FieldText},
		{Name: "note", Form: "intake", Type: core.FieldText},
	}, false)

	source := &fakeProject{schema: mrnSchema, ids: []string{"s1", "s2"}, records: []core.Record{
		{ID: "s1", Values: map[string]string{"mrn": "A100", "note": "update"}},
		{ID: "s2", Values: map[string]string{"mrn": "A999", "note": "orphan"}},
	}}
	dest := &fakeProject{schema: mrnSchema, ids: []string{"d1"}, records: []core.Record{
		{ID: "d1", Values: map[string]string{"mrn": "A100"}},
	}}

	tr := New(st, source, dest, testutil.NewTestLogger(t))
	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})
	require.NoError(t, err)

	// s1 lands on the destination record that shares its MRN; s2 has no
	// match and creates are off.
	assert.Equal(t, 1, run.Transferred)
	assert.Equal(t, 1, run.Skipped)
	require.Len(t, dest.writes, 1)
	assert.Equal(t, "d1", dest.writes[0].ID)
}

func TestRun_ScheduledRetryRequeuesFailedRecords(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.Trigger = core.TriggerSchedule
	cfg.RetryFailedBatches = true
	createConfig(t, st, cfg)

	// A previous run left one failed batch behind.
	prev, err := st.CreateRun(cfg.ID, core.TriggerSchedule)
	require.NoError(t, err)
	require.NoError(t, st.RecordBatch(&core.BatchResult{
		RunID: prev.ID, Index: 0, Status: core.BatchStatusFailed,
		Error: "boom", RecordIDs: []string{"r9999"},
	}))
	require.NoError(t, st.CompleteRun(prev, core.RunStatusCompleted, ""))

	source := sourceWithRecords(2)
	source.records = append(source.records, core.Record{
		ID: "r9999", Values: map[string]string{"weight": "70", "note": "retry"},
	})
	dest := destProject()
	tr := New(st, source, dest, testutil.NewTestLogger(t))

	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerSchedule})
	require.NoError(t, err)

	assert.Equal(t, 3, run.Transferred)
	ids := make([]string, 0, len(dest.writes))
	for _, w := range dest.writes {
		ids = append(ids, w.ID)
	}
	assert.Contains(t, ids, "r9999")
}

func TestRun_ResolutionFailureFailsTheRun(t *testing.T) {
	st := openStore(t)
	cfg := testConfig()
	cfg.FieldMap = core.FieldMap{{
		SourceField:      core.Locator{Kind: core.LocatorLiteral, Name: "no_such_field"},
		DestinationField: core.Locator{Kind: core.LocatorEquivalent},
	}}
	createConfig(t, st, cfg)

	tr := New(st, sourceWithRecords(1), destProject(), testutil.NewTestLogger(t))
	run, err := tr.Run(context.Background(), cfg, Options{Trigger: core.TriggerManual})

	require.Error(t, err)
	var resErr *core.ResolutionError
	assert.ErrorAs(t, err, &resErr)
	require.NotNil(t, run, "the failed run is still recorded")
	assert.Equal(t, core.RunStatusFailed, run.Status)
}

func TestCheckMapping(t *testing.T) {
	st := openStore(t)
	tr := New(st, sourceWithRecords(0), destProject(), nil)

	status, err := tr.CheckMapping(context.Background(), core.FieldMapping{
		SourceField:      core.Locator{Kind: core.LocatorLiteral, Name: "weight"},
		DestinationField: core.Locator{Kind: core.LocatorCompatible},
	})
	require.NoError(t, err)
	assert.True(t, status.IsOK())
}
