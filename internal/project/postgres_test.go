package project

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldshift-labs/fieldshift/internal/testutil"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// passthroughConverter lets slice arguments through to sqlmock, matching
// how the pgx driver accepts []string for ANY($n) parameters.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) {
	return driver.Value(v), nil
}

func newMockClient(t *testing.T) (*PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresClient(db, "p1", testutil.NewTestLogger(t)), mock
}

func TestPostgresClient_Schema(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT longitudinal FROM projects`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"longitudinal"}).AddRow(true))

	fieldCols := []string{"name", "form", "events_json", "field_type", "validation",
		"min_value", "max_value", "required", "choices_json", "identifier"}
	mock.ExpectQuery(`FROM project_fields`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(fieldCols).
			AddRow("record_id", "intake", `["baseline"]`, "text", nil, nil, nil, false, nil, true).
			AddRow("weight", "intake", `["baseline","followup"]`, "text", "integer", "20", "300", true, nil, false).
			AddRow("ethnicity", "intake", `["baseline"]`, "radio", nil, nil, nil, false,
				`[{"code":"1","label":"A"},{"code":"2","label":"B"}]`, false))

	schema, err := c.Schema(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, schema.Longitudinal())
	assert.True(t, schema.Field("record_id").IsIdentifier)

	weight := schema.Field("weight")
	require.NotNil(t, weight)
	assert.Equal(t, core.ValidationInteger, weight.Validation)
	assert.Equal(t, []string{"baseline", "followup"}, weight.Events)
	assert.Equal(t, "20", weight.Min)
	assert.Equal(t, "300", weight.Max)

	eth := schema.Field("ethnicity")
	require.NotNil(t, eth)
	assert.Equal(t, []core.Choice{{Code: "1", Label: "A"}, {Code: "2", Label: "B"}}, eth.Choices)
}

func TestPostgresClient_DAGs(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT name FROM project_dags`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("east").AddRow("west"))

	dags, err := c.DAGs(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"east", "west"}, dags)
}

func TestPostgresClient_RecordIDs(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT DISTINCT record_id FROM record_values`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).
			AddRow("r1").AddRow("r2").AddRow("r3"))

	ids, err := c.RecordIDs(context.Background(), core.RecordFilter{RecordIDs: []string{"r2"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"r2"}, ids, "an explicit ID filter narrows the result")
}

func TestPostgresClient_ReadRecords(t *testing.T) {
	c, mock := newMockClient(t)

	cols := []string{"record_id", "event", "field", "value", "dag"}
	mock.ExpectQuery(`FROM record_values v`).
		WithArgs("p1", []string{"r1", "r2"}, []string{"weight", "note"}).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "baseline", "weight", "70", "east").
			AddRow("r1", "baseline", "note", "ok", "east").
			AddRow("r1", "followup", "weight", "72", "east").
			AddRow("r2", "baseline", "weight", "81", ""))

	recs, err := c.ReadRecords(context.Background(), []string{"r1", "r2"}, []string{"weight", "note"}, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// Rows collapse into one record per (record, event) pair, in row order.
	require.Len(t, recs, 3)
	assert.Equal(t, core.Record{
		ID: "r1", Event: "baseline", DAG: "east",
		Values: map[string]string{"weight": "70", "note": "ok"},
	}, recs[0])
	assert.Equal(t, "followup", recs[1].Event)
	assert.Equal(t, core.Record{
		ID: "r2", Event: "baseline", Values: map[string]string{"weight": "81"},
	}, recs[2])
}

func TestPostgresClient_WriteRecords(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("p1", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`INSERT INTO record_values`).
		WithArgs("p1", "r1", "baseline", "weight", "70").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("p1", "r9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO record_values`).
		WithArgs("p1", "r9", "baseline", "weight", "65").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	wr, err := c.WriteRecords(context.Background(), []core.Record{
		{ID: "r1", Event: "baseline", Values: map[string]string{"weight": "70"}},
		{ID: "r9", Event: "baseline", Values: map[string]string{"weight": "65"}},
	}, core.OverwriteSkipBlanks)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, &core.WriteResult{Updated: 1, Created: 1}, wr)
}

func TestPostgresClient_WriteRecordsRollsBackOnError(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("p1", "r1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := c.WriteRecords(context.Background(), []core.Record{
		{ID: "r1", Event: "baseline", Values: map[string]string{"weight": "70"}},
	}, core.OverwriteSkipBlanks)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_AssignDAG(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectExec(`INSERT INTO record_dags`).
		WithArgs("p1", "r1", "east").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, c.AssignDAG(context.Background(), "r1", "east"))
	require.NoError(t, mock.ExpectationsWereMet())
}
