package project

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldshift-labs/fieldshift/internal/testutil"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

func apiClient(t *testing.T, handler http.Handler) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIClient(core.ProjectLocation{
		Kind:      core.LocationAPI,
		ProjectID: "p9",
		APIURL:    srv.URL,
		APIToken:  "tok",
	}, testutil.NewTestLogger(t))
}

func TestAPIClient_Schema(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/p9", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"longitudinal": true}`))
	})
	mux.HandleFunc("GET /projects/p9/fields", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name": "record_id", "form": "intake", "events": ["baseline"], "type": "text", "identifier": true},
			{"name": "weight", "form": "intake", "events": ["baseline", "followup"], "type": "text",
			 "validation": "integer", "min": "20", "max": "300", "required": true},
			{"name": "ethnicity", "form": "intake", "events": ["baseline"], "type": "radio",
			 "choices": [{"code": "1", "label": "A"}, {"code": "2", "label": "B"}]}
		]`))
	})

	c := apiClient(t, mux)
	schema, err := c.Schema(context.Background())
	require.NoError(t, err)

	assert.True(t, schema.Longitudinal())

	weight := schema.Field("weight")
	require.NotNil(t, weight)
	assert.Equal(t, core.ValidationInteger, weight.Validation)
	assert.Equal(t, "20", weight.Min)
	assert.True(t, weight.Required)

	eth := schema.Field("ethnicity")
	require.NotNil(t, eth)
	require.Len(t, eth.Choices, 2)
	assert.Equal(t, core.Choice{Code: "1", Label: "A"}, eth.Choices[0])

	assert.True(t, schema.Field("record_id").IsIdentifier)
}

func TestAPIClient_RecordIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/p9/records", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `[age]>18`, r.URL.Query().Get("filter"))
		assert.Equal(t, []string{"r1", "r2"}, r.URL.Query()["record"])
		_, _ = w.Write([]byte(`["r1", "r2"]`))
	})

	c := apiClient(t, mux)
	ids, err := c.RecordIDs(context.Background(), core.RecordFilter{
		Logic:     `[age]>18`,
		RecordIDs: []string{"r1", "r2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
}

func TestAPIClient_ReadRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects/p9/records/read", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Records []string `json:"records"`
			Fields  []string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"r1"}, req.Records)
		assert.Equal(t, []string{"weight"}, req.Fields)
		_, _ = w.Write([]byte(`[
			{"id": "r1", "event": "baseline", "dag": "east", "values": {"weight": "70"}}
		]`))
	})

	c := apiClient(t, mux)
	recs, err := c.ReadRecords(context.Background(), []string{"r1"}, []string{"weight"}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.Record{
		ID: "r1", Event: "baseline", DAG: "east", Values: map[string]string{"weight": "70"},
	}, recs[0])
}

func TestAPIClient_WriteRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects/p9/records", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Records   []json.RawMessage `json:"records"`
			Overwrite string            `json:"overwrite"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Records, 2)
		assert.Equal(t, "overwrite-with-blanks", req.Overwrite)
		_, _ = w.Write([]byte(`{"Updated": 1, "Created": 1}`))
	})

	c := apiClient(t, mux)
	wr, err := c.WriteRecords(context.Background(), []core.Record{
		{ID: "r1", Values: map[string]string{"weight": "70"}},
		{ID: "r2", Values: map[string]string{"weight": ""}},
	}, core.OverwriteWithBlanks)
	require.NoError(t, err)
	assert.Equal(t, &core.WriteResult{Updated: 1, Created: 1}, wr)
}

func TestAPIClient_AssignDAG(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects/p9/records/r1/dag", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DAG string `json:"dag"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.DAG
	})

	c := apiClient(t, mux)
	require.NoError(t, c.AssignDAG(context.Background(), "r1", "east"))
	assert.Equal(t, "east", got)
}

func TestAPIClient_CredentialFailure(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := apiClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad token", code)
		}))

		_, err := c.DAGs(context.Background())
		require.Error(t, err)
		var authErr *core.AuthError
		assert.ErrorAs(t, err, &authErr, "status %d must map to AuthError", code)
	}
}

func TestAPIClient_ServerErrorCarriesBody(t *testing.T) {
	c := apiClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "project is archived", http.StatusConflict)
	}))

	_, err := c.RecordIDs(context.Background(), core.RecordFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project is archived")

	var authErr *core.AuthError
	assert.False(t, errors.As(err, &authErr))
}
