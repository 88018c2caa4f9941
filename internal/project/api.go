// Package project provides ProjectClient implementations for the two
// kinds of project location: a remote API and the local platform
// database.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// APIClient talks to a remote project over its HTTP API. Calls are
// stateless; the client carries only the base URL and token.
type APIClient struct {
	baseURL    string
	token      string
	projectID  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAPIClient creates a client for a remote project location. If logger
// is nil, a discard logger is used.
func NewAPIClient(loc core.ProjectLocation, logger *slog.Logger) *APIClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &APIClient{
		baseURL:   strings.TrimRight(loc.APIURL, "/"),
		token:     loc.APIToken,
		projectID: loc.ProjectID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// fieldMeta is the wire shape of one field's metadata.
type fieldMeta struct {
	Name       string   `json:"name"`
	Form       string   `json:"form"`
	Events     []string `json:"events,omitempty"`
	Type       string   `json:"type"`
	Validation string   `json:"validation,omitempty"`
	Min        string   `json:"min,omitempty"`
	Max        string   `json:"max,omitempty"`
	Required   bool     `json:"required"`
	Choices    []struct {
		Code  string `json:"code"`
		Label string `json:"label"`
	} `json:"choices,omitempty"`
	Identifier bool `json:"identifier"`
}

// projectMeta is the wire shape of project-level metadata.
type projectMeta struct {
	Longitudinal bool `json:"longitudinal"`
}

// Schema fetches the project's field dictionary.
func (c *APIClient) Schema(ctx context.Context) (*core.Schema, error) {
	var meta projectMeta
	if err := c.get(ctx, c.path(""), &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch project metadata: %w", err)
	}

	var fields []fieldMeta
	if err := c.get(ctx, c.path("/fields"), &fields); err != nil {
		return nil, fmt.Errorf("failed to fetch field metadata: %w", err)
	}

	vars := make([]*core.Variable, 0, len(fields))
	for _, f := range fields {
		v := &core.Variable{
			Name:         f.Name,
			Form:         f.Form,
			Events:       f.Events,
			Type:         core.FieldType(f.Type),
			Validation:   core.ValidationKind(f.Validation),
			Min:          f.Min,
			Max:          f.Max,
			Required:     f.Required,
			IsIdentifier: f.Identifier,
		}
		for _, ch := range f.Choices {
			v.Choices = append(v.Choices, core.Choice{Code: ch.Code, Label: ch.Label})
		}
		vars = append(vars, v)
	}

	return core.NewSchema(vars, meta.Longitudinal), nil
}

// DAGs enumerates the project's data access groups.
func (c *APIClient) DAGs(ctx context.Context) ([]string, error) {
	var dags []string
	if err := c.get(ctx, c.path("/dags"), &dags); err != nil {
		return nil, fmt.Errorf("failed to fetch dags: %w", err)
	}
	return dags, nil
}

// RecordIDs returns the candidate record identifiers in the project's own
// order.
func (c *APIClient) RecordIDs(ctx context.Context, filter core.RecordFilter) ([]string, error) {
	q := url.Values{}
	if filter.Logic != "" {
		q.Set("filter", filter.Logic)
	}
	for _, id := range filter.RecordIDs {
		q.Add("record", id)
	}
	path := c.path("/records")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var ids []string
	if err := c.get(ctx, path, &ids); err != nil {
		return nil, fmt.Errorf("failed to fetch record ids: %w", err)
	}
	return ids, nil
}

// recordWire is the wire shape of one record at one event.
type recordWire struct {
	ID     string            `json:"id"`
	Event  string            `json:"event,omitempty"`
	DAG    string            `json:"dag,omitempty"`
	Values map[string]string `json:"values"`
}

// ReadRecords fetches the given fields for the given records.
func (c *APIClient) ReadRecords(ctx context.Context, ids []string, fields []string, events []string) ([]core.Record, error) {
	req := struct {
		Records []string `json:"records,omitempty"`
		Fields  []string `json:"fields,omitempty"`
		Events  []string `json:"events,omitempty"`
	}{Records: ids, Fields: fields, Events: events}

	var out []recordWire
	if err := c.post(ctx, c.path("/records/read"), req, &out); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]core.Record, len(out))
	for i, r := range out {
		records[i] = core.Record{ID: r.ID, Event: r.Event, DAG: r.DAG, Values: r.Values}
	}
	return records, nil
}

// WriteRecords writes records, honoring the overwrite policy.
func (c *APIClient) WriteRecords(ctx context.Context, records []core.Record, overwrite core.OverwritePolicy) (*core.WriteResult, error) {
	wire := make([]recordWire, len(records))
	for i, r := range records {
		wire[i] = recordWire{ID: r.ID, Event: r.Event, Values: r.Values}
	}
	req := struct {
		Records   []recordWire `json:"records"`
		Overwrite string       `json:"overwrite"`
	}{Records: wire, Overwrite: string(overwrite)}

	var result core.WriteResult
	if err := c.post(ctx, c.path("/records"), req, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("records written", "project", c.projectID,
		"updated", result.Updated, "created", result.Created)
	return &result, nil
}

// AssignDAG sets a record's data access group.
func (c *APIClient) AssignDAG(ctx context.Context, recordID, dag string) error {
	req := struct {
		DAG string `json:"dag"`
	}{DAG: dag}
	if err := c.post(ctx, c.path("/records/"+url.PathEscape(recordID)+"/dag"), req, nil); err != nil {
		return fmt.Errorf("failed to assign dag: %w", err)
	}
	return nil
}

func (c *APIClient) path(suffix string) string {
	return c.baseURL + "/projects/" + url.PathEscape(c.projectID) + suffix
}

func (c *APIClient) get(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

func (c *APIClient) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, payload, out)
}

// do performs one request. Credential rejections surface as *AuthError so
// the orchestrator can abort remaining batches.
func (c *APIClient) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &core.AuthError{
			Location: c.baseURL,
			Err:      fmt.Errorf("remote returned %s", resp.Status),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("remote returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
