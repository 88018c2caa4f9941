package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldshift-labs/fieldshift/internal/transfer"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// configSummary is the list-view shape of a configuration. Tokens are
// never echoed back.
type configSummary struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	Enabled   bool   `json:"enabled"`
	Direction string `json:"direction"`
	Trigger   string `json:"trigger"`
}

// runView is the wire shape of a run.
type runView struct {
	ID          string      `json:"id"`
	ConfigID    string      `json:"configId"`
	Trigger     string      `json:"trigger"`
	Status      string      `json:"status"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
	Transferred int         `json:"transferred"`
	Created     int         `json:"created"`
	Skipped     int         `json:"skipped"`
	Failed      int         `json:"failed"`
	Batches     []batchView `json:"batches,omitempty"`
}

type batchView struct {
	Index       int      `json:"index"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	RecordIDs   []string `json:"recordIds,omitempty"`
	Transferred int      `json:"transferred"`
	Created     int      `json:"created"`
	Skipped     int      `json:"skipped"`
}

func viewRun(run *core.TransferRun) runView {
	v := runView{
		ID:          run.ID,
		ConfigID:    run.ConfigID,
		Trigger:     string(run.Trigger),
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
		Transferred: run.Transferred,
		Created:     run.Created,
		Skipped:     run.Skipped,
		Failed:      run.Failed,
	}
	for _, b := range run.Batches {
		v.Batches = append(v.Batches, batchView{
			Index:       b.Index,
			Status:      string(b.Status),
			Error:       b.Error,
			RecordIDs:   b.RecordIDs,
			Transferred: b.Transferred,
			Created:     b.Created,
			Skipped:     b.Skipped,
		})
	}
	return v
}

// ListConfigs returns the configurations of a project.
func (s *Server) ListConfigs(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	configs, err := s.store.ListConfigs(projectID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]configSummary, len(configs))
	for i, cfg := range configs {
		out[i] = configSummary{
			ID:        cfg.ID,
			ProjectID: cfg.ProjectID,
			Name:      cfg.Name,
			Owner:     cfg.Owner,
			Enabled:   cfg.Enabled,
			Direction: string(cfg.Direction),
			Trigger:   string(cfg.Trigger),
		}
	}
	s.respond(w, http.StatusOK, out)
}

// RunConfig manually triggers one configuration by name.
func (s *Server) RunConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
		User      string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	name := chi.URLParam(r, "name")
	cfg, err := s.store.GetConfigByName(req.ProjectID, name)
	if err != nil {
		s.fail(w, http.StatusNotFound, err)
		return
	}

	s.logger.Info("manual run requested", "config", cfg.Name, "user", req.User)
	run, err := s.service.Run(r.Context(), cfg, transfer.Options{Trigger: core.TriggerManual})
	if err != nil {
		var disabled *core.ConfigDisabledError
		var invalid *core.ConfigInvalidError
		if errors.As(err, &disabled) || errors.As(err, &invalid) {
			s.fail(w, http.StatusConflict, err)
			return
		}
		// The run row, if one was created, carries the failure detail.
		if run == nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
	}
	s.respond(w, http.StatusOK, viewRun(run))
}

// GetRun returns one run with its batch results.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	s.respond(w, http.StatusOK, viewRun(run))
}

// CheckMapping evaluates a single field-map row against a configuration's
// current schemas and returns its status without transferring anything.
func (s *Server) CheckMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string            `json:"projectId"`
		Config    string            `json:"config"`
		Mapping   core.FieldMapping `json:"mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := s.store.GetConfigByName(req.ProjectID, req.Config)
	if err != nil {
		s.fail(w, http.StatusNotFound, err)
		return
	}

	status, err := s.service.CheckMapping(r.Context(), cfg, req.Mapping)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, struct {
		Severity string   `json:"severity"`
		Messages []string `json:"messages,omitempty"`
	}{
		Severity: status.Severity().String(),
		Messages: status.Messages(),
	})
}

// SaveTrigger runs the enabled save-trigger configurations of the saved
// record's project, restricted to that record. When the save carries an
// instrument or event, configurations whose mapping touches neither are
// skipped. Failures of one configuration do not stop the others.
func (s *Server) SaveTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID  string `json:"projectId"`
		RecordID   string `json:"recordId"`
		Instrument string `json:"instrument"`
		EventID    string `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if req.ProjectID == "" || req.RecordID == "" {
		s.fail(w, http.StatusBadRequest, errors.New("projectId and recordId are required"))
		return
	}

	configs, err := s.store.ListEnabledByTrigger(core.TriggerSave)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	type outcome struct {
		Config string `json:"config"`
		RunID  string `json:"runId,omitempty"`
		Status string `json:"status,omitempty"`
		Error  string `json:"error,omitempty"`
	}
	var outcomes []outcome
	for _, cfg := range configs {
		if cfg.ProjectID != req.ProjectID {
			continue
		}
		if !s.mappingInScope(r.Context(), cfg, req.Instrument, req.EventID) {
			s.logger.Debug("save-trigger config out of scope",
				"config", cfg.Name, "instrument", req.Instrument, "event", req.EventID)
			continue
		}
		run, err := s.service.Run(r.Context(), cfg, transfer.Options{
			Trigger:  core.TriggerSave,
			RecordID: req.RecordID,
		})
		o := outcome{Config: cfg.Name}
		if run != nil {
			o.RunID = run.ID
			o.Status = string(run.Status)
		}
		if err != nil {
			o.Error = err.Error()
			s.logger.Warn("save-trigger run failed",
				"config", cfg.Name, "record", req.RecordID, "error", err)
		}
		outcomes = append(outcomes, o)
	}
	s.respond(w, http.StatusOK, outcomes)
}

// mappingInScope reports whether a configuration's resolved field map
// reads from the given instrument or event. With neither given, every
// configuration is in scope. A configuration whose map fails to resolve
// stays in scope; the run records the failure.
func (s *Server) mappingInScope(ctx context.Context, cfg *core.TransferConfig, instrument, eventID string) bool {
	if instrument == "" && eventID == "" {
		return true
	}
	resolved, err := s.service.ResolveFieldMap(ctx, cfg)
	if err != nil {
		return true
	}
	for _, p := range resolved.Pairs {
		if instrument != "" && p.Source.Form == instrument {
			return true
		}
		if eventID != "" && p.SourceEvent == eventID {
			return true
		}
	}
	return false
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.respond(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
