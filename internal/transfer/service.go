package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldshift-labs/fieldshift/internal/resolve"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// ClientFactory resolves a project location to a client. Satisfied by
// project.Registry.
type ClientFactory interface {
	Client(loc core.ProjectLocation) (core.ProjectClient, error)
}

// Service runs transfer configurations end to end: it resolves the two
// project clients for a configuration and hands off to a Transferer.
type Service struct {
	store   core.Store
	clients ClientFactory
	logger  *slog.Logger
}

// NewService creates a transfer service. If logger is nil, a discard
// logger is used.
func NewService(store core.Store, clients ClientFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, clients: clients, logger: logger}
}

// Run executes one configuration.
func (s *Service) Run(ctx context.Context, cfg *core.TransferConfig, opts Options) (*core.TransferRun, error) {
	source, dest, err := s.endpoints(cfg)
	if err != nil {
		return nil, err
	}
	return New(s.store, source, dest, s.logger).Run(ctx, cfg, opts)
}

// CheckMapping evaluates one field-map row against a configuration's
// schemas without moving any data.
func (s *Service) CheckMapping(ctx context.Context, cfg *core.TransferConfig, row core.FieldMapping) (*core.MappingStatus, error) {
	source, dest, err := s.endpoints(cfg)
	if err != nil {
		return nil, err
	}
	return New(s.store, source, dest, s.logger).CheckMapping(ctx, row)
}

// ResolveFieldMap resolves a configuration's whole field map against the
// live schemas without moving any data.
func (s *Service) ResolveFieldMap(ctx context.Context, cfg *core.TransferConfig) (*resolve.Resolved, error) {
	source, dest, err := s.endpoints(cfg)
	if err != nil {
		return nil, err
	}
	sourceSchema, err := source.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source schema: %w", err)
	}
	destSchema, err := dest.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination schema: %w", err)
	}
	return resolve.New(sourceSchema, destSchema, s.logger).Resolve(cfg.FieldMap), nil
}

func (s *Service) endpoints(cfg *core.TransferConfig) (source, dest core.ProjectClient, err error) {
	source, err = s.clients.Client(cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source project: %w", err)
	}
	dest, err = s.clients.Client(cfg.Destination)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open destination project: %w", err)
	}
	return source, dest, nil
}
