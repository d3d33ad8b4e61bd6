package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crane-app/crane/internal/runtime"
	"github.com/crane-app/crane/internal/session"
	"github.com/crane-app/crane/internal/state"
)

// Pending actions shown while a lifecycle call is in flight.
const (
	PendingStarting = "starting"
	PendingStopping = "stopping"
	PendingRemoving = "removing"
)

// Service couples the runtime backend with the container store and the log
// sessions. The UI and the poller drive everything through it.
type Service struct {
	client runtime.Client
	store  *state.Store
	logs   *session.Manager
	logger *slog.Logger
}

// NewService wires a service. A nil logger discards output.
func NewService(client runtime.Client, store *state.Store, logs *session.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{client: client, store: store, logs: logs, logger: logger}
}

// Store exposes the container snapshot store.
func (s *Service) Store() *state.Store {
	return s.store
}

// Logs exposes the log session manager.
func (s *Service) Logs() *session.Manager {
	return s.logs
}

// Refresh lists containers, publishes the result and reconciles log sessions
// with the ids that still exist. A failed listing leaves sessions untouched.
func (s *Service) Refresh(ctx context.Context) error {
	containers, err := s.client.ListContainers(ctx)
	s.store.Update(containers, err)
	if err != nil {
		s.logger.Warn("container list failed", "error", err)
		return err
	}
	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	s.logs.Sync(ids)
	return nil
}

// Start starts id and reinitialises its logs, since a restarted container may
// have fresh streams.
func (s *Service) Start(ctx context.Context, id string) error {
	s.store.SetPending(id, PendingStarting)
	defer s.store.SetPending(id, "")

	if err := s.client.Start(ctx, id); err != nil {
		s.logger.Warn("start failed", "container", id, "error", err)
		return fmt.Errorf("start %s: %w", id, err)
	}
	s.logger.Info("container started", "container", id)
	_ = s.Refresh(ctx)
	if err := s.logs.Reload(ctx, id); err != nil {
		s.logger.Debug("log reload after start failed", "container", id, "error", err)
	}
	return nil
}

// Stop stops id.
func (s *Service) Stop(ctx context.Context, id string) error {
	s.store.SetPending(id, PendingStopping)
	defer s.store.SetPending(id, "")

	if err := s.client.Stop(ctx, id); err != nil {
		s.logger.Warn("stop failed", "container", id, "error", err)
		return fmt.Errorf("stop %s: %w", id, err)
	}
	s.logger.Info("container stopped", "container", id)
	_ = s.Refresh(ctx)
	return nil
}

// Remove deletes id. Its log session is torn down first so no handle stays
// open on files the runtime is about to delete.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.store.SetPending(id, PendingRemoving)
	s.logs.Remove(id)

	if err := s.client.Remove(ctx, id); err != nil {
		s.store.SetPending(id, "")
		s.logger.Warn("remove failed", "container", id, "error", err)
		return fmt.Errorf("remove %s: %w", id, err)
	}
	s.store.Remove(id)
	s.logger.Info("container removed", "container", id)
	_ = s.Refresh(ctx)
	return nil
}

// Create creates a container from spec and returns its id.
func (s *Service) Create(ctx context.Context, spec runtime.CreateSpec) (string, error) {
	spec, err := spec.Normalize()
	if err != nil {
		return "", err
	}
	id, err := s.client.Create(ctx, spec)
	if err != nil {
		s.logger.Warn("create failed", "image", spec.Image, "error", err)
		return "", err
	}
	s.logger.Info("container created", "container", id, "image", spec.Image)
	_ = s.Refresh(ctx)
	return id, nil
}
