// Package events implements event scheduling: creation, time-window
// views, and the soft-delete lifecycle.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daymark-app/daymark/internal/platform/logutil"
	"github.com/daymark-app/daymark/internal/platform/metrics"
	"github.com/daymark-app/daymark/internal/store"
)

// Service errors. Validation failures wrap ErrInvalidEvent with the
// offending field.
var (
	ErrUnauthorized = errors.New("owner id is required")
	ErrInvalidEvent = errors.New("invalid event")
)

// CreateEventInput carries the caller-supplied fields of a new event.
type CreateEventInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Color       string    `json:"color"`
}

// Service exposes the event operations backed by an EventStore.
type Service struct {
	store  store.EventStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an event service. now may be nil for time.Now.
func NewService(st store.EventStore, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  st,
		logger: logutil.NoopIfNil(logger),
		now:    now,
	}
}

// Create validates the input and inserts a new active event for the
// owner. A missing color gets the default; missing title/start/end or
// start >= end fail with ErrInvalidEvent before any write.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateEventInput) (*store.Event, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if in.Start.IsZero() {
		return nil, fmt.Errorf("%w: start is required", ErrInvalidEvent)
	}
	if in.End.IsZero() {
		return nil, fmt.Errorf("%w: end is required", ErrInvalidEvent)
	}
	if !in.Start.Before(in.End) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidEvent)
	}

	color := in.Color
	if color == "" {
		color = store.DefaultEventColor
	}

	event := &store.Event{
		Title:       in.Title,
		Description: in.Description,
		Start:       in.Start,
		End:         in.End,
		Color:       color,
		OwnerID:     ownerID,
		IsActive:    true,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	metrics.EventsCreatedTotal.Inc()
	s.logger.Info("event created", "event_id", event.EventID, "owner_id", ownerID, "start", event.Start)
	return event, nil
}

// ListForTab returns the owner's events for the given tab and reference
// date, ordered per tab. An empty owner id fails with ErrUnauthorized
// before any window is computed.
func (s *Service) ListForTab(ctx context.Context, ownerID string, tab Tab, ref time.Time) ([]*store.Event, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}

	filter := FilterForTab(tab, ref, s.now())
	filter.OwnerID = ownerID
	return s.store.ListEvents(ctx, filter)
}

// ListBetween returns events of all owners with start in [start, end).
// Used by shared calendar views.
func (s *Service) ListBetween(ctx context.Context, start, end time.Time) ([]*store.Event, error) {
	return s.store.ListEventsBetween(ctx, start, end)
}

// Get retrieves a single event by id.
func (s *Service) Get(ctx context.Context, eventID string) (*store.Event, error) {
	return s.store.GetEvent(ctx, eventID)
}
