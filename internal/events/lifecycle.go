package events

import (
	"context"
	"math"
	"time"

	"github.com/daymark-app/daymark/internal/platform/metrics"
	"github.com/daymark-app/daymark/internal/store"
)

// RetentionDays is how long a soft-deleted event stays restorable.
const RetentionDays = 30

// MarkInactive soft-deletes an event: the row stays but leaves every
// active view and starts the retention countdown. Deleting an already
// inactive event refreshes the deletion timestamp.
func (s *Service) MarkInactive(ctx context.Context, ownerID, eventID string) error {
	if ownerID == "" {
		return ErrUnauthorized
	}

	deletedAt := s.now()
	affected, err := s.store.SetEventActive(ctx, eventID, false, &deletedAt)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	metrics.EventsDeletedTotal.Inc()
	s.logger.Info("event soft deleted", "event_id", eventID, "owner_id", ownerID)
	return nil
}

// Restore reactivates a soft-deleted event and clears its deletion
// timestamp. The returned flag reports whether a row actually changed;
// restoring an unknown id fails with store.ErrNotFound instead.
func (s *Service) Restore(ctx context.Context, ownerID, eventID string) (bool, error) {
	if ownerID == "" {
		return false, ErrUnauthorized
	}

	affected, err := s.store.SetEventActive(ctx, eventID, true, nil)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		if _, err := s.store.GetEvent(ctx, eventID); err != nil {
			return false, err
		}
		// Row exists but was already active.
		return false, nil
	}

	metrics.EventsRestoredTotal.Inc()
	s.logger.Info("event restored", "event_id", eventID, "owner_id", ownerID)
	return true, nil
}

// RetentionDaysRemaining reports how many whole days remain before a
// soft-deleted event passes the retention horizon. Zero or negative
// means the event is past retention. Events that were never deleted
// report the full window.
func RetentionDaysRemaining(e *store.Event, now time.Time) int {
	if e.DeletedAt == nil {
		return RetentionDays
	}
	expiry := e.DeletedAt.Add(RetentionDays * 24 * time.Hour)
	remaining := expiry.Sub(now)
	return int(math.Ceil(remaining.Hours() / 24))
}
