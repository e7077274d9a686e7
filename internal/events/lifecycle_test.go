package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daymark-app/daymark/internal/events"
	"github.com/daymark-app/daymark/internal/store"
)

func TestMarkInactive(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	svc, st := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", validInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkInactive(ctx, "alice", created.EventID); err != nil {
		t.Fatal(err)
	}

	stored, err := st.GetEvent(ctx, created.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.IsActive {
		t.Error("event must be inactive after soft delete")
	}
	if stored.DeletedAt == nil || !stored.DeletedAt.Equal(now) {
		t.Errorf("deleted_at = %v, want %v", stored.DeletedAt, now)
	}
}

func TestMarkInactiveMissing(t *testing.T) {
	svc, _ := newTestService(t, nil)

	err := svc.MarkInactive(context.Background(), "alice", "no-such-event")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkInactiveRequiresOwner(t *testing.T) {
	svc, _ := newTestService(t, nil)

	err := svc.MarkInactive(context.Background(), "", "some-event")
	if !errors.Is(err, events.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRestore(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", validInput())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkInactive(ctx, "alice", created.EventID); err != nil {
		t.Fatal(err)
	}

	restored, err := svc.Restore(ctx, "alice", created.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if !restored {
		t.Error("restore of a deleted event must report a change")
	}

	stored, err := st.GetEvent(ctx, created.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsActive {
		t.Error("event must be active after restore")
	}
	if stored.DeletedAt != nil {
		t.Error("restore must clear the deletion timestamp")
	}
}

// Restoring an event that was never deleted is a no-op, not an error.
func TestRestoreAlreadyActive(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", validInput())
	if err != nil {
		t.Fatal(err)
	}

	restored, err := svc.Restore(ctx, "alice", created.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if restored {
		t.Error("restoring an active event must report no change")
	}
}

func TestRestoreMissing(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Restore(context.Background(), "alice", "no-such-event")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRetentionDaysRemaining(t *testing.T) {
	now := time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		deletedAt time.Time
		want      int
	}{
		{"just deleted", now, 30},
		{"one day ago", now.AddDate(0, 0, -1), 29},
		{"half a day ago", now.Add(-12 * time.Hour), 30},
		{"29 days ago", now.AddDate(0, 0, -29), 1},
		{"30 days ago", now.AddDate(0, 0, -30), 0},
		{"31 days ago", now.AddDate(0, 0, -31), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deletedAt := tc.deletedAt
			e := &store.Event{DeletedAt: &deletedAt}
			if got := events.RetentionDaysRemaining(e, now); got != tc.want {
				t.Errorf("RetentionDaysRemaining = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRetentionDaysRemainingNeverDeleted(t *testing.T) {
	e := &store.Event{}
	if got := events.RetentionDaysRemaining(e, time.Now()); got != events.RetentionDays {
		t.Errorf("RetentionDaysRemaining = %d, want %d", got, events.RetentionDays)
	}
}
