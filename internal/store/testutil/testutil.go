// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/daymark-app/daymark/internal/store"
)

// TestEvent creates a test event owned by alice.
func TestEvent() *store.Event {
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	return &store.Event{
		Title:       "Team standup",
		Description: "Daily sync in room 4",
		Start:       start,
		End:         start.Add(time.Hour),
		Color:       "#FF8800",
		OwnerID:     "alice",
		IsActive:    true,
	}
}

// TestNotification creates a pending invitation from alice to bob.
func TestNotification(eventID string) *store.Notification {
	return &store.Notification{
		SenderID:   "alice",
		ReceiverID: "bob",
		EventID:    eventID,
		Message:    "You have been invited to the event: Team standup",
		Status:     store.StatusPending,
	}
}

// RunDriverTests runs the shared driver conformance suite against the
// driver registered under the given config.
func RunDriverTests(t *testing.T, name string, cfg *store.DriverConfig) {
	t.Helper()

	ctx := context.Background()
	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("%s: create driver: %v", name, err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatalf("%s: init driver: %v", name, err)
	}
	defer driver.Close()

	events, ok := driver.(store.EventStore)
	if !ok {
		t.Fatalf("%s: driver does not implement EventStore", name)
	}
	notifications, ok := driver.(store.NotificationStore)
	if !ok {
		t.Fatalf("%s: driver does not implement NotificationStore", name)
	}

	t.Run("EventRoundTrip", func(t *testing.T) {
		ev := TestEvent()
		if err := events.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		if ev.EventID == "" {
			t.Fatal("expected store-assigned event id")
		}

		got, err := events.GetEvent(ctx, ev.EventID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != ev.Title || got.OwnerID != ev.OwnerID {
			t.Errorf("round trip mismatch: got %+v", got)
		}
		if !got.Start.Equal(ev.Start) || !got.End.Equal(ev.End) {
			t.Errorf("timestamps changed: got %v-%v want %v-%v", got.Start, got.End, ev.Start, ev.End)
		}
	})

	t.Run("GetMissingEvent", func(t *testing.T) {
		if _, err := events.GetEvent(ctx, "no-such-id"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListEventsFilter", func(t *testing.T) {
		base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
		for i, owner := range []string{"carol", "carol", "dave"} {
			ev := &store.Event{
				Title:    "event",
				Start:    base.AddDate(0, 0, i),
				End:      base.AddDate(0, 0, i).Add(time.Hour),
				OwnerID:  owner,
				IsActive: true,
				Color:    store.DefaultEventColor,
			}
			if err := events.CreateEvent(ctx, ev); err != nil {
				t.Fatal(err)
			}
		}

		got, err := events.ListEvents(ctx, store.EventFilter{OwnerID: "carol", Active: store.ActiveOnly})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 events for carol, got %d", len(got))
		}
		if got[0].Start.After(got[1].Start) {
			t.Error("expected start ascending order")
		}

		from := base.AddDate(0, 0, 1)
		until := base.AddDate(0, 0, 2)
		ranged, err := events.ListEventsBetween(ctx, from, until)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range ranged {
			if e.Start.Before(from) || !e.Start.Before(until) {
				t.Errorf("event %s start %v outside [%v, %v)", e.EventID, e.Start, from, until)
			}
		}
	})

	t.Run("SetEventActive", func(t *testing.T) {
		ev := TestEvent()
		if err := events.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}

		deletedAt := time.Now().UTC().Truncate(time.Second)
		affected, err := events.SetEventActive(ctx, ev.EventID, false, &deletedAt)
		if err != nil {
			t.Fatal(err)
		}
		if affected != 1 {
			t.Fatalf("expected 1 affected row, got %d", affected)
		}

		got, err := events.GetEvent(ctx, ev.EventID)
		if err != nil {
			t.Fatal(err)
		}
		if got.IsActive || got.DeletedAt == nil {
			t.Errorf("expected inactive with deletion stamp, got active=%v deleted_at=%v", got.IsActive, got.DeletedAt)
		}

		affected, err = events.SetEventActive(ctx, ev.EventID, true, nil)
		if err != nil {
			t.Fatal(err)
		}
		if affected != 1 {
			t.Fatalf("expected 1 affected row on restore, got %d", affected)
		}
		got, err = events.GetEvent(ctx, ev.EventID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.IsActive || got.DeletedAt != nil {
			t.Errorf("restore did not clear deletion state: active=%v deleted_at=%v", got.IsActive, got.DeletedAt)
		}

		affected, err = events.SetEventActive(ctx, "no-such-id", false, &deletedAt)
		if err != nil {
			t.Fatal(err)
		}
		if affected != 0 {
			t.Errorf("expected 0 affected rows for missing event, got %d", affected)
		}
	})

	t.Run("NotificationLifecycle", func(t *testing.T) {
		ev := TestEvent()
		if err := events.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		n := TestNotification(ev.EventID)
		if err := notifications.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}

		count, err := notifications.CountPendingNotifications(ctx, "bob")
		if err != nil {
			t.Fatal(err)
		}
		if count < 1 {
			t.Fatalf("expected at least 1 pending notification, got %d", count)
		}

		derived, err := notifications.AcceptNotification(ctx, n.NotificationID)
		if err != nil {
			t.Fatal(err)
		}
		if derived.OwnerID != "bob" {
			t.Errorf("derivative event owner = %q, want bob", derived.OwnerID)
		}
		if derived.Title != ev.Title || !derived.Start.Equal(ev.Start) || !derived.End.Equal(ev.End) {
			t.Errorf("derivative event did not copy source fields: %+v", derived)
		}
		if derived.EventID == ev.EventID {
			t.Error("derivative event must have its own id")
		}

		// Terminal state: a second accept and a decline both fail.
		if _, err := notifications.AcceptNotification(ctx, n.NotificationID); !errors.Is(err, store.ErrAlreadyProcessed) {
			t.Errorf("second accept: expected ErrAlreadyProcessed, got %v", err)
		}
		if err := notifications.ResolveNotification(ctx, n.NotificationID, store.StatusDeclined); !errors.Is(err, store.ErrAlreadyProcessed) {
			t.Errorf("decline after accept: expected ErrAlreadyProcessed, got %v", err)
		}

		got, err := notifications.GetNotification(ctx, n.NotificationID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != store.StatusAccepted {
			t.Errorf("status = %q, want accepted", got.Status)
		}
	})

	t.Run("DeclineIsTerminal", func(t *testing.T) {
		ev := TestEvent()
		if err := events.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		n := TestNotification(ev.EventID)
		if err := notifications.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}

		if err := notifications.ResolveNotification(ctx, n.NotificationID, store.StatusDeclined); err != nil {
			t.Fatal(err)
		}
		if err := notifications.ResolveNotification(ctx, n.NotificationID, store.StatusDeclined); !errors.Is(err, store.ErrAlreadyProcessed) {
			t.Errorf("second decline: expected ErrAlreadyProcessed, got %v", err)
		}
		if _, err := notifications.AcceptNotification(ctx, n.NotificationID); !errors.Is(err, store.ErrAlreadyProcessed) {
			t.Errorf("accept after decline: expected ErrAlreadyProcessed, got %v", err)
		}
	})

	t.Run("ResolveMissingNotification", func(t *testing.T) {
		if err := notifications.ResolveNotification(ctx, "no-such-id", store.StatusDeclined); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := notifications.AcceptNotification(ctx, "no-such-id"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConcurrentAccepts", func(t *testing.T) {
		ev := TestEvent()
		if err := events.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		n := TestNotification(ev.EventID)
		if err := notifications.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}

		countCopies := func() int {
			t.Helper()
			derived, err := events.ListEvents(ctx, store.EventFilter{OwnerID: "bob", Active: store.ActiveOnly})
			if err != nil {
				t.Fatal(err)
			}
			copies := 0
			for _, e := range derived {
				if e.Title == ev.Title && e.Start.Equal(ev.Start) {
					copies++
				}
			}
			return copies
		}
		before := countCopies()

		const callers = 8
		var wg sync.WaitGroup
		results := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := notifications.AcceptNotification(ctx, n.NotificationID)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var succeeded, alreadyProcessed int
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrAlreadyProcessed):
				alreadyProcessed++
			default:
				t.Errorf("unexpected accept error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Errorf("expected exactly one successful accept, got %d", succeeded)
		}
		if succeeded+alreadyProcessed != callers {
			t.Errorf("lost accept calls: %d succeeded + %d already processed of %d", succeeded, alreadyProcessed, callers)
		}

		// Exactly one derivative event, no matter how many callers raced.
		if got := countCopies() - before; got != 1 {
			t.Errorf("expected exactly one new derivative event, got %d", got)
		}
	})
}
