package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daymark-app/daymark/internal/notifications"
	"github.com/daymark-app/daymark/internal/platform/cache"
	cachememory "github.com/daymark-app/daymark/internal/platform/cache/memory"
	"github.com/daymark-app/daymark/internal/store"
	_ "github.com/daymark-app/daymark/internal/store/memory"
)

type fixture struct {
	svc    *notifications.Service
	events store.EventStore
	notifs store.NotificationStore
	counts cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { driver.Close() })

	counts := cachememory.New(time.Minute, 0)
	t.Cleanup(func() { counts.Close() })

	es := driver.(store.EventStore)
	ns := driver.(store.NotificationStore)
	return &fixture{
		svc:    notifications.NewService(ns, es, counts, nil),
		events: es,
		notifs: ns,
		counts: counts,
	}
}

func (f *fixture) createEvent(t *testing.T, ownerID string) *store.Event {
	t.Helper()
	e := &store.Event{
		Title:    "planning",
		Start:    time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC),
		Color:    "#FF8800",
		OwnerID:  ownerID,
		IsActive: true,
	}
	if err := f.events.CreateEvent(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	return e
}

func (f *fixture) invite(t *testing.T, senderID, receiverID, eventID string) *store.Notification {
	t.Helper()
	n, err := f.svc.Create(context.Background(), senderID, notifications.CreateInput{
		ReceiverID: receiverID,
		EventID:    eventID,
		Message:    "join us",
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCreateInvitation(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")

	n := f.invite(t, "alice", "bob", event.EventID)

	if n.NotificationID == "" {
		t.Error("notification must get an id")
	}
	if n.Status != store.StatusPending {
		t.Errorf("status = %q, want pending", n.Status)
	}
}

func TestCreateInvitationValidation(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	ctx := context.Background()

	cases := []struct {
		name   string
		sender string
		in     notifications.CreateInput
		want   error
	}{
		{"no sender", "", notifications.CreateInput{ReceiverID: "bob", EventID: event.EventID}, notifications.ErrUnauthorized},
		{"no receiver", "alice", notifications.CreateInput{EventID: event.EventID}, notifications.ErrInvalidInvitation},
		{"no event", "alice", notifications.CreateInput{ReceiverID: "bob"}, notifications.ErrInvalidInvitation},
		{"self invite", "alice", notifications.CreateInput{ReceiverID: "alice", EventID: event.EventID}, notifications.ErrInvalidInvitation},
		{"unknown event", "alice", notifications.CreateInput{ReceiverID: "bob", EventID: "no-such-event"}, store.ErrNotFound},
		{"foreign event", "mallory", notifications.CreateInput{ReceiverID: "bob", EventID: event.EventID}, store.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tc.sender, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestAcceptCreatesCopy(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	ctx := context.Background()

	copied, err := f.svc.Accept(ctx, "bob", n.NotificationID)
	if err != nil {
		t.Fatal(err)
	}

	if copied.OwnerID != "bob" {
		t.Errorf("copy owner = %q, want bob", copied.OwnerID)
	}
	if copied.EventID == event.EventID {
		t.Error("copy must get its own id")
	}
	if copied.Title != event.Title || !copied.Start.Equal(event.Start) {
		t.Error("copy must carry the source event's fields")
	}

	stored, err := f.notifs.GetNotification(ctx, n.NotificationID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.StatusAccepted {
		t.Errorf("status = %q, want accepted", stored.Status)
	}
}

func TestAcceptTwice(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	ctx := context.Background()

	if _, err := f.svc.Accept(ctx, "bob", n.NotificationID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Accept(ctx, "bob", n.NotificationID); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Errorf("second accept err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestDeclineIsTerminal(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	ctx := context.Background()

	if err := f.svc.Decline(ctx, "bob", n.NotificationID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Accept(ctx, "bob", n.NotificationID); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Errorf("accept after decline err = %v, want ErrAlreadyProcessed", err)
	}
}

// A notification addressed to someone else must look like it does not exist.
func TestResolveForeignNotification(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n := f.invite(t, "alice", "bob", event.EventID)
	ctx := context.Background()

	if _, err := f.svc.Accept(ctx, "mallory", n.NotificationID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign accept err = %v, want ErrNotFound", err)
	}
	if err := f.svc.Decline(ctx, "mallory", n.NotificationID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign decline err = %v, want ErrNotFound", err)
	}

	// The invitation stays pending for its real receiver.
	stored, err := f.notifs.GetNotification(ctx, n.NotificationID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.StatusPending {
		t.Errorf("status = %q, want pending", stored.Status)
	}
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	n1 := f.invite(t, "alice", "bob", event.EventID)
	n2 := f.invite(t, "alice", "bob", event.EventID)
	ctx := context.Background()

	if err := f.svc.Decline(ctx, "bob", n1.NotificationID); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.ListPending(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].NotificationID != n2.NotificationID {
		t.Errorf("pending list = %d entries", len(list))
	}
}

func TestCountPendingCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	ctx := context.Background()

	n, err := f.svc.CountPending(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}

	// A new invitation must be visible immediately despite the cache.
	inv := f.invite(t, "alice", "bob", event.EventID)
	n, err = f.svc.CountPending(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count after invite = %d, want 1", n)
	}

	// Resolving must be visible immediately as well.
	if _, err := f.svc.Accept(ctx, "bob", inv.NotificationID); err != nil {
		t.Fatal(err)
	}
	n, err = f.svc.CountPending(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("count after accept = %d, want 0", n)
	}
}

func TestCountPendingWithoutCache(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice")
	svc := notifications.NewService(f.notifs, f.events, nil, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "alice", notifications.CreateInput{ReceiverID: "bob", EventID: event.EventID}); err != nil {
		t.Fatal(err)
	}

	n, err := svc.CountPending(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
