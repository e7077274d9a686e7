package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/daymark-app/daymark/internal/store"
	_ "github.com/daymark-app/daymark/internal/store/memory"
	"github.com/daymark-app/daymark/internal/store/testutil"
)

func TestMemoryDriver(t *testing.T) {
	testutil.RunDriverTests(t, "memory", &store.DriverConfig{Driver: "memory"})
}

func TestMemoryDriverClosed(t *testing.T) {
	ctx := context.Background()
	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := driver.Close(); err != nil {
		t.Fatal(err)
	}

	events := driver.(store.EventStore)
	if err := events.CreateEvent(ctx, testutil.TestEvent()); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestMemoryDriverReturnsCopies(t *testing.T) {
	ctx := context.Background()
	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver.Close()

	events := driver.(store.EventStore)
	ev := testutil.TestEvent()
	if err := events.CreateEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}

	got, err := events.GetEvent(ctx, ev.EventID)
	if err != nil {
		t.Fatal(err)
	}
	got.Title = "mutated by caller"

	again, err := events.GetEvent(ctx, ev.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Title != ev.Title {
		t.Errorf("store row aliased by caller mutation: got %q", again.Title)
	}
}
