package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daymark-app/daymark/internal/store"
	_ "github.com/daymark-app/daymark/internal/store/sqlite"
	"github.com/daymark-app/daymark/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	tempDir := t.TempDir()

	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	testutil.RunDriverTests(t, "sqlite", cfg)

	// Verify database file was created
	if _, err := os.Stat(filepath.Join(tempDir, "daymark.db")); os.IsNotExist(err) {
		t.Error("daymark.db not created")
	}
}

func TestSQLiteDriverSurvivesRestart(t *testing.T) {
	tempDir := t.TempDir()

	ctx := context.Background()
	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}

	events := driver.(store.EventStore)

	ev := testutil.TestEvent()
	if err := events.CreateEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	driver.Close()

	// Reload driver - data should survive
	driver2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver2.Close()

	events2 := driver2.(store.EventStore)
	got, err := events2.GetEvent(ctx, ev.EventID)
	if err != nil {
		t.Fatalf("event not found after restart: %v", err)
	}
	if got.Title != ev.Title {
		t.Errorf("data corruption: expected %q, got %q", ev.Title, got.Title)
	}
	if !got.Start.Equal(ev.Start) {
		t.Errorf("start time changed across restart: got %v want %v", got.Start, ev.Start)
	}
}

func TestSQLiteDriverRequiresDataDir(t *testing.T) {
	_, err := store.New(&store.DriverConfig{Driver: "sqlite"})
	if err == nil {
		t.Fatal("expected error for missing data_dir")
	}
}

func TestSQLiteDeletedOrdering(t *testing.T) {
	ctx := context.Background()
	driver, err := store.New(&store.DriverConfig{Driver: "sqlite", DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver.Close()

	events := driver.(store.EventStore)

	// Three deletions at increasing timestamps.
	var ids []string
	for i := 0; i < 3; i++ {
		ev := testutil.TestEvent()
		if err := events.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		deletedAt := time.Date(2024, 6, 1, 10+i, 0, 0, 0, time.UTC)
		if _, err := events.SetEventActive(ctx, ev.EventID, false, &deletedAt); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, ev.EventID)
	}

	got, err := events.ListEvents(ctx, store.EventFilter{
		OwnerID: "alice",
		Active:  store.InactiveOnly,
		Order:   store.SortDeletedDesc,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 deleted events, got %d", len(got))
	}
	// Most recent deletion first.
	if got[0].EventID != ids[2] || got[2].EventID != ids[0] {
		t.Errorf("deleted ordering wrong: got %s,%s,%s want %s,%s,%s",
			got[0].EventID, got[1].EventID, got[2].EventID, ids[2], ids[1], ids[0])
	}
}

func TestSQLiteDriverOptions(t *testing.T) {
	tempDir := t.TempDir()

	ctx := context.Background()
	driver, err := store.New(&store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
		Options: map[string]any{
			"busy_timeout_ms": int64(2500),
			"journal_mode":    "DELETE",
		},
	})
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
	if _, err := events.GetEvent(ctx, ev.EventID); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteDriverRejectsBadOptions(t *testing.T) {
	_, err := store.New(&store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
		Options: map[string]any{"busy_timeout_ms": "not a number"},
	})
	if err == nil {
		t.Fatal("expected error for non-numeric busy_timeout_ms")
	}
}
