package storage_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/streammind/streammind/storage"
)

func newSQLStore(t *testing.T) (*storage.SQLStore, context.Context) {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	store := storage.NewSQLStore(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	for _, table := range []string{"streammind_notes", "streammind_notes_backup", "streammind_history"} {
		if _, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("truncate %s failed: %v", table, err)
		}
	}
	return store, ctx
}

func TestSQLStoreNotesRoundTrip(t *testing.T) {
	store, ctx := newSQLStore(t)

	if err := store.AppendNotes(ctx, "room-1", []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("AppendNotes failed: %v", err)
	}

	notes, err := store.ReadNotes(ctx, "room-1")
	if err != nil {
		t.Fatalf("ReadNotes failed: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(notes) != len(want) {
		t.Fatalf("ReadNotes returned %d notes, want %d", len(notes), len(want))
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("notes[%d] = %q, want %q", i, notes[i], want[i])
		}
	}
}

func TestSQLStoreOverwriteAndDelete(t *testing.T) {
	store, ctx := newSQLStore(t)

	if err := store.AppendNotes(ctx, "room-1", []string{"old-1", "old-2"}); err != nil {
		t.Fatalf("AppendNotes failed: %v", err)
	}
	if err := store.OverwriteNotes(ctx, "room-1", []string{"dense"}); err != nil {
		t.Fatalf("OverwriteNotes failed: %v", err)
	}

	notes, err := store.ReadNotes(ctx, "room-1")
	if err != nil {
		t.Fatalf("ReadNotes failed: %v", err)
	}
	if len(notes) != 1 || notes[0] != "dense" {
		t.Errorf("ReadNotes after overwrite = %v, want [dense]", notes)
	}

	if err := store.DeleteNotes(ctx, "room-1"); err != nil {
		t.Fatalf("DeleteNotes failed: %v", err)
	}
	notes, err = store.ReadNotes(ctx, "room-1")
	if err != nil {
		t.Fatalf("ReadNotes after delete failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("ReadNotes after delete = %v, want empty", notes)
	}
}

func TestSQLStoreHistory(t *testing.T) {
	store, ctx := newSQLStore(t)

	history := []storage.Message{
		storage.NewTextMessage(storage.RoleSystem, "persona"),
		storage.NewTextMessage(storage.RoleUser, "hello"),
	}
	if err := store.WriteHistory(ctx, "room-1", history); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}

	got, err := store.ReadHistory(ctx, "room-1")
	if err != nil {
		t.Fatalf("ReadHistory failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadHistory returned %d messages, want 2", len(got))
	}
	if got[0].Role != storage.RoleSystem || got[1].TextContent() != "hello" {
		t.Errorf("ReadHistory = %+v, want persisted messages back", got)
	}
}
