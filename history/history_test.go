package history

import (
	"context"
	"testing"

	"github.com/streammind/streammind/storage"
)

// memStore is an in-memory storage.Store for tests.
type memStore struct {
	history map[string][]storage.Message
}

func newMemStore() *memStore {
	return &memStore{history: make(map[string][]storage.Message)}
}

func (m *memStore) ReadNotes(ctx context.Context, roomID string) ([]string, error) {
	return nil, nil
}

func (m *memStore) AppendNotes(ctx context.Context, roomID string, notes []string) error {
	return nil
}

func (m *memStore) OverwriteNotes(ctx context.Context, roomID string, notes []string) error {
	return nil
}

func (m *memStore) DeleteNotes(ctx context.Context, roomID string) error {
	return nil
}

func (m *memStore) ReadHistory(ctx context.Context, roomID string) ([]storage.Message, error) {
	return m.history[roomID], nil
}

func (m *memStore) WriteHistory(ctx context.Context, roomID string, messages []storage.Message) error {
	m.history[roomID] = messages
	return nil
}

func (m *memStore) ListRooms(ctx context.Context) ([]string, error) {
	return nil, nil
}

// runeCounter charges one token per rune.
type runeCounter struct{}

func (runeCounter) Count(text string) int { return len([]rune(text)) }

func textOf(messages []storage.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.TextContent()
	}
	return out
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})

	messages := []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "hello"),
		storage.NewTextMessage(storage.RoleAssistant, "hi"),
	}
	if err := store.Save(ctx, "room-1", messages); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "room-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 || got[0].TextContent() != "hello" || got[1].TextContent() != "hi" {
		t.Errorf("Load = %v, want saved messages back", textOf(got))
	}
}

func TestLoadTrimmedKeepsNewestContiguousRun(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})

	// Costs: 5, 8, 12, 6. Budget 20: newest-first takes 6 then 12
	// (total 18); 8 would push to 26, so trimming stops there.
	mem.history["room-1"] = []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "aaaaa"),
		storage.NewTextMessage(storage.RoleAssistant, "bbbbbbbb"),
		storage.NewTextMessage(storage.RoleUser, "cccccccccccc"),
		storage.NewTextMessage(storage.RoleAssistant, "dddddd"),
	}

	got, err := store.LoadTrimmed(ctx, "room-1", 20)
	if err != nil {
		t.Fatalf("LoadTrimmed failed: %v", err)
	}
	want := []string{"cccccccccccc", "dddddd"}
	if len(got) != len(want) {
		t.Fatalf("LoadTrimmed returned %d messages (%v), want %d", len(got), textOf(got), len(want))
	}
	for i := range want {
		if got[i].TextContent() != want[i] {
			t.Errorf("messages[%d] = %q, want %q", i, got[i].TextContent(), want[i])
		}
	}
}

func TestLoadTrimmedStopsAtFirstMisfit(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})

	// The old cheap message (cost 1) must not be selected past the big
	// misfit in the middle.
	mem.history["room-1"] = []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "x"),
		storage.NewTextMessage(storage.RoleAssistant, "yyyyyyyyyyyyyyyyyyyy"),
		storage.NewTextMessage(storage.RoleUser, "zzz"),
	}

	got, err := store.LoadTrimmed(ctx, "room-1", 5)
	if err != nil {
		t.Fatalf("LoadTrimmed failed: %v", err)
	}
	if len(got) != 1 || got[0].TextContent() != "zzz" {
		t.Errorf("LoadTrimmed = %v, want only the newest message", textOf(got))
	}
}

func TestLoadTrimmedFiltersSystemMessages(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})

	mem.history["room-1"] = []storage.Message{
		storage.NewTextMessage(storage.RoleSystem, "a very long system prompt that would eat the budget"),
		storage.NewTextMessage(storage.RoleUser, "hi"),
	}

	got, err := store.LoadTrimmed(ctx, "room-1", 10)
	if err != nil {
		t.Fatalf("LoadTrimmed failed: %v", err)
	}
	if len(got) != 1 || got[0].Role != storage.RoleUser {
		t.Errorf("LoadTrimmed = %v, want only the user message", textOf(got))
	}
}

func TestLoadTrimmedZeroBudget(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})
	mem.history["room-1"] = []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "hi"),
	}

	for _, budget := range []int{0, -5} {
		got, err := store.LoadTrimmed(ctx, "room-1", budget)
		if err != nil {
			t.Fatalf("LoadTrimmed(budget=%d) failed: %v", budget, err)
		}
		if len(got) != 0 {
			t.Errorf("LoadTrimmed(budget=%d) = %v, want empty", budget, textOf(got))
		}
	}
}

func TestLoadTrimmedImageBlocksCostNothing(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})

	mem.history["room-1"] = []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "aaaa"),
		{
			Role: storage.RoleUser,
			Content: []storage.ContentBlock{
				{Type: storage.ContentTypeImageURL, ImageURL: "https://example.com/f.jpg"},
			},
		},
	}

	// Budget 4: image message costs 0, text message costs 4, both fit.
	got, err := store.LoadTrimmed(ctx, "room-1", 4)
	if err != nil {
		t.Fatalf("LoadTrimmed failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("LoadTrimmed returned %d messages, want 2", len(got))
	}
}

func TestLoadTrimmedDoesNotMutateStore(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	store := New(mem, runeCounter{})

	mem.history["room-1"] = []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "aaaaaaaaaa"),
		storage.NewTextMessage(storage.RoleAssistant, "bb"),
	}

	if _, err := store.LoadTrimmed(ctx, "room-1", 2); err != nil {
		t.Fatalf("LoadTrimmed failed: %v", err)
	}
	if len(mem.history["room-1"]) != 2 {
		t.Errorf("stored history shrank to %d messages, trimming must be read-only", len(mem.history["room-1"]))
	}
}
