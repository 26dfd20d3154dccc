// Package notepad implements the append-only long-term note log kept per
// room. Notes accumulate across turns and are periodically rewritten into
// a denser form by the background optimizer; this package owns the
// token-budgeted read used to place recent notes into a prompt.
package notepad

import (
	"context"
	"fmt"
	"strings"

	"github.com/streammind/streammind/storage"
)

// Counter converts text to a token cost.
type Counter interface {
	Count(text string) int
}

// Store provides notepad operations for rooms on top of a storage backend.
type Store struct {
	store   storage.Store
	counter Counter
	wrap    func(notes string) string
}

// Option configures a Store.
type Option func(*Store)

// WithWrapper sets the function that wraps the selected notes into the
// final prompt block. The wrapper's own text counts toward the block's
// reported token cost.
func WithWrapper(fn func(notes string) string) Option {
	return func(s *Store) {
		s.wrap = fn
	}
}

// New creates a notepad Store.
func New(store storage.Store, counter Counter, opts ...Option) *Store {
	s := &Store{
		store:   store,
		counter: counter,
		wrap:    func(notes string) string { return notes },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append normalizes the entries and appends them to the room's log in
// order. Appending nothing is a no-op.
func (s *Store) Append(ctx context.Context, roomID string, notes []string) error {
	kept := normalize(notes)
	if len(kept) == 0 {
		return nil
	}
	if err := s.store.AppendNotes(ctx, roomID, kept); err != nil {
		return fmt.Errorf("notepad: append: %w", err)
	}
	return nil
}

// LoadForPrompt selects the most recent notes that fit maxTokens and
// returns them wrapped as a single prompt block along with the block's
// token cost.
//
// Selection scans newest-first and stops at the first note that does not
// fit; it never skips ahead to a smaller, older note. The selected notes
// are re-assembled oldest-first, so the block reads chronologically. The
// returned cost is recomputed on the wrapped block, which is why it can
// exceed the selection budget by the wrapper's own cost.
func (s *Store) LoadForPrompt(ctx context.Context, roomID string, maxTokens int) (string, int, error) {
	notes, err := s.store.ReadNotes(ctx, roomID)
	if err != nil {
		return "", 0, fmt.Errorf("notepad: load for prompt: %w", err)
	}
	if len(notes) == 0 || maxTokens <= 0 {
		return "", 0, nil
	}

	var selected []string
	total := 0
	for i := len(notes) - 1; i >= 0; i-- {
		cost := s.counter.Count(notes[i])
		if total+cost > maxTokens {
			break
		}
		selected = append([]string{notes[i]}, selected...)
		total += cost
	}
	if len(selected) == 0 {
		return "", 0, nil
	}

	block := s.wrap(strings.Join(selected, "\n"))
	return block, s.counter.Count(block), nil
}

// TotalTokens sums the token cost of every note in the room's log. Used
// for the compaction threshold check, not for the prompt path.
func (s *Store) TotalTokens(ctx context.Context, roomID string) (int, error) {
	notes, err := s.store.ReadNotes(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("notepad: total tokens: %w", err)
	}
	total := 0
	for _, note := range notes {
		total += s.counter.Count(note)
	}
	return total, nil
}

// ReadAll returns the room's full note log in append order.
func (s *Store) ReadAll(ctx context.Context, roomID string) ([]string, error) {
	notes, err := s.store.ReadNotes(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("notepad: read all: %w", err)
	}
	return notes, nil
}

// Overwrite atomically replaces the room's log with the given notes,
// normalized. The storage backend retains a backup of the previous log.
func (s *Store) Overwrite(ctx context.Context, roomID string, notes []string) error {
	if err := s.store.OverwriteNotes(ctx, roomID, normalize(notes)); err != nil {
		return fmt.Errorf("notepad: overwrite: %w", err)
	}
	return nil
}

// normalize enforces the one-line-per-note shape on the write path: each
// entry is split on newlines, trimmed, and blanks are dropped. Without
// this a multi-line entry would round-trip differently per backend (the
// file log stores one note per line, the SQL backends one note per row).
func normalize(notes []string) []string {
	var kept []string
	for _, note := range notes {
		for _, line := range strings.Split(note, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				kept = append(kept, line)
			}
		}
	}
	return kept
}

// Delete removes the room's note log entirely.
func (s *Store) Delete(ctx context.Context, roomID string) error {
	if err := s.store.DeleteNotes(ctx, roomID); err != nil {
		return fmt.Errorf("notepad: delete: %w", err)
	}
	return nil
}
