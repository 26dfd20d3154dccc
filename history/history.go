// Package history manages the durable ordered log of past turn messages
// kept per room, and its budget-constrained read for prompt assembly.
//
// Trimming is strictly a read-time operation: LoadTrimmed never mutates
// the store. The write path always persists the complete updated history
// for the turn.
package history

import (
	"context"
	"fmt"

	"github.com/streammind/streammind/storage"
)

// Counter converts text to a token cost.
type Counter interface {
	Count(text string) int
}

// Store provides history operations for rooms on top of a storage backend.
type Store struct {
	store   storage.Store
	counter Counter
}

// New creates a history Store.
func New(store storage.Store, counter Counter) *Store {
	return &Store{store: store, counter: counter}
}

// Save overwrites the room's persisted history with the given messages.
func (s *Store) Save(ctx context.Context, roomID string, messages []storage.Message) error {
	if err := s.store.WriteHistory(ctx, roomID, messages); err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	return nil
}

// Load returns the room's full persisted history, oldest first.
func (s *Store) Load(ctx context.Context, roomID string) ([]storage.Message, error) {
	messages, err := s.store.ReadHistory(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	return messages, nil
}

// LoadTrimmed returns the newest contiguous run of history messages whose
// summed text-token cost fits the budget, in chronological order.
//
// System-role messages are filtered out before trimming; the system prompt
// is managed by the assembler, never by history. Image and attachment
// blocks are not counted toward a message's cost — an intentional
// simplification. Scanning runs newest-first and stops at the first
// message that would exceed the budget, so the result is always a suffix
// of the chronological history: an older, smaller message that would fit
// is never selected past a larger one that did not.
func (s *Store) LoadTrimmed(ctx context.Context, roomID string, budget int) ([]storage.Message, error) {
	if budget <= 0 {
		return nil, nil
	}
	full, err := s.store.ReadHistory(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("history: load trimmed: %w", err)
	}

	candidates := make([]storage.Message, 0, len(full))
	for _, msg := range full {
		if msg.Role != storage.RoleSystem {
			candidates = append(candidates, msg)
		}
	}

	var selected []storage.Message
	total := 0
	for i := len(candidates) - 1; i >= 0; i-- {
		cost := s.messageCost(candidates[i])
		if total+cost > budget {
			break
		}
		selected = append([]storage.Message{candidates[i]}, selected...)
		total += cost
	}
	return selected, nil
}

// messageCost sums the token cost of the message's text blocks only.
func (s *Store) messageCost(msg storage.Message) int {
	cost := 0
	for _, block := range msg.Content {
		if block.Type == storage.ContentTypeText {
			cost += s.counter.Count(block.Text)
		}
	}
	return cost
}
