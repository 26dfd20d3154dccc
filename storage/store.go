// Package storage defines the per-room persistence contract for notepads
// and context history, plus the message types shared across the module.
//
// Every room owns one append-only note log and one ordered history of turn
// messages, both keyed by the same opaque room ID. Room state is created
// lazily: reading a room that has never been written yields empty results,
// not an error.
package storage

import (
	"context"
	"strings"
)

// Role identifies the author of a history message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType identifies the kind of a content block.
type ContentType string

// Content block types.
const (
	ContentTypeText     ContentType = "text"
	ContentTypeImageURL ContentType = "image_url"
)

// ContentBlock is one part of a message: a text fragment or an image
// reference. Image blocks carry no token cost in history trimming.
type ContentBlock struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
}

// Message is a single turn message. Persisted order is creation order,
// oldest first; trimming for a prompt budget only ever drops a leading
// run of old messages and never reorders.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewTextMessage creates a message with a single text block.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: ContentTypeText, Text: text}},
	}
}

// TextContent returns the concatenated text blocks of the message. Image
// blocks are skipped.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Store is the durable key-value-per-room persistence interface. Any
// backend satisfies the contract: the module ships file, pgx, and
// database/sql implementations.
//
// Implementations must treat a missing room as empty on reads, must not
// lose previously stored notes when an append fails partway, and must
// retain a backup of the prior note log across OverwriteNotes.
type Store interface {
	// ReadNotes returns all notes for the room in append order.
	ReadNotes(ctx context.Context, roomID string) ([]string, error)

	// AppendNotes appends notes to the room's log in order.
	AppendNotes(ctx context.Context, roomID string, notes []string) error

	// OverwriteNotes atomically replaces the room's note log.
	OverwriteNotes(ctx context.Context, roomID string, notes []string) error

	// DeleteNotes removes the room's note log entirely.
	DeleteNotes(ctx context.Context, roomID string) error

	// ReadHistory returns the room's full message history, oldest first.
	ReadHistory(ctx context.Context, roomID string) ([]Message, error)

	// WriteHistory overwrites the room's full message history.
	WriteHistory(ctx context.Context, roomID string, messages []Message) error

	// ListRooms returns the IDs of all rooms with persisted state.
	ListRooms(ctx context.Context) ([]string, error)
}
