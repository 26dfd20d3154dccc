package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// SQLStore implements Store using database/sql against the same schema as
// PostgresStore. It works with any PostgreSQL driver (lib/pq, pgx stdlib).
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQLStore on the given database handle. Call
// Migrate once to create the schema.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the streammind tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// ReadNotes returns all notes for the room in append order.
func (s *SQLStore) ReadNotes(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT note FROM streammind_notes WHERE room_id = $1 ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read notes for room %s: %w", roomID, err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, fmt.Errorf("sqlstore: scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: read notes for room %s: %w", roomID, err)
	}
	return notes, nil
}

// AppendNotes inserts notes in order with a single unnest statement.
func (s *SQLStore) AppendNotes(ctx context.Context, roomID string, notes []string) error {
	if len(notes) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO streammind_notes (room_id, note) SELECT $1, unnest($2::text[])`,
		roomID, pq.Array(notes))
	if err != nil {
		return fmt.Errorf("sqlstore: append notes for room %s: %w", roomID, err)
	}
	return nil
}

// OverwriteNotes snapshots the current log into the backup table, then
// replaces it, all in one transaction.
func (s *SQLStore) OverwriteNotes(ctx context.Context, roomID string, notes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin overwrite for room %s: %w", roomID, err)
	}
	defer tx.Rollback()

	var prevJSON []byte
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(jsonb_agg(note ORDER BY id), '[]'::jsonb)
		 FROM streammind_notes WHERE room_id = $1`, roomID).Scan(&prevJSON)
	if err != nil {
		return fmt.Errorf("sqlstore: snapshot notes for room %s: %w", roomID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO streammind_notes_backup (room_id, notes, replaced_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (room_id) DO UPDATE SET notes = EXCLUDED.notes, replaced_at = NOW()`,
		roomID, prevJSON)
	if err != nil {
		return fmt.Errorf("sqlstore: back up notes for room %s: %w", roomID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM streammind_notes WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("sqlstore: clear notes for room %s: %w", roomID, err)
	}
	if len(notes) > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO streammind_notes (room_id, note) SELECT $1, unnest($2::text[])`,
			roomID, pq.Array(notes))
		if err != nil {
			return fmt.Errorf("sqlstore: rewrite notes for room %s: %w", roomID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit overwrite for room %s: %w", roomID, err)
	}
	return nil
}

// DeleteNotes removes the room's notes and their backup snapshot.
func (s *SQLStore) DeleteNotes(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM streammind_notes WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("sqlstore: delete notes for room %s: %w", roomID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM streammind_notes_backup WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("sqlstore: delete notes backup for room %s: %w", roomID, err)
	}
	return nil
}

// ReadHistory returns the room's message history, or nil when the room has
// none.
func (s *SQLStore) ReadHistory(ctx context.Context, roomID string) ([]Message, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT messages FROM streammind_history WHERE room_id = $1`, roomID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read history for room %s: %w", roomID, err)
	}
	var messages []Message
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil, fmt.Errorf("sqlstore: decode history for room %s: %w", roomID, err)
	}
	return messages, nil
}

// WriteHistory upserts the room's message history as one JSONB document.
func (s *SQLStore) WriteHistory(ctx context.Context, roomID string, messages []Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("sqlstore: encode history for room %s: %w", roomID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO streammind_history (room_id, messages, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (room_id) DO UPDATE SET messages = EXCLUDED.messages, updated_at = NOW()`,
		roomID, payload)
	if err != nil {
		return fmt.Errorf("sqlstore: write history for room %s: %w", roomID, err)
	}
	return nil
}

// ListRooms returns every room ID with notes or history.
func (s *SQLStore) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id FROM streammind_history
		 UNION
		 SELECT DISTINCT room_id FROM streammind_notes
		 ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("sqlstore: scan room id: %w", err)
		}
		rooms = append(rooms, roomID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list rooms: %w", err)
	}
	return rooms, nil
}
