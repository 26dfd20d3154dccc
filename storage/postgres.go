package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresSchema creates the tables used by PostgresStore. Notes live one
// row per entry ordered by a serial ID; history is a single JSONB document
// per room; the backup table holds the pre-overwrite snapshot of a room's
// note log.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS streammind_notes (
	id BIGSERIAL PRIMARY KEY,
	room_id TEXT NOT NULL,
	note TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS streammind_notes_room_idx ON streammind_notes (room_id, id);

CREATE TABLE IF NOT EXISTS streammind_notes_backup (
	room_id TEXT PRIMARY KEY,
	notes JSONB NOT NULL,
	replaced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS streammind_history (
	room_id TEXT PRIMARY KEY,
	messages JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore implements Store using PostgreSQL with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on the given pool. Call Migrate
// once to create the schema.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the streammind tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// ReadNotes returns all notes for the room in append order.
func (s *PostgresStore) ReadNotes(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT note FROM streammind_notes WHERE room_id = $1 ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("postgres: read notes for room %s: %w", roomID, err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, fmt.Errorf("postgres: scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read notes for room %s: %w", roomID, err)
	}
	return notes, nil
}

// AppendNotes inserts notes in order within one transaction.
func (s *PostgresStore) AppendNotes(ctx context.Context, roomID string, notes []string) error {
	if len(notes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, note := range notes {
		batch.Queue(`INSERT INTO streammind_notes (room_id, note) VALUES ($1, $2)`, roomID, note)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range notes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: append notes for room %s: %w", roomID, err)
		}
	}
	return nil
}

// OverwriteNotes snapshots the current log into the backup table, then
// replaces it, all in one transaction.
func (s *PostgresStore) OverwriteNotes(ctx context.Context, roomID string, notes []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin overwrite for room %s: %w", roomID, err)
	}
	defer tx.Rollback(ctx)

	var prevJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(jsonb_agg(note ORDER BY id), '[]'::jsonb)
		 FROM streammind_notes WHERE room_id = $1`, roomID).Scan(&prevJSON)
	if err != nil {
		return fmt.Errorf("postgres: snapshot notes for room %s: %w", roomID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO streammind_notes_backup (room_id, notes, replaced_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (room_id) DO UPDATE SET notes = EXCLUDED.notes, replaced_at = NOW()`,
		roomID, prevJSON)
	if err != nil {
		return fmt.Errorf("postgres: back up notes for room %s: %w", roomID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM streammind_notes WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("postgres: clear notes for room %s: %w", roomID, err)
	}
	for _, note := range notes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO streammind_notes (room_id, note) VALUES ($1, $2)`, roomID, note); err != nil {
			return fmt.Errorf("postgres: rewrite notes for room %s: %w", roomID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit overwrite for room %s: %w", roomID, err)
	}
	return nil
}

// DeleteNotes removes the room's notes and their backup snapshot.
func (s *PostgresStore) DeleteNotes(ctx context.Context, roomID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM streammind_notes WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("postgres: delete notes for room %s: %w", roomID, err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM streammind_notes_backup WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("postgres: delete notes backup for room %s: %w", roomID, err)
	}
	return nil
}

// ReadHistory returns the room's message history, or nil when the room has
// none.
func (s *PostgresStore) ReadHistory(ctx context.Context, roomID string) ([]Message, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT messages FROM streammind_history WHERE room_id = $1`, roomID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: read history for room %s: %w", roomID, err)
	}
	var messages []Message
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil, fmt.Errorf("postgres: decode history for room %s: %w", roomID, err)
	}
	return messages, nil
}

// WriteHistory upserts the room's message history as one JSONB document.
func (s *PostgresStore) WriteHistory(ctx context.Context, roomID string, messages []Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("postgres: encode history for room %s: %w", roomID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO streammind_history (room_id, messages, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (room_id) DO UPDATE SET messages = EXCLUDED.messages, updated_at = NOW()`,
		roomID, payload)
	if err != nil {
		return fmt.Errorf("postgres: write history for room %s: %w", roomID, err)
	}
	return nil
}

// ListRooms returns every room ID with notes or history.
func (s *PostgresStore) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT room_id FROM streammind_history
		 UNION
		 SELECT DISTINCT room_id FROM streammind_notes
		 ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("postgres: scan room id: %w", err)
		}
		rooms = append(rooms, roomID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rooms: %w", err)
	}
	return rooms, nil
}
