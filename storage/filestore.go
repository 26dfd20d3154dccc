package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	notepadFileName       = "notepad.txt"
	notepadBackupFileName = "notepad.txt.bak"
	historyFileName       = "context.json"
)

// FileStore implements Store on the local filesystem. Each room gets its
// own directory under the base directory, holding a line-per-note
// notepad.txt and a context.json with the full message history.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir, creating the
// directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("filestore: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create base directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// safeRoomID strips path traversal characters from an externally supplied
// room ID before it becomes a directory name.
func safeRoomID(roomID string) string {
	replacer := strings.NewReplacer("..", "", "/", "", "\\", "")
	return replacer.Replace(roomID)
}

// roomDir resolves the room's state directory. An ID that sanitizes to
// nothing (or to ".") would collapse onto the base directory itself, so it
// is rejected rather than silently mapped there.
func (s *FileStore) roomDir(roomID string) (string, error) {
	id := safeRoomID(roomID)
	if id == "" || id == "." {
		return "", fmt.Errorf("filestore: invalid room id %q", roomID)
	}
	return filepath.Join(s.baseDir, id), nil
}

func (s *FileStore) notepadPath(roomID string) (string, error) {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, notepadFileName), nil
}

func (s *FileStore) historyPath(roomID string) (string, error) {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFileName), nil
}

// ReadNotes returns all non-blank note lines in append order. A missing
// notepad file means the room has no notes yet.
func (s *FileStore) ReadNotes(ctx context.Context, roomID string) ([]string, error) {
	path, err := s.notepadPath(roomID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filestore: read notes for room %s: %w", roomID, err)
	}
	var notes []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			notes = append(notes, line)
		}
	}
	return notes, nil
}

// AppendNotes appends notes to the room's log. The write is a single
// O_APPEND call so a failure cannot corrupt previously stored notes.
func (s *FileStore) AppendNotes(ctx context.Context, roomID string, notes []string) error {
	if len(notes) == 0 {
		return nil
	}
	dir, err := s.roomDir(roomID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create room directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, notepadFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open notepad for room %s: %w", roomID, err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, note := range notes {
		sb.WriteString(note)
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("filestore: append notes for room %s: %w", roomID, err)
	}
	return nil
}

// OverwriteNotes replaces the room's note log. The previous log is copied
// to notepad.txt.bak first, and the new log lands via temp-file rename so
// readers never observe a partial write.
func (s *FileStore) OverwriteNotes(ctx context.Context, roomID string, notes []string) error {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create room directory: %w", err)
	}
	path := filepath.Join(dir, notepadFileName)

	if prev, err := os.ReadFile(path); err == nil {
		backupPath := filepath.Join(dir, notepadBackupFileName)
		if err := os.WriteFile(backupPath, prev, 0o644); err != nil {
			return fmt.Errorf("filestore: back up notepad for room %s: %w", roomID, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: read notepad for room %s: %w", roomID, err)
	}

	var sb strings.Builder
	for _, note := range notes {
		sb.WriteString(note)
		sb.WriteByte('\n')
	}
	return s.writeAtomic(path, []byte(sb.String()))
}

// DeleteNotes removes the room's note log and its backup.
func (s *FileStore) DeleteNotes(ctx context.Context, roomID string) error {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return err
	}
	for _, name := range []string{notepadFileName, notepadBackupFileName} {
		err := os.Remove(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("filestore: delete notes for room %s: %w", roomID, err)
		}
	}
	return nil
}

// ReadHistory returns the room's full message history. A missing file
// means the room has no history yet.
func (s *FileStore) ReadHistory(ctx context.Context, roomID string) ([]Message, error) {
	path, err := s.historyPath(roomID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filestore: read history for room %s: %w", roomID, err)
	}
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("filestore: decode history for room %s: %w", roomID, err)
	}
	return messages, nil
}

// WriteHistory overwrites the room's message history via temp-file rename.
func (s *FileStore) WriteHistory(ctx context.Context, roomID string, messages []Message) error {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create room directory: %w", err)
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode history for room %s: %w", roomID, err)
	}
	return s.writeAtomic(filepath.Join(dir, historyFileName), data)
}

// ListRooms returns the room IDs with a state directory.
func (s *FileStore) ListRooms(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list rooms: %w", err)
	}
	var rooms []string
	for _, entry := range entries {
		if entry.IsDir() {
			rooms = append(rooms, entry.Name())
		}
	}
	return rooms, nil
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: replace %s: %w", path, err)
	}
	return nil
}
