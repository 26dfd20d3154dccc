package streammind

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/streammind/streammind/storage"
)

// The model is asked for JSON but small models routinely emit almost-JSON:
// trailing commas, unescaped newlines, prose around the object. Field-level
// regex extraction recovers every well-formed field from a malformed
// response instead of discarding the whole turn.
var (
	messagePattern   = regexp.MustCompile(`"msg_\d+"\s*:\s*"([^"]*)"`)
	thinkPattern     = regexp.MustCompile(`"think"\s*:\s*"([^"]*)"`)
	notepadPattern   = regexp.MustCompile(`"notepad"\s*:\s*"([^"]*)"`)
	continuesPattern = regexp.MustCompile(`"continues"\s*:\s*(\d+)`)
)

// TurnState is the parsed outcome of one model response.
type TurnState struct {
	// ChatMessages holds the outgoing chat lines, in response order.
	ChatMessages []string

	// Thought is the model's private reasoning text, if any.
	Thought string

	// Continues is the model's consecutive-silence counter, nil when the
	// field was absent.
	Continues *int

	// NewNotes holds the notes appended to the notepad this turn.
	NewNotes []string

	// WasReset reports that the response was the reset command and the
	// room's state was cleared instead of parsed.
	WasReset bool
}

// ParseAndUpdateState parses a raw model response and applies its effects:
// appending new notes, consulting the background optimizer, and saving the
// turn's messages plus the assistant reply as the room's new history.
// turnMessages is the durable record from assembly (trimmed history plus
// the turn's user message).
//
// Persistence failures are logged and degrade to a partial update; the
// parsed state is always returned so the caller can still deliver chat
// messages.
func (s *Service) ParseAndUpdateState(ctx context.Context, roomID, raw string, turnMessages []storage.Message) *TurnState {
	if strings.TrimSpace(raw) == resetCommand {
		s.logger.Warn("reset command received, clearing room state", "room_id", roomID)
		if err := s.ResetRoom(ctx, roomID); err != nil {
			s.logger.Error("room reset failed", "room_id", roomID, "error", err)
		}
		return &TurnState{WasReset: true}
	}

	state := parseResponse(raw)

	if len(state.NewNotes) > 0 {
		if err := s.notepad.Append(ctx, roomID, state.NewNotes); err != nil {
			s.logger.Error("notepad append failed", "room_id", roomID, "error", err)
		}
		s.scheduler.ScheduleIfNeeded(ctx, roomID)
	}

	record := make([]storage.Message, 0, len(turnMessages)+1)
	record = append(record, turnMessages...)
	record = append(record, storage.NewTextMessage(storage.RoleAssistant, raw))
	if err := s.history.Save(ctx, roomID, record); err != nil {
		s.logger.Error("history save failed", "room_id", roomID, "error", err)
	}

	return state
}

// parseResponse extracts the structured fields from a raw response.
func parseResponse(raw string) *TurnState {
	state := &TurnState{}

	for _, m := range messagePattern.FindAllStringSubmatch(raw, -1) {
		if msg := strings.TrimSpace(unescape(m[1])); msg != "" {
			state.ChatMessages = append(state.ChatMessages, msg)
		}
	}
	if m := thinkPattern.FindStringSubmatch(raw); m != nil {
		state.Thought = unescape(m[1])
	}
	if m := notepadPattern.FindStringSubmatch(raw); m != nil {
		if note := strings.TrimSpace(unescape(m[1])); note != "" {
			state.NewNotes = append(state.NewNotes, note)
		}
	}
	if m := continuesPattern.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			state.Continues = &n
		}
	}

	return state
}

// unescape reverses the JSON escapes that survive the [^"]* capture.
var unescaper = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`)

func unescape(s string) string {
	return unescaper.Replace(s)
}
