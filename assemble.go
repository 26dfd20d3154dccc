package streammind

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/streammind/streammind/storage"
)

// ChatMessage is a single viewer chat line observed since the last turn.
type ChatMessage struct {
	User    string
	Message string
}

// Transcript is one speech-to-text result for the turn. Multiple
// providers may contribute transcripts for the same audio window.
type Transcript struct {
	Provider string
	Text     string
}

// TurnInput carries everything observed since the previous turn.
type TurnInput struct {
	// Timestamp is the turn's wall-clock time. Zero means now.
	Timestamp time.Time

	// StreamerName is the room owner's display name, omitted when empty.
	StreamerName string

	// Chat holds viewer messages in arrival order.
	Chat []ChatMessage

	// Transcripts holds speech-to-text results for the turn's audio.
	Transcripts []Transcript

	// ImageURL optionally references a current stream frame.
	ImageURL string
}

// Breakdown is the per-turn token accounting: what each prompt component
// cost and how much slack the history received.
type Breakdown struct {
	SystemPromptTokens int
	NotepadTokens      int
	CurrentTurnTokens  int
	HistoryTokens      int
	HistoryBudget      int
	HistoryMessages    int
	TotalTokens        int
	Ceiling            int
}

// assembly is the internal result of prompt assembly. messages is the
// full outgoing list; record is the subset written back to history after
// the model replies (the trimmed history plus the new user message), so
// prompt-delivery and notepad messages never accumulate in the durable
// record.
type assembly struct {
	messages  []storage.Message
	record    []storage.Message
	breakdown Breakdown
}

// assemble builds the outgoing message list for one turn.
//
// Fixed costs are charged first: system prompt, notepad block, and the
// current-turn text. History is the slack variable, receiving whatever
// remains under the ceiling after those costs and the reserved buffer.
// Assembly never fails: storage errors degrade the corresponding
// component to empty and are logged.
func (s *Service) assemble(ctx context.Context, roomID string, input TurnInput) assembly {
	notepadBlock, notepadTokens, err := s.notepad.LoadForPrompt(ctx, roomID, s.cfg.notepadPromptTokens)
	if err != nil {
		s.logger.Error("notepad load failed, assembling without notes",
			"room_id", roomID, "error", err)
		notepadBlock, notepadTokens = "", 0
	}

	turnText := s.buildTurnText(input)
	currentTokens := s.counter.Count(turnText)

	historyBudget := s.cfg.totalTokenCeiling -
		s.systemPromptTokens -
		notepadTokens -
		currentTokens -
		s.cfg.reservedBufferTokens
	if historyBudget <= 0 {
		s.logger.Warn("history budget exhausted by fixed costs",
			"room_id", roomID,
			"system_prompt_tokens", s.systemPromptTokens,
			"notepad_tokens", notepadTokens,
			"current_turn_tokens", currentTokens,
		)
		historyBudget = 0
	}

	trimmed, err := s.history.LoadTrimmed(ctx, roomID, historyBudget)
	if err != nil {
		s.logger.Error("history load failed, assembling without history",
			"room_id", roomID, "error", err)
		trimmed = nil
	}
	historyTokens := 0
	for _, msg := range trimmed {
		historyTokens += s.counter.Count(msg.TextContent())
	}

	var messages []storage.Message
	switch s.cfg.promptMode {
	case PromptModeUserCompat:
		messages = append(messages, storage.NewTextMessage(storage.RoleUser, s.cfg.systemPrompt))
	default:
		messages = append(messages, storage.NewTextMessage(storage.RoleSystem, s.cfg.systemPrompt))
	}
	if notepadBlock != "" {
		messages = append(messages, storage.NewTextMessage(storage.RoleSystem, notepadBlock))
	}
	messages = append(messages, trimmed...)

	userMsg, ok := buildUserMessage(turnText, input.ImageURL)
	if !ok {
		s.logger.Warn("turn carries no new text or image input", "room_id", roomID)
	} else {
		messages = append(messages, userMsg)
	}

	record := make([]storage.Message, 0, len(trimmed)+1)
	record = append(record, trimmed...)
	if ok {
		record = append(record, userMsg)
	}

	breakdown := Breakdown{
		SystemPromptTokens: s.systemPromptTokens,
		NotepadTokens:      notepadTokens,
		CurrentTurnTokens:  currentTokens,
		HistoryTokens:      historyTokens,
		HistoryBudget:      historyBudget,
		HistoryMessages:    len(trimmed),
		TotalTokens:        s.systemPromptTokens + notepadTokens + currentTokens + historyTokens,
		Ceiling:            s.cfg.totalTokenCeiling,
	}
	s.logger.Debug("prompt assembled",
		"room_id", roomID,
		"system_prompt_tokens", breakdown.SystemPromptTokens,
		"notepad_tokens", breakdown.NotepadTokens,
		"current_turn_tokens", breakdown.CurrentTurnTokens,
		"history_tokens", breakdown.HistoryTokens,
		"history_budget", breakdown.HistoryBudget,
		"history_messages", breakdown.HistoryMessages,
		"total_tokens", breakdown.TotalTokens,
	)

	return assembly{messages: messages, record: record, breakdown: breakdown}
}

// buildTurnText renders the current-turn observation blocks in fixed
// order: timestamp, streamer name, chat list, speech, image preamble.
func (s *Service) buildTurnText(input TurnInput) string {
	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	blocks := []string{labelTimestamp + "\n" + ts.Format(timestampLayout)}
	if input.StreamerName != "" {
		blocks = append(blocks, fmt.Sprintf("%s: %q", labelStreamer, input.StreamerName))
	}
	if chat := s.buildChatBlock(input.Chat); chat != "" {
		blocks = append(blocks, labelChatList+"\n"+chat)
	}
	if speech := s.buildSpeechBlock(input.Transcripts); speech != "" {
		blocks = append(blocks, speech)
	}
	if input.ImageURL != "" {
		blocks = append(blocks, labelImagePreamble)
	}
	return strings.Join(blocks, "\n\n")
}

// buildChatBlock renders the newest viewer messages that fit the chat
// budget, oldest first. Each line is charged its own cost plus one token
// for the joining newline.
func (s *Service) buildChatBlock(chat []ChatMessage) string {
	budget := s.cfg.chatListPromptTokens
	if len(chat) == 0 || budget <= 0 {
		return ""
	}

	var lines []string
	total := 0
	for i := len(chat) - 1; i >= 0; i-- {
		user := chat[i].User
		if user == "" {
			user = "unknown"
		}
		line := user + ": " + chat[i].Message
		cost := s.counter.Count(line) + 1
		if total+cost > budget {
			s.logger.Debug("chat list trimmed",
				"included", len(lines), "observed", len(chat))
			break
		}
		lines = append([]string{line}, lines...)
		total += cost
	}
	return strings.Join(lines, "\n")
}

// buildSpeechBlock renders the turn's transcripts, one provider-tagged
// line each. When every transcript is blank, the placeholder tells the
// model recognition failed rather than letting silence look like missing
// input; rooms without audio disable that via WithSpeechEnabled(false).
func (s *Service) buildSpeechBlock(transcripts []Transcript) string {
	var lines []string
	for _, t := range transcripts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		provider := t.Provider
		if provider == "" {
			provider = "transcript"
		}
		lines = append(lines, fmt.Sprintf("  (%s): %s", provider, text))
	}
	if len(lines) == 0 {
		if !s.cfg.speechEnabled {
			return ""
		}
		return labelSpeech + "\n" + noSpeechPlaceholder
	}
	return labelSpeech + "\n" + strings.Join(lines, "\n")
}

// buildUserMessage combines the turn text and optional image into the
// turn's user message. ok is false when there is nothing to send.
func buildUserMessage(turnText, imageURL string) (storage.Message, bool) {
	var blocks []storage.ContentBlock
	if turnText != "" {
		blocks = append(blocks, storage.ContentBlock{Type: storage.ContentTypeText, Text: turnText})
	}
	if imageURL != "" {
		blocks = append(blocks, storage.ContentBlock{Type: storage.ContentTypeImageURL, ImageURL: imageURL})
	}
	if len(blocks) == 0 {
		return storage.Message{}, false
	}
	return storage.Message{Role: storage.RoleUser, Content: blocks}, true
}
