package streammind

import (
	"context"
	"strings"
	"testing"

	"github.com/streammind/streammind/storage"
)

func TestAssembleMessageOrder(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, scriptedInvoker("{}"))
	defer svc.Close()

	if err := store.AppendNotes(ctx, "room-1", []string{"likes jazz"}); err != nil {
		t.Fatalf("AppendNotes failed: %v", err)
	}
	if err := store.WriteHistory(ctx, "room-1", []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "earlier turn"),
		storage.NewTextMessage(storage.RoleAssistant, `{"msg_0": "earlier reply"}`),
	}); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}

	messages, breakdown, err := svc.AssembleContext(ctx, "room-1", TurnInput{
		StreamerName: "alice",
		Transcripts:  []Transcript{{Provider: "whisper", Text: "what a great solo"}},
	})
	if err != nil {
		t.Fatalf("AssembleContext failed: %v", err)
	}

	// system prompt, notepad, 2 history messages, current user turn.
	if len(messages) != 5 {
		t.Fatalf("assembled %d messages, want 5", len(messages))
	}
	if messages[0].Role != storage.RoleSystem || messages[0].TextContent() != DefaultSystemPrompt {
		t.Error("messages[0] should be the system prompt")
	}
	if messages[1].Role != storage.RoleSystem || !strings.Contains(messages[1].TextContent(), "likes jazz") {
		t.Errorf("messages[1] should be the notepad block, got %q", messages[1].TextContent())
	}
	if messages[2].TextContent() != "earlier turn" || messages[3].TextContent() != `{"msg_0": "earlier reply"}` {
		t.Error("history messages out of order")
	}

	turnText := messages[4].TextContent()
	if messages[4].Role != storage.RoleUser {
		t.Errorf("messages[4].Role = %s, want user", messages[4].Role)
	}
	for _, want := range []string{labelTimestamp, labelStreamer, "alice", labelSpeech, "(whisper): what a great solo"} {
		if !strings.Contains(turnText, want) {
			t.Errorf("turn text missing %q:\n%s", want, turnText)
		}
	}

	if breakdown.SystemPromptTokens <= 0 || breakdown.CurrentTurnTokens <= 0 {
		t.Errorf("breakdown fixed costs = %+v, want positive", breakdown)
	}
	if breakdown.HistoryMessages != 2 {
		t.Errorf("breakdown.HistoryMessages = %d, want 2", breakdown.HistoryMessages)
	}
	if breakdown.TotalTokens > breakdown.Ceiling {
		t.Errorf("TotalTokens %d exceeds ceiling %d", breakdown.TotalTokens, breakdown.Ceiling)
	}
}

func TestAssembleUserCompatMode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, scriptedInvoker("{}"), WithPromptMode(PromptModeUserCompat))
	defer svc.Close()

	messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{
		Transcripts: []Transcript{{Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("AssembleContext failed: %v", err)
	}
	if messages[0].Role != storage.RoleUser || messages[0].TextContent() != DefaultSystemPrompt {
		t.Errorf("messages[0] = role %s, want the system prompt as a user message", messages[0].Role)
	}
}

func TestAssembleRecordExcludesPromptMessages(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, scriptedInvoker("{}"))
	defer svc.Close()

	if err := store.AppendNotes(ctx, "room-1", []string{"a note"}); err != nil {
		t.Fatalf("AppendNotes failed: %v", err)
	}

	asm := svc.assemble(ctx, "room-1", TurnInput{
		Transcripts: []Transcript{{Text: "hello"}},
	})

	// The durable record must not carry the system prompt or notepad
	// block, or they would be re-counted as history next turn.
	if len(asm.record) != 1 {
		t.Fatalf("record has %d messages, want 1 (the user turn)", len(asm.record))
	}
	if asm.record[0].Role != storage.RoleUser {
		t.Errorf("record[0].Role = %s, want user", asm.record[0].Role)
	}
	if strings.Contains(asm.record[0].TextContent(), DefaultSystemPrompt) {
		t.Error("record leaked the system prompt")
	}
}

func TestAssembleSpeechPlaceholder(t *testing.T) {
	ctx := context.Background()

	t.Run("placeholder when speech enabled", func(t *testing.T) {
		svc, _ := newTestService(t, scriptedInvoker("{}"))
		defer svc.Close()

		messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{})
		if err != nil {
			t.Fatalf("AssembleContext failed: %v", err)
		}
		turnText := messages[len(messages)-1].TextContent()
		if !strings.Contains(turnText, noSpeechPlaceholder) {
			t.Errorf("turn text missing the no-speech placeholder:\n%s", turnText)
		}
	})

	t.Run("no speech block when disabled", func(t *testing.T) {
		svc, _ := newTestService(t, scriptedInvoker("{}"), WithSpeechEnabled(false))
		defer svc.Close()

		messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{})
		if err != nil {
			t.Fatalf("AssembleContext failed: %v", err)
		}
		turnText := messages[len(messages)-1].TextContent()
		if strings.Contains(turnText, labelSpeech) {
			t.Errorf("turn text should omit the speech block:\n%s", turnText)
		}
	})

	t.Run("blank transcripts use placeholder", func(t *testing.T) {
		svc, _ := newTestService(t, scriptedInvoker("{}"))
		defer svc.Close()

		messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{
			Transcripts: []Transcript{{Provider: "whisper", Text: "   "}},
		})
		if err != nil {
			t.Fatalf("AssembleContext failed: %v", err)
		}
		turnText := messages[len(messages)-1].TextContent()
		if !strings.Contains(turnText, noSpeechPlaceholder) {
			t.Errorf("turn text missing the no-speech placeholder:\n%s", turnText)
		}
	})
}

func TestAssembleChatTrimming(t *testing.T) {
	ctx := context.Background()

	chat := []ChatMessage{
		{User: "old-viewer", Message: "this message arrived first and is quite long indeed"},
		{User: "bob", Message: "hello"},
	}

	t.Run("all lines fit a large budget", func(t *testing.T) {
		svc, _ := newTestService(t, scriptedInvoker("{}"))
		defer svc.Close()

		messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{Chat: chat})
		if err != nil {
			t.Fatalf("AssembleContext failed: %v", err)
		}
		turnText := messages[len(messages)-1].TextContent()
		if !strings.Contains(turnText, "old-viewer:") || !strings.Contains(turnText, "bob: hello") {
			t.Errorf("turn text missing chat lines:\n%s", turnText)
		}
		// Chronological order is preserved in the rendered block.
		if strings.Index(turnText, "old-viewer:") > strings.Index(turnText, "bob: hello") {
			t.Error("chat lines out of chronological order")
		}
	})

	t.Run("tiny budget keeps only the newest line", func(t *testing.T) {
		svc, _ := newTestService(t, scriptedInvoker("{}"), WithChatListBudget(5))
		defer svc.Close()

		messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{Chat: chat})
		if err != nil {
			t.Fatalf("AssembleContext failed: %v", err)
		}
		turnText := messages[len(messages)-1].TextContent()
		if strings.Contains(turnText, "old-viewer:") {
			t.Errorf("oldest chat line should be trimmed:\n%s", turnText)
		}
	})

	t.Run("zero budget drops the chat block", func(t *testing.T) {
		svc, _ := newTestService(t, scriptedInvoker("{}"), WithChatListBudget(0))
		defer svc.Close()

		messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{Chat: chat})
		if err != nil {
			t.Fatalf("AssembleContext failed: %v", err)
		}
		turnText := messages[len(messages)-1].TextContent()
		if strings.Contains(turnText, labelChatList) {
			t.Errorf("turn text should omit the chat block:\n%s", turnText)
		}
	})
}

func TestAssembleImageBlock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, scriptedInvoker("{}"))
	defer svc.Close()

	messages, _, err := svc.AssembleContext(ctx, "room-1", TurnInput{
		Transcripts: []Transcript{{Text: "check this out"}},
		ImageURL:    "https://example.com/frame.jpg",
	})
	if err != nil {
		t.Fatalf("AssembleContext failed: %v", err)
	}

	last := messages[len(messages)-1]
	if !strings.Contains(last.TextContent(), labelImagePreamble) {
		t.Error("turn text missing the image preamble")
	}
	var imageURL string
	for _, block := range last.Content {
		if block.Type == storage.ContentTypeImageURL {
			imageURL = block.ImageURL
		}
	}
	if imageURL != "https://example.com/frame.jpg" {
		t.Errorf("image block url = %q, want the input url", imageURL)
	}
}

func TestAssembleHistoryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	// A ceiling this small is fully consumed by the system prompt.
	svc, store := newTestService(t, scriptedInvoker("{}"), WithTotalTokenCeiling(10))
	defer svc.Close()

	if err := store.WriteHistory(ctx, "room-1", []storage.Message{
		storage.NewTextMessage(storage.RoleUser, "old turn"),
	}); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}

	_, breakdown, err := svc.AssembleContext(ctx, "room-1", TurnInput{
		Transcripts: []Transcript{{Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("AssembleContext failed: %v", err)
	}
	if breakdown.HistoryBudget != 0 {
		t.Errorf("HistoryBudget = %d, want 0 when fixed costs exceed the ceiling", breakdown.HistoryBudget)
	}
	if breakdown.HistoryMessages != 0 {
		t.Errorf("HistoryMessages = %d, want 0 with no budget", breakdown.HistoryMessages)
	}
}

func TestAssembleHistoryTrimmedNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, scriptedInvoker("{}"))
	defer svc.Close()

	big := strings.Repeat("history filler text ", 1500)
	if err := store.WriteHistory(ctx, "room-1", []storage.Message{
		storage.NewTextMessage(storage.RoleUser, big),
		storage.NewTextMessage(storage.RoleAssistant, "short reply"),
	}); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}

	messages, breakdown, err := svc.AssembleContext(ctx, "room-1", TurnInput{
		Transcripts: []Transcript{{Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("AssembleContext failed: %v", err)
	}
	if breakdown.HistoryMessages != 1 {
		t.Fatalf("HistoryMessages = %d, want 1 (the oversized message trimmed)", breakdown.HistoryMessages)
	}
	found := false
	for _, msg := range messages {
		if msg.TextContent() == "short reply" {
			found = true
		}
		if msg.TextContent() == big {
			t.Error("oversized history message should have been trimmed")
		}
	}
	if !found {
		t.Error("newest history message missing from the assembled prompt")
	}
}
