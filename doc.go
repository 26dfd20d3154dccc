// Package streammind provides a token-budgeted context engine for
// long-running LLM chat agents in live streaming rooms.
//
// StreamMind is opinionated (Anthropic + pluggable persistence), modular,
// and designed for agents that live in a room indefinitely: every turn it
// assembles a prompt that always fits a fixed token ceiling, and a
// background optimizer keeps the agent's long-term notes from growing
// without bound.
//
// # Key Features
//
//   - Deterministic prompt assembly under a hard token ceiling
//   - Append-only per-room notepad with budgeted prompt placement
//   - Contiguous newest-first history trimming (order is never shuffled)
//   - Background notepad compaction, at most one job per room
//   - File, pgx, and database/sql persistence backends
//   - Tolerant quasi-JSON response parsing
//
// # Quick Start
//
// Create a service with required configuration:
//
//	store, _ := storage.NewFileStore("./memory")
//	client := anthropic.NewClient()
//	svc, err := streammind.New(
//	    streammind.Config{
//	        Invoker: llm.NewAnthropic(&client, "claude-sonnet-4-5-20250929"),
//	        Store:   store,
//	    },
//	    streammind.WithTotalTokenCeiling(8192),
//	)
//
// Process turns as observations arrive:
//
//	result, _ := svc.ProcessTurn(ctx, "room-42", streammind.TurnInput{
//	    StreamerName: "alice",
//	    Transcripts:  []streammind.Transcript{{Provider: "whisper", Text: speech}},
//	    Chat:         viewerMessages,
//	})
//	for _, msg := range result.ChatMessages {
//	    sendToRoom(msg)
//	}
//
// # Token Budgeting
//
// The ceiling bounds the whole outgoing message set. The system prompt,
// the notepad block, and the current-turn text are charged first; the
// conversation history receives whatever slack remains after a small
// reserved buffer. History trimming keeps the newest contiguous run of
// messages that fits and stops at the first misfit, so the model always
// sees an unbroken recent window.
//
// # Notepad Optimization
//
// The model keeps notes via the "notepad" response field. When a room's
// accumulated notes exceed a threshold, a background job asks the model to
// rewrite them into a denser form. Jobs run on a bounded pool, never block
// a turn, and a failed job leaves the notepad untouched. An
// optimize.Sweeper can additionally re-check idle rooms on an interval:
//
//	sweeper := optimize.NewSweeper(svc.Scheduler(), store, nil)
//	sweeper.Start(ctx)
//	defer sweeper.Stop()
package streammind
