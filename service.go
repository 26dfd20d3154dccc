package streammind

import (
	"context"
	"fmt"
	"time"

	"github.com/streammind/streammind/history"
	"github.com/streammind/streammind/notepad"
	"github.com/streammind/streammind/optimize"
	"github.com/streammind/streammind/render"
	"github.com/streammind/streammind/storage"
	"github.com/streammind/streammind/token"
)

// Service is the per-room context brain: it assembles token-budgeted
// prompts, parses model responses into state updates, and hands oversized
// notepads to the background optimizer.
//
// The foreground path (one assembly, one model call, one state update per
// turn) runs synchronously on the caller's goroutine and may be invoked
// concurrently across rooms. The Service does not serialize turns within
// a single room; callers that can deliver concurrent turns for the same
// room must do that themselves.
type Service struct {
	cfg       *internalConfig
	counter   *token.Counter
	notepad   *notepad.Store
	history   *history.Store
	scheduler *optimize.Scheduler
	renderer  *render.Renderer
	logger    Logger

	// systemPromptTokens is computed once at startup; the prompt is
	// static and Count is called on every turn otherwise.
	systemPromptTokens int

	// initialContext is what a reset writes back into history. It is a
	// system-role message in both prompt modes so the read path's
	// system filter keeps it out of trimming and it is never double
	// counted against the ceiling.
	initialContext []storage.Message
}

// New creates a Service from the required configuration and options.
func New(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ic := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}

	counter := token.NewCounter()
	if counter.Degraded() {
		ic.logger.Warn("precise tokenizer unavailable, token counts are character estimates")
	}

	notes := notepad.New(ic.store, counter, notepad.WithWrapper(func(notes string) string {
		return notepadPreamble + notes
	}))

	optCfg := optimize.DefaultConfig()
	optCfg.Enabled = ic.optimizeEnabled
	if ic.optimizeThresholdTokens > 0 {
		optCfg.ThresholdTokens = ic.optimizeThresholdTokens
	}
	if ic.optimizeWorkers > 0 {
		optCfg.Workers = ic.optimizeWorkers
	}
	if ic.optimizeMaxResponseTokens > 0 {
		optCfg.MaxResponseTokens = ic.optimizeMaxResponseTokens
	}
	if ic.optimizeTimeout > 0 {
		optCfg.Timeout = ic.optimizeTimeout
	}

	s := &Service{
		cfg:       ic,
		counter:   counter,
		notepad:   notes,
		history:   history.New(ic.store, counter),
		scheduler: optimize.New(notes, ic.invoker, optCfg, ic.logger),
		renderer:  render.New(),
		logger:    ic.logger,

		systemPromptTokens: counter.Count(ic.systemPrompt),
		initialContext: []storage.Message{
			storage.NewTextMessage(storage.RoleSystem, ic.systemPrompt),
		},
	}

	s.logger.Info("service initialized",
		"prompt_mode", string(ic.promptMode),
		"system_prompt_tokens", s.systemPromptTokens,
		"token_ceiling", ic.totalTokenCeiling,
		"optimization_enabled", ic.optimizeEnabled,
	)
	return s, nil
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	TurnState

	// RawResponse is the model's unparsed text output.
	RawResponse string

	// Breakdown is the prompt token accounting for this turn.
	Breakdown Breakdown

	// Duration is the end-to-end turn processing time.
	Duration time.Duration
}

// ProcessTurn runs one full turn for a room: assemble the prompt, call
// the model, parse the response, and update durable state. Degradable
// failures (missing notes, empty history, partial parses) never surface
// as errors; only an invalid room ID or a failed model call does.
func (s *Service) ProcessTurn(ctx context.Context, roomID string, input TurnInput) (*TurnResult, error) {
	start := time.Now()
	if roomID == "" {
		return nil, NewServiceError("ProcessTurn", ErrMissingRoomID)
	}

	asm := s.assemble(ctx, roomID, input)
	if len(asm.messages) == 0 {
		return nil, NewServiceErrorWithRoom("ProcessTurn", roomID, ErrEmptyPrompt)
	}

	raw, err := s.cfg.invoker.Invoke(ctx, asm.messages, s.cfg.maxResponseTokens, s.cfg.turnTimeout)
	if err != nil {
		return nil, NewServiceErrorWithRoom("ProcessTurn", roomID,
			fmt.Errorf("%w: %v", ErrLLMInvocation, err))
	}

	state := s.ParseAndUpdateState(ctx, roomID, raw, asm.record)

	result := &TurnResult{
		TurnState:   *state,
		RawResponse: raw,
		Breakdown:   asm.breakdown,
		Duration:    time.Since(start),
	}
	s.logger.Info("turn processed",
		"room_id", roomID,
		"chat_messages", len(state.ChatMessages),
		"new_notes", len(state.NewNotes),
		"reset", state.WasReset,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// AssembleContext computes the ordered, budget-respecting message list
// for a turn without calling the model, along with the token breakdown.
func (s *Service) AssembleContext(ctx context.Context, roomID string, input TurnInput) ([]storage.Message, *Breakdown, error) {
	if roomID == "" {
		return nil, nil, NewServiceError("AssembleContext", ErrMissingRoomID)
	}
	asm := s.assemble(ctx, roomID, input)
	breakdown := asm.breakdown
	return asm.messages, &breakdown, nil
}

// ScheduleOptimizationIfNeeded checks the room's notepad size and
// schedules a background compaction when warranted. It reports whether a
// job was scheduled.
func (s *Service) ScheduleOptimizationIfNeeded(ctx context.Context, roomID string) bool {
	return s.scheduler.ScheduleIfNeeded(ctx, roomID)
}

// ResetRoom deletes the room's notepad and resets its history to the
// initial context message.
func (s *Service) ResetRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return NewServiceError("ResetRoom", ErrMissingRoomID)
	}
	if err := s.notepad.Delete(ctx, roomID); err != nil {
		return NewServiceErrorWithRoom("ResetRoom", roomID,
			fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if err := s.history.Save(ctx, roomID, s.initialContext); err != nil {
		return NewServiceErrorWithRoom("ResetRoom", roomID,
			fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	s.logger.Info("room state reset", "room_id", roomID)
	return nil
}

// DumpRoom renders the room's notepad and history as a sanitized HTML
// fragment for operator inspection.
func (s *Service) DumpRoom(ctx context.Context, roomID string) (string, error) {
	if roomID == "" {
		return "", NewServiceError("DumpRoom", ErrMissingRoomID)
	}
	notes, err := s.notepad.ReadAll(ctx, roomID)
	if err != nil {
		return "", NewServiceErrorWithRoom("DumpRoom", roomID,
			fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	messages, err := s.history.Load(ctx, roomID)
	if err != nil {
		return "", NewServiceErrorWithRoom("DumpRoom", roomID,
			fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	return s.renderer.Transcript(roomID, notes, messages)
}

// Scheduler exposes the optimization scheduler, e.g. for wiring an
// optimize.Sweeper.
func (s *Service) Scheduler() *optimize.Scheduler {
	return s.scheduler
}

// Close waits for in-flight background compaction jobs to finish.
func (s *Service) Close() {
	s.scheduler.Wait()
}
