// Package optimize schedules background notepad compaction.
//
// After a turn appends notes, the foreground path asks the Scheduler to
// check the room's notepad size. When the size exceeds the configured
// threshold and no compaction is already running for that room, a job is
// handed to a bounded worker pool that asks the model for a denser
// rewrite of the notes. Scheduling is fire-and-forget: nothing here ever
// fails the request that triggered it.
package optimize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/streammind/streammind/llm"
	"github.com/streammind/streammind/storage"
)

// Logger is the logging interface consumed by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Notepad is the note-store surface the scheduler needs.
type Notepad interface {
	ReadAll(ctx context.Context, roomID string) ([]string, error)
	TotalTokens(ctx context.Context, roomID string) (int, error)
	Overwrite(ctx context.Context, roomID string, notes []string) error
}

// Default scheduler configuration values.
const (
	DefaultThresholdTokens   = 2500
	DefaultWorkers           = 2
	DefaultMaxResponseTokens = 4096
	DefaultTimeout           = 180 * time.Second
)

// Config holds configuration for the Scheduler.
type Config struct {
	// Enabled gates all scheduling. When false, ScheduleIfNeeded is a
	// no-op. Default: true.
	Enabled bool

	// ThresholdTokens is the notepad size above which compaction is
	// scheduled. Default: 2500.
	ThresholdTokens int

	// Workers bounds how many compaction jobs run concurrently across
	// all rooms. Default: 2.
	Workers int64

	// MaxResponseTokens is the response allowance for compaction calls,
	// larger than an ordinary turn's. Default: 4096.
	MaxResponseTokens int

	// Timeout is the per-job model call timeout. Compaction is not
	// user-facing and gets more time than a turn call. Default: 180s.
	Timeout time.Duration

	// PromptTemplate overrides CompactionPromptTemplate. Must contain
	// one %s placeholder for the joined notes.
	PromptTemplate string

	// OnJobDone is called after each job's finalizer has released the
	// room, with the job's error (nil on success). Useful for tests and
	// metrics.
	OnJobDone func(roomID string, err error)
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		ThresholdTokens:   DefaultThresholdTokens,
		Workers:           DefaultWorkers,
		MaxResponseTokens: DefaultMaxResponseTokens,
		Timeout:           DefaultTimeout,
		PromptTemplate:    CompactionPromptTemplate,
	}
}

func (c *Config) applyDefaults() {
	if c.ThresholdTokens <= 0 {
		c.ThresholdTokens = DefaultThresholdTokens
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxResponseTokens <= 0 {
		c.MaxResponseTokens = DefaultMaxResponseTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PromptTemplate == "" {
		c.PromptTemplate = CompactionPromptTemplate
	}
}

// Scheduler coordinates at-most-one-per-room background compaction jobs.
//
// The in-flight room set is the only shared mutable state: the
// check-and-add in ScheduleIfNeeded and the remove in the job finalizer
// both hold the mutex, so two near-simultaneous over-threshold calls for
// the same room can never both schedule a job.
type Scheduler struct {
	notepad Notepad
	invoker llm.Invoker
	config  *Config
	logger  Logger

	sem *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]struct{}

	wg sync.WaitGroup
}

// New creates a Scheduler. A nil config uses DefaultConfig; a nil logger
// disables logging.
func New(notepad Notepad, invoker llm.Invoker, config *Config, logger Logger) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	} else {
		config.applyDefaults()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		notepad:  notepad,
		invoker:  invoker,
		config:   config,
		logger:   logger,
		sem:      semaphore.NewWeighted(config.Workers),
		inflight: make(map[string]struct{}),
	}
}

// ScheduleIfNeeded checks the room's notepad size and schedules a
// compaction job when it exceeds the threshold and no job is already in
// flight for the room. It reports whether a job was scheduled. Errors
// during the check are logged, never returned: the foreground request
// proceeds regardless.
func (s *Scheduler) ScheduleIfNeeded(ctx context.Context, roomID string) bool {
	if !s.config.Enabled || roomID == "" {
		return false
	}

	total, err := s.notepad.TotalTokens(ctx, roomID)
	if err != nil {
		s.logger.Error("notepad size check failed", "room_id", roomID, "error", err)
		return false
	}
	if total <= s.config.ThresholdTokens {
		return false
	}

	if !s.tryAcquire(roomID) {
		s.logger.Debug("compaction already in flight", "room_id", roomID)
		return false
	}

	jobID := uuid.New().String()
	s.logger.Warn("notepad over threshold, scheduling compaction",
		"room_id", roomID,
		"job_id", jobID,
		"tokens", total,
		"threshold", s.config.ThresholdTokens,
	)

	s.wg.Add(1)
	go s.runJob(roomID, jobID)
	return true
}

// InFlight reports whether a compaction job is currently running for the
// room.
func (s *Scheduler) InFlight(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[roomID]
	return ok
}

// Wait blocks until all scheduled jobs have finished. Intended for
// shutdown and tests.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) tryAcquire(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[roomID]; ok {
		return false
	}
	s.inflight[roomID] = struct{}{}
	return true
}

func (s *Scheduler) release(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, roomID)
}

// runJob executes one compaction job. The finalizer releases the room
// unconditionally, whatever the outcome, so the room becomes eligible for
// a future compaction.
func (s *Scheduler) runJob(roomID, jobID string) {
	// Jobs outlive the request that scheduled them.
	ctx := context.Background()

	var err error
	defer func() {
		s.release(roomID)
		if cb := s.config.OnJobDone; cb != nil {
			cb(roomID, err)
		}
		s.wg.Done()
	}()

	if err = s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	if err = s.compact(ctx, roomID, jobID); err != nil {
		s.logger.Error("compaction failed, notepad left untouched",
			"room_id", roomID, "job_id", jobID, "error", err)
	}
}

func (s *Scheduler) compact(ctx context.Context, roomID, jobID string) error {
	start := time.Now()

	notes, err := s.notepad.ReadAll(ctx, roomID)
	if err != nil {
		return fmt.Errorf("read notepad: %w", err)
	}
	if len(notes) == 0 {
		s.logger.Info("notepad empty, skipping compaction", "room_id", roomID, "job_id", jobID)
		return nil
	}

	prompt := fmt.Sprintf(s.config.PromptTemplate, strings.Join(notes, "\n"))
	messages := []storage.Message{storage.NewTextMessage(storage.RoleUser, prompt)}

	text, err := s.invoker.Invoke(ctx, messages, s.config.MaxResponseTokens, s.config.Timeout)
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	compacted := splitNotes(text)
	if len(compacted) == 0 {
		s.logger.Warn("compaction produced no notes, keeping original",
			"room_id", roomID, "job_id", jobID)
		return nil
	}

	if err := s.notepad.Overwrite(ctx, roomID, compacted); err != nil {
		return fmt.Errorf("overwrite notepad: %w", err)
	}

	s.logger.Info("notepad compacted",
		"room_id", roomID,
		"job_id", jobID,
		"notes_before", len(notes),
		"notes_after", len(compacted),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// splitNotes parses the model's plain-text reply into one note per line,
// dropping blanks.
func splitNotes(text string) []string {
	var notes []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			notes = append(notes, line)
		}
	}
	return notes
}
