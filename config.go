package streammind

import (
	"time"

	"github.com/streammind/streammind/llm"
	"github.com/streammind/streammind/storage"
)

// Logger is the logging interface consumed by the service. The slog-style
// signature lets callers plug in slog, zap, or anything else with a thin
// adapter.
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

// PromptMode selects how the system prompt is delivered to the model.
type PromptMode string

const (
	// PromptModeSystem sends the system prompt with the system role.
	PromptModeSystem PromptMode = "system"

	// PromptModeUserCompat sends the system prompt as a leading user
	// message, for providers that mishandle the system role. The
	// prompt's token cost is still charged against the total ceiling.
	PromptModeUserCompat PromptMode = "user_compat"
)

// Default configuration values.
const (
	DefaultTotalTokenCeiling    = 4096
	DefaultReservedBufferTokens = 50
	DefaultNotepadPromptTokens  = 712
	DefaultChatListPromptTokens = 256
	DefaultMaxResponseTokens    = 2000
	DefaultTurnTimeout          = 60 * time.Second
)

// Config holds the required configuration for a Service.
//
// Example:
//
//	store, _ := storage.NewFileStore("./memory")
//	svc, err := streammind.New(
//	    streammind.Config{
//	        Invoker: llm.NewAnthropic(&client, "claude-sonnet-4-5-20250929"),
//	        Store:   store,
//	    },
//	    streammind.WithTotalTokenCeiling(8192),
//	)
type Config struct {
	// Invoker performs the chat-completion calls (required).
	Invoker llm.Invoker

	// Store is the per-room persistence backend (required).
	Store storage.Store

	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Invoker == nil {
		return NewServiceError("Validate", ErrInvalidConfig).
			WithContext("reason", "Invoker is required")
	}
	if c.Store == nil {
		return NewServiceError("Validate", ErrInvalidConfig).
			WithContext("reason", "Store is required")
	}
	return nil
}

// internalConfig holds the full service configuration including optional
// parameters.
type internalConfig struct {
	invoker      llm.Invoker
	store        storage.Store
	systemPrompt string

	promptMode PromptMode

	// Budget parameters. The ceiling bounds the whole outgoing message
	// set; notepad and chat list get fixed sub-budgets; history takes
	// whatever slack remains after the fixed costs and the reserved
	// buffer.
	totalTokenCeiling    int
	reservedBufferTokens int
	notepadPromptTokens  int
	chatListPromptTokens int

	maxResponseTokens int
	turnTimeout       time.Duration

	// speechEnabled controls the placeholder line emitted when a turn
	// carries no usable transcription.
	speechEnabled bool

	// Background notepad optimization.
	optimizeEnabled           bool
	optimizeThresholdTokens   int
	optimizeWorkers           int64
	optimizeMaxResponseTokens int
	optimizeTimeout           time.Duration

	logger Logger
}

// newInternalConfig creates a new internal config from the public Config.
func newInternalConfig(cfg Config) *internalConfig {
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	return &internalConfig{
		invoker:      cfg.Invoker,
		store:        cfg.Store,
		systemPrompt: systemPrompt,

		promptMode: PromptModeSystem,

		totalTokenCeiling:    DefaultTotalTokenCeiling,
		reservedBufferTokens: DefaultReservedBufferTokens,
		notepadPromptTokens:  DefaultNotepadPromptTokens,
		chatListPromptTokens: DefaultChatListPromptTokens,

		maxResponseTokens: DefaultMaxResponseTokens,
		turnTimeout:       DefaultTurnTimeout,

		speechEnabled: true,

		optimizeEnabled: true,
		// Zero values fall through to the optimize package defaults.

		logger: noopLogger{},
	}
}
