package streammind

import "time"

// Option is a functional option for configuring a Service
type Option func(*internalConfig) error

// WithPromptMode selects how the system prompt is delivered
func WithPromptMode(mode PromptMode) Option {
	return func(c *internalConfig) error {
		switch mode {
		case PromptModeSystem, PromptModeUserCompat:
			c.promptMode = mode
			return nil
		default:
			return NewServiceError("WithPromptMode", ErrInvalidConfig).
				WithContext("mode", string(mode))
		}
	}
}

// WithTotalTokenCeiling sets the token ceiling for the whole outgoing
// message set (default 4096)
func WithTotalTokenCeiling(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewServiceError("WithTotalTokenCeiling", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.totalTokenCeiling = n
		return nil
	}
}

// WithReservedBuffer sets the token buffer held back from the history
// budget (default 50)
func WithReservedBuffer(n int) Option {
	return func(c *internalConfig) error {
		if n < 0 {
			return NewServiceError("WithReservedBuffer", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be non-negative")
		}
		c.reservedBufferTokens = n
		return nil
	}
}

// WithNotepadPromptBudget sets the fixed sub-budget for the notepad block
// (default 712)
func WithNotepadPromptBudget(n int) Option {
	return func(c *internalConfig) error {
		if n < 0 {
			return NewServiceError("WithNotepadPromptBudget", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be non-negative")
		}
		c.notepadPromptTokens = n
		return nil
	}
}

// WithChatListBudget sets the fixed sub-budget for the viewer chat block
// (default 256)
func WithChatListBudget(n int) Option {
	return func(c *internalConfig) error {
		if n < 0 {
			return NewServiceError("WithChatListBudget", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be non-negative")
		}
		c.chatListPromptTokens = n
		return nil
	}
}

// WithMaxResponseTokens sets the response allowance for turn calls
// (default 2000)
func WithMaxResponseTokens(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewServiceError("WithMaxResponseTokens", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.maxResponseTokens = n
		return nil
	}
}

// WithTurnTimeout sets the timeout for foreground turn calls (default 60s)
func WithTurnTimeout(timeout time.Duration) Option {
	return func(c *internalConfig) error {
		if timeout <= 0 {
			return NewServiceError("WithTurnTimeout", ErrInvalidConfig).
				WithContext("timeout", timeout).
				WithContext("reason", "must be positive")
		}
		c.turnTimeout = timeout
		return nil
	}
}

// WithSpeechEnabled controls the placeholder emitted when a turn has no
// usable transcription (default true)
func WithSpeechEnabled(enabled bool) Option {
	return func(c *internalConfig) error {
		c.speechEnabled = enabled
		return nil
	}
}

// WithOptimization enables or disables background notepad compaction
// (default enabled)
func WithOptimization(enabled bool) Option {
	return func(c *internalConfig) error {
		c.optimizeEnabled = enabled
		return nil
	}
}

// WithOptimizeThreshold sets the notepad token size that triggers
// background compaction (default 2500)
func WithOptimizeThreshold(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewServiceError("WithOptimizeThreshold", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.optimizeThresholdTokens = n
		return nil
	}
}

// WithOptimizeWorkers bounds concurrent compaction jobs (default 2)
func WithOptimizeWorkers(n int64) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewServiceError("WithOptimizeWorkers", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.optimizeWorkers = n
		return nil
	}
}

// WithOptimizeMaxResponseTokens sets the response allowance for compaction
// calls (default 4096)
func WithOptimizeMaxResponseTokens(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewServiceError("WithOptimizeMaxResponseTokens", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.optimizeMaxResponseTokens = n
		return nil
	}
}

// WithOptimizeTimeout sets the per-job timeout for compaction calls
// (default 180s). Compaction is not user-facing and gets more time than a
// turn call.
func WithOptimizeTimeout(timeout time.Duration) Option {
	return func(c *internalConfig) error {
		if timeout <= 0 {
			return NewServiceError("WithOptimizeTimeout", ErrInvalidConfig).
				WithContext("timeout", timeout).
				WithContext("reason", "must be positive")
		}
		c.optimizeTimeout = timeout
		return nil
	}
}

// WithLogger sets the service logger (default: no logging)
func WithLogger(logger Logger) Option {
	return func(c *internalConfig) error {
		if logger == nil {
			return NewServiceError("WithLogger", ErrInvalidConfig).
				WithContext("reason", "logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}
