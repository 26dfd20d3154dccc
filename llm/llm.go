// Package llm defines the chat-completion collaborator boundary and its
// Anthropic implementation.
//
// The rest of the module treats the model call as opaque: an ordered
// message list in, raw text out. Foreground turns and background notepad
// compaction use the same Invoker with different response allowances and
// timeouts.
package llm

import (
	"context"
	"time"

	"github.com/streammind/streammind/storage"
)

// Invoker performs one chat-completion call. Implementations must honor
// the timeout and return the model's raw text output; an elapsed timeout
// is an ordinary failure, not a cancellation signal to propagate.
type Invoker interface {
	Invoke(ctx context.Context, messages []storage.Message, maxResponseTokens int, timeout time.Duration) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, messages []storage.Message, maxResponseTokens int, timeout time.Duration) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, messages []storage.Message, maxResponseTokens int, timeout time.Duration) (string, error) {
	return f(ctx, messages, maxResponseTokens, timeout)
}
