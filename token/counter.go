// Package token provides token counting for prompt budgeting.
//
// The precise path uses the cl100k_base encoding via tiktoken, a close
// approximation for the major chat-completion providers. When the encoding
// cannot be loaded (offline builds, stripped binaries), counting degrades to
// a characters-per-token estimate instead of failing the caller.
package token

import (
	"math"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// fallbackCharsPerToken is the estimate used when the precise encoding is
// unavailable. BPE tokenizers average roughly 3.5 characters per token for
// mixed chat text.
const fallbackCharsPerToken = 3.5

// Counter converts text to an integer token cost. The zero value is not
// usable; construct with NewCounter. Counter is safe for concurrent use
// after construction.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a Counter backed by the cl100k_base encoding. If the
// encoding cannot be loaded the Counter still works, using the fallback
// estimate; check Degraded to log the condition.
func NewCounter() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Degraded reports whether the precise encoding failed to load and counts
// are estimates.
func (c *Counter) Degraded() bool {
	return c.enc == nil
}

// Count returns the token cost of text. Empty input costs zero. Count is
// pure and cheap; it is called many times per assembled prompt.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Estimate approximates the token cost of text as ceil(runes / 3.5)
// without consulting any encoding.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(runes) / fallbackCharsPerToken))
}
