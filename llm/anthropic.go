package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/streammind/streammind/storage"
)

// AnthropicInvoker implements Invoker on the Anthropic Messages API.
type AnthropicInvoker struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates an AnthropicInvoker for the given client and model.
func NewAnthropic(client *anthropic.Client, model string) *AnthropicInvoker {
	return &AnthropicInvoker{client: client, model: model}
}

// Invoke sends the messages and returns the concatenated text blocks of
// the response. System-role messages are folded into the request's system
// parameter; the API does not accept them in the message list.
func (a *AnthropicInvoker) Invoke(ctx context.Context, messages []storage.Message, maxResponseTokens int, timeout time.Duration) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("anthropic: empty message list")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var system []anthropic.TextBlockParam
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == storage.RoleSystem {
			if text := msg.TextContent(); text != "" {
				system = append(system, anthropic.TextBlockParam{Type: "text", Text: text})
			}
			continue
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case storage.ContentTypeText:
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			case storage.ContentTypeImageURL:
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{
					URL: block.ImageURL,
				}))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		params = append(params, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: blocks,
		})
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxResponseTokens),
		Messages:  params,
	}
	if len(system) > 0 {
		req.System = system
	}

	response, err := a.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic: message call: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
