// Package render produces operator-facing HTML dumps of room state.
//
// Notes and history messages are authored by viewers and by the model, so
// everything is treated as untrusted content: markdown is rendered with
// goldmark and the resulting HTML is sanitized with bluemonday before it
// reaches a browser.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/streammind/streammind/storage"
)

// Renderer renders room transcripts. Safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a Renderer with GFM markdown and the UGC sanitization
// policy.
func New() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Transcript renders the room's notes and message history as a sanitized
// HTML fragment. Image references become links rather than inline images
// so a transcript view never fetches third-party content automatically.
func (r *Renderer) Transcript(roomID string, notes []string, messages []storage.Message) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Room %s</h1>\n", html.EscapeString(roomID))

	sb.WriteString("<h2>Notepad</h2>\n")
	if len(notes) == 0 {
		sb.WriteString("<p><em>empty</em></p>\n")
	} else {
		sb.WriteString("<ul>\n")
		for _, note := range notes {
			rendered, err := r.markdown(note)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "<li>%s</li>\n", rendered)
		}
		sb.WriteString("</ul>\n")
	}

	sb.WriteString("<h2>History</h2>\n")
	for _, msg := range messages {
		fmt.Fprintf(&sb, "<h3>%s</h3>\n", html.EscapeString(string(msg.Role)))
		for _, block := range msg.Content {
			switch block.Type {
			case storage.ContentTypeText:
				rendered, err := r.markdown(block.Text)
				if err != nil {
					return "", err
				}
				sb.WriteString(rendered)
				sb.WriteByte('\n')
			case storage.ContentTypeImageURL:
				fmt.Fprintf(&sb, "<p><a href=%q>image</a></p>\n", block.ImageURL)
			}
		}
	}

	return r.policy.Sanitize(sb.String()), nil
}

func (r *Renderer) markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return buf.String(), nil
}
