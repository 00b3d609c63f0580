// ABOUTME: Markdown export of a single conversation
// ABOUTME: Produces a "# title" heading followed by one "**role**: content" block per turn

package conversation

import (
	"strings"

	"github.com/2389/coven-chat/internal/store"
)

// ExportMarkdown renders a conversation as Markdown.
// Returns store.ErrNotFound if it doesn't exist.
func (m *Manager) ExportMarkdown(id string) (string, error) {
	conv, err := m.Get(id)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(conv), nil
}

// RenderMarkdown renders conv as Markdown.
func RenderMarkdown(conv store.Conversation) string {
	blocks := make([]string, len(conv.Turns))
	for i, t := range conv.Turns {
		blocks[i] = "**" + string(t.Role) + "**: " + t.Content
	}

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(conv.Title)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	return b.String()
}
