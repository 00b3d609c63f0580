// ABOUTME: Renders a conversation as Markdown or as a standalone HTML page
// ABOUTME: HTML is produced by converting the Markdown export with goldmark

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/store"
)

// Format selects the export output
type Format string

// Export formats
const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts "markdown", "md" or "html" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatHTML {
		return ".html"
	}
	return ".md"
}

var pageTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

// Write renders conv in the given format to w.
func Write(w io.Writer, conv store.Conversation, format Format) error {
	md := conversation.RenderMarkdown(conv)

	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, md+"\n")
		return err
	case FormatHTML:
		body, err := MarkdownToHTML(md)
		if err != nil {
			return err
		}
		data := struct {
			Title string
			Body  template.HTML
		}{
			Title: conv.Title,
			Body:  template.HTML(body),
		}
		if err := pageTemplate.Execute(w, data); err != nil {
			return fmt.Errorf("rendering page: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// MarkdownToHTML converts Markdown to an HTML fragment. Raw HTML in the
// source is omitted, not passed through.
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}
