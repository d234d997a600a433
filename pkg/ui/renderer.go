package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders an assistant reply with glamour, wrapped to width.
// Replies are usually light markdown; on any renderer error the raw text is
// returned.
func RenderMarkdown(input string, width int) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if width <= 0 {
		width = 100
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return trimmed
	}

	out, err := renderer.Render(trimmed)
	if err != nil {
		return trimmed
	}

	// Glamour pads with blank lines that look odd inside chat bubbles
	return strings.Trim(out, "\n")
}
