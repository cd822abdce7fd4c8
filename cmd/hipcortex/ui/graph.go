package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// GraphRenderer highlights the formatted graph text as a JSON code block.
// Text that is not JSON (error lines, placeholders) passes through untouched.
type GraphRenderer struct {
	renderer *glamour.TermRenderer
	width    int
	dark     bool
}

// NewGraphRenderer builds a renderer for the given theme and wrap width. If
// glamour cannot be set up the renderer falls back to plain text.
func NewGraphRenderer(theme Theme, width int) *GraphRenderer {
	g := &GraphRenderer{dark: theme.IsDark}
	g.Resize(width)
	return g
}

// Resize rebuilds the underlying renderer for a new wrap width.
func (g *GraphRenderer) Resize(width int) {
	if width <= 0 {
		width = 80
	}
	if g.renderer != nil && width == g.width {
		return
	}
	style := "light"
	if g.dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	g.renderer = r
	g.width = width
}

// Render returns the display form of text.
func (g *GraphRenderer) Render(text string) string {
	trimmed := strings.TrimSpace(text)
	if g.renderer == nil || trimmed == "" || !looksLikeJSON(trimmed) {
		return text
	}
	out, err := g.renderer.Render("```json\n" + text + "\n```\n")
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func looksLikeJSON(s string) bool {
	switch s[0] {
	case '{', '[', '"':
		return true
	}
	return false
}
