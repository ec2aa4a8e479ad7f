package format

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// DefaultWrap is the word-wrap width for rendered Markdown.
const DefaultWrap = 80

// RenderMarkdown renders md for a terminal. With plain set the notty style
// is used, which emits no ANSI escapes; otherwise the style follows the
// terminal background.
func RenderMarkdown(md string, width int, plain bool) (string, error) {
	if width <= 0 {
		width = DefaultWrap
	}
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle(styles.NoTTYStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
