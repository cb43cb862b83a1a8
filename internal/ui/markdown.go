package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const markdownStyle = "dark"

var (
	mdMu        sync.Mutex
	mdRenderers = map[int]*glamour.TermRenderer{}
)

// renderMarkdown renders md wrapped at width, falling back to the raw text when glamour fails.
//
// Renderers are cached per width. A fixed style avoids the terminal background query of auto style.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 20 {
		width = 20
	}

	mdMu.Lock()
	defer mdMu.Unlock()
	r := mdRenderers[width]
	if r == nil {
		var err error
		r, err = glamour.NewTermRenderer(glamour.WithStandardStyle(markdownStyle), glamour.WithWordWrap(width))
		if err != nil {
			return md
		}
		mdRenderers[width] = r
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// cardMarkdown is the detail document of a card.
func cardMarkdown(title, description, due string, labels []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if description != "" {
		fmt.Fprintf(&b, "%s\n\n", description)
	} else {
		b.WriteString("_No description_\n\n")
	}
	if due != "" {
		fmt.Fprintf(&b, "**Due** %s\n\n", due)
	}
	if len(labels) > 0 {
		b.WriteString("**Labels**")
		for _, l := range labels {
			fmt.Fprintf(&b, " `%s`", l)
		}
		b.WriteString("\n")
	}
	return b.String()
}
