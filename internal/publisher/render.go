package publisher

import (
	"fmt"
	"strings"

	"github.com/reelcast/reelcast/internal/relay"
)

// escapeHTML neutralizes markup in user-sourced text before it is embedded
// in the rendered caption.
func escapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

// renderCaption builds the HTML caption for one item. Every field that
// originates from the source is escaped.
func renderCaption(item relay.Item) string {
	title := item.Title
	if title == "" {
		title = "No Title"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", escapeHTML(title))
	if item.Duration != "" {
		fmt.Fprintf(&b, "⏱ %s\n", escapeHTML(item.Duration))
	}
	b.WriteString("\n⬇ Download Links ⬇\n\n")

	wrote := false
	for _, dl := range item.DownloadLinks {
		if dl.URL == "" {
			continue
		}
		fmt.Fprintf(&b, "• <a href=\"%s\">%s</a>\n", escapeHTML(dl.URL), escapeHTML(dl.Label))
		wrote = true
	}
	if !wrote && item.Link != "" {
		fmt.Fprintf(&b, "• <a href=\"%s\">Open Page</a>\n", escapeHTML(item.Link))
	}
	return strings.TrimRight(b.String(), "\n")
}
