package telegram

import (
	"html"
	"strings"

	"instanotify/internal/notify"
)

// contentToHTML converts the formatter's lightweight **bold** markup to
// Telegram HTML, escaping everything else.
func contentToHTML(s string) string {
	parts := strings.Split(s, "**")
	var b strings.Builder
	for i, part := range parts {
		esc := html.EscapeString(part)
		// Odd segments sit between a ** pair. An unbalanced trailing
		// segment stays literal.
		if i%2 == 1 && i < len(parts)-1 {
			b.WriteString("<b>")
			b.WriteString(esc)
			b.WriteString("</b>")
		} else {
			b.WriteString(esc)
		}
	}
	return b.String()
}

// embedCaption flattens an embed into a Telegram HTML caption. Color has no
// wire representation here and is intentionally dropped.
func embedCaption(e notify.Embed) string {
	var b strings.Builder
	if e.AuthorName != "" {
		b.WriteString("<i>")
		b.WriteString(html.EscapeString(e.AuthorName))
		b.WriteString("</i>\n")
	}
	if e.Title != "" {
		b.WriteString("<b>")
		if e.URL != "" {
			b.WriteString(`<a href="`)
			b.WriteString(html.EscapeString(e.URL))
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(e.Title))
			b.WriteString("</a>")
		} else {
			b.WriteString(html.EscapeString(e.Title))
		}
		b.WriteString("</b>\n")
	}
	if e.Description != "" {
		b.WriteString(html.EscapeString(e.Description))
		b.WriteString("\n")
	}
	if e.FooterText != "" {
		b.WriteString("\n<i>")
		b.WriteString(html.EscapeString(e.FooterText))
		b.WriteString("</i>")
	}
	return strings.TrimRight(b.String(), "\n")
}
