package storage

import (
	"strings"
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default when empty)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Mapping is one (account, chat) tracking relationship with its
// customization settings. Optional fields are nil when unset; an empty
// string is normalized to unset on write.
type Mapping struct {
	Username string
	ChatID   int64

	Mention            *string
	MessageContent     *string
	EmbedTitle         *string
	EmbedDescription   *string
	EmbedAuthorText    *string
	EmbedAuthorIconURL *string
	EmbedFooterText    *string
	EmbedFooterIconURL *string
	EmbedColor         *string
}

// HasCustomEmbed reports whether any embed_* field is set.
func (m *Mapping) HasCustomEmbed() bool {
	if m == nil {
		return false
	}
	for _, v := range []*string{
		m.EmbedTitle, m.EmbedDescription, m.EmbedAuthorText, m.EmbedAuthorIconURL,
		m.EmbedFooterText, m.EmbedFooterIconURL, m.EmbedColor,
	} {
		if v != nil {
			return true
		}
	}
	return false
}

// Field identifies a customizable mapping column. Using an enumerated type
// instead of raw strings keeps UpdateField away from arbitrary SQL
// identifiers.
type Field string

const (
	FieldMessageContent     Field = "message_content"
	FieldEmbedTitle         Field = "embed_title"
	FieldEmbedDescription   Field = "embed_description"
	FieldEmbedColor         Field = "embed_color"
	FieldEmbedFooterText    Field = "embed_footer_text"
	FieldEmbedAuthorText    Field = "embed_author_text"
	FieldEmbedAuthorIconURL Field = "embed_author_icon_url"
	FieldEmbedFooterIconURL Field = "embed_footer_icon_url"
)

// Fields lists all recognized customization fields in display order.
func Fields() []Field {
	return []Field{
		FieldMessageContent,
		FieldEmbedTitle,
		FieldEmbedDescription,
		FieldEmbedColor,
		FieldEmbedFooterText,
		FieldEmbedAuthorText,
		FieldEmbedAuthorIconURL,
		FieldEmbedFooterIconURL,
	}
}

// Valid reports whether f names a recognized column.
func (f Field) Valid() bool {
	switch f {
	case FieldMessageContent, FieldEmbedTitle, FieldEmbedDescription, FieldEmbedColor,
		FieldEmbedFooterText, FieldEmbedAuthorText, FieldEmbedAuthorIconURL, FieldEmbedFooterIconURL:
		return true
	}
	return false
}

// normalize maps empty / whitespace-only values to nil ("unset").
func normalize(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
