// Package notify renders fetched posts into destination-ready messages
// using the per-mapping customization settings.
package notify

import (
	"context"
	"strconv"
	"strings"

	"instanotify/internal/instagram"
	"instanotify/internal/storage"
	logx "instanotify/pkg/logx"
)

const (
	// maxEmbedsPerMessage is the destination platform's grouping limit.
	maxEmbedsPerMessage = 10
	maxTitleRunes       = 256

	defaultEmbedColor = 0xAD1457 // dark magenta, default embeds
	customEmbedColor  = 0x3498DB // blue, custom embeds without a valid color
)

// Translator is the best-effort caption translation dependency.
type Translator interface {
	Enabled() bool
	Translate(ctx context.Context, text string) (string, error)
}

type Formatter struct {
	tr  Translator
	log logx.Logger
}

func NewFormatter(tr Translator, log logx.Logger) *Formatter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Formatter{tr: tr, log: log}
}

// Render builds the messages announcing post to the destination described
// by mapping. mapping may be nil (no customization). The result is already
// batched: each message carries at most ten embeds and only the first one
// carries content text.
func (f *Formatter) Render(ctx context.Context, post *instagram.Post, mapping *storage.Mapping) []Message {
	mention := ""
	if mapping != nil && mapping.Mention != nil {
		mention = *mapping.Mention + " "
	}

	// Clips get a minimal content-only message; the mirror link's preview
	// does the presentation. No embed, no translation, no caption.
	if post.IsClip() {
		return []Message{{
			Content: mention + "**" + post.Username + "** new reels!\n" + post.ClipURL(),
			Preview: true,
		}}
	}

	caption := post.Caption
	if caption != "" && f.tr != nil && f.tr.Enabled() {
		if translated, err := f.tr.Translate(ctx, caption); err == nil {
			caption = translated
		} else {
			f.log.Debug("translation failed; using original caption", logx.Err(err))
		}
	}

	content := ""
	if mapping != nil && mapping.MessageContent != nil {
		content = applyPlaceholders(*mapping.MessageContent, post, caption)
	}
	switch {
	case content != "":
		content = mention + content
	case mention != "":
		content = strings.TrimSpace(mention)
	}

	var main Embed
	if mapping.HasCustomEmbed() {
		main = f.customEmbed(post, mapping, caption)
	} else {
		main = f.defaultEmbed(post, caption)
	}
	embeds := []Embed{main}

	// Carousel slides beyond the first become image-only embeds with the
	// same URL; the platform groups same-URL embeds into a gallery.
	if post.IsCarousel() && len(post.Resources) > 1 {
		for _, r := range post.Resources[1:] {
			img := r.ThumbnailURL
			if img == "" {
				img = r.VideoURL
			}
			embeds = append(embeds, Embed{
				URL:      post.URL(),
				Color:    main.Color,
				ImageURL: img,
			})
		}
	}

	return batch(content, embeds)
}

func (f *Formatter) customEmbed(post *instagram.Post, m *storage.Mapping, caption string) Embed {
	e := Embed{
		URL:      post.URL(),
		Color:    customEmbedColor,
		ImageURL: post.Thumbnail(),
	}
	if m.EmbedColor != nil {
		e.Color = parseHexColor(*m.EmbedColor, customEmbedColor)
	}
	if m.EmbedTitle != nil {
		e.Title = applyPlaceholders(*m.EmbedTitle, post, caption)
	}
	if m.EmbedDescription != nil {
		e.Description = applyPlaceholders(*m.EmbedDescription, post, caption)
	}
	if m.EmbedFooterText != nil {
		e.FooterText = applyPlaceholders(*m.EmbedFooterText, post, caption)
	}
	if m.EmbedAuthorText != nil {
		e.AuthorName = *m.EmbedAuthorText
	}
	if m.EmbedAuthorIconURL != nil {
		e.AuthorIconURL = *m.EmbedAuthorIconURL
	}
	if m.EmbedFooterIconURL != nil {
		e.FooterIconURL = *m.EmbedFooterIconURL
	}
	return e
}

func (f *Formatter) defaultEmbed(post *instagram.Post, caption string) Embed {
	title := truncateRunes(caption, maxTitleRunes)
	if title == "" {
		title = "New Post from " + post.Username
	}
	return Embed{
		Title:         title,
		URL:           post.URL(),
		Description:   "❤️ " + groupThousands(post.LikeCount) + "  💬 " + groupThousands(post.CommentCount),
		Color:         defaultEmbedColor,
		AuthorName:    post.Username,
		AuthorIconURL: post.AvatarURL,
		ImageURL:      post.Thumbnail(),
		FooterText:    "Posted on " + post.TakenAt.In(kst).Format("02 January 2006 at 15:04") + " KST",
	}
}

func batch(content string, embeds []Embed) []Message {
	if len(embeds) == 0 {
		if content == "" {
			return nil
		}
		return []Message{{Content: content}}
	}
	var msgs []Message
	for i := 0; i < len(embeds); i += maxEmbedsPerMessage {
		end := i + maxEmbedsPerMessage
		if end > len(embeds) {
			end = len(embeds)
		}
		m := Message{Embeds: embeds[i:end]}
		if i == 0 {
			m.Content = content
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// truncateRunes shortens s to at most max runes, ellipsized.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// parseHexColor accepts "#RRGGBB" (leading '#' optional) and falls back to
// def for anything unparseable.
func parseHexColor(s string, def int) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return def
	}
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return def
	}
	return int(v)
}
