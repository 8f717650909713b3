package telegram

import (
	"testing"

	"instanotify/internal/notify"
)

func TestContentToHTML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"**bold**", "<b>bold</b>"},
		{"@fans **alice** new reels!", "@fans <b>alice</b> new reels!"},
		{"a < b & c", "a &lt; b &amp; c"},
		{"**<script>**", "<b>&lt;script&gt;</b>"},
	}
	for _, tt := range tests {
		if got := contentToHTML(tt.in); got != tt.want {
			t.Errorf("contentToHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbedCaption(t *testing.T) {
	t.Parallel()

	e := notify.Embed{
		AuthorName:  "alice",
		Title:       "hello <world>",
		URL:         "https://www.instagram.com/p/Cxyz123/",
		Description: "❤️ 1,234  💬 5",
		FooterText:  "Posted on 01 March 2025 at 12:30 KST",
	}
	want := "<i>alice</i>\n" +
		`<b><a href="https://www.instagram.com/p/Cxyz123/">hello &lt;world&gt;</a></b>` + "\n" +
		"❤️ 1,234  💬 5\n" +
		"\n<i>Posted on 01 March 2025 at 12:30 KST</i>"
	if got := embedCaption(e); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEmbedCaptionSparse(t *testing.T) {
	t.Parallel()

	if got := embedCaption(notify.Embed{Title: "just a title"}); got != "<b>just a title</b>" {
		t.Errorf("title only = %q", got)
	}
	if got := embedCaption(notify.Embed{Description: "desc"}); got != "desc" {
		t.Errorf("description only = %q", got)
	}
	if got := embedCaption(notify.Embed{}); got != "" {
		t.Errorf("empty embed = %q", got)
	}
}

func TestCleanUsername(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"@Alice", "alice"},
		{"  bob  ", "bob"},
		{"@UPPER_case", "upper_case"},
	}
	for _, tt := range tests {
		if got := cleanUsername(tt.in); got != tt.want {
			t.Errorf("cleanUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEditStateTakeOnce(t *testing.T) {
	t.Parallel()
	s := newEditState()
	s.put(1, 2, pendingEdit{username: "alice"})

	p, ok := s.take(1, 2)
	if !ok || p.username != "alice" {
		t.Fatalf("take = %+v ok=%v", p, ok)
	}
	if _, ok := s.take(1, 2); ok {
		t.Fatal("second take should miss")
	}
	if _, ok := s.take(1, 3); ok {
		t.Fatal("other user should miss")
	}
}
