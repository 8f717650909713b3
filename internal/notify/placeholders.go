package notify

import (
	"strconv"
	"strings"
	"time"

	"instanotify/internal/instagram"
)

// Post timestamps are always displayed in KST regardless of host timezone.
var kst = time.FixedZone("KST", 9*60*60)

type resolver func(p *instagram.Post, caption string) string

// placeholders is the substitution table, applied left-to-right by literal
// replacement. Resolvers are pure functions of (post, translated caption).
// Unknown tokens pass through verbatim.
var placeholders = []struct {
	token   string
	resolve resolver
}{
	{"{user}", func(p *instagram.Post, _ string) string { return p.Username }},
	{"{user_fullname}", func(p *instagram.Post, _ string) string { return p.FullName }},
	{"{user_avatar}", func(p *instagram.Post, _ string) string { return p.AvatarURL }},
	{"{url}", func(p *instagram.Post, _ string) string { return p.URL() }},
	{"{caption}", func(_ *instagram.Post, caption string) string { return caption }},
	{"{likes}", func(p *instagram.Post, _ string) string { return groupThousands(p.LikeCount) }},
	{"{comments}", func(p *instagram.Post, _ string) string { return groupThousands(p.CommentCount) }},
	{"{date}", func(p *instagram.Post, _ string) string { return p.TakenAt.In(kst).Format("02/01/2006") }},
	{"{time}", func(p *instagram.Post, _ string) string { return p.TakenAt.In(kst).Format("15:04") + " KST" }},
}

func applyPlaceholders(s string, p *instagram.Post, caption string) string {
	for _, ph := range placeholders {
		s = strings.ReplaceAll(s, ph.token, ph.resolve(p, caption))
	}
	return s
}

// groupThousands formats n with comma grouping ("1234567" -> "1,234,567").
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
