package notify

// Message is one platform-neutral outbound notification: optional content
// text plus up to ten embeds. The destination adapter decides how embeds
// are rendered on the wire.
type Message struct {
	Content string
	Embeds  []Embed

	// Preview requests link previews for content-only messages. Only clip
	// notifications set it; their mirror link unfurls into a playable video.
	Preview bool
}

// Embed mirrors the rich-card shape of the original notifications. Fields
// left empty are absent.
type Embed struct {
	Title         string
	Description   string
	URL           string
	Color         int
	AuthorName    string
	AuthorIconURL string
	ImageURL      string
	FooterText    string
	FooterIconURL string
}
