package instagram

import "time"

// Kind classifies a post's media payload.
type Kind int

const (
	KindImage Kind = iota + 1
	KindVideo
	KindCarousel
	// KindClip is the short-video ("reels") subtype. Clips also show up in
	// the regular media listing; the fetcher merges the two by shortcode.
	KindClip
)

// Resource is one media item of a post (the only item for single-media
// posts, one per slide for carousels).
type Resource struct {
	ThumbnailURL string
	VideoURL     string
}

// Post is a read-only view of a fetched Instagram post.
type Post struct {
	// ID is the shortcode used in post URLs; it is the dedup identifier.
	ID string
	// PK is the numeric media ID used by the private API.
	PK string

	Username  string
	FullName  string
	AvatarURL string

	Caption      string
	Kind         Kind
	LikeCount    int
	CommentCount int
	TakenAt      time.Time

	// ThumbURL is the primary thumbnail; may be empty for some video posts.
	ThumbURL  string
	Resources []Resource
}

func (p *Post) URL() string { return "https://www.instagram.com/p/" + p.ID + "/" }

// ClipURL returns the embed-friendly mirror link used for clip
// notifications; its previews unfurl the video where the canonical link does
// not.
func (p *Post) ClipURL() string { return "https://www.kkinstagram.com/p/" + p.ID + "/" }

func (p *Post) IsClip() bool     { return p.Kind == KindClip }
func (p *Post) IsCarousel() bool { return p.Kind == KindCarousel }

// Thumbnail returns the primary thumbnail, falling back to the first
// resource's.
func (p *Post) Thumbnail() string {
	if p.ThumbURL != "" {
		return p.ThumbURL
	}
	if len(p.Resources) > 0 {
		return p.Resources[0].ThumbnailURL
	}
	return ""
}
