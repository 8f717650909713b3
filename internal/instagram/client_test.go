package instagram

import (
	"encoding/json"
	"testing"
	"time"
)

func TestToPostMapping(t *testing.T) {
	t.Parallel()

	raw := `{
		"pk": 3141592653589793238,
		"code": "Cxyz123",
		"media_type": 1,
		"taken_at": 1740800000,
		"like_count": 1234,
		"comment_count": 5,
		"caption": {"text": "hello"},
		"user": {"username": "alice", "full_name": "Alice Kim", "profile_pic_url": "https://cdn.example/a.jpg"},
		"image_versions2": {"candidates": [{"url": "https://cdn.example/big.jpg"}, {"url": "https://cdn.example/small.jpg"}]}
	}`
	var it mediaItem
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatal(err)
	}

	p := it.toPost()
	if p.ID != "Cxyz123" || p.PK != "3141592653589793238" {
		t.Errorf("ids: %q %q", p.ID, p.PK)
	}
	if p.Kind != KindImage {
		t.Errorf("Kind = %v", p.Kind)
	}
	if p.Caption != "hello" || p.Username != "alice" {
		t.Errorf("caption/user: %q %q", p.Caption, p.Username)
	}
	if p.ThumbURL != "https://cdn.example/big.jpg" {
		t.Errorf("ThumbURL = %q (first candidate is the largest)", p.ThumbURL)
	}
	if !p.TakenAt.Equal(time.Unix(1740800000, 0)) || p.TakenAt.Location() != time.UTC {
		t.Errorf("TakenAt = %v", p.TakenAt)
	}
	if len(p.Resources) != 1 {
		t.Errorf("Resources = %+v", p.Resources)
	}
}

func TestToPostKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		item mediaItem
		want Kind
	}{
		{"image", mediaItem{Code: "a", MediaType: 1}, KindImage},
		{"video", mediaItem{Code: "b", MediaType: 2}, KindVideo},
		{"clip", mediaItem{Code: "c", MediaType: 2, ProductType: "clips"}, KindClip},
		{"carousel", mediaItem{Code: "d", MediaType: 8}, KindCarousel},
	}
	for _, tt := range tests {
		if got := tt.item.toPost().Kind; got != tt.want {
			t.Errorf("%s: Kind = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestToPostCarouselResources(t *testing.T) {
	t.Parallel()
	raw := `{
		"code": "d",
		"media_type": 8,
		"carousel_media": [
			{"image_versions2": {"candidates": [{"url": "https://cdn.example/1.jpg"}]}},
			{"image_versions2": {"candidates": [{"url": "https://cdn.example/2.jpg"}]}, "video_versions": [{"url": "https://cdn.example/2.mp4"}]}
		]
	}`
	var it mediaItem
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatal(err)
	}
	p := it.toPost()
	if len(p.Resources) != 2 {
		t.Fatalf("Resources = %+v", p.Resources)
	}
	if p.Resources[1].ThumbnailURL != "https://cdn.example/2.jpg" || p.Resources[1].VideoURL != "https://cdn.example/2.mp4" {
		t.Fatalf("slide 2 = %+v", p.Resources[1])
	}
}

func TestItemsToPostsSkipsCodeless(t *testing.T) {
	t.Parallel()
	posts := itemsToPosts([]mediaItem{
		{Code: "a", MediaType: 1},
		{MediaType: 1},
		{Code: "b", MediaType: 1},
	})
	if len(posts) != 2 || posts[0].ID != "a" || posts[1].ID != "b" {
		t.Fatalf("posts = %+v", posts)
	}
}

func TestMergeByID(t *testing.T) {
	t.Parallel()
	medias := []Post{{ID: "a"}, {ID: "b", Kind: KindVideo}}
	clips := []Post{{ID: "b", Kind: KindClip}, {ID: "c"}, {ID: ""}}

	out := mergeByID(medias, clips)
	if len(out) != 3 {
		t.Fatalf("merged = %+v", out)
	}
	// First occurrence wins; the clips listing does not overwrite it.
	if out[1].ID != "b" || out[1].Kind != KindVideo {
		t.Fatalf("duplicate handling: %+v", out[1])
	}
	if out[2].ID != "c" {
		t.Fatalf("order: %+v", out)
	}
}

func TestThumbnailFallback(t *testing.T) {
	t.Parallel()
	p := Post{ThumbURL: "primary"}
	if p.Thumbnail() != "primary" {
		t.Error("primary thumb ignored")
	}
	p = Post{Resources: []Resource{{ThumbnailURL: "first"}}}
	if p.Thumbnail() != "first" {
		t.Error("resource fallback ignored")
	}
	if (&Post{}).Thumbnail() != "" {
		t.Error("empty post should yield empty thumbnail")
	}
}

func TestPostURLs(t *testing.T) {
	t.Parallel()
	p := Post{ID: "Cxyz123"}
	if p.URL() != "https://www.instagram.com/p/Cxyz123/" {
		t.Errorf("URL = %q", p.URL())
	}
	if p.ClipURL() != "https://www.kkinstagram.com/p/Cxyz123/" {
		t.Errorf("ClipURL = %q", p.ClipURL())
	}
}
