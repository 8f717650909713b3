package instagram

import (
	"context"

	logx "instanotify/pkg/logx"
)

// Fetcher returns candidate new posts for an account.
type Fetcher struct {
	client *Client
	log    logx.Logger
}

func NewFetcher(client *Client, log logx.Logger) *Fetcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{client: client, log: log}
}

// FetchRecent queries both the regular and the clips listings for username
// and merges them by shortcode (clips appear in both). It is best-effort:
// any failure yields an empty result, never an error — the polling cycle
// treats that as "nothing to process".
//
// No ordering is guaranteed; the caller imposes its own.
func (f *Fetcher) FetchRecent(ctx context.Context, username string, limit int) []Post {
	pk, err := f.client.UserID(ctx, username)
	if err != nil {
		f.log.Error("could not resolve user", logx.String("username", username), logx.Err(err))
		return nil
	}

	medias, err := f.client.UserMedias(ctx, pk, limit)
	if err != nil {
		f.log.Error("media fetch failed", logx.String("username", username), logx.Err(err))
		medias = nil
	}
	clips, err := f.client.UserClips(ctx, pk, limit)
	if err != nil {
		f.log.Error("clips fetch failed", logx.String("username", username), logx.Err(err))
		clips = nil
	}

	return mergeByID(medias, clips)
}

// mergeByID deduplicates posts by shortcode, keeping the first occurrence.
func mergeByID(lists ...[]Post) []Post {
	var out []Post
	seen := map[string]bool{}
	for _, list := range lists {
		for _, p := range list {
			if p.ID == "" || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}
