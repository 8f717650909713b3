package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	logx "instanotify/pkg/logx"
)

const (
	apiBase   = "https://www.instagram.com"
	appID     = "936619743392459"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// ErrLoginRequired indicates the stored session is no longer authenticated.
var ErrLoginRequired = errors.New("instagram: login required")

type Config struct {
	Username   string
	Password   string
	SessionDir string
}

// Client is a session-based client for the Instagram private web API.
//
// Requests are serialized and separated by a randomized 2-5s delay to stay
// under the remote abuse detection thresholds; callers must not expect
// concurrency from it.
type Client struct {
	cfg  Config
	log  logx.Logger
	http *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("instagram username is empty")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		log: log,
		http: &http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
	}
	if err := c.loadSession(); err != nil {
		log.Warn("could not load session file", logx.Err(err))
	}
	return c, nil
}

// Login validates the current session and falls back to a password login
// when it is invalid. A failure here is fatal to startup.
func (c *Client) Login(ctx context.Context) error {
	if err := c.validateSession(ctx); err == nil {
		c.log.Info("session valid", logx.String("username", c.cfg.Username))
		return nil
	} else if !errors.Is(err, ErrLoginRequired) {
		c.log.Warn("session check failed; retrying with password", logx.Err(err))
	}

	c.log.Info("logging in with password", logx.String("username", c.cfg.Username))
	if err := c.loginWithPassword(ctx); err != nil {
		return fmt.Errorf("instagram login: %w", err)
	}
	if err := c.saveSession(); err != nil {
		c.log.Warn("could not persist session", logx.Err(err))
	}
	c.log.Info("login successful")
	return nil
}

// validateSession performs a cheap authenticated call.
func (c *Client) validateSession(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	err := c.doJSON(ctx, http.MethodGet, apiBase+"/api/v1/accounts/current_user/", nil, &out)
	if err != nil {
		return err
	}
	if out.Status != "ok" {
		return ErrLoginRequired
	}
	return nil
}

func (c *Client) loginWithPassword(ctx context.Context) error {
	// Prime cookies (csrftoken) with a plain page hit.
	if err := c.doRaw(ctx, http.MethodGet, apiBase+"/accounts/login/", nil, nil); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("enc_password",
		fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", time.Now().Unix(), c.cfg.Password))
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	var out struct {
		Authenticated bool   `json:"authenticated"`
		User          bool   `json:"user"`
		Status        string `json:"status"`
		Message       string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, apiBase+"/api/v1/web/accounts/login/ajax/", form, &out); err != nil {
		return err
	}
	if !out.Authenticated {
		if out.Message != "" {
			return fmt.Errorf("not authenticated: %s", out.Message)
		}
		return errors.New("not authenticated (bad credentials or checkpoint)")
	}
	return nil
}

// UserID resolves a public username to its numeric PK.
func (c *Client) UserID(ctx context.Context, username string) (string, error) {
	var out struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	u := apiBase + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(username)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return "", err
	}
	if out.Data.User.ID == "" {
		return "", fmt.Errorf("user %q not resolvable", username)
	}
	return out.Data.User.ID, nil
}

// UserMedias returns the account's recent posts from the regular feed
// listing.
func (c *Client) UserMedias(ctx context.Context, pk string, limit int) ([]Post, error) {
	var out struct {
		Items []mediaItem `json:"items"`
	}
	u := fmt.Sprintf("%s/api/v1/feed/user/%s/?count=%d", apiBase, pk, limit)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return itemsToPosts(out.Items), nil
}

// UserClips returns the account's recent short-video posts. The clips
// listing overlaps with the regular one; callers merge by shortcode.
func (c *Client) UserClips(ctx context.Context, pk string, limit int) ([]Post, error) {
	form := url.Values{}
	form.Set("target_user_id", pk)
	form.Set("page_size", fmt.Sprint(limit))
	form.Set("include_feed_video", "true")

	var out struct {
		Items []struct {
			Media mediaItem `json:"media"`
		} `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodPost, apiBase+"/api/v1/clips/user/", form, &out); err != nil {
		return nil, err
	}
	items := make([]mediaItem, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, it.Media)
	}
	return itemsToPosts(items), nil
}

// ---- transport ----

// throttle sleeps so consecutive API calls are 2-5s apart.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	last := c.lastCall
	c.mu.Unlock()

	wait := time.Duration(2000+rand.Intn(3000)) * time.Millisecond
	if since := time.Since(last); since < wait {
		select {
		case <-time.After(wait - since):
		case <-ctx.Done():
		}
	}
	c.mu.Lock()
	c.lastCall = time.Now()
	c.mu.Unlock()
}

func (c *Client) doJSON(ctx context.Context, method, u string, form url.Values, out any) error {
	return c.doRaw(ctx, method, u, form, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(out)
	})
}

func (c *Client) doRaw(ctx context.Context, method, u string, form url.Values, decode func(io.Reader) error) error {
	c.throttle(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-IG-App-ID", appID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", apiBase+"/")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if tok := c.csrfToken(); tok != "" {
		req.Header.Set("X-CSRFToken", tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body) //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrLoginRequired
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("%s: http %d", req.URL.Path, resp.StatusCode)
	}
	if decode == nil {
		return nil
	}
	return decode(resp.Body)
}

func (c *Client) csrfToken() string {
	u, _ := url.Parse(apiBase)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "csrftoken" {
			return ck.Value
		}
	}
	return ""
}

// ---- private API item mapping ----

type mediaItem struct {
	PK           json.Number `json:"pk"`
	Code         string      `json:"code"`
	MediaType    int         `json:"media_type"`
	ProductType  string      `json:"product_type"`
	TakenAt      int64       `json:"taken_at"`
	LikeCount    int         `json:"like_count"`
	CommentCount int         `json:"comment_count"`
	Caption      *struct {
		Text string `json:"text"`
	} `json:"caption"`
	User struct {
		Username      string `json:"username"`
		FullName      string `json:"full_name"`
		ProfilePicURL string `json:"profile_pic_url"`
	} `json:"user"`
	ImageVersions2 imageVersions `json:"image_versions2"`
	VideoVersions  []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
	CarouselMedia []mediaItem `json:"carousel_media"`
}

type imageVersions struct {
	Candidates []struct {
		URL string `json:"url"`
	} `json:"candidates"`
}

func (v imageVersions) best() string {
	if len(v.Candidates) == 0 {
		return ""
	}
	return v.Candidates[0].URL
}

func itemsToPosts(items []mediaItem) []Post {
	posts := make([]Post, 0, len(items))
	for _, it := range items {
		if it.Code == "" {
			continue
		}
		posts = append(posts, it.toPost())
	}
	return posts
}

func (it mediaItem) toPost() Post {
	p := Post{
		ID:           it.Code,
		PK:           it.PK.String(),
		Username:     it.User.Username,
		FullName:     it.User.FullName,
		AvatarURL:    it.User.ProfilePicURL,
		LikeCount:    it.LikeCount,
		CommentCount: it.CommentCount,
		TakenAt:      time.Unix(it.TakenAt, 0).UTC(),
		ThumbURL:     it.ImageVersions2.best(),
	}
	if it.Caption != nil {
		p.Caption = it.Caption.Text
	}

	switch it.MediaType {
	case 8:
		p.Kind = KindCarousel
		for _, cm := range it.CarouselMedia {
			r := Resource{ThumbnailURL: cm.ImageVersions2.best()}
			if len(cm.VideoVersions) > 0 {
				r.VideoURL = cm.VideoVersions[0].URL
			}
			p.Resources = append(p.Resources, r)
		}
	case 2:
		if it.ProductType == "clips" {
			p.Kind = KindClip
		} else {
			p.Kind = KindVideo
		}
	default:
		p.Kind = KindImage
	}

	if len(p.Resources) == 0 {
		r := Resource{ThumbnailURL: p.ThumbURL}
		if len(it.VideoVersions) > 0 {
			r.VideoURL = it.VideoVersions[0].URL
		}
		p.Resources = append(p.Resources, r)
	}
	return p
}
