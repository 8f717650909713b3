package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "instanotify/pkg/logx"
)

// sessionState is the on-disk session format. The file is interchangeable
// with one generated by the standalone login helper on another machine.
type sessionState struct {
	Username string          `json:"username"`
	SavedAt  time.Time       `json:"saved_at"`
	Cookies  []sessionCookie `json:"cookies"`
}

type sessionCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain,omitempty"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

func (c *Client) sessionPath() string {
	dir := c.cfg.SessionDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "session_"+c.cfg.Username+".json")
}

func (c *Client) loadSession() error {
	b, err := os.ReadFile(c.sessionPath())
	if err != nil {
		return err
	}
	var st sessionState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}

	u, _ := url.Parse(apiBase)
	cookies := make([]*http.Cookie, 0, len(st.Cookies))
	for _, ck := range st.Cookies {
		domain := ck.Domain
		if domain == "" {
			domain = ".instagram.com"
		}
		path := ck.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{
			Name:    ck.Name,
			Value:   ck.Value,
			Domain:  domain,
			Path:    path,
			Expires: ck.Expires,
		})
	}
	c.http.Jar.SetCookies(u, cookies)
	c.log.Info("session loaded", logx.String("path", c.sessionPath()))
	return nil
}

func (c *Client) saveSession() error {
	u, _ := url.Parse(apiBase)
	st := sessionState{Username: c.cfg.Username, SavedAt: time.Now().UTC()}
	for _, ck := range c.http.Jar.Cookies(u) {
		st.Cookies = append(st.Cookies, sessionCookie{
			Name:    ck.Name,
			Value:   ck.Value,
			Domain:  ck.Domain,
			Path:    ck.Path,
			Expires: ck.Expires,
		})
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.sessionPath()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.sessionPath(), b, 0o600)
}

// WatchSession reloads the session when its file is replaced on disk. The
// deployment flow generates sessions on a trusted machine and copies the
// file next to the bot; watching means no restart is needed.
//
// Blocks until ctx is done.
func (c *Client) WatchSession(ctx context.Context) error {
	dir := c.cfg.SessionDir
	if dir == "" {
		dir = "."
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	target := filepath.Base(c.sessionPath())

	// Debounce: editors and scp produce bursts of write events.
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(500 * time.Millisecond)
				timerC = timer.C
			} else {
				timer.Reset(500 * time.Millisecond)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			c.log.Info("session file changed; reloading")
			if err := c.loadSession(); err != nil {
				c.log.Warn("session reload failed", logx.Err(err))
				continue
			}
			if err := c.validateSession(ctx); err != nil {
				c.log.Warn("reloaded session is not valid", logx.Err(err))
			} else {
				c.log.Info("reloaded session is valid")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("session watcher error", logx.Err(err))
		}
	}
}
