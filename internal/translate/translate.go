// Package translate provides best-effort caption translation through the
// free web endpoint. Failures are expected and never fatal: callers fall
// back to the original text.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "instanotify/pkg/logx"
)

const endpoint = "https://translate.googleapis.com/translate_a/single"

type Translator struct {
	target string
	log    logx.Logger
	http   *http.Client
}

// New creates a Translator targeting the given language code. An empty
// target disables translation entirely.
func New(target string, log logx.Logger) *Translator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Translator{
		target: strings.TrimSpace(target),
		log:    log,
		http:   &http.Client{Timeout: 8 * time.Second},
	}
}

func (t *Translator) Enabled() bool { return t != nil && t.target != "" }

// Translate returns text translated to the target language (source detected
// automatically). The error is informational; callers use the original text
// on any failure.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if !t.Enabled() {
		return text, nil
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", t.target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: http %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	return parseResponse(raw)
}

// parseResponse extracts the translated text from the gtx response, which is
// a nested array: [[["translated","original",...], ...], ...]. Segments are
// concatenated in order.
func parseResponse(raw []byte) (string, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return "", err
	}
	if len(outer) == 0 {
		return "", errors.New("translate: empty response")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(outer[0], &segments); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(seg[0], &s); err != nil {
			continue
		}
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return "", errors.New("translate: no segments")
	}
	return b.String(), nil
}
