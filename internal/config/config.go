package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load reads, decodes, and validates the config file at path.
//
// Both JSON and YAML are accepted; YAML is coerced to JSON so a single strict
// decoder (DisallowUnknownFields) covers both formats. Configuration is
// loaded once at startup; there is no runtime reconfiguration.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config decode (%s): %w", format, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if strings.TrimSpace(c.Instagram.Password) == "" {
		c.Instagram.Password = os.Getenv("INSTAGRAM_PASSWORD")
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (config file or TELEGRAM_BOT_TOKEN)")
	}
	if strings.TrimSpace(c.Instagram.Username) == "" {
		return errors.New("instagram.username is required")
	}
	if strings.TrimSpace(c.Instagram.Password) == "" {
		return errors.New("instagram.password is required (config file or INSTAGRAM_PASSWORD)")
	}
	if c.Watcher.FetchLimit < 0 {
		return errors.New("watcher.fetch_limit must be >= 0")
	}

	// Reject bad duration strings early; startup is the only chance.
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"watcher.interval", c.Watcher.Interval},
		{"watcher.max_post_age", c.Watcher.MaxPostAge},
		{"watcher.post_delay_min", c.Watcher.PostDelayMin},
		{"watcher.post_delay_max", c.Watcher.PostDelayMax},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	min, _ := ParseDurationOrDefault("watcher.post_delay_min", c.Watcher.PostDelayMin, DefaultPostDelayMin)
	max, _ := ParseDurationOrDefault("watcher.post_delay_max", c.Watcher.PostDelayMax, DefaultPostDelayMax)
	if max < min {
		return errors.New("watcher.post_delay_max must be >= watcher.post_delay_min")
	}
	return nil
}

// TranslateTarget returns the caption translation language, defaulting to
// "en" when the field is omitted. An explicit empty string disables
// translation.
func (c *Config) TranslateTarget() string {
	if c.Watcher.TranslateTo == nil {
		return "en"
	}
	return strings.TrimSpace(*c.Watcher.TranslateTo)
}
