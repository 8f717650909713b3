package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Instagram InstagramConfig `json:"instagram"`
	Watcher   WatcherConfig   `json:"watcher"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	// Token falls back to the TELEGRAM_BOT_TOKEN environment variable when
	// empty, so the config file can stay free of secrets.
	Token        string  `json:"token,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type InstagramConfig struct {
	Username string `json:"username"`
	// Password falls back to the INSTAGRAM_PASSWORD environment variable.
	Password string `json:"password,omitempty"`
	// SessionDir holds session_<username>.json. A fresh session file dropped
	// here (e.g. generated on another machine) is picked up without a restart.
	SessionDir string `json:"session_dir,omitempty"`
}

// WatcherConfig controls the polling loop.
//
// All durations are Go duration strings (e.g. "30s", "5m").
//
// Defaults (when fields are omitted/zero):
//   - interval: "5m"
//   - fetch_limit: 10
//   - max_post_age: "24h"
//   - post_delay_min / post_delay_max: "5s" / "10s"
//   - translate_to: "en" (empty string after trimming disables translation)
type WatcherConfig struct {
	Interval     string `json:"interval,omitempty"`
	FetchLimit   int    `json:"fetch_limit,omitempty"`
	MaxPostAge   string `json:"max_post_age,omitempty"`
	PostDelayMin string `json:"post_delay_min,omitempty"`
	PostDelayMax string `json:"post_delay_max,omitempty"`
	TranslateTo  *string `json:"translate_to,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/instanotify.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level    string          `json:"level,omitempty"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
