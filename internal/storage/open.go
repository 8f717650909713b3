package storage

import (
	"context"
	"errors"
	"strings"

	logx "instanotify/pkg/logx"
)

// Store is the persistence API used by the watcher and the command surface.
// All operations are durable before they return.
type Store interface {
	// UpsertMapping creates a new (account, chat) mapping with only the
	// mention set. It returns false when the mapping already exists; the
	// existing row is left untouched.
	UpsertMapping(ctx context.Context, username string, chatID int64, mention *string) (bool, error)
	GetMapping(ctx context.Context, username string, chatID int64) (*Mapping, error)
	// UpdateField overwrites one customization field. Unrecognized fields are
	// a silent no-op; nil or empty values clear the field.
	UpdateField(ctx context.Context, username string, chatID int64, field Field, value *string) error
	// RemoveMapping reports whether a row was actually deleted.
	RemoveMapping(ctx context.Context, username string, chatID int64) (bool, error)

	ListAccountsForChat(ctx context.Context, chatID int64) ([]string, error)
	ListTrackedAccounts(ctx context.Context) ([]string, error)
	ListChatsForAccount(ctx context.Context, username string) ([]int64, error)

	// HasSeen / MarkSeen manage the announced-post set. MarkSeen is
	// idempotent; once an ID is present it stays present.
	HasSeen(ctx context.Context, postID string) (bool, error)
	MarkSeen(ctx context.Context, postID string) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
