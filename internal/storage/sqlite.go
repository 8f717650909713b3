package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "instanotify/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return err
	}
	return s.migrateColumns(ctx)
}

// migrateColumns adds optional columns missing from database files created by
// older builds. Additive only; existing rows keep NULL for new columns.
func (s *sqliteStore) migrateColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(tracked_accounts)")
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &defaultVal, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, col := range []string{
		"mention", "message_content", "embed_title", "embed_description",
		"embed_author_text", "embed_author_icon_url",
		"embed_footer_text", "embed_footer_icon_url", "embed_color",
	} {
		if existing[col] {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("ALTER TABLE tracked_accounts ADD COLUMN %s TEXT", col)); err != nil {
			return fmt.Errorf("migrate column %s: %w", col, err)
		}
		s.log.Info("storage: added column", logx.String("column", col))
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertMapping(ctx context.Context, username string, chatID int64, mention *string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tracked_accounts(username, chat_id, mention) VALUES(?,?,?)`,
		username, chatID, normalize(mention),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) GetMapping(ctx context.Context, username string, chatID int64) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, chat_id, mention, message_content,
		        embed_title, embed_description, embed_author_text, embed_author_icon_url,
		        embed_footer_text, embed_footer_icon_url, embed_color
		   FROM tracked_accounts WHERE username = ? AND chat_id = ?`,
		username, chatID,
	)
	var m Mapping
	err := row.Scan(&m.Username, &m.ChatID, &m.Mention, &m.MessageContent,
		&m.EmbedTitle, &m.EmbedDescription, &m.EmbedAuthorText, &m.EmbedAuthorIconURL,
		&m.EmbedFooterText, &m.EmbedFooterIconURL, &m.EmbedColor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *sqliteStore) UpdateField(ctx context.Context, username string, chatID int64, field Field, value *string) error {
	if !field.Valid() {
		return nil
	}
	// field is from the enumerated set above; never caller-controlled SQL.
	q := fmt.Sprintf(`UPDATE tracked_accounts SET %s = ? WHERE username = ? AND chat_id = ?`, string(field))
	var v any
	if nv := normalize(value); nv != nil {
		v = *nv
	}
	_, err := s.db.ExecContext(ctx, q, v, username, chatID)
	return err
}

func (s *sqliteStore) RemoveMapping(ctx context.Context, username string, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tracked_accounts WHERE username = ? AND chat_id = ?`, username, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) ListAccountsForChat(ctx context.Context, chatID int64) ([]string, error) {
	return s.stringList(ctx,
		`SELECT username FROM tracked_accounts WHERE chat_id = ? ORDER BY username`, chatID)
}

func (s *sqliteStore) ListTrackedAccounts(ctx context.Context) ([]string, error) {
	return s.stringList(ctx,
		`SELECT DISTINCT username FROM tracked_accounts ORDER BY username`)
}

func (s *sqliteStore) ListChatsForAccount(ctx context.Context, username string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM tracked_accounts WHERE username = ? ORDER BY chat_id`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) HasSeen(ctx context.Context, postID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_posts WHERE post_id = ?`, postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) MarkSeen(ctx context.Context, postID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_posts(post_id) VALUES(?)`, postID)
	return err
}

func (s *sqliteStore) stringList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
