package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	logx "instanotify/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func strp(s string) *string { return &s }

func TestUpsertMappingUniqueness(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	created, err := st.UpsertMapping(ctx, "alice", 100, strp("@fans"))
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	// Second upsert must fail and must not touch the original fields.
	created, err = st.UpsertMapping(ctx, "alice", 100, strp("@other"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatal("second upsert reported created=true")
	}

	m, err := st.GetMapping(ctx, "alice", 100)
	if err != nil || m == nil {
		t.Fatalf("GetMapping: m=%v err=%v", m, err)
	}
	if m.Mention == nil || *m.Mention != "@fans" {
		t.Fatalf("mention overwritten: %v", m.Mention)
	}
}

func TestUpdateField(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.UpsertMapping(ctx, "alice", 100, nil); err != nil {
		t.Fatal(err)
	}

	if err := st.UpdateField(ctx, "alice", 100, FieldEmbedColor, strp("#E1306C")); err != nil {
		t.Fatal(err)
	}
	m, _ := st.GetMapping(ctx, "alice", 100)
	if m.EmbedColor == nil || *m.EmbedColor != "#E1306C" {
		t.Fatalf("EmbedColor = %v", m.EmbedColor)
	}

	// Empty string clears to unset, not to "".
	if err := st.UpdateField(ctx, "alice", 100, FieldEmbedColor, strp("")); err != nil {
		t.Fatal(err)
	}
	m, _ = st.GetMapping(ctx, "alice", 100)
	if m.EmbedColor != nil {
		t.Fatalf("EmbedColor not cleared: %q", *m.EmbedColor)
	}

	// Unknown field names are a silent no-op.
	if err := st.UpdateField(ctx, "alice", 100, Field("username"), strp("mallory")); err != nil {
		t.Fatalf("unknown field: %v", err)
	}
	m, _ = st.GetMapping(ctx, "alice", 100)
	if m.Username != "alice" {
		t.Fatalf("unknown field mutated the row: %q", m.Username)
	}
}

func TestRemoveMapping(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.UpsertMapping(ctx, "alice", 100, nil); err != nil {
		t.Fatal(err)
	}
	removed, err := st.RemoveMapping(ctx, "alice", 100)
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	removed, err = st.RemoveMapping(ctx, "alice", 100)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("second remove reported a deleted row")
	}
}

func TestListings(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for _, row := range []struct {
		user string
		chat int64
	}{
		{"alice", 100}, {"alice", 200}, {"bob", 100},
	} {
		if _, err := st.UpsertMapping(ctx, row.user, row.chat, nil); err != nil {
			t.Fatal(err)
		}
	}

	accounts, err := st.ListAccountsForChat(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 || accounts[0] != "alice" || accounts[1] != "bob" {
		t.Fatalf("ListAccountsForChat = %v", accounts)
	}

	all, err := st.ListTrackedAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("ListTrackedAccounts = %v (want distinct alice,bob)", all)
	}

	chats, err := st.ListChatsForAccount(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[0] != 100 || chats[1] != 200 {
		t.Fatalf("ListChatsForAccount = %v", chats)
	}
}

func TestSeenIdempotence(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	seen, err := st.HasSeen(ctx, "C123")
	if err != nil || seen {
		t.Fatalf("fresh id: seen=%v err=%v", seen, err)
	}
	if err := st.MarkSeen(ctx, "C123"); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkSeen(ctx, "C123"); err != nil {
		t.Fatalf("duplicate MarkSeen errored: %v", err)
	}
	seen, err = st.HasSeen(ctx, "C123")
	if err != nil || !seen {
		t.Fatalf("after MarkSeen: seen=%v err=%v", seen, err)
	}
}

// TestMigrateOldSchema verifies database files from before the customization
// columns existed are upgraded in place.
func TestMigrateOldSchema(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`CREATE TABLE tracked_accounts (
		username TEXT NOT NULL, chat_id INTEGER NOT NULL,
		PRIMARY KEY (username, chat_id));
		INSERT INTO tracked_accounts(username, chat_id) VALUES('alice', 100)`)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	st, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open over old schema: %v", err)
	}
	defer st.Close()

	m, err := st.GetMapping(context.Background(), "alice", 100)
	if err != nil {
		t.Fatalf("GetMapping after migration: %v", err)
	}
	if m == nil {
		t.Fatal("pre-existing row lost during migration")
	}
	if m.EmbedColor != nil || m.MessageContent != nil {
		t.Fatal("new columns should default to unset")
	}
}
