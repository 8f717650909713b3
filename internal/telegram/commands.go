package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"

	"instanotify/internal/storage"
	"instanotify/internal/watcher"
	logx "instanotify/pkg/logx"
)

// Commands is the interactive surface: thin glue mutating the settings
// store, plus a manual one-shot fetch.
type Commands struct {
	store storage.Store
	watch *watcher.Service
	log   logx.Logger
	bot   *tele.Bot
	edits *editState
}

func RegisterCommands(a *Adapter, store storage.Store, watch *watcher.Service, log logx.Logger) *Commands {
	c := &Commands{
		store: store,
		watch: watch,
		log:   log,
		bot:   a.Bot(),
		edits: newEditState(),
	}

	b := c.bot
	if owners := a.cfg.OwnerUserIDs; len(owners) > 0 {
		b.Use(middleware.Whitelist(owners...))
	}

	b.Handle("/add", c.add)
	b.Handle("/remove", c.remove)
	b.Handle("/list", c.list)
	b.Handle("/fetch", c.fetch)
	b.Handle("/customize", c.customize)
	b.Handle("/placeholders", c.placeholders)
	b.Handle(&btnEditField, c.editFieldChosen)
	b.Handle(tele.OnText, c.onText)

	_ = b.SetCommands([]tele.Command{
		{Text: "add", Description: "Track an Instagram account in this chat"},
		{Text: "remove", Description: "Stop tracking an account"},
		{Text: "list", Description: "List tracked accounts"},
		{Text: "fetch", Description: "Force-fetch the latest post"},
		{Text: "customize", Description: "Customize notifications per account"},
		{Text: "placeholders", Description: "Show template variables"},
	})
	return c
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func cleanUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func (c *Commands) add(tc tele.Context) error {
	args := tc.Args()
	if len(args) < 1 {
		return tc.Reply("Usage: /add <username> [mention]")
	}
	username := cleanUsername(args[0])
	var mention *string
	if len(args) > 1 {
		m := strings.Join(args[1:], " ")
		mention = &m
	}

	ctx, cancel := opCtx()
	defer cancel()
	created, err := c.store.UpsertMapping(ctx, username, tc.Chat().ID, mention)
	if err != nil {
		c.log.Error("add failed", logx.Err(err))
		return tc.Reply("❌ Could not save the mapping.")
	}
	if !created {
		return tc.Reply(fmt.Sprintf("⚠️ Account @%s is already being tracked in this chat.", username))
	}
	msg := fmt.Sprintf("✅ Tracking @%s in this chat.", username)
	if mention != nil {
		msg += " Mentioning: " + *mention
	}
	return tc.Reply(msg)
}

func (c *Commands) remove(tc tele.Context) error {
	args := tc.Args()
	if len(args) < 1 {
		return tc.Reply("Usage: /remove <username>")
	}
	username := cleanUsername(args[0])

	ctx, cancel := opCtx()
	defer cancel()
	removed, err := c.store.RemoveMapping(ctx, username, tc.Chat().ID)
	if err != nil {
		c.log.Error("remove failed", logx.Err(err))
		return tc.Reply("❌ Could not remove the mapping.")
	}
	if !removed {
		return tc.Reply(fmt.Sprintf("❌ @%s is not tracked in this chat.", username))
	}
	return tc.Reply(fmt.Sprintf("🗑 Stopped tracking @%s in this chat.", username))
}

func (c *Commands) list(tc tele.Context) error {
	ctx, cancel := opCtx()
	defer cancel()
	accounts, err := c.store.ListAccountsForChat(ctx, tc.Chat().ID)
	if err != nil {
		c.log.Error("list failed", logx.Err(err))
		return tc.Reply("❌ Could not read tracked accounts.")
	}
	if len(accounts) == 0 {
		return tc.Reply("ℹ️ No accounts tracked in this chat.")
	}

	var b strings.Builder
	b.WriteString("<b>📸 Tracked accounts</b>\n")
	for _, acc := range accounts {
		b.WriteString("• @")
		b.WriteString(html.EscapeString(acc))
		if m, err := c.store.GetMapping(ctx, acc, tc.Chat().ID); err == nil && m != nil && m.Mention != nil {
			b.WriteString(" (")
			b.WriteString(html.EscapeString(*m.Mention))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return tc.Send(b.String(), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (c *Commands) fetch(tc tele.Context) error {
	args := tc.Args()
	if len(args) < 1 {
		return tc.Reply("Usage: /fetch <username>")
	}
	username := cleanUsername(args[0])
	chatID := tc.Chat().ID
	if err := tc.Reply(fmt.Sprintf("⏳ Fetching the latest post for @%s...", username)); err != nil {
		return err
	}

	// The fetch does slow, throttled network calls; keep the update loop
	// responsive.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := c.watch.RunAccount(ctx, username, chatID); err != nil {
			c.log.Error("manual fetch failed", logx.String("username", username), logx.Err(err))
			_, _ = c.bot.Send(&tele.Chat{ID: chatID},
				fmt.Sprintf("❌ Could not retrieve posts for @%s. Check logs.", username))
		}
	}()
	return nil
}

func (c *Commands) placeholders(tc tele.Context) error {
	text := "<b>Available placeholders</b>\n" +
		"<code>{user}</code> — username\n" +
		"<code>{user_fullname}</code> — display name\n" +
		"<code>{user_avatar}</code> — avatar URL\n" +
		"<code>{url}</code> — post link\n" +
		"<code>{caption}</code> — post caption (translated)\n" +
		"<code>{likes}</code> — like count\n" +
		"<code>{comments}</code> — comment count\n" +
		"<code>{date}</code> — date (KST)\n" +
		"<code>{time}</code> — time (KST)"
	return tc.Send(text, &tele.SendOptions{ParseMode: tele.ModeHTML})
}
