package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"instanotify/internal/storage"
	logx "instanotify/pkg/logx"
)

// The customize flow is two-step: an inline keyboard picks a field, then the
// next text message from the same user in the same chat becomes the value.
// "-" clears a field.

var btnEditField = tele.Btn{Unique: "cust_field"}

var fieldLabels = map[storage.Field]string{
	storage.FieldMessageContent:     "Message content",
	storage.FieldEmbedTitle:         "Embed title",
	storage.FieldEmbedDescription:   "Embed description",
	storage.FieldEmbedColor:         "Embed color (hex)",
	storage.FieldEmbedFooterText:    "Footer text",
	storage.FieldEmbedAuthorText:    "Author text",
	storage.FieldEmbedAuthorIconURL: "Author icon URL",
	storage.FieldEmbedFooterIconURL: "Footer icon URL",
}

type pendingEdit struct {
	username string
	field    storage.Field
	expires  time.Time
}

// editState tracks one pending field edit per (chat, user).
type editState struct {
	mu sync.Mutex
	m  map[string]pendingEdit
}

func newEditState() *editState {
	return &editState{m: map[string]pendingEdit{}}
}

func editKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (s *editState) put(chatID, userID int64, p pendingEdit) {
	s.mu.Lock()
	p.expires = time.Now().Add(5 * time.Minute)
	s.m[editKey(chatID, userID)] = p
	s.mu.Unlock()
}

func (s *editState) take(chatID, userID int64) (pendingEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := editKey(chatID, userID)
	p, ok := s.m[k]
	if !ok {
		return pendingEdit{}, false
	}
	delete(s.m, k)
	if time.Now().After(p.expires) {
		return pendingEdit{}, false
	}
	return p, true
}

func (c *Commands) customize(tc tele.Context) error {
	args := tc.Args()
	if len(args) < 1 {
		return tc.Reply("Usage: /customize <username>")
	}
	username := cleanUsername(args[0])

	ctx, cancel := opCtx()
	defer cancel()
	m, err := c.store.GetMapping(ctx, username, tc.Chat().ID)
	if err != nil {
		c.log.Error("customize lookup failed", logx.Err(err))
		return tc.Reply("❌ Could not read the mapping.")
	}
	if m == nil {
		return tc.Reply(fmt.Sprintf("❌ @%s is not tracked in this chat. Use /add first.", username))
	}

	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, f := range storage.Fields() {
		btn := markup.Data(fieldLabels[f], btnEditField.Unique, username, string(f))
		rows = append(rows, markup.Row(btn))
	}
	markup.Inline(rows...)
	return tc.Send(fmt.Sprintf("Edit notification settings for @%s — pick a field:", username), markup)
}

func (c *Commands) editFieldChosen(tc tele.Context) error {
	parts := strings.Split(tc.Callback().Data, "|")
	if len(parts) != 2 {
		return tc.Respond(&tele.CallbackResponse{Text: "Bad selection."})
	}
	username, field := parts[0], storage.Field(parts[1])
	if !field.Valid() {
		return tc.Respond(&tele.CallbackResponse{Text: "Unknown field."})
	}

	c.edits.put(tc.Chat().ID, tc.Sender().ID, pendingEdit{username: username, field: field})
	if err := tc.Respond(&tele.CallbackResponse{}); err != nil {
		return err
	}
	return tc.Send(fmt.Sprintf(
		"Send the new value for %s of @%s.\nSend - to clear it. Placeholders: /placeholders",
		fieldLabels[field], username))
}

func (c *Commands) onText(tc tele.Context) error {
	if tc.Chat() == nil || tc.Sender() == nil {
		return nil
	}
	p, ok := c.edits.take(tc.Chat().ID, tc.Sender().ID)
	if !ok {
		return nil
	}

	var value *string
	if v := strings.TrimSpace(tc.Text()); v != "" && v != "-" {
		value = &v
	}

	ctx, cancel := opCtx()
	defer cancel()
	if err := c.store.UpdateField(ctx, p.username, tc.Chat().ID, p.field, value); err != nil {
		c.log.Error("customize update failed", logx.Err(err))
		return tc.Reply("❌ Could not save the setting.")
	}
	if value == nil {
		return tc.Reply(fmt.Sprintf("✅ Cleared %s for @%s.", fieldLabels[p.field], p.username))
	}
	return tc.Reply(fmt.Sprintf("✅ Updated %s for @%s.", fieldLabels[p.field], p.username))
}
