// Package telegram binds the bot to Telegram: outbound notification
// delivery and the interactive command surface.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"instanotify/internal/notify"
	logx "instanotify/pkg/logx"
)

type Config struct {
	Token        string
	PollTimeout  time.Duration
	OwnerUserIDs []int64
	// SendRatePerSec caps outbound API calls across all chats.
	SendRatePerSec int
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	limiter *rate.Limiter

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// NewBot performs getMe, so a bad token fails startup here.
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 20
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start begins long-polling for updates. Handlers must be registered before
// calling it.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(1)
	a.runMu.Unlock()

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started", logx.String("bot", a.bot.Me.Username))
		a.bot.Start() // blocks until Stop() is called
	}()
}

// Stop is best-effort graceful: it never blocks shutdown for long on the
// Telegram long-poll.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

// ResolveChat reports whether the bot can currently address the chat.
func (a *Adapter) ResolveChat(ctx context.Context, chatID int64) bool {
	if err := a.limiter.Wait(ctx); err != nil {
		return false
	}
	_, err := a.bot.ChatByID(chatID)
	return err == nil
}

// Send delivers one rendered notification message to a chat.
func (a *Adapter) Send(ctx context.Context, chatID int64, m notify.Message) error {
	chat := &tele.Chat{ID: chatID}

	// Content rides in its own text message; embeds follow as photos.
	if m.Content != "" {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := a.bot.Send(chat, contentToHTML(m.Content), &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: !m.Preview,
		})
		if err != nil {
			return err
		}
	}

	switch {
	case len(m.Embeds) == 0:
		return nil
	case len(m.Embeds) == 1:
		return a.sendEmbed(ctx, chat, m.Embeds[0])
	default:
		return a.sendAlbum(ctx, chat, m.Embeds)
	}
}

// SendLogText implements logx.Sender.
func (a *Adapter) SendLogText(chatID int64, text string) error {
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	return err
}

func (a *Adapter) sendEmbed(ctx context.Context, chat *tele.Chat, e notify.Embed) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	caption := embedCaption(e)
	if e.ImageURL == "" {
		if caption == "" {
			return nil
		}
		_, err := a.bot.Send(chat, caption, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		})
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(e.ImageURL), Caption: caption}
	_, err := a.bot.Send(chat, photo, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}

// sendAlbum groups embeds into one media group; Telegram renders it as a
// gallery, which is exactly what carousel supplements want. The first item
// carries the composed caption.
func (a *Adapter) sendAlbum(ctx context.Context, chat *tele.Chat, embeds []notify.Embed) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	album := make(tele.Album, 0, len(embeds))
	for i, e := range embeds {
		if e.ImageURL == "" {
			continue
		}
		p := &tele.Photo{File: tele.FromURL(e.ImageURL)}
		if i == 0 {
			p.Caption = embedCaption(e)
		}
		album = append(album, p)
	}
	if len(album) == 0 {
		return a.sendEmbed(ctx, chat, embeds[0])
	}
	_, err := a.bot.SendAlbum(chat, album, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}
