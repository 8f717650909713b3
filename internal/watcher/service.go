// Package watcher drives the polling/dedup/dispatch loop: on a fixed
// interval it fetches candidate posts per tracked account, filters out
// already-seen and stale ones, and relays the rest to every destination
// tracking the account.
package watcher

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"instanotify/internal/instagram"
	"instanotify/internal/notify"
	"instanotify/internal/storage"
	logx "instanotify/pkg/logx"
)

// Fetcher returns candidate posts for an account. Empty means "nothing to
// process" — fetch failures are not surfaced here.
type Fetcher interface {
	FetchRecent(ctx context.Context, username string, limit int) []instagram.Post
}

// Store is the subset of the settings store the loop needs.
type Store interface {
	ListTrackedAccounts(ctx context.Context) ([]string, error)
	ListChatsForAccount(ctx context.Context, username string) ([]int64, error)
	GetMapping(ctx context.Context, username string, chatID int64) (*storage.Mapping, error)
	HasSeen(ctx context.Context, postID string) (bool, error)
	MarkSeen(ctx context.Context, postID string) error
}

// Sink delivers rendered messages to a destination chat.
type Sink interface {
	// ResolveChat reports whether the destination is currently reachable.
	ResolveChat(ctx context.Context, chatID int64) bool
	Send(ctx context.Context, chatID int64, m notify.Message) error
}

type Config struct {
	Interval   time.Duration
	FetchLimit int
	// MaxPostAge is the silent-save threshold: older posts are marked seen
	// without being announced, so a first run or downtime backlog does not
	// flood destinations.
	MaxPostAge time.Duration
	// DelayMin/DelayMax bound the randomized pause after each announced
	// post, breaking up outbound burst patterns.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Service is the single long-lived cyclic task. One writer: no other
// goroutine touches the seen set.
type Service struct {
	cfg    Config
	log    logx.Logger
	store  Store
	fetch  Fetcher
	render *notify.Formatter
	sink   Sink

	mu      sync.Mutex
	c       *cron.Cron
	running bool

	// inFlight skip-guards cron fires while a long cycle is still running.
	inFlight atomic.Bool

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(cfg Config, store Store, fetch Fetcher, render *notify.Formatter, sink Sink, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxPostAge <= 0 {
		cfg.MaxPostAge = 24 * time.Hour
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		store:  store,
		fetch:  fetch,
		render: render,
		sink:   sink,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Start launches the loop. The first cycle waits for ready (the host
// connection signal); after that the schedule is a fixed wall-clock
// interval. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context, ready <-chan struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() { s.runCycle(ctx) }); err != nil {
		s.running = false
		s.mu.Unlock()
		return err
	}
	s.c = c
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-ready:
		}
		// First cycle fires immediately; cron covers the rest.
		s.runCycle(ctx)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// Stop halts the schedule. An in-flight cycle is not cancelled beyond ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.running = false
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Service) runCycle(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("previous cycle still running; skipping")
		return
	}
	defer s.inFlight.Store(false)

	s.log.Info("starting check cycle")
	accounts, err := s.store.ListTrackedAccounts(ctx)
	if err != nil {
		s.log.Error("could not list tracked accounts", logx.Err(err))
		return
	}
	if len(accounts) == 0 {
		return
	}

	// Accounts are processed sequentially to respect remote rate limits.
	for _, username := range accounts {
		if ctx.Err() != nil {
			return
		}
		if err := s.processAccount(ctx, username); err != nil {
			s.log.Error("check failed", logx.String("username", username), logx.Err(err))
			s.sleep(ctx, 5*time.Second)
		}
	}
	s.log.Info("cycle finished")
}

func (s *Service) processAccount(ctx context.Context, username string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	posts := s.fetch.FetchRecent(ctx, username, s.cfg.FetchLimit)
	if len(posts) == 0 {
		return nil
	}

	// Newest first; stable so equal timestamps keep fetch order.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].TakenAt.After(posts[j].TakenAt)
	})

	for i := range posts {
		post := &posts[i]

		seen, err := s.store.HasSeen(ctx, post.ID)
		if err != nil {
			return err
		}
		if seen {
			continue
		}

		age := s.now().UTC().Sub(post.TakenAt.UTC())
		if age > s.cfg.MaxPostAge {
			// Silent save: backlog posts are swallowed, not announced.
			s.log.Info("skipping old post (silent save)",
				logx.String("post", post.ID),
				logx.Duration("age", age))
			if err := s.store.MarkSeen(ctx, post.ID); err != nil {
				return err
			}
			continue
		}

		s.log.Info("new post found",
			logx.String("username", username),
			logx.String("post", post.ID))
		s.dispatch(ctx, username, post)

		// Marked seen exactly once per post, after all destinations were
		// attempted. Dispatch failures do not block this: delivery is
		// at-most-once, a permanently broken destination must not cause
		// repeated announcements elsewhere.
		if err := s.store.MarkSeen(ctx, post.ID); err != nil {
			return err
		}

		s.sleep(ctx, s.postDelay())
	}
	return nil
}

// dispatch sends post to every destination tracking username. Destinations
// are sequential; a failed or unresolvable destination is logged and
// skipped, never retried.
func (s *Service) dispatch(ctx context.Context, username string, post *instagram.Post) {
	chats, err := s.store.ListChatsForAccount(ctx, username)
	if err != nil {
		s.log.Error("could not list destinations", logx.String("username", username), logx.Err(err))
		return
	}
	for _, chatID := range chats {
		if !s.sink.ResolveChat(ctx, chatID) {
			s.log.Warn("destination not resolvable; skipping",
				logx.Int64("chat", chatID))
			continue
		}
		mapping, err := s.store.GetMapping(ctx, username, chatID)
		if err != nil {
			s.log.Error("could not load mapping",
				logx.String("username", username), logx.Int64("chat", chatID), logx.Err(err))
			continue
		}
		for _, msg := range s.render.Render(ctx, post, mapping) {
			if err := s.sink.Send(ctx, chatID, msg); err != nil {
				s.log.Error("dispatch failed",
					logx.Int64("chat", chatID),
					logx.String("post", post.ID),
					logx.Err(err))
			}
		}
	}
}

// RunAccount performs a one-off fetch+announce of username's latest post
// into a single chat, bypassing the seen set. Used by the manual fetch
// command.
func (s *Service) RunAccount(ctx context.Context, username string, chatID int64) error {
	posts := s.fetch.FetchRecent(ctx, username, 1)
	if len(posts) == 0 {
		return fmt.Errorf("no posts retrievable for %q", username)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].TakenAt.After(posts[j].TakenAt)
	})
	post := &posts[0]

	mapping, err := s.store.GetMapping(ctx, username, chatID)
	if err != nil {
		return err
	}
	for _, msg := range s.render.Render(ctx, post, mapping) {
		if err := s.sink.Send(ctx, chatID, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) postDelay() time.Duration {
	min, max := s.cfg.DelayMin, s.cfg.DelayMax
	if min <= 0 {
		min = 5 * time.Second
	}
	if max < min {
		max = min
	}
	if max == min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
