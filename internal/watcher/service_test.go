package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"instanotify/internal/instagram"
	"instanotify/internal/notify"
	"instanotify/internal/storage"
	logx "instanotify/pkg/logx"
)

type fakeFetcher struct {
	posts map[string][]instagram.Post
	calls []string
}

func (f *fakeFetcher) FetchRecent(_ context.Context, username string, _ int) []instagram.Post {
	f.calls = append(f.calls, username)
	return f.posts[username]
}

type fakeStore struct {
	accounts []string
	chats    map[string][]int64
	mappings map[string]*storage.Mapping
	seen     map[string]bool
	marked   []string

	hasSeenErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    map[string][]int64{},
		mappings: map[string]*storage.Mapping{},
		seen:     map[string]bool{},
	}
}

func (s *fakeStore) ListTrackedAccounts(context.Context) ([]string, error) {
	return s.accounts, nil
}

func (s *fakeStore) ListChatsForAccount(_ context.Context, username string) ([]int64, error) {
	return s.chats[username], nil
}

func (s *fakeStore) GetMapping(_ context.Context, username string, chatID int64) (*storage.Mapping, error) {
	return s.mappings[username], nil
}

func (s *fakeStore) HasSeen(_ context.Context, postID string) (bool, error) {
	if s.hasSeenErr != nil {
		return false, s.hasSeenErr
	}
	return s.seen[postID], nil
}

func (s *fakeStore) MarkSeen(_ context.Context, postID string) error {
	s.seen[postID] = true
	s.marked = append(s.marked, postID)
	return nil
}

type sent struct {
	chatID int64
	msg    notify.Message
}

type fakeSink struct {
	sent        []sent
	failChats   map[int64]bool
	unresolved  map[int64]bool
	resolveSeen []int64
}

func (s *fakeSink) ResolveChat(_ context.Context, chatID int64) bool {
	s.resolveSeen = append(s.resolveSeen, chatID)
	return !s.unresolved[chatID]
}

func (s *fakeSink) Send(_ context.Context, chatID int64, m notify.Message) error {
	if s.failChats[chatID] {
		return errors.New("send failed")
	}
	s.sent = append(s.sent, sent{chatID: chatID, msg: m})
	return nil
}

func newTestService(store *fakeStore, fetch *fakeFetcher, sink *fakeSink) *Service {
	s := New(Config{
		Interval:   time.Minute,
		FetchLimit: 10,
		MaxPostAge: 24 * time.Hour,
	}, store, fetch, notify.NewFormatter(nil, logx.Nop()), sink, logx.Nop())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	s.sleep = func(context.Context, time.Duration) {}
	return s
}

func post(id string, takenAt time.Time) instagram.Post {
	return instagram.Post{
		ID:       id,
		Username: "alice",
		Caption:  "cap " + id,
		Kind:     instagram.KindImage,
		TakenAt:  takenAt,
		ThumbURL: "https://cdn.example/" + id + ".jpg",
	}
}

func TestCycleAnnouncesNewPosts(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice"}
	store.chats["alice"] = []int64{100}
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("P1", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{}

	newTestService(store, fetch, sink).runCycle(context.Background())

	if len(sink.sent) != 1 || sink.sent[0].chatID != 100 {
		t.Fatalf("sent = %+v", sink.sent)
	}
	if len(store.marked) != 1 || store.marked[0] != "P1" {
		t.Fatalf("marked = %v", store.marked)
	}
}

func TestCycleSkipsSeenPosts(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice"}
	store.chats["alice"] = []int64{100}
	store.seen["P1"] = true
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("P1", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{}

	newTestService(store, fetch, sink).runCycle(context.Background())

	if len(sink.sent) != 0 {
		t.Fatalf("seen post announced: %+v", sink.sent)
	}
	if len(store.marked) != 0 {
		t.Fatalf("seen post re-marked: %v", store.marked)
	}
}

func TestCycleSilentSaveOldPosts(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice"}
	store.chats["alice"] = []int64{100}
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("OLD", now.Add(-48 * time.Hour))},
	}}
	sink := &fakeSink{}

	newTestService(store, fetch, sink).runCycle(context.Background())

	if len(sink.sent) != 0 {
		t.Fatalf("old post announced: %+v", sink.sent)
	}
	if len(store.marked) != 1 || store.marked[0] != "OLD" {
		t.Fatalf("old post not silently saved: %v", store.marked)
	}
}

func TestCycleNewestFirst(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice"}
	store.chats["alice"] = []int64{100}
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {
			post("OLDER", now.Add(-3*time.Hour)),
			post("NEWEST", now.Add(-time.Hour)),
			post("MIDDLE", now.Add(-2*time.Hour)),
		},
	}}
	sink := &fakeSink{}

	newTestService(store, fetch, sink).runCycle(context.Background())

	want := []string{"NEWEST", "MIDDLE", "OLDER"}
	if len(store.marked) != 3 {
		t.Fatalf("marked = %v", store.marked)
	}
	for i, id := range want {
		if store.marked[i] != id {
			t.Fatalf("processing order = %v, want %v", store.marked, want)
		}
	}
}

// A broken destination must not suppress delivery elsewhere or block the
// seen-mark: delivery is at-most-once.
func TestCycleMarksSeenDespiteSendFailure(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice"}
	store.chats["alice"] = []int64{100, 200}
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("P1", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{failChats: map[int64]bool{100: true}}

	newTestService(store, fetch, sink).runCycle(context.Background())

	if len(sink.sent) != 1 || sink.sent[0].chatID != 200 {
		t.Fatalf("sent = %+v", sink.sent)
	}
	if len(store.marked) != 1 || store.marked[0] != "P1" {
		t.Fatalf("marked = %v", store.marked)
	}
}

func TestCycleSkipsUnresolvableChat(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice"}
	store.chats["alice"] = []int64{100, 200}
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("P1", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{unresolved: map[int64]bool{100: true}}

	newTestService(store, fetch, sink).runCycle(context.Background())

	if len(sink.sent) != 1 || sink.sent[0].chatID != 200 {
		t.Fatalf("sent = %+v", sink.sent)
	}
}

// One failing account must not stop the rest of the cycle.
func TestCycleAccountErrorIsolation(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.accounts = []string{"alice", "bob"}
	store.chats["alice"] = []int64{100}
	store.chats["bob"] = []int64{100}
	store.hasSeenErr = errors.New("db closed")
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("P1", now.Add(-time.Hour))},
		"bob":   {post("P2", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{}

	newTestService(store, fetch, sink).runCycle(context.Background())

	if len(fetch.calls) != 2 {
		t.Fatalf("fetch calls = %v, want both accounts attempted", fetch.calls)
	}
}

func TestInFlightGuard(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.accounts = []string{"alice"}
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{}}
	s := newTestService(store, fetch, &fakeSink{})

	s.inFlight.Store(true)
	s.runCycle(context.Background())
	if len(fetch.calls) != 0 {
		t.Fatal("cycle ran despite in-flight guard")
	}
}

func TestRunAccountBypassesSeen(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.seen["P1"] = true
	fetch := &fakeFetcher{posts: map[string][]instagram.Post{
		"alice": {post("P1", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{}
	s := newTestService(store, fetch, sink)

	if err := s.RunAccount(context.Background(), "alice", 100); err != nil {
		t.Fatal(err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("sent = %+v", sink.sent)
	}
	if len(store.marked) != 0 {
		t.Fatal("manual fetch must not touch the seen set")
	}
}

func TestRunAccountNoPosts(t *testing.T) {
	t.Parallel()
	s := newTestService(newFakeStore(), &fakeFetcher{}, &fakeSink{})
	if err := s.RunAccount(context.Background(), "ghost", 100); err == nil {
		t.Fatal("expected an error for an account with no retrievable posts")
	}
}

func TestPostDelayBounds(t *testing.T) {
	t.Parallel()
	s := newTestService(newFakeStore(), &fakeFetcher{}, &fakeSink{})
	s.cfg.DelayMin = 5 * time.Second
	s.cfg.DelayMax = 10 * time.Second
	for i := 0; i < 100; i++ {
		d := s.postDelay()
		if d < 5*time.Second || d >= 10*time.Second {
			t.Fatalf("delay %v out of [5s,10s)", d)
		}
	}

	s.cfg.DelayMax = s.cfg.DelayMin
	if d := s.postDelay(); d != 5*time.Second {
		t.Fatalf("degenerate range delay = %v", d)
	}
}
