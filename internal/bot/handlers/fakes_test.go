package handlers

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/logger"
	"github.com/edgard/pantrybot/internal/metrics"
	"github.com/edgard/pantrybot/internal/session"
)

// memStore is an in-memory database.Store.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	items       map[int64]database.Item
	deleteCalls int
	insertCalls int
	listErr     error
	insertErr   error
	failAfter   int // insert fails once this many rows were inserted, when > 0
}

func newMemStore() *memStore {
	return &memStore{items: make(map[int64]database.Item)}
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) InsertItem(_ context.Context, ownerID int64, name, expiry string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.insertErr != nil && (s.failAfter == 0 || len(s.items) >= s.failAfter) {
		return 0, s.insertErr
	}
	s.nextID++
	s.items[s.nextID] = database.Item{ID: s.nextID, OwnerID: ownerID, Name: name, Expiry: expiry}
	return s.nextID, nil
}

func (s *memStore) ListItemsByOwner(_ context.Context, ownerID int64) ([]database.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []database.Item
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DeleteItem(_ context.Context, ownerID, id int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	it, ok := s.items[id]
	if !ok || it.OwnerID != ownerID {
		return "", false, nil
	}
	delete(s.items, id)
	return it.Name, true, nil
}

func (s *memStore) DistinctOwners(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, it := range s.items {
		if !seen[it.OwnerID] {
			seen[it.OwnerID] = true
			out = append(out, it.OwnerID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *memStore) RunSQLMaintenance(context.Context) error { return nil }

func (s *memStore) snapshot() []database.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type sent struct {
	ChatID  int64
	Text    string
	Choices []chat.Choice
}

type edit struct {
	ChatID    int64
	MessageID int
	Text      string
}

// recorder is a chat.Messenger that remembers everything it was asked to deliver.
type recorder struct {
	mu      sync.Mutex
	sent    []sent
	edits   []edit
	sendErr error
}

func (r *recorder) SendText(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, sent{ChatID: chatID, Text: text})
	return nil
}

func (r *recorder) SendTextWithChoices(_ context.Context, chatID int64, text string, choices []chat.Choice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, sent{ChatID: chatID, Text: text, Choices: choices})
	return nil
}

func (r *recorder) EditMessage(_ context.Context, chatID int64, messageID int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, edit{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.Text)
	}
	return out
}

func (r *recorder) last() sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return sent{}
	}
	return r.sent[len(r.sent)-1]
}

type harness struct {
	deps  HandlerDeps
	conv  *Conversation
	store *memStore
	out   *recorder
}

// today is 2025-07-17, noon UTC.
var testNow = time.Date(2025, 7, 17, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	out := &recorder{}
	cfg := &config.Config{
		Messages:  config.DefaultMessages,
		Scheduler: config.SchedulerConfig{Timezone: "UTC"},
	}
	log := logger.Discard()
	sessions := session.NewManager(log)

	deps := HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Store:        store,
		Sessions:     sessions,
		Clock:        clockwork.NewFakeClockAt(testNow),
		Metrics:      metrics.New(sessions.Len),
		NewMessenger: func(*tgbot.Bot) chat.Messenger { return out },
	}
	return &harness{deps: deps, conv: NewConversation(deps), store: store, out: out}
}

func (h *harness) send(kind chat.Kind, owner int64, text string) {
	h.conv.Handle(context.Background(), h.out, chat.Event{Kind: kind, OwnerID: owner, ChatID: owner, Text: text})
}

func (h *harness) pick(owner int64, token string, messageID int) {
	h.conv.Handle(context.Background(), h.out, chat.Event{
		Kind: chat.Selection, OwnerID: owner, ChatID: owner, MessageID: messageID, Token: token,
	})
}

func (h *harness) state(owner int64) session.State {
	return h.deps.Sessions.Get(owner).State()
}
