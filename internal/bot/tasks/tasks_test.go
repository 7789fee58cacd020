package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/logger"
	"github.com/edgard/pantrybot/internal/metrics"
)

type stubStore struct {
	database.Store // unused methods panic

	mu          sync.Mutex
	items       map[int64][]database.Item
	ownersErr   error
	listErr     map[int64]error
	maintErr    error
	maintCalled bool
}

func (s *stubStore) DistinctOwners(context.Context) ([]int64, error) {
	if s.ownersErr != nil {
		return nil, s.ownersErr
	}
	out := make([]int64, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *stubStore) ListItemsByOwner(_ context.Context, owner int64) ([]database.Item, error) {
	if err := s.listErr[owner]; err != nil {
		return nil, err
	}
	return s.items[owner], nil
}

func (s *stubStore) RunSQLMaintenance(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintCalled = true
	return s.maintErr
}

type outbox struct {
	mu       sync.Mutex
	byID     map[int64]string
	fails    map[int64]error
	attempts int
	// down fails that many sends, whoever the recipient, before the API
	// recovers.
	down int
}

func (o *outbox) SendText(_ context.Context, chatID int64, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
	if o.down > 0 {
		o.down--
		return errors.New("error response from telegram for method sendMessage, 502 Bad Gateway")
	}
	if err := o.fails[chatID]; err != nil {
		return err
	}
	if o.byID == nil {
		o.byID = map[int64]string{}
	}
	o.byID[chatID] = text
	return nil
}

func (o *outbox) SendTextWithChoices(ctx context.Context, chatID int64, text string, _ []chat.Choice) error {
	return o.SendText(ctx, chatID, text)
}

func (o *outbox) EditMessage(context.Context, int64, int, string) error { return nil }

func item(owner int64, name, raw string) database.Item {
	return database.Item{OwnerID: owner, Name: name, Expiry: raw}
}

func newDeps(store *stubStore, out *outbox) TaskDeps {
	return TaskDeps{
		Logger:    logger.Discard(),
		Store:     store,
		Messenger: out,
		Config: &config.Config{
			Messages:  config.DefaultMessages,
			Scheduler: config.SchedulerConfig{Timezone: "UTC"},
			Notifier:  config.NotifierConfig{Concurrency: 2, SendTimeout: time.Second},
		},
		Clock:   clockwork.NewFakeClockAt(time.Date(2025, 7, 17, 14, 0, 0, 0, time.UTC)),
		Metrics: metrics.New(nil),
	}
}

func TestExpiryDigestScenario(t *testing.T) {
	t.Parallel()

	store := &stubStore{items: map[int64][]database.Item{
		1: {item(1, "Milk", "18.07"), item(1, "Bread", "01.01")},
	}}
	out := &outbox{}
	deps := newDeps(store, out)

	require.NoError(t, RegisterAllTasks(deps)[config.TaskExpiryDigest](context.Background()))

	msg, ok := out.byID[1]
	require.True(t, ok)
	assert.Contains(t, msg, "Milk")
	assert.NotContains(t, msg, "Bread")
	assert.Equal(t, config.DefaultMessages.DigestHeader+"\n\nMilk — 18.07", msg)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.DigestsSent))
}

func TestExpiryDigestSkipsOwnersWithoutWarnings(t *testing.T) {
	t.Parallel()

	store := &stubStore{items: map[int64][]database.Item{
		1: {item(1, "Cheese", "30.07"), item(1, "Jam", "soon")},
		2: {item(2, "Bread", "16.07")},
		3: {item(3, "Yogurt", "20.07"), item(3, "Kefir", "17.07")},
	}}
	out := &outbox{}

	require.NoError(t, newExpiryDigestTask(newDeps(store, out))(context.Background()))

	assert.Equal(t, map[int64]string{
		3: config.DefaultMessages.DigestHeader + "\n\nKefir — 17.07\nYogurt — 20.07",
	}, out.byID)
}

func TestExpiryDigestIsolatesOwnerFailures(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		items: map[int64][]database.Item{
			1: {item(1, "Milk", "18.07")},
			2: {item(2, "Eggs", "19.07")},
			3: {item(3, "Tea", "20.07")},
			4: {item(4, "Cream", "17.07")},
		},
		listErr: map[int64]error{4: &database.StoreError{Op: "list", Err: errors.New("busy")}},
	}
	out := &outbox{fails: map[int64]error{2: errors.New("Forbidden: bot was blocked by the user")}}
	deps := newDeps(store, out)

	require.NoError(t, newExpiryDigestTask(deps)(context.Background()))

	assert.Contains(t, out.byID, int64(1))
	assert.Contains(t, out.byID, int64(3))
	assert.NotContains(t, out.byID, int64(2))
	assert.NotContains(t, out.byID, int64(4))
	assert.Equal(t, 2.0, testutil.ToFloat64(deps.Metrics.DigestsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.DigestFailures.WithLabelValues("send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.DigestFailures.WithLabelValues("list")))
}

func TestExpiryDigestFloodControlSparesOtherOwners(t *testing.T) {
	t.Parallel()

	store := &stubStore{items: map[int64][]database.Item{}}
	out := &outbox{fails: map[int64]error{}}
	for owner := int64(1); owner <= 6; owner++ {
		store.items[owner] = []database.Item{item(owner, "Milk", "18.07")}
	}
	for owner := int64(1); owner <= 5; owner++ {
		out.fails[owner] = fmt.Errorf("send message to chat %d: %w", owner,
			&tgbot.TooManyRequestsError{Message: "too many requests, Too Many Requests: retry after 0"})
	}

	for _, threshold := range []int{0, 2} {
		out.byID, out.attempts = nil, 0
		deps := newDeps(store, out)
		deps.Config.Notifier.Concurrency = 1
		deps.Config.Notifier.BreakerThreshold = threshold

		require.NoError(t, newExpiryDigestTask(deps)(context.Background()))

		assert.Equal(t, map[int64]string{6: config.DefaultMessages.DigestHeader + "\n\nMilk — 18.07"}, out.byID,
			"threshold %d", threshold)
		assert.Equal(t, 5*4+1, out.attempts, "each flooded owner is retried three times")
		assert.Equal(t, 5.0, testutil.ToFloat64(deps.Metrics.DigestFailures.WithLabelValues("send")))
		assert.Equal(t, 0.0, testutil.ToFloat64(deps.Metrics.DigestFailures.WithLabelValues("breaker")))
	}
}

func TestExpiryDigestBreakerWaitsOutOutage(t *testing.T) {
	t.Parallel()

	store := &stubStore{items: map[int64][]database.Item{}}
	for owner := int64(1); owner <= 5; owner++ {
		store.items[owner] = []database.Item{item(owner, "Milk", "18.07")}
	}
	out := &outbox{down: 2}
	deps := newDeps(store, out)
	deps.Config.Notifier.Concurrency = 1
	deps.Config.Notifier.BreakerThreshold = 2
	deps.Config.Notifier.BreakerCooldown = 20 * time.Millisecond

	require.NoError(t, newExpiryDigestTask(deps)(context.Background()))

	assert.Len(t, out.byID, 3, "owners after the outage still get their digest")
	for owner := int64(3); owner <= 5; owner++ {
		assert.Contains(t, out.byID, owner)
	}
	assert.Equal(t, 5, out.attempts, "no send is attempted while the circuit is open")
	assert.Equal(t, 2.0, testutil.ToFloat64(deps.Metrics.DigestFailures.WithLabelValues("send")))
	assert.Equal(t, 3.0, testutil.ToFloat64(deps.Metrics.DigestsSent))
}

func TestExpiryDigestOwnersFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{ownersErr: errors.New("db closed")}
	err := newExpiryDigestTask(newDeps(store, &outbox{}))(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ownersErr)
}

func TestExpiryDigestCancelled(t *testing.T) {
	t.Parallel()

	store := &stubStore{items: map[int64][]database.Item{1: {item(1, "Milk", "18.07")}}}
	out := &outbox{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newExpiryDigestTask(newDeps(store, out))(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.byID)
}

func TestExpiryDigestFixedYear(t *testing.T) {
	t.Parallel()

	store := &stubStore{items: map[int64][]database.Item{1: {item(1, "Milk", "18.07")}}}
	out := &outbox{}
	deps := newDeps(store, out)
	deps.Config.Expiry.FixedYear = 2024

	require.NoError(t, newExpiryDigestTask(deps)(context.Background()))
	assert.Empty(t, out.byID, "18.07.2024 is long expired on 2025-07-17")
}

func TestDigestText(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 7, 17, 0, 0, 0, 0, time.UTC)

	_, ok := DigestText(nil, today, 2025, "H")
	assert.False(t, ok)

	text, ok := DigestText([]database.Item{item(1, "B", "20.07"), item(1, "A", "18.07"), item(1, "C", "21.07")}, today, 2025, "H")
	require.True(t, ok)
	assert.Equal(t, "H\n\nA — 18.07\nB — 20.07", text)
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	task := RegisterAllTasks(newDeps(store, &outbox{}))[config.TaskSQLMaintenance]
	require.NotNil(t, task)
	require.NoError(t, task(context.Background()))
	assert.True(t, store.maintCalled)

	store.maintErr = errors.New("vacuum failed")
	err := task(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.maintErr)
}
