package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/expiry"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "pantry.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db, nil) })

	return database.NewStore(db, nil)
}

func TestStoreInsertAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.InsertItem(ctx, 100, "Milk", "18.07")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = store.InsertItem(ctx, 200, "Bread", "01.01")
	require.NoError(t, err)

	items, err := store.ListItemsByOwner(ctx, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, int64(100), items[0].OwnerID)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, "18.07", items[0].Expiry)
	assert.False(t, items[0].CreatedAt.IsZero())

	other, err := store.ListItemsByOwner(ctx, 200)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "Bread", other[0].Name)

	none, err := store.ListItemsByOwner(ctx, 300)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreKeepsUnparseableExpiryVerbatim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.InsertItem(ctx, 1, "Jam", "some day")
	require.NoError(t, err)

	items, err := store.ListItemsByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "some day", items[0].Expiry)
}

func TestStoreInsertValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.InsertItem(ctx, 0, "Milk", "18.07")
	assert.Error(t, err)

	_, err = store.InsertItem(ctx, 1, "   ", "18.07")
	assert.Error(t, err)
}

func TestStoreDeleteTwice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.InsertItem(ctx, 1, "Eggs", "20.07")
	require.NoError(t, err)

	name, deleted, err := store.DeleteItem(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, "Eggs", name)

	name, deleted, err = store.DeleteItem(ctx, 1, id)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, name)
}

func TestStoreDeleteIsScopedToOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.InsertItem(ctx, 1, "Eggs", "20.07")
	require.NoError(t, err)

	_, deleted, err := store.DeleteItem(ctx, 2, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	items, err := store.ListItemsByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStoreDistinctOwners(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	owners, err := store.DistinctOwners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)

	for _, owner := range []int64{30, 10, 30, 20} {
		_, err := store.InsertItem(ctx, owner, "x", "01.01")
		require.NoError(t, err)
	}

	owners, err = store.DistinctOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, owners)
}

func TestStoreConcurrentWriters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.InsertItem(ctx, 9, "Item", "10.10")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := store.ListItemsByOwner(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, items, 20)

	seen := make(map[int64]bool)
	for _, it := range items {
		assert.False(t, seen[it.ID], "row ids are unique")
		seen[it.ID] = true
	}
}

func TestStoreCancelledContext(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListItemsByOwner(ctx, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStoreErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := error(&database.StoreError{Op: "insert", Err: errors.New("disk full")})
	assert.True(t, errors.Is(err, database.ErrStore))
	assert.Equal(t, "store insert: disk full", err.Error())
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.RunSQLMaintenance(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}

func TestDBFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "storage.db", want: "storage.db"},
		{in: "file:storage.db?_pragma=busy_timeout(5000)", want: "storage.db"},
		{in: "file:my%20db.db", want: "my db.db"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, database.DBFilePath(tc.in))
	}
}

func TestNewDBReopensMigratedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pantry.db")
	db, err := database.NewDB(path, nil)
	require.NoError(t, err)
	_, err = database.NewStore(db, nil).InsertItem(context.Background(), 1, "Milk", "18.07")
	require.NoError(t, err)
	database.CloseDB(db, nil)

	db, err = database.NewDB(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db, nil) })

	items, err := database.NewStore(db, nil).ListItemsByOwner(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Milk", items[0].Name)
}

func TestEntries(t *testing.T) {
	t.Parallel()

	items := []database.Item{
		{ID: 7, OwnerID: 1, Name: "Milk", Expiry: "18.07"},
		{ID: 9, OwnerID: 1, Name: "Jam", Expiry: "soon"},
	}
	entries := database.Entries(items)

	require.Len(t, entries, 2)
	assert.Equal(t, expiry.Entry{ID: 7, Name: "Milk", Raw: "18.07"}, entries[0])
	assert.Equal(t, items[1].Entry(), entries[1])
	assert.Empty(t, database.Entries(nil))
}
