package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for inventory persistence.
// Methods accept context.Context for cancellation and timeouts, and wrap
// driver failures in *StoreError.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertItem stores a new item for ownerID and returns its row id.
	InsertItem(ctx context.Context, ownerID int64, name, expiry string) (int64, error)

	// ListItemsByOwner returns all items of ownerID. Ordering is not part of the contract.
	ListItemsByOwner(ctx context.Context, ownerID int64) ([]Item, error)

	// DeleteItem removes the item with the given id if it belongs to ownerID.
	// It reports whether a row was removed and, if so, its name.
	DeleteItem(ctx context.Context, ownerID, id int64) (name string, deleted bool, err error)

	// DistinctOwners returns every owner id that has at least one item.
	DistinctOwners(ctx context.Context) ([]int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// InsertItem inserts a single row; the statement is atomic on its own.
func (s *sqlxStore) InsertItem(ctx context.Context, ownerID int64, name, expiry string) (int64, error) {
	if ownerID == 0 {
		return 0, fmt.Errorf("owner_id cannot be zero")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("item name cannot be empty")
	}

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	item := Item{
		OwnerID:   ownerID,
		Name:      name,
		Expiry:    strings.TrimSpace(expiry),
		CreatedAt: time.Now().UTC(),
	}

	query := `
        INSERT INTO items (owner_id, product, expiry, created_at)
        VALUES (:owner_id, :product, :expiry, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, item)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting item", "owner_id", ownerID, "error", err)
		return 0, storeErr("insert", fmt.Errorf("owner %d: %w", ownerID, err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after inserting item",
			"owner_id", ownerID, "error", err)
		return 0, storeErr("insert", err)
	}

	s.logger.DebugContext(ctx, "Item inserted", "owner_id", ownerID, "item_id", id)
	return id, nil
}

// ListItemsByOwner retrieves every item stored for ownerID.
func (s *sqlxStore) ListItemsByOwner(ctx context.Context, ownerID int64) ([]Item, error) {
	if ownerID == 0 {
		return nil, fmt.Errorf("owner_id cannot be zero")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var items []Item
	query := `
        SELECT id, owner_id, product, expiry, created_at
        FROM items
        WHERE owner_id = ?
        ORDER BY id;
    `

	err := s.db.SelectContext(ctx, &items, query, ownerID)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while listing items",
			"owner_id", ownerID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing items", "owner_id", ownerID, "error", err)
		return nil, storeErr("list", fmt.Errorf("owner %d: %w", ownerID, err))
	}

	s.logger.DebugContext(ctx, "Listed items", "owner_id", ownerID, "count", len(items))
	return items, nil
}

// DeleteItem looks up and removes a row inside one transaction so the
// returned name always belongs to the row that was actually deleted.
func (s *sqlxStore) DeleteItem(ctx context.Context, ownerID, id int64) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for deleting item", "item_id", id, "error", err)
		return "", false, storeErr("delete", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var name string
	err = tx.GetContext(ctx, &name, `SELECT product FROM items WHERE id = ? AND owner_id = ?`, id, ownerID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "Item to delete not found", "owner_id", ownerID, "item_id", id)
		return "", false, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error looking up item to delete", "item_id", id, "error", err)
		return "", false, storeErr("delete", fmt.Errorf("lookup item %d: %w", id, err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting item", "item_id", id, "error", err)
		return "", false, storeErr("delete", fmt.Errorf("delete item %d: %w", id, err))
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit item deletion", "item_id", id, "error", err)
		return "", false, storeErr("delete", fmt.Errorf("commit: %w", err))
	}
	tx = nil

	s.logger.DebugContext(ctx, "Item deleted", "owner_id", ownerID, "item_id", id)
	return name, true, nil
}

// DistinctOwners lists owner ids in ascending order.
func (s *sqlxStore) DistinctOwners(ctx context.Context) ([]int64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var owners []int64
	err := s.db.SelectContext(ctx, &owners, `SELECT DISTINCT owner_id FROM items ORDER BY owner_id`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing distinct owners", "error", err)
		return nil, storeErr("owners", err)
	}
	return owners, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return storeErr("vacuum", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
