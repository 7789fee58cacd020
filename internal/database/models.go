package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/edgard/pantrybot/internal/expiry"
)

// Item is one perishable product registered by an owner. Expiry is kept
// exactly as the user typed it; it is parsed only when read.
type Item struct {
	ID        int64     `db:"id"`
	OwnerID   int64     `db:"owner_id"`
	Name      string    `db:"product"`
	Expiry    string    `db:"expiry"`
	CreatedAt time.Time `db:"created_at"`
}

// Entry returns the item in the form the expiry classifier reads.
func (it Item) Entry() expiry.Entry {
	return expiry.Entry{ID: it.ID, Name: it.Name, Raw: it.Expiry}
}

// Entries converts a list of stored items for the classifier.
func Entries(items []Item) []expiry.Entry {
	out := make([]expiry.Entry, 0, len(items))
	for _, it := range items {
		out = append(out, it.Entry())
	}
	return out
}

// ErrStore marks failures talking to the persistent store.
var ErrStore = errors.New("store error")

// StoreError wraps an I/O failure from a Store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying driver error.
func (e *StoreError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStore) match any StoreError.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
