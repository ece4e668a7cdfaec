package storage

import (
	"context"
	"errors"
)

// Well-known entry keys of a ledger snapshot.
const (
	KeyTransactions = "transactions"
	KeyCategories   = "categories"
)

// ErrEmptyKey is returned when an entry is written without a key.
var ErrEmptyKey = errors.New("entry key cannot be empty")

// Entry is one named value of a snapshot.
type Entry struct {
	Key   string
	Value []byte
}

// Store persists named entries. Put is atomic per call: either every entry is
// written or none is.
type Store interface {
	// Get returns the value stored under key. ok is false when the key was never written.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, entries ...Entry) error
	Close() error
}
