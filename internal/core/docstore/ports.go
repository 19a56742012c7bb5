package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document is stored under a key.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when an optimistic transaction kept losing to concurrent writers.
	ErrConflict = errors.New("document transaction conflict")
	// ErrUnwatchedKey is returned when a transaction reads a key it did not declare.
	ErrUnwatchedKey = errors.New("read of undeclared key inside transaction")
)

// Ref addresses a single document, stored under "<collection>/<id>".
type Ref struct {
	Collection string
	ID         string
}

// Key returns the storage key for the reference.
func (r Ref) Key() string {
	return r.Collection + "/" + r.ID
}

// Txn is the view of the store handed to an Update callback.
// Reads observe the watched documents; writes are staged and only become
// visible when the whole transaction commits.
type Txn interface {
	Get(ctx context.Context, ref Ref) ([]byte, error)
	Set(ref Ref, doc []byte)
}

// TxnFunc stages writes against a Txn. Returning an error aborts the transaction.
type TxnFunc func(ctx context.Context, tx Txn) error

// Transactor runs atomic read-modify-write cycles over a set of documents.
type Transactor interface {
	// Update runs fn with the given documents watched. fn may be invoked several
	// times if a concurrent writer touches a watched document.
	Update(ctx context.Context, refs []Ref, fn TxnFunc) error
}

// Counter exposes atomically incremented integer records.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	// RaiseTo sets the counter to floor when it is currently lower.
	RaiseTo(ctx context.Context, key string, floor int64) error
}

// Change reports that a document of a collection was written.
type Change struct {
	Collection string
	ID         string
}

// Subscription delivers change notifications until closed.
type Subscription interface {
	Changes() <-chan Change
	Close() error
}

// ChangeFeed opens change subscriptions per collection.
type ChangeFeed interface {
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// Store is the document collection the services persist to.
type Store interface {
	Transactor
	Counter
	ChangeFeed

	Get(ctx context.Context, ref Ref) ([]byte, error)
	Set(ctx context.Context, ref Ref, doc []byte) error
	// List returns every document of a collection in no particular order.
	List(ctx context.Context, collection string) ([][]byte, error)

	Ping(ctx context.Context) error
	Close() error
}
