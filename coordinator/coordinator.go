package coordinator

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrNotCounter = errors.New("key is not a counter")
)

// Coordinator is a key-value store shared by the processes running jobs.
// Values are encoded as JSON.
type Coordinator interface {
	Get(ctx context.Context, key string, valuePtr interface{}) error

	// Scan returns items whose key starts with given prefix, sorted by key.
	Scan(ctx context.Context, prefix string) (results []RawItem, err error)
	Put(ctx context.Context, key string, value interface{}) error

	// IncrementCounter is an atomic operation increasing the counter in given key.
	// returns a increased value of the counter right after the operation.
	IncrementCounter(ctx context.Context, key string) (count int64, err error)
	ReadCounter(ctx context.Context, key string) (count int64, err error)

	// Commit applies every operation of the transaction at once.
	Commit(ctx context.Context, txn *Txn) ([]TxnResult, error)

	// Delete removes all keys starting with given prefix.
	Delete(ctx context.Context, prefix string) (deleted int64, err error)
	Close() error
}
