package coordinator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

type localMemoryCoordinator struct {
	opt localMemoryOptions

	data    map[string][]byte
	counter map[string]int64
	mu      sync.RWMutex
}

// NewLocalMemory creates local variable based coordinator.
// Used for tests and jobs running in a single process.
func NewLocalMemory(opts ...LocalMemoryOption) Coordinator {
	var opt localMemoryOptions
	for _, o := range opts {
		o(&opt)
	}
	return &localMemoryCoordinator{
		opt:     opt,
		data:    map[string][]byte{},
		counter: map[string]int64{},
	}
}

func (lmc *localMemoryCoordinator) simulate(ctx context.Context) error {
	time.Sleep(lmc.opt.simulatedDelay)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return lmc.opt.simulatedError
}

func (lmc *localMemoryCoordinator) Get(ctx context.Context, key string, valuePtr interface{}) error {
	if err := lmc.simulate(ctx); err != nil {
		return err
	}
	lmc.mu.RLock()
	raw, ok := lmc.data[key]
	lmc.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return jsoniter.Unmarshal(raw, valuePtr)
}

func (lmc *localMemoryCoordinator) Scan(ctx context.Context, prefix string) (results []RawItem, err error) {
	if err := lmc.simulate(ctx); err != nil {
		return nil, err
	}
	lmc.mu.RLock()
	for k, v := range lmc.data {
		if strings.HasPrefix(k, prefix) {
			results = append(results, RawItem{Key: k, Value: v})
		}
	}
	lmc.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return
}

func (lmc *localMemoryCoordinator) Put(ctx context.Context, key string, value interface{}) error {
	if err := lmc.simulate(ctx); err != nil {
		return err
	}
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	lmc.mu.Lock()
	lmc.data[key] = raw
	lmc.mu.Unlock()
	return nil
}

func (lmc *localMemoryCoordinator) IncrementCounter(ctx context.Context, key string) (count int64, err error) {
	if err = lmc.simulate(ctx); err != nil {
		return
	}
	lmc.mu.Lock()
	defer lmc.mu.Unlock()
	if _, isValue := lmc.data[key]; isValue {
		return 0, ErrNotCounter
	}
	return lmc.incrementCounter(key), nil
}

// incrementCounter must be called with the write lock held.
func (lmc *localMemoryCoordinator) incrementCounter(key string) int64 {
	lmc.counter[key] += 1
	return lmc.counter[key]
}

func (lmc *localMemoryCoordinator) ReadCounter(ctx context.Context, key string) (count int64, err error) {
	if err := lmc.simulate(ctx); err != nil {
		return 0, err
	}
	lmc.mu.RLock()
	defer lmc.mu.RUnlock()
	if _, isValue := lmc.data[key]; isValue {
		return 0, ErrNotCounter
	}
	return lmc.counter[key], nil
}

func (lmc *localMemoryCoordinator) Commit(ctx context.Context, txn *Txn) ([]TxnResult, error) {
	if err := lmc.simulate(ctx); err != nil {
		return nil, err
	}
	// encode first so that a failing value leaves the store untouched
	encoded := make([][]byte, len(txn.Ops))
	for i, op := range txn.Ops {
		if op.Type != PutOp {
			continue
		}
		raw, err := jsoniter.Marshal(op.Value)
		if err != nil {
			return nil, err
		}
		encoded[i] = raw
	}

	lmc.mu.Lock()
	defer lmc.mu.Unlock()

	results := make([]TxnResult, len(txn.Ops))
	for i, op := range txn.Ops {
		results[i].Type = op.Type
		switch op.Type {
		case PutOp:
			lmc.data[op.Key] = encoded[i]
		case CounterOp:
			results[i].Counter = lmc.incrementCounter(op.Key)
		case DeleteOp:
			results[i].Deleted = lmc.delete(op.Key)
		}
	}
	return results, nil
}

func (lmc *localMemoryCoordinator) Delete(ctx context.Context, prefix string) (deleted int64, err error) {
	if err = lmc.simulate(ctx); err != nil {
		return
	}
	lmc.mu.Lock()
	defer lmc.mu.Unlock()
	return lmc.delete(prefix), nil
}

// delete must be called with the write lock held.
func (lmc *localMemoryCoordinator) delete(prefix string) (deleted int64) {
	for k := range lmc.data {
		if strings.HasPrefix(k, prefix) {
			delete(lmc.data, k)
			deleted += 1
		}
	}
	for k := range lmc.counter {
		if strings.HasPrefix(k, prefix) {
			delete(lmc.counter, k)
			deleted += 1
		}
	}
	return deleted
}

func (lmc *localMemoryCoordinator) Close() error {
	return nil
}

type localMemoryOptions struct {
	simulatedDelay time.Duration
	simulatedError error
}

type LocalMemoryOption func(*localMemoryOptions)

func WithSimulatedDelay(delay time.Duration) LocalMemoryOption {
	return func(opt *localMemoryOptions) {
		opt.simulatedDelay = delay
	}
}

func WithSimulatedError(err error) LocalMemoryOption {
	return func(opt *localMemoryOptions) {
		opt.simulatedError = err
	}
}
