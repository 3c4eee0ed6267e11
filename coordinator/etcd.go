package coordinator

import (
	"context"
	"time"

	"github.com/airbloc/logger"
	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"google.golang.org/grpc"
)

const (
	// counterMark is value used for counter keys. If a key's value equals to counterMark,
	// it means the key is counter and its value would be its version.
	counterMark = "__counter"
)

// Etcd stores the job repository on an etcd v3 cluster.
type Etcd struct {
	Client *clientv3.Client
	KV     clientv3.KV

	log    logger.Logger
	option EtcdOptions
}

type EtcdOptions struct {
	DialTimeout time.Duration `default:"5s"`
	OpTimeout   time.Duration `default:"3s"`
}

func DefaultEtcdOptions() (o EtcdOptions) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

// NewEtcd connects to the etcd cluster. Every key is stored under given namespace prefix.
func NewEtcd(endpoints []string, nsPrefix string, opts ...EtcdOptions) (Coordinator, error) {
	option := DefaultEtcdOptions()
	if len(opts) > 0 {
		option = opts[0]
	}

	cfg := clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: option.DialTimeout,
		DialOptions: []grpc.DialOption{grpc.WithBlock()},
	}
	cli, err := clientv3.New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to etcd %v", endpoints)
	}
	return &Etcd{
		Client: cli,
		KV:     namespace.NewKV(cli, nsPrefix),
		log:    logger.New("etcd"),
		option: option,
	}, nil
}

func (e *Etcd) Get(ctx context.Context, key string, valuePtr interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "get %s", key)
	}
	if len(resp.Kvs) == 0 {
		return ErrNotFound
	}
	if string(resp.Kvs[0].Value) == counterMark {
		return errors.Errorf("%s is a counter. use ReadCounter instead", key)
	}
	return errors.Wrapf(jsoniter.Unmarshal(resp.Kvs[0].Value, valuePtr), "decode %s", key)
}

func (e *Etcd) Scan(ctx context.Context, prefix string) (results []RawItem, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", prefix)
	}
	for _, kv := range resp.Kvs {
		if string(kv.Value) == counterMark {
			continue
		}
		results = append(results, RawItem{
			Key:   string(kv.Key),
			Value: kv.Value,
		})
	}
	return
}

func (e *Etcd) Put(ctx context.Context, key string, value interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	jsonVal, err := jsoniter.MarshalToString(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	if _, err := e.KV.Put(ctx, key, jsonVal); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	return nil
}

func (e *Etcd) Commit(ctx context.Context, txn *Txn) ([]TxnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	var txOps []clientv3.Op
	for _, op := range txn.Ops {
		switch op.Type {
		case PutOp:
			jsonVal, err := jsoniter.MarshalToString(op.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "encode %s", op.Key)
			}
			txOps = append(txOps, clientv3.OpPut(op.Key, jsonVal))

		case CounterOp:
			txOps = append(txOps, clientv3.OpPut(op.Key, counterMark, clientv3.WithPrevKV()))

		case DeleteOp:
			txOps = append(txOps, clientv3.OpDelete(op.Key, clientv3.WithPrefix()))
		}
	}
	etcdTxnResults, err := e.KV.Txn(ctx).Then(txOps...).Commit()
	if err != nil {
		return nil, errors.Wrapf(err, "commit %d operations", len(txOps))
	}
	e.log.Verbose("Committed {} operations", len(txOps))
	results := make([]TxnResult, len(etcdTxnResults.Responses))
	for i, res := range etcdTxnResults.Responses {
		results[i].Type = txn.Ops[i].Type

		// fill transaction result by type
		switch txn.Ops[i].Type {
		case CounterOp:
			prevKv := res.GetResponsePut().PrevKv
			if prevKv == nil {
				results[i].Counter = 1
			} else {
				results[i].Counter = prevKv.Version + 1
			}

		case DeleteOp:
			results[i].Deleted = res.GetResponseDeleteRange().Deleted
		}
	}
	return results, nil
}

// IncrementCounter is an atomic operation increasing the counter in given key.
// returns a increased value of the counter right after the operation.
// A key holding a value is left untouched and ErrNotCounter is returned.
func (e *Etcd) IncrementCounter(ctx context.Context, key string) (counter int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	// the version of a key increases on every put, so it serves as the counter value
	put := clientv3.OpPut(key, counterMark, clientv3.WithPrevKV())
	isCounter := clientv3.Compare(clientv3.Value(key), "=", counterMark)
	isAbsent := clientv3.Compare(clientv3.CreateRevision(key), "=", 0)

	resp, err := e.KV.Txn(ctx).
		If(isCounter).
		Then(put).
		Else(clientv3.OpTxn([]clientv3.Cmp{isAbsent}, []clientv3.Op{put}, nil)).
		Commit()
	if err != nil {
		return 0, errors.Wrapf(err, "increment counter %s", key)
	}
	if resp.Succeeded {
		return resp.Responses[0].GetResponsePut().PrevKv.Version + 1, nil
	}
	if !resp.Responses[0].GetResponseTxn().Succeeded {
		return 0, errors.Wrapf(ErrNotCounter, "increment counter %s", key)
	}
	return 1, nil
}

func (e *Etcd) ReadCounter(ctx context.Context, key string) (counter int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, key)
	if err != nil {
		return 0, errors.Wrapf(err, "read counter %s", key)
	}
	if len(resp.Kvs) == 0 {
		return 0, nil
	}
	if string(resp.Kvs[0].Value) != counterMark {
		return 0, ErrNotCounter
	}
	return resp.Kvs[0].Version, nil
}

// Delete remove all keys starting with given prefix.
func (e *Etcd) Delete(ctx context.Context, prefix string) (deleted int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	var opts []clientv3.OpOption
	if prefix == "" {
		prefix = "\x00"
		opts = append(opts, clientv3.WithFromKey())
	} else {
		opts = append(opts, clientv3.WithPrefix())
	}
	resp, err := e.KV.Delete(ctx, prefix, opts...)
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s", prefix)
	}
	e.log.Debug("Deleted {} keys under {}", resp.Deleted, prefix)
	return resp.Deleted, nil
}

func (e *Etcd) Close() error {
	return e.Client.Close()
}
