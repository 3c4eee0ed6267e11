package coordinator

import jsoniter "github.com/json-iterator/go"

// OpType is the type of operations in a transaction.
type OpType int

const (
	PutOp OpType = iota
	DeleteOp
	CounterOp
)

// RawItem is a data of item which isn't unmarshalled yet.
type RawItem struct {
	Key   string
	Value []byte
}

func (r RawItem) Unmarshal(value interface{}) error {
	// assuming that the value is a struct pointer
	return jsoniter.Unmarshal(r.Value, value)
}

type BatchOp struct {
	Type  OpType
	Key   string
	Value interface{}
}

// TxnResult is a result of an operation in a transaction.
type TxnResult struct {
	Type OpType

	// Counter is a new value of the counter when the operation is CounterOp.
	Counter int64

	// Deleted is the number of deleted keys when the operation is DeleteOp.
	Deleted int64
}
