package coordinator

// Txn performs batch operation to the coordinator.Coordinator.
// To apply changes, Commit() must be called with the Txn on coordinator.
type Txn struct {
	Ops []BatchOp
}

// NewTxn returns a new transaction.
func NewTxn() *Txn {
	return &Txn{}
}

// Put performs a batch operation setting the value of a key to within the transaction.
func (t *Txn) Put(key string, value interface{}) *Txn {
	t.Ops = append(t.Ops, BatchOp{
		Type:  PutOp,
		Key:   key,
		Value: value,
	})
	return t
}

// IncrementCounter performs a batch operation incrementing counter of a key within the transaction.
func (t *Txn) IncrementCounter(key string) *Txn {
	t.Ops = append(t.Ops, BatchOp{
		Type: CounterOp,
		Key:  key,
	})
	return t
}

// Delete performs a batch operation deleting all keys starting with given prefix within the transaction.
func (t *Txn) Delete(keyPrefix string) *Txn {
	t.Ops = append(t.Ops, BatchOp{
		Type: DeleteOp,
		Key:  keyPrefix,
	})
	return t
}
