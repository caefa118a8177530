package kvstore

import (
	"bytes"
	"sort"
)

// Op is one buffered write in a transaction's accumulated log,
// exposed for testing (spec §4.B: "ops, the accumulated write log,
// for testing").
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte // plaintext; encrypted only at commit time
}

// Txn is a transaction handle: reads see the underlying store
// overlaid with this transaction's own pending writes
// (read-your-writes); writes are buffered until Transact commits
// them as a single atomic batch.
type Txn struct {
	store *Store
	keys  []uint64
	ops   []Op

	successHooks []func()
	failureHooks []func()
}

// Keys returns the transaction's current lock set (sorted, deduped).
func (tx *Txn) Keys() []uint64 {
	return append([]uint64(nil), tx.keys...)
}

// EnsureLocked reports whether key is in the transaction's current
// lock set. If it is not, it returns an internal error that Transact
// recognizes: the transaction aborts (discarding any buffered
// writes, see spec §5 "no lock upgrades") and restarts with key
// added to the set.
func (tx *Txn) EnsureLocked(key uint64) error {
	for _, k := range tx.keys {
		if k == key {
			return nil
		}
	}
	return &expandError{keys: []uint64{key}}
}

// Get returns the value at key, preferring this transaction's own
// pending write (if any) over the underlying store.
func (tx *Txn) Get(key []byte) (value []byte, ok bool, err error) {
	for i := len(tx.ops) - 1; i >= 0; i-- {
		op := tx.ops[i]
		if !bytes.Equal(op.Key, key) {
			continue
		}
		switch op.Kind {
		case OpPut:
			return op.Value, true, nil
		case OpDel:
			return nil, false, nil
		}
	}
	return tx.store.Get(key)
}

// Put buffers a write; it becomes visible to this transaction's own
// subsequent Get/Range calls immediately, and to every other reader
// only once Transact commits.
func (tx *Txn) Put(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	tx.ops = append(tx.ops, Op{Kind: OpPut, Key: k, Value: v})
}

// Del buffers a delete.
func (tx *Txn) Del(key []byte) {
	k := append([]byte(nil), key...)
	tx.ops = append(tx.ops, Op{Kind: OpDel, Key: k})
}

// QueueSuccess registers fn to run after this transaction commits.
func (tx *Txn) QueueSuccess(fn func()) {
	tx.successHooks = append(tx.successHooks, fn)
}

// QueueFailure registers fn to run if this transaction aborts (body
// error, commit error, or — not at all, on a lock-set-expansion
// restart, since that discards the attempt silently and tries again).
// Hooks must be purely compensating: they must not themselves mutate
// persistent state.
func (tx *Txn) QueueFailure(fn func()) {
	tx.failureHooks = append(tx.failureHooks, fn)
}

func (tx *Txn) runSuccessHooks() {
	for _, fn := range tx.successHooks {
		fn()
	}
}

func (tx *Txn) runFailureHooks() {
	for _, fn := range tx.failureHooks {
		fn()
	}
}

// Ops returns the transaction's accumulated write log, for testing.
func (tx *Txn) Ops() []Op {
	return append([]Op(nil), tx.ops...)
}

// Range iterates [start, end) (see Store.Range for prefix defaulting)
// overlaying this transaction's own pending writes on the underlying
// store, preferring the pending version on key collision and
// skipping pending deletes.
func (tx *Txn) Range(prefix, start, end []byte) (*TxnRangeIter, error) {
	base, err := tx.store.Range(prefix, start, end)
	if err != nil {
		return nil, err
	}
	if start == nil {
		start = prefix
	}
	if end == nil {
		end = PrefixUpperBound(prefix)
	}
	pending := make([]Op, 0)
	seen := make(map[string]bool)
	for i := len(tx.ops) - 1; i >= 0; i-- {
		op := tx.ops[i]
		if seen[string(op.Key)] {
			continue
		}
		seen[string(op.Key)] = true
		if bytes.Compare(op.Key, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(op.Key, end) >= 0 {
			continue
		}
		pending = append(pending, op)
	}
	sort.Slice(pending, func(i, j int) bool { return bytes.Compare(pending[i].Key, pending[j].Key) < 0 })
	return &TxnRangeIter{base: base, pending: pending, pidx: -1}, nil
}

// TxnRangeIter merges the underlying store's range with a
// transaction's own pending writes, in key order, preferring pending
// entries and skipping pending deletes.
type TxnRangeIter struct {
	base      *RangeIter
	baseValid bool
	baseDone  bool

	pending []Op
	pidx    int

	key   []byte
	value []byte
	err   error
}

func (it *TxnRangeIter) advanceBase() {
	if it.baseDone {
		return
	}
	it.baseValid = it.base.Next()
	if !it.baseValid {
		it.baseDone = true
		if err := it.base.Err(); err != nil {
			it.err = err
		}
	}
}

// Next advances the iterator.
func (it *TxnRangeIter) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.baseValid && !it.baseDone {
		it.advanceBase()
	}
	for {
		havePending := it.pidx+1 < len(it.pending)
		if !it.baseValid && !havePending {
			return false
		}
		if !it.baseValid {
			it.pidx++
			op := it.pending[it.pidx]
			if op.Kind == OpDel {
				continue
			}
			it.key, it.value = op.Key, op.Value
			return true
		}
		if !havePending {
			it.key, it.value = it.base.Key(), it.base.Value()
			it.advanceBase()
			return true
		}
		baseKey := it.base.Key()
		nextPending := it.pending[it.pidx+1]
		switch bytes.Compare(baseKey, nextPending.Key) {
		case 0:
			it.advanceBase()
			it.pidx++
			if nextPending.Kind == OpDel {
				continue
			}
			it.key, it.value = nextPending.Key, nextPending.Value
			return true
		case -1:
			it.key, it.value = baseKey, it.base.Value()
			it.advanceBase()
			return true
		default:
			it.pidx++
			if nextPending.Kind == OpDel {
				continue
			}
			it.key, it.value = nextPending.Key, nextPending.Value
			return true
		}
	}
}

// Key returns the current merged entry's key.
func (it *TxnRangeIter) Key() []byte { return it.key }

// Value returns the current merged entry's value.
func (it *TxnRangeIter) Value() []byte { return it.value }

// Err returns the first error encountered, if any.
func (it *TxnRangeIter) Err() error { return it.err }

// Close releases the underlying range iterator.
func (it *TxnRangeIter) Close() error { return it.base.Close() }
