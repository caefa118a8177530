package kvstore

import (
	"sort"

	"github.com/efscore/efs/crypto"
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/workerpool"
)

// maxConflictRetries bounds how many times Transact will expand a
// lock set before giving up and surfacing TransactionConflict.
const maxConflictRetries = 16

// Store is the encrypted KV substrate: an Engine plus a 256-bit
// master key and a worker pool for offloading AEAD. Every byte that
// crosses the Engine boundary is encrypted; Store never hands the
// caller a raw (still-encrypted) record.
type Store struct {
	engine Engine
	key    []byte
	pool   workerpool.Pool
	locks  *lockTable
}

// Open opens engine at path and returns a Store keyed by key (32
// bytes). If pool is nil, crypto runs inline on the caller's
// goroutine.
func Open(engine Engine, path string, key []byte, pool workerpool.Pool) (*Store, error) {
	if len(key) != crypto.KeySize {
		return nil, errors.E(errors.InvalidArgument, "kvstore.Open: key must be 32 bytes")
	}
	if err := engine.Open(path); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = workerpool.Inline
	}
	return &Store{engine: engine, key: key, pool: pool, locks: newLockTable()}, nil
}

// Close releases the underlying engine.
func (s *Store) Close() error {
	return s.engine.Close()
}

func (s *Store) encrypt(plain []byte) ([]byte, error) {
	f := s.pool.Submit(workerpool.OpEncrypt, func() ([]byte, bool) {
		c, err := crypto.Encrypt(s.key, plain)
		if err != nil {
			return nil, false
		}
		return c, true
	}, plain)
	res := f.Result()
	if res.Err != nil {
		return nil, res.Err
	}
	if !res.Ok {
		return nil, errors.E(errors.Other, "kvstore: encrypt failed")
	}
	return res.Value, nil
}

func (s *Store) decrypt(cipher []byte) ([]byte, bool, error) {
	f := s.pool.Submit(workerpool.OpDecrypt, func() ([]byte, bool) {
		return crypto.Decrypt(s.key, cipher)
	}, cipher)
	res := f.Result()
	if res.Err != nil {
		return nil, false, res.Err
	}
	return res.Value, res.Ok, nil
}

// Get reads and decrypts the value at key. ok is false on a miss.
// Corruption is returned if a record exists but fails to
// authenticate (key mismatch or tampering).
func (s *Store) Get(key []byte) (value []byte, ok bool, err error) {
	raw, found, err := s.engine.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	plain, valid, err := s.decrypt(raw)
	if err != nil {
		return nil, false, err
	}
	if !valid {
		return nil, false, errors.E(errors.Corruption, "kvstore: decrypt failed")
	}
	return plain, true, nil
}

// Put encrypts and writes value at key as an immediately committed
// one-entry batch.
func (s *Store) Put(key, value []byte) error {
	cipher, err := s.encrypt(value)
	if err != nil {
		return err
	}
	return s.engine.WriteBatch([]BatchOp{{Kind: OpPut, Key: key, Value: cipher}})
}

// Del immediately commits a one-entry delete batch.
func (s *Store) Del(key []byte) error {
	return s.engine.WriteBatch([]BatchOp{{Kind: OpDel, Key: key}})
}

// PrefixUpperBound returns the smallest key that is strictly greater
// than every key with the given prefix, i.e. the exclusive end bound
// for a prefix scan. It returns nil if prefix is all 0xff bytes (no
// finite upper bound is needed; Range treats a nil end as unbounded).
func PrefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Range iterates decrypted records in [start, end). If start is nil,
// prefix is used as the start key; if end is nil, prefix's upper
// bound is used. Passing a nil prefix with explicit start/end scans
// the whole store between them.
func (s *Store) Range(prefix, start, end []byte) (*RangeIter, error) {
	if start == nil {
		start = prefix
	}
	if end == nil {
		end = PrefixUpperBound(prefix)
	}
	it, err := s.engine.Range(start, end)
	if err != nil {
		return nil, err
	}
	return &RangeIter{store: s, base: it}, nil
}

// RangeIter decrypts records from an underlying Engine iterator
// lazily, one at a time.
type RangeIter struct {
	store *Store
	base  Iterator
	key   []byte
	value []byte
	err   error
}

// Next advances the iterator. It returns false at end of range or on
// error (including Corruption from a failed decrypt).
func (it *RangeIter) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.base.Next() {
		it.err = it.base.Err()
		return false
	}
	rawKey := it.base.Key()
	it.key = append(it.key[:0], rawKey...)
	plain, ok, err := it.store.decrypt(it.base.Value())
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		it.err = errors.E(errors.Corruption, "kvstore: decrypt failed during range")
		return false
	}
	it.value = plain
	return true
}

// Key returns the current record's key.
func (it *RangeIter) Key() []byte { return it.key }

// Value returns the current record's decrypted value.
func (it *RangeIter) Value() []byte { return it.value }

// Err returns the first error encountered, if any.
func (it *RangeIter) Err() error { return it.err }

// Close releases the underlying iterator.
func (it *RangeIter) Close() error { return it.base.Close() }

// expandError signals that a transaction body needs a key outside
// its current lock set. Transact catches it, releases locks, expands
// the set, and restarts the body from scratch; nothing committed by
// the aborted attempt is visible.
type expandError struct{ keys []uint64 }

func (e *expandError) Error() string { return "kvstore: transaction needs expanded lock set" }

func sortedUnique(keys []uint64) []uint64 {
	out := append([]uint64(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	out = dedupSorted(out)
	return out
}

func dedupSorted(sorted []uint64) []uint64 {
	if len(sorted) == 0 {
		return sorted
	}
	n := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[n-1] {
			sorted[n] = sorted[i]
			n++
		}
	}
	return sorted[:n]
}

// Transact runs body with a transaction handle locking keys (the
// inode numbers the caller's operation touches) in ascending order.
// If body's writes and hooks complete without error, the writes
// commit as one atomic batch and success hooks run; otherwise all
// buffered writes are discarded and failure hooks run. If body
// signals (via Txn.EnsureLocked) that it needs a key outside its
// current lock set, Transact releases the locks, expands the set,
// and restarts body — there is no lock upgrade in place.
func (s *Store) Transact(keys []uint64, body func(tx *Txn) error) error {
	keys = sortedUnique(keys)
	for attempt := 0; ; attempt++ {
		s.locks.acquire(keys)
		tx := &Txn{store: s, keys: keys}
		err := body(tx)
		if exp, ok := err.(*expandError); ok {
			s.locks.release(keys)
			if attempt >= maxConflictRetries {
				return errors.E(errors.TransactionConflict, "kvstore: too many lock-set expansions")
			}
			keys = sortedUnique(append(append([]uint64{}, keys...), exp.keys...))
			continue
		}
		if err != nil {
			s.locks.release(keys)
			tx.runFailureHooks()
			return err
		}
		cerr := s.commit(tx)
		s.locks.release(keys)
		if cerr != nil {
			tx.runFailureHooks()
			return cerr
		}
		tx.runSuccessHooks()
		return nil
	}
}

func (s *Store) commit(tx *Txn) error {
	if len(tx.ops) == 0 {
		return nil
	}
	batch := make([]BatchOp, 0, len(tx.ops))
	for _, op := range tx.ops {
		switch op.Kind {
		case OpPut:
			cipher, err := s.encrypt(op.Value)
			if err != nil {
				return err
			}
			batch = append(batch, BatchOp{Kind: OpPut, Key: op.Key, Value: cipher})
		case OpDel:
			batch = append(batch, BatchOp{Kind: OpDel, Key: op.Key})
		}
	}
	return s.engine.WriteBatch(batch)
}
