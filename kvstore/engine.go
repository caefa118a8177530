// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package kvstore implements the encrypted key/value substrate (spec
// §4.B): an ordered key/value Engine wrapped with per-value AEAD and
// a transactional batching layer. The Engine itself is treated as an
// external collaborator — the efs core only ever consumes the Engine
// interface below, never a specific database — so this package also
// ships two concrete Engines: kvstore/memkv (an in-process reference
// used by every core test) and kvstore/boltengine (a real embedded
// store for on-disk deployments).
package kvstore

// OpKind distinguishes a put from a delete in a batch.
type OpKind int

const (
	// OpPut sets a key to a value.
	OpPut OpKind = iota
	// OpDel removes a key.
	OpDel
)

// BatchOp is one write in an atomic batch.
type BatchOp struct {
	Kind  OpKind
	Key   []byte
	Value []byte // ignored when Kind == OpDel
}

// Iterator walks an ordered range of raw (still-encrypted) records.
// It is finite and not restartable: once exhausted or closed, a new
// Range call is required to iterate again.
type Iterator interface {
	// Next advances the iterator, returning false at the end of the
	// range or on error (check Err to distinguish the two).
	Next() bool
	// Key returns the current record's raw key. Valid only after a
	// Next call that returned true, until the next call to Next.
	Key() []byte
	// Value returns the current record's raw (encrypted) value.
	Value() []byte
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}

// Engine is the ordered key/value store the efs core consumes. An
// implementation need only guarantee: ordered binary keys, atomic
// batch writes, and range iteration over [start, end). This is the
// spec §6 "underlying ordered KV store" contract, implementer's
// choice.
type Engine interface {
	// Open opens (creating if necessary) the store rooted at path.
	Open(path string) error
	// Close releases the store's resources.
	Close() error
	// Get returns the raw value for key, or ok=false if absent.
	Get(key []byte) (value []byte, ok bool, err error)
	// WriteBatch applies ops atomically: either all of them are
	// visible to subsequent reads, or none are.
	WriteBatch(ops []BatchOp) error
	// Range returns an iterator over keys in [start, end). A nil end
	// means "no upper bound."
	Range(start, end []byte) (Iterator, error)
}
