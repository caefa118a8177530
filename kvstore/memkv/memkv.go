// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package memkv implements an in-process kvstore.Engine, kept sorted
// by key at all times. It is the reference engine every core-package
// test runs against; it needs no filesystem at all (Open/Close are
// no-ops) so tests never depend on an external database.
package memkv

import (
	"bytes"
	"sort"
	"sync"

	"github.com/efscore/efs/kvstore"
)

// Engine is a sorted in-memory kvstore.Engine.
type Engine struct {
	mu     sync.RWMutex
	keys   [][]byte
	values map[string][]byte
}

// New returns an empty, ready-to-use Engine. Open need not be called
// first, but may be, for symmetry with on-disk engines.
func New() *Engine {
	return &Engine{values: make(map[string][]byte)}
}

// Open implements kvstore.Engine. memkv ignores path: it never
// touches disk.
func (e *Engine) Open(path string) error {
	if e.values == nil {
		e.values = make(map[string][]byte)
	}
	return nil
}

// Close implements kvstore.Engine.
func (e *Engine) Close() error { return nil }

// Get implements kvstore.Engine.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// WriteBatch implements kvstore.Engine.
func (e *Engine) WriteBatch(ops []kvstore.BatchOp) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case kvstore.OpPut:
			e.putLocked(op.Key, op.Value)
		case kvstore.OpDel:
			e.delLocked(op.Key)
		}
	}
	return nil
}

func (e *Engine) putLocked(key, value []byte) {
	k := string(key)
	if _, exists := e.values[k]; !exists {
		i := sort.Search(len(e.keys), func(i int) bool { return bytes.Compare(e.keys[i], key) >= 0 })
		e.keys = append(e.keys, nil)
		copy(e.keys[i+1:], e.keys[i:])
		cp := make([]byte, len(key))
		copy(cp, key)
		e.keys[i] = cp
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	e.values[k] = cp
}

func (e *Engine) delLocked(key []byte) {
	k := string(key)
	if _, exists := e.values[k]; !exists {
		return
	}
	delete(e.values, k)
	i := sort.Search(len(e.keys), func(i int) bool { return bytes.Compare(e.keys[i], key) >= 0 })
	if i < len(e.keys) && bytes.Equal(e.keys[i], key) {
		e.keys = append(e.keys[:i], e.keys[i+1:]...)
	}
}

// Range implements kvstore.Engine. The returned iterator is a
// snapshot of the key list at call time; subsequent writes to e do
// not affect an iterator already in progress.
func (e *Engine) Range(start, end []byte) (kvstore.Iterator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	lo := sort.Search(len(e.keys), func(i int) bool { return bytes.Compare(e.keys[i], start) >= 0 })
	hi := len(e.keys)
	if end != nil {
		hi = sort.Search(len(e.keys), func(i int) bool { return bytes.Compare(e.keys[i], end) >= 0 })
	}
	snapshot := make([][]byte, hi-lo)
	copy(snapshot, e.keys[lo:hi])
	values := make(map[string][]byte, len(snapshot))
	for _, k := range snapshot {
		values[string(k)] = e.values[string(k)]
	}
	return &iterator{keys: snapshot, values: values, idx: -1}, nil
}

type iterator struct {
	keys   [][]byte
	values map[string][]byte
	idx    int
}

func (it *iterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}

func (it *iterator) Key() []byte { return it.keys[it.idx] }

func (it *iterator) Value() []byte { return it.values[string(it.keys[it.idx])] }

func (it *iterator) Err() error { return nil }

func (it *iterator) Close() error { return nil }

var _ kvstore.Engine = (*Engine)(nil)
