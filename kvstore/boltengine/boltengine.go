// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package boltengine adapts go.etcd.io/bbolt, a real embedded ordered
// key/value store, to kvstore.Engine, for a genuine on-disk efs
// deployment (efsmount, efsctl). All keys live in a single bucket;
// bbolt already keeps bucket keys in sorted order, which is exactly
// what Range needs.
package boltengine

import (
	"bytes"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/kvstore"
)

var bucketName = []byte("efs")

// Engine is a kvstore.Engine backed by a single bbolt database file.
type Engine struct {
	db *bolt.DB
}

// New returns an unopened Engine; call Open before use.
func New() *Engine {
	return &Engine{}
}

// Open implements kvstore.Engine.
func (e *Engine) Open(path string) error {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 0})
	if err != nil {
		return errors.E(errors.Other, "boltengine: open "+path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		errors.CleanUp(db.Close, &err)
		return errors.E(errors.Other, "boltengine: create bucket", err)
	}
	e.db = db
	return nil
}

// Close implements kvstore.Engine.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Get implements kvstore.Engine.
func (e *Engine) Get(key []byte) (value []byte, ok bool, err error) {
	err = e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return nil
		}
		ok = true
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, false, errors.E(errors.Other, "boltengine: get", err)
	}
	return value, ok, nil
}

// WriteBatch implements kvstore.Engine.
func (e *Engine) WriteBatch(ops []kvstore.BatchOp) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, op := range ops {
			switch op.Kind {
			case kvstore.OpPut:
				if err := b.Put(op.Key, op.Value); err != nil {
					return err
				}
			case kvstore.OpDel:
				if err := b.Delete(op.Key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.E(errors.Other, "boltengine: write batch", err)
	}
	return nil
}

// Range implements kvstore.Engine. The iterator materializes its
// result within one read transaction before returning, since bbolt
// cursors are not valid once their owning transaction ends.
func (e *Engine) Range(start, end []byte) (kvstore.Iterator, error) {
	var keys, values [][]byte
	err := e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(start); k != nil; k, v = c.Next() {
			if end != nil && bytes.Compare(k, end) >= 0 {
				break
			}
			kk := make([]byte, len(k))
			copy(kk, k)
			vv := make([]byte, len(v))
			copy(vv, v)
			keys = append(keys, kk)
			values = append(values, vv)
		}
		return nil
	})
	if err != nil {
		return nil, errors.E(errors.Other, "boltengine: range", err)
	}
	return &iterator{keys: keys, values: values, idx: -1}, nil
}

type iterator struct {
	keys   [][]byte
	values [][]byte
	idx    int
}

func (it *iterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}

func (it *iterator) Key() []byte   { return it.keys[it.idx] }
func (it *iterator) Value() []byte { return it.values[it.idx] }
func (it *iterator) Err() error    { return nil }
func (it *iterator) Close() error  { return nil }

var _ kvstore.Engine = (*Engine)(nil)

// Remove deletes the database file at path, for test cleanup.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
