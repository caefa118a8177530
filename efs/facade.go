// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package efs

import (
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/fdtable"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/log"
)

// rootIno is the inode number of the filesystem root, self-parented
// and formatted the first time a fresh store is mounted.
const rootIno = 1

// Caller identifies the user/group on whose behalf an operation runs,
// the facade's equivalent of a FUSE request context.
type Caller struct {
	Uid uint32
	Gid uint32
}

// FileSystem is the POSIX facade over one mounted encrypted store.
// Every exported method is self-contained: it resolves whatever path
// arguments it's given and runs its mutation inside exactly one
// kvstore.Store.Transact call (or none, for a pure read composed of
// several transactions where that's safe).
type FileSystem struct {
	store   *kvstore.Store
	manager *inode.Manager
	fds     *fdtable.Table

	blockSize uint32
	umask     uint32
	capacity  uint64
}

// Open mounts engine (already constructed by the caller, e.g. a
// boltengine.Engine pointed at a file) as an efs.FileSystem, deriving
// or taking the master key per cfg, and formatting a fresh root
// directory if the store has none yet.
func Open(engine kvstore.Engine, dbPath string, cfg Config) (*FileSystem, error) {
	key, err := cfg.resolveKey()
	if err != nil {
		return nil, err
	}
	store, err := kvstore.Open(engine, dbPath, key, cfg.WorkerPool)
	if err != nil {
		return nil, err
	}
	manager, err := inode.Open(store, cfg.deviceTable())
	if err != nil {
		store.Close()
		return nil, err
	}
	fs := &FileSystem{
		store:     store,
		manager:   manager,
		fds:       fdtable.New(manager),
		blockSize: cfg.blockSize(),
		umask:     cfg.umask(),
		capacity:  cfg.CapacityBytes,
	}
	if err := fs.ensureRoot(); err != nil {
		store.Close()
		return nil, err
	}
	return fs, nil
}

// ensureRoot formats the self-parented root directory if this is a
// fresh store (no record yet at rootIno).
func (fs *FileSystem) ensureRoot() error {
	var exists bool
	err := fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		_, ok, err := fs.manager.Get(tx, rootIno)
		exists = ok
		return err
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	first := fs.manager.AllocateIno()
	if first != rootIno {
		return errors.E(errors.Corruption, "efs: fresh store's allocator watermark is not at the root inode")
	}
	log.Info.Printf("efs: formatting fresh root directory at inode %d", rootIno)
	return fs.store.Transact([]uint64{rootIno}, func(tx *kvstore.Txn) error {
		return fs.manager.DirCreate(tx, rootIno, inode.Params{Mode: 0o755}, nil)
	})
}

// Close releases the underlying store. Open file descriptors are not
// implicitly closed; callers should Close every fd they opened first.
func (fs *FileSystem) Close() error {
	return fs.store.Close()
}

func applyUmask(mode, umask uint32) uint32 {
	return mode &^ umask
}
