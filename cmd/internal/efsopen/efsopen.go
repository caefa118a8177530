// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package efsopen holds the database-opening logic shared by
// efsmount and efsctl: resolving a master key from either a keyfile
// or a password-derived, salt-file-backed key, then mounting an
// efs.FileSystem over a boltengine-backed database file.
package efsopen

import (
	"fmt"
	"os"

	"github.com/efscore/efs/crypto"
	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/kvstore/boltengine"
	"github.com/efscore/efs/workerpool"
)

func errKeySize(keyfile string, got int) error {
	return fmt.Errorf("efsopen: keyfile %s must contain exactly %d bytes, got %d", keyfile, crypto.KeySize, got)
}

// Options controls how Open resolves the master key and configures
// the resulting FileSystem.
type Options struct {
	DBPath    string
	Keyfile   string // if set, used as-is instead of prompting for a password
	Workers   int    // 0 runs AEAD inline
	BlockSize uint32
	Capacity  uint64
}

// Open resolves Options.DBPath's master key, opens the underlying
// bbolt database, and mounts it as an efs.FileSystem. The returned
// close func releases both the FileSystem and its engine.
func Open(opts Options) (fsys *efs.FileSystem, closeFn func() error, err error) {
	key, scrub, err := resolveKey(opts.DBPath, opts.Keyfile)
	if err != nil {
		return nil, nil, err
	}
	defer scrub()

	pool := workerpool.Inline
	if opts.Workers > 0 {
		pool = workerpool.New(opts.Workers)
	}
	engine := boltengine.New()
	if err := engine.Open(opts.DBPath); err != nil {
		return nil, nil, err
	}
	fsys, err = efs.Open(engine, opts.DBPath, efs.Config{
		DBKey:         key,
		BlockSize:     opts.BlockSize,
		CapacityBytes: opts.Capacity,
		WorkerPool:    pool,
	})
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return fsys, fsys.Close, nil
}

// resolveKey returns the 32-byte master key for dbPath, plus a func
// that scrubs any password-derived intermediate from memory.
func resolveKey(dbPath, keyfile string) (key []byte, scrub func(), err error) {
	if keyfile != "" {
		raw, err := os.ReadFile(keyfile)
		if err != nil {
			return nil, nil, err
		}
		if len(raw) != crypto.KeySize {
			return nil, nil, errKeySize(keyfile, len(raw))
		}
		return raw, func() {}, nil
	}
	password, err := crypto.ReadPassword("efs password: ")
	if err != nil {
		return nil, nil, err
	}
	salt, err := loadOrCreateSalt(dbPath + ".salt")
	if err != nil {
		return nil, nil, err
	}
	derived, err := crypto.DeriveKey(string(password), salt, crypto.DefaultKDFIterations)
	crypto.Zero(password)
	if err != nil {
		return nil, nil, err
	}
	return derived, func() { crypto.Zero(derived) }, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	salt, genErr := crypto.GenerateKey()
	if genErr != nil {
		return nil, genErr
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}
