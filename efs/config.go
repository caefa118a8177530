// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package efs implements the POSIX facade (spec §4.F): path-addressed
// operations (open/read/write/close, directories, symlinks, character
// devices, stat/chmod/chown, rename, link/unlink) composed atop the
// inode manager, the FD table, and the path/permission layer, each
// wrapped in a kvstore transaction locking the inode numbers the
// operation touches.
package efs

import (
	"github.com/efscore/efs/crypto"
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
	"github.com/efscore/efs/workerpool"
)

// DefaultBlockSize is used when Config.BlockSize is zero.
const DefaultBlockSize = 4096

// DefaultUmask is used when Config.Umask is zero.
const DefaultUmask = 0o022

// Config assembles an efs.FileSystem over a caller-opened
// kvstore.Engine. Exactly one of DBKey or Password must be set; when
// Password is set, Salt must also be set (persisting the salt
// alongside the database is the caller's responsibility, matching
// kvstore.Engine's "external collaborator" status — efs never writes
// files outside the Engine it's given).
type Config struct {
	// DBKey is a 32-byte master key, used as-is.
	DBKey []byte
	// Password, with Salt, derives a master key via PBKDF2.
	Password string
	Salt     []byte
	// KDFIterations overrides crypto.DefaultKDFIterations when deriving
	// from Password.
	KDFIterations int

	// BlockSize is the default new-file block size (DefaultBlockSize if
	// zero).
	BlockSize uint32
	// Umask is ANDed against the complement of every create mode
	// (DefaultUmask if zero).
	Umask uint32
	// CapacityBytes is the configured total capacity Statfs reports
	// against; zero means unbounded (Statfs reports no space pressure).
	CapacityBytes uint64

	// WorkerPool offloads AEAD; nil runs it inline on the caller's
	// goroutine.
	WorkerPool workerpool.Pool
	// DeviceTable resolves CharacterDev inodes; nil gets
	// inode.NewDeviceTable()'s built-in /dev/null and /dev/zero.
	DeviceTable inode.DeviceTable
}

func (c Config) resolveKey() ([]byte, error) {
	if len(c.DBKey) > 0 {
		if len(c.Password) > 0 {
			return nil, errors.E(errors.InvalidArgument, "efs.Config: both DBKey and Password set")
		}
		if len(c.DBKey) != crypto.KeySize {
			return nil, errors.E(errors.InvalidArgument, "efs.Config: DBKey must be 32 bytes")
		}
		return c.DBKey, nil
	}
	if len(c.Password) == 0 {
		return nil, errors.E(errors.InvalidArgument, "efs.Config: neither DBKey nor Password set")
	}
	iterations := c.KDFIterations
	if iterations == 0 {
		iterations = crypto.DefaultKDFIterations
	}
	return crypto.DeriveKey(c.Password, c.Salt, iterations)
}

func (c Config) blockSize() uint32 {
	if c.BlockSize == 0 {
		return DefaultBlockSize
	}
	return c.BlockSize
}

func (c Config) umask() uint32 {
	if c.Umask == 0 {
		return DefaultUmask
	}
	return c.Umask
}

func (c Config) deviceTable() inode.DeviceTable {
	if c.DeviceTable == nil {
		return inode.NewDeviceTable()
	}
	return c.DeviceTable
}
