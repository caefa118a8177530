// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package efs

import "github.com/efscore/efs/errors"

// Flush, Fsync and Fsyncdir are no-ops beyond validating fd: every
// facade mutation already commits its owning transaction before
// returning, so there is never a dirty buffer left to push out (spec
// §4.F).

// Flush is called on close(2) in FUSE's model; it has nothing to do
// here but must still reject a stale fd.
func (fs *FileSystem) Flush(fd int) error {
	if _, ok := fs.fds.Get(fd); !ok {
		return errors.E(errors.BadFileDescriptor, "efs.Flush")
	}
	return nil
}

// Fsync is fsync(2); same reasoning as Flush.
func (fs *FileSystem) Fsync(fd int) error {
	if _, ok := fs.fds.Get(fd); !ok {
		return errors.E(errors.BadFileDescriptor, "efs.Fsync")
	}
	return nil
}

// Fsyncdir is fsync(2) on a directory fd.
func (fs *FileSystem) Fsyncdir(fd int) error {
	if _, ok := fs.fds.Get(fd); !ok {
		return errors.E(errors.BadFileDescriptor, "efs.Fsyncdir")
	}
	return nil
}
