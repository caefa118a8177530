// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pathwalk

import (
	"github.com/efscore/efs/errors"
	"github.com/efscore/efs/inode"
)

// Mask is a requested access mode, a bitwise-or of Read, Write, and
// Exec.
type Mask uint8

const (
	Read Mask = 1 << iota
	Write
	Exec
)

// Check enforces the standard owner/group/other permission bits of
// rec.Mode against mask for a caller identified by uid/gid (spec
// §4.E). Root (uid 0) bypasses read and write checks entirely, but
// still needs at least one of the owner/group/other execute bits set
// to satisfy an Exec request — root can read and write anything, but
// cannot traverse a directory, or execute a file, that nobody is
// allowed to execute.
func Check(rec *inode.Record, uid, gid uint32, mask Mask) error {
	if uid == 0 {
		if mask&Exec != 0 && rec.Mode&0o111 == 0 {
			return errors.E(errors.PermissionDenied, "pathwalk.Check")
		}
		return nil
	}

	var bits uint32
	switch {
	case uid == rec.Uid:
		bits = (rec.Mode >> 6) & 0o7
	case gid == rec.Gid:
		bits = (rec.Mode >> 3) & 0o7
	default:
		bits = rec.Mode & 0o7
	}

	var want uint32
	if mask&Read != 0 {
		want |= 0o4
	}
	if mask&Write != 0 {
		want |= 0o2
	}
	if mask&Exec != 0 {
		want |= 0o1
	}
	if bits&want != want {
		return errors.E(errors.PermissionDenied, "pathwalk.Check")
	}
	return nil
}
