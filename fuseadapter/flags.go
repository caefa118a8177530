// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"syscall"

	"github.com/efscore/efs/efs"
)

// translateOpenFlags maps the kernel's POSIX open(2) flag bits (as
// delivered by go-fuse in OpenIn/CreateIn) onto efs's own internal
// flag bits, which are a distinct bitset (see fdtable.go).
func translateOpenFlags(kernelFlags uint32) int {
	var out int
	switch int(kernelFlags) & syscall.O_ACCMODE {
	case syscall.O_WRONLY:
		out |= efs.OWronly
	case syscall.O_RDWR:
		out |= efs.ORdwr
	default:
		out |= efs.ORdonly
	}
	if kernelFlags&syscall.O_CREAT != 0 {
		out |= efs.OCreat
	}
	if kernelFlags&syscall.O_EXCL != 0 {
		out |= efs.OExcl
	}
	if kernelFlags&syscall.O_TRUNC != 0 {
		out |= efs.OTrunc
	}
	if kernelFlags&syscall.O_APPEND != 0 {
		out |= efs.OAppend
	}
	return out
}
