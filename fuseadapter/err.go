// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fuseadapter

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/efscore/efs/errors"
)

func errToErrno(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}
	if errno, ok := errors.KindOf(err).Errno(); ok {
		return errno
	}
	return syscall.EIO
}
