// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"

	"github.com/efscore/efs/efs"
)

// Init formats a fresh store. efsopen.Open has already called
// efs.Open by the time Run dispatches here, and efs.Open formats the
// root directory the first time it sees an empty store, so Init's own
// job is just to confirm that happened and report the root's inode
// number — running it twice against the same database is harmless.
func Init(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	ino, err := fsys.Ino("/", caller, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "store ready, root inode %d\n", ino)
	return nil
}
