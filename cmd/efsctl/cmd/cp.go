// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"io"

	"github.com/efscore/efs/errors"

	"github.com/efscore/efs/efs"
)

// Cp copies a file between two paths within the mounted store. A
// host-filesystem source or destination isn't supported here: use
// cat/put-style redirection through the shell for that.
func Cp(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	if len(args) != 2 {
		return errors.E(errors.InvalidArgument, "efsctl cp: usage: cp src dst")
	}
	rec, err := fsys.Stat(args[0], caller)
	if err != nil {
		return err
	}
	return fsys.CopyFile(args[0], args[1], rec.Mode, caller)
}
