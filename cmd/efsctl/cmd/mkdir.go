// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"flag"
	"io"

	"github.com/efscore/efs/errors"

	"github.com/efscore/efs/efs"
)

func Mkdir(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	var (
		flags    flag.FlagSet
		modeFlag = flags.Uint("m", 0o755, "Permission bits for the new directory")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.E(errors.InvalidArgument, "efsctl mkdir: usage: mkdir [-m mode] path")
	}
	return fsys.Mkdir(flags.Arg(0), uint32(*modeFlag), caller)
}
