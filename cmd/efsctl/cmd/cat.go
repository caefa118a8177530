// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"io"

	"github.com/efscore/efs/efs"
)

func Cat(fsys *efs.FileSystem, caller efs.Caller, out io.Writer, args []string) error {
	for _, path := range args {
		data, err := fsys.ReadFile(path, caller)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}
