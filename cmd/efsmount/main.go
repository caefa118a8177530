// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command efsmount mounts an encrypted efs store as a real FUSE
// filesystem, the encrypted-store counterpart to grail-fuse's S3
// mount.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/efscore/efs/cmd/internal/efsopen"
	"github.com/efscore/efs/efs"
	"github.com/efscore/efs/flock"
	"github.com/efscore/efs/fuseadapter"
	"github.com/efscore/efs/log"
	"github.com/efscore/efs/must"
	"github.com/efscore/efs/retry"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage:
%s [flags...] MOUNTDIR

To unmount the file system, run "fusermount -u MOUNTDIR".
`, os.Args[0])
		flag.PrintDefaults()
	}
	dbFlag := flag.String("db", "", "Path to the efs database file (required)")
	keyfileFlag := flag.String("keyfile", "", "Path to a raw 32-byte master key; if empty, a password is prompted for")
	blockSizeFlag := flag.Uint("block-size", efs.DefaultBlockSize, "Default block size for new files")
	capacityFlag := flag.Uint64("capacity", 0, "Capacity in bytes reported by statfs (0 means unbounded)")
	workersFlag := flag.Int("workers", 0, "Worker goroutines for AEAD offload (0 runs inline)")
	uidFlag := flag.Uint("uid", uint(os.Getuid()), "Uid every mounted operation runs as")
	gidFlag := flag.Uint("gid", uint(os.Getgid()), "Gid every mounted operation runs as")
	debugFlag := flag.Bool("debug", false, "Log every FUSE request")
	log.AddFlags()
	log.SetFlags(log.Lmicroseconds | log.Lshortfile)
	flag.Parse()
	args := flag.Args()
	if *dbFlag == "" {
		log.Panic("efsmount: -db is required")
	}
	if len(args) != 1 {
		log.Panic("efsmount: missing mount point")
	}
	mountDir := args[0]

	// Only one mount of a given database may run at a time: two Stores
	// writing the same bbolt file would corrupt it. The lock file lives
	// alongside the database, like the password salt file.
	dbLock := flock.New(*dbFlag + ".lock")
	must.Nilf(acquireLock(dbLock), "efsmount: lock %s (already mounted?)", *dbFlag)
	defer dbLock.Unlock()

	fsys, closeFS, err := efsopen.Open(efsopen.Options{
		DBPath:    *dbFlag,
		Keyfile:   *keyfileFlag,
		Workers:   *workersFlag,
		BlockSize: uint32(*blockSizeFlag),
		Capacity:  *capacityFlag,
	})
	must.Nilf(err, "efsmount: open %s", *dbFlag)
	defer closeFS()

	must.Nilf(os.MkdirAll(mountDir, 0o700), "efsmount: mkdir %s", mountDir)
	caller := efs.Caller{Uid: uint32(*uidFlag), Gid: uint32(*gidFlag)}
	root := fuseadapter.NewRoot(fsys, caller)
	opts := &gofuse.Options{
		MountOptions: fuse.MountOptions{Debug: *debugFlag},
	}
	fuseadapter.ConfigureMountOptions(&opts.MountOptions)
	server, err := gofuse.Mount(mountDir, root, opts)
	must.Nilf(err, "efsmount: mount %s", mountDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Print("efsmount: received shutdown signal, unmounting")
		server.Unmount()
	}()
	server.Wait()
}

// acquireLock retries a contended database lock for a few seconds
// before giving up, covering the common case of mounting right after
// a prior efsmount for the same database is still tearing down.
func acquireLock(l flock.FileLock) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	policy := retry.Jitter(retry.Backoff(50*time.Millisecond, time.Second, 2), 0.2)
	for retries := 0; ; retries++ {
		err := l.Lock(ctx)
		if err == nil {
			return nil
		}
		if waitErr := retry.Wait(ctx, policy, retries); waitErr != nil {
			return err
		}
	}
}
