// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements the flat error-kind taxonomy used across
// every efs subsystem (crypto, kvstore, inode, fdtable, pathwalk,
// facade). Errors carry an interpretable Kind so that callers can
// decide whether to retry (only TransactionConflict ever is) without
// string-matching messages. Errors can be chained: one error can be
// attributed to another, and the chain is printed by Error().
package errors

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"syscall"

	"github.com/efscore/efs/log"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ":\n\t"

// Kind defines the type of error. Kinds are semantically meaningful
// and are interpreted by callers, e.g. to decide whether an operation
// should be retried.
type Kind int

const (
	// Other indicates an unknown error.
	Other Kind = iota
	// NotFound indicates the target path or inode does not exist.
	NotFound
	// AlreadyExists indicates a directory entry with that name already
	// exists.
	AlreadyExists
	// NotADirectory indicates a directory operation was attempted on a
	// non-directory inode.
	NotADirectory
	// IsADirectory indicates a non-directory operation was attempted on
	// a directory inode.
	IsADirectory
	// NotEmpty indicates rmdir was attempted on a non-empty directory.
	NotEmpty
	// PermissionDenied indicates the requesting uid/gid lacks the mode
	// bits required for the operation.
	PermissionDenied
	// BadFileDescriptor indicates an operation was attempted on an
	// unallocated or already-closed file descriptor.
	BadFileDescriptor
	// InvalidArgument indicates a malformed argument (bad path, bad
	// flag combination, bad block size, etc).
	InvalidArgument
	// SymlinkLoop indicates path resolution exceeded the symlink hop
	// bound.
	SymlinkLoop
	// NameTooLong indicates a path component exceeded the maximum
	// allowed length.
	NameTooLong
	// NoSpace indicates the underlying store refused a write.
	NoSpace
	// ReadOnly indicates a mutating call was made against a read-only
	// filesystem or file descriptor.
	ReadOnly
	// Corruption indicates an AEAD authentication failure or a
	// violated on-disk invariant. Never retried.
	Corruption
	// WorkerUnavailable indicates the worker pool could not accept or
	// complete a dispatched crypto operation.
	WorkerUnavailable
	// TransactionConflict indicates a transaction's lock set must be
	// expanded and the operation retried.
	TransactionConflict

	maxKind
)

var kinds = map[Kind]string{
	Other:               "unknown error",
	NotFound:            "not found",
	AlreadyExists:       "already exists",
	NotADirectory:       "not a directory",
	IsADirectory:        "is a directory",
	NotEmpty:            "directory not empty",
	PermissionDenied:    "permission denied",
	BadFileDescriptor:   "bad file descriptor",
	InvalidArgument:     "invalid argument",
	SymlinkLoop:         "too many levels of symbolic links",
	NameTooLong:         "name too long",
	NoSpace:             "no space left on device",
	ReadOnly:            "read-only filesystem",
	Corruption:          "data corruption",
	WorkerUnavailable:   "worker pool unavailable",
	TransactionConflict: "transaction conflict",
}

// kindErrnos maps kinds to the POSIX errno a facade caller expects,
// e.g. for a FUSE adapter that must return a syscall.Errno.
var kindErrnos = map[Kind]syscall.Errno{
	NotFound:            syscall.ENOENT,
	AlreadyExists:       syscall.EEXIST,
	NotADirectory:       syscall.ENOTDIR,
	IsADirectory:        syscall.EISDIR,
	NotEmpty:            syscall.ENOTEMPTY,
	PermissionDenied:    syscall.EACCES,
	BadFileDescriptor:   syscall.EBADF,
	InvalidArgument:     syscall.EINVAL,
	SymlinkLoop:         syscall.ELOOP,
	NameTooLong:         syscall.ENAMETOOLONG,
	NoSpace:             syscall.ENOSPC,
	ReadOnly:            syscall.EROFS,
	Corruption:          syscall.EIO,
	WorkerUnavailable:   syscall.EAGAIN,
	TransactionConflict: syscall.EAGAIN,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s
	}
	return kinds[Other]
}

// Errno maps k to the POSIX errno a syscall-facing caller expects.
// It returns false if there is no sensible mapping (Other).
func (k Kind) Errno() (syscall.Errno, bool) {
	errno, ok := kindErrnos[k]
	return errno, ok
}

// Error is efs's standard error type: a kind, an optional message,
// and an optional wrapped cause. Construct with E.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E constructs a new *Error from the provided arguments, interpreted
// by type:
//
//   - Kind: sets the Kind
//   - string: appended to Message (space separated)
//   - *Error / error: sets the wrapped cause
//
// If no Kind is given but the cause is itself an *Error, the new
// error inherits the cause's Kind.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg)
			return &Error{Kind: InvalidArgument, Message: fmt.Sprintf("unknown argument type %T", arg)}
		}
	}
	e.Message = msg.String()
	if e.Kind == Other {
		if prev, ok := e.Err.(*Error); ok {
			e.Kind = prev.Kind
		}
	}
	return e
}

// Is reports whether err (or any error in its chain) is an *Error of
// kind k. It composes with the standard library's errors.Is.
func Is(k Kind, err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == k {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		padColon(b)
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

func padColon(b *bytes.Buffer) {
	if b.Len() > 0 {
		b.WriteString(": ")
	}
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// Unwrap returns e's cause, if any. It lets the standard library's
// errors.Unwrap/Is/As work with *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error with kind Other and the given message, for
// use where no specific Kind applies (e.g. internal test fixtures).
func New(msg string) error {
	return &Error{Message: msg}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, or
// Other otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
