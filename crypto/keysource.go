package crypto

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/efscore/efs/errors"
)

// ReadPassword prompts on stdout and reads a password from stdin
// without echoing it, the way a terminal-facing CLI needs to when
// opening a password-protected store. The returned bytes are the raw
// password; callers should zero them after deriving a key.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stdout, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return nil, errors.E(errors.Other, "crypto.ReadPassword", err)
	}
	return password, nil
}

// Zero overwrites b with zero bytes in place, for scrubbing a
// password or key from memory once it has been consumed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
