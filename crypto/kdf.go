package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	"github.com/efscore/efs/errors"
)

// DefaultKDFIterations is used when a caller doesn't override the
// iteration count. It is well above the spec's 10,000 floor.
const DefaultKDFIterations = 100000

// MinKDFIterations is the floor below which DeriveKey refuses to run,
// per the spec's "≥ 10,000 iterations" contract.
const MinKDFIterations = 10000

// DeriveKey stretches password into a 256-bit key using PBKDF2-HMAC-
// SHA256 with the given salt and iteration count. iterations must be
// at least MinKDFIterations.
func DeriveKey(password string, salt []byte, iterations int) ([]byte, error) {
	if iterations < MinKDFIterations {
		return nil, errors.E(errors.InvalidArgument, "crypto.DeriveKey: iterations below minimum")
	}
	if len(salt) == 0 {
		return nil, errors.E(errors.InvalidArgument, "crypto.DeriveKey: empty salt")
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New), nil
}
