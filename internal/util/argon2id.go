package util

import (
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"
)

// Argon2idParams are the tunable cost parameters for the password KDF. They
// are stored alongside the ciphertext so old blobs stay decryptable after a
// parameter bump.
type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// DefaultArgon2idParams returns the cost parameters used for new wallets.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// DeriveArgon2idKey stretches a password into an AES key. The password is
// NFKD-normalized first so that visually identical Unicode input derives the
// same key on every platform.
func DeriveArgon2idKey(password string, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != AESKeySize {
		return nil, fmt.Errorf("argon2id key length must be %d bytes", AESKeySize)
	}
	normalized := norm.NFKD.String(password)
	key := argon2.IDKey([]byte(normalized), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return key, nil
}
