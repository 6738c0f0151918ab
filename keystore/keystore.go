// Package keystore owns the single encrypted wallet blob: its data model,
// the password-derived encryption envelope, and HD key derivation for the
// accounts inside it.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zihandong029/firstwallet/internal/util"
	"github.com/zihandong029/firstwallet/storage"
)

const (
	bucketWallet = "wallet"
	keyBlob      = "blob"

	// MinPasswordLen is the minimum accepted wallet password length.
	MinPasswordLen = 8

	envelopeVersion = 1
	saltSize        = 16
)

// envelope is the stored form of the wallet blob: argon2id parameters and
// salt in the clear, state JSON sealed with AES-256-GCM.
type envelope struct {
	Version    int                 `json:"version"`
	KDF        util.Argon2idParams `json:"kdf"`
	Salt       []byte              `json:"salt"`
	Ciphertext []byte              `json:"ciphertext"`
}

// Store persists exactly one encrypted wallet at a time.
type Store struct {
	store storage.Store
}

// New returns a key store backed by the given storage.
func New(st storage.Store) *Store {
	return &Store{store: st}
}

// CheckPassword validates password strength for wallet creation.
func CheckPassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// Exists reports whether a wallet blob is present, independent of password.
func (s *Store) Exists() (bool, error) {
	_, err := s.store.Get(bucketWallet, keyBlob)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking wallet blob: %w", err)
	}
	return true, nil
}

// Create persists the initial wallet state. It enforces password strength
// and refuses to overwrite an existing wallet.
func (s *Store) Create(state *WalletState, password string) error {
	if err := CheckPassword(password); err != nil {
		return err
	}
	exists, err := s.Exists()
	if err != nil {
		return err
	}
	if exists {
		return ErrWalletExists
	}
	return s.Persist(state, password)
}

// Persist re-encrypts state and replaces the stored blob. The replacement is
// atomic at the storage layer; a fresh salt and nonce are used every time.
func (s *Store) Persist(state *WalletState, password string) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid wallet state: %w", err)
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding wallet state: %w", err)
	}
	defer util.WipeBytes(plaintext)

	salt, err := util.RandomBytes(saltSize)
	if err != nil {
		return err
	}
	params := util.DefaultArgon2idParams()
	key, err := util.DeriveArgon2idKey(password, salt, params)
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	ciphertext, err := util.EncryptAES(plaintext, key)
	if err != nil {
		return fmt.Errorf("encrypting wallet state: %w", err)
	}

	blob, err := json.Marshal(envelope{
		Version:    envelopeVersion,
		KDF:        params,
		Salt:       salt,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return fmt.Errorf("encoding wallet envelope: %w", err)
	}

	if err := s.store.Put(bucketWallet, keyBlob, blob); err != nil {
		return fmt.Errorf("writing wallet blob: %w", err)
	}
	return nil
}

// Unlock decrypts the stored blob with password. Any decryption or decoding
// failure is reported as ErrInvalidPassword; the caller cannot tell a wrong
// password from a corrupt blob.
func (s *Store) Unlock(password string) (*WalletState, error) {
	blob, err := s.store.Get(bucketWallet, keyBlob)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading wallet blob: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, ErrInvalidPassword
	}

	key, err := util.DeriveArgon2idKey(password, env.Salt, env.KDF)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	defer util.WipeBytes(key)

	plaintext, err := util.DecryptAES(env.Ciphertext, key)
	if err != nil {
		return nil, ErrInvalidPassword
	}
	defer util.WipeBytes(plaintext)

	var state WalletState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrInvalidPassword
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("decrypted wallet state invalid: %w", err)
	}
	return &state, nil
}
