package keystore

import "errors"

var (
	// ErrWeakPassword indicates the supplied password does not meet the
	// minimum length requirement.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrInvalidPassword indicates decryption of the wallet blob failed.
	// Wrong password and blob corruption are deliberately indistinguishable.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrWalletNotFound indicates no wallet blob has been created yet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletExists indicates a wallet blob is already present.
	ErrWalletExists = errors.New("wallet already exists")
	// ErrInvalidMnemonic indicates a mnemonic failed BIP-39 validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	// ErrInvalidPrivateKey indicates a private key string could not be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key format")
)
