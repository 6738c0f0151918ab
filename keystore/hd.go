package keystore

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// Mnemonic entropy sizes in bits.
const (
	Entropy12Words = 128
	Entropy24Words = 256
)

// NewMnemonic generates a fresh BIP-39 mnemonic with the given entropy size
// (Entropy12Words or Entropy24Words).
func NewMnemonic(entropyBits int) (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("generating entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generating mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether a mnemonic passes BIP-39 checksum
// validation.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(mnemonic))
}

// DeriveAccount derives the account at m/44'/60'/0'/0/index from a mnemonic.
func DeriveAccount(mnemonic string, index int) (Account, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !ValidateMnemonic(mnemonic) {
		return Account{}, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return Account{}, fmt.Errorf("deriving master key: %w", err)
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		uint32(index),
	}
	key := master
	for _, step := range path {
		key, err = key.Derive(step)
		if err != nil {
			return Account{}, fmt.Errorf("deriving child key: %w", err)
		}
	}

	btcPriv, err := key.ECPrivKey()
	if err != nil {
		return Account{}, fmt.Errorf("extracting private key: %w", err)
	}
	priv := btcPriv.ToECDSA()

	return Account{
		Address:    crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(priv)),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&priv.PublicKey)),
		Index:      index,
	}, nil
}

// AccountFromPrivateKey builds an account from a raw secp256k1 private key
// in hex, with or without the 0x prefix.
func AccountFromPrivateKey(privateKey string) (Account, error) {
	cleaned := strings.TrimSpace(privateKey)
	cleaned = strings.TrimPrefix(cleaned, "0x")

	priv, err := crypto.HexToECDSA(cleaned)
	if err != nil {
		return Account{}, ErrInvalidPrivateKey
	}

	return Account{
		Address:    crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(priv)),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&priv.PublicKey)),
		Index:      0,
	}, nil
}
