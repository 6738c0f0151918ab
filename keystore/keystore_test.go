package keystore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihandong029/firstwallet/storage/memory"
)

const testPassword = "test-password"

// The BIP-39 reference vector mnemonic; address and key for index 0 at
// m/44'/60'/0'/0/0 are well-known.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testState(t *testing.T) *WalletState {
	t.Helper()
	account, err := DeriveAccount(testMnemonic, 0)
	require.NoError(t, err)
	return &WalletState{
		Accounts:       []Account{account},
		CurrentAccount: 0,
		Mnemonic:       testMnemonic,
		Networks:       DefaultNetworks(),
		CurrentNetwork: 0,
	}
}

func TestStore_CreateUnlockRoundTrip(t *testing.T) {
	s := New(memory.New())
	state := testState(t)

	require.NoError(t, s.Create(state, testPassword))

	got, err := s.Unlock(testPassword)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestStore_UnlockWrongPassword(t *testing.T) {
	s := New(memory.New())
	require.NoError(t, s.Create(testState(t), testPassword))

	got, err := s.Unlock("not-the-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Nil(t, got)
}

func TestStore_CreateWeakPassword(t *testing.T) {
	s := New(memory.New())
	err := s.Create(testState(t), "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestStore_CreateTwice(t *testing.T) {
	s := New(memory.New())
	require.NoError(t, s.Create(testState(t), testPassword))
	assert.ErrorIs(t, s.Create(testState(t), testPassword), ErrWalletExists)
}

func TestStore_Exists(t *testing.T) {
	s := New(memory.New())

	exists, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Create(testState(t), testPassword))

	exists, err = s.Exists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_UnlockNoWallet(t *testing.T) {
	s := New(memory.New())
	_, err := s.Unlock(testPassword)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestStore_PersistReplacesBlob(t *testing.T) {
	s := New(memory.New())
	state := testState(t)
	require.NoError(t, s.Create(state, testPassword))

	second, err := DeriveAccount(testMnemonic, 1)
	require.NoError(t, err)
	state.Accounts = append(state.Accounts, second)
	state.CurrentAccount = 1
	require.NoError(t, s.Persist(state, testPassword))

	got, err := s.Unlock(testPassword)
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 2)
	assert.Equal(t, 1, got.CurrentAccount)
}

func TestStore_PersistRejectsInvalidState(t *testing.T) {
	s := New(memory.New())
	err := s.Persist(&WalletState{}, testPassword)
	assert.Error(t, err)
}

func TestWalletState_Validate(t *testing.T) {
	state := testState(t)
	require.NoError(t, state.Validate())

	bad := *state
	bad.CurrentAccount = 5
	assert.Error(t, bad.Validate())

	bad = *state
	bad.Networks = nil
	assert.Error(t, bad.Validate())

	bad = *state
	bad.Networks = append([]Network{}, state.Networks...)
	bad.Networks = append(bad.Networks, Network{Name: "dup", ChainID: ChainIDMainnet, RPCURLs: []string{"http://x"}})
	assert.Error(t, bad.Validate())
}

func TestDeriveAccount_KnownVector(t *testing.T) {
	account, err := DeriveAccount(testMnemonic, 0)
	require.NoError(t, err)
	// Standard address for the reference mnemonic at index 0.
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", account.Address)
	assert.Equal(t, 0, account.Index)
}

func TestDeriveAccount_DistinctIndexes(t *testing.T) {
	a0, err := DeriveAccount(testMnemonic, 0)
	require.NoError(t, err)
	a1, err := DeriveAccount(testMnemonic, 1)
	require.NoError(t, err)
	assert.NotEqual(t, a0.Address, a1.Address)
	assert.Equal(t, 1, a1.Index)
}

func TestDeriveAccount_InvalidMnemonic(t *testing.T) {
	_, err := DeriveAccount("not a real mnemonic phrase at all", 0)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestAccountFromPrivateKey(t *testing.T) {
	derived, err := DeriveAccount(testMnemonic, 0)
	require.NoError(t, err)

	// With and without the 0x prefix.
	imported, err := AccountFromPrivateKey(derived.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, derived.Address, imported.Address)

	imported2, err := AccountFromPrivateKey(derived.PrivateKey[2:])
	require.NoError(t, err)
	assert.Equal(t, derived.Address, imported2.Address)
}

func TestAccountFromPrivateKey_Invalid(t *testing.T) {
	_, err := AccountFromPrivateKey("0xzz")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestNewMnemonic(t *testing.T) {
	m12, err := NewMnemonic(Entropy12Words)
	require.NoError(t, err)
	assert.Len(t, splitWords(m12), 12)
	assert.True(t, ValidateMnemonic(m12))

	m24, err := NewMnemonic(Entropy24Words)
	require.NoError(t, err)
	assert.Len(t, splitWords(m24), 24)
	assert.True(t, ValidateMnemonic(m24))
}

func splitWords(mnemonic string) []string {
	return strings.Fields(mnemonic)
}
