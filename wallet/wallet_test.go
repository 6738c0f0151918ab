package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihandong029/firstwallet/keystore"
	"github.com/zihandong029/firstwallet/rpcpool"
	"github.com/zihandong029/firstwallet/session"
	"github.com/zihandong029/firstwallet/storage/memory"
)

const (
	testPassword = "test-password"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// fakeClient satisfies rpcpool.Client for wallet tests.
type fakeClient struct {
	down    bool
	balance *big.Int
	sent    []*types.Transaction
	closed  bool
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if f.down {
		return 0, errors.New("connection refused")
	}
	return 100, nil
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) Close() { f.closed = true }

type fixture struct {
	svc     *Service
	clients map[string]*fakeClient
	allDown bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clients: make(map[string]*fakeClient)}

	dial := func(ctx context.Context, url string) (rpcpool.Client, error) {
		c := &fakeClient{down: f.allDown, balance: big.NewInt(1_500_000_000_000_000_000)}
		f.clients[url] = c
		return c, nil
	}

	st := memory.New()
	clk := clock.NewTestClock(t0)
	sessions := session.NewManager(session.Config{Timeout: 30 * time.Minute}, clk, nil)
	keys := keystore.New(st)

	var svc *Service
	saver := func(chainID uint64, index int) error { return svc.SaveRPCIndex(chainID, index) }
	selector := rpcpool.NewSelector(rpcpool.Config{}, dial, saver, nil)
	svc = New(keys, sessions, selector, nil)
	f.svc = svc
	return f
}

func restoredFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.svc.Restore(testMnemonic, testPassword)
	require.NoError(t, err)
	return f
}

func TestService_Generate(t *testing.T) {
	f := newFixture(t)

	mnemonic, address, err := f.svc.Generate(testPassword, keystore.Entropy12Words)
	require.NoError(t, err)
	assert.True(t, keystore.ValidateMnemonic(mnemonic))
	assert.NotEmpty(t, address)
	assert.True(t, f.svc.Unlocked())

	exists, err := f.svc.Exists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestService_GenerateWeakPassword(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Generate("short", keystore.Entropy12Words)
	assert.ErrorIs(t, err, keystore.ErrWeakPassword)
}

func TestService_RestoreKnownMnemonic(t *testing.T) {
	f := newFixture(t)
	address, err := f.svc.Restore(testMnemonic, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", address)
}

func TestService_RestoreInvalidMnemonic(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Restore("definitely not a mnemonic", testPassword)
	assert.ErrorIs(t, err, keystore.ErrInvalidMnemonic)
}

func TestService_UnlockLockCycle(t *testing.T) {
	f := restoredFixture(t)
	f.svc.Lock()
	assert.False(t, f.svc.Unlocked())

	_, err := f.svc.State()
	assert.ErrorIs(t, err, ErrLocked)

	ok, err := f.svc.Unlock("wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.svc.Unlocked())

	ok, err = f.svc.Unlock(testPassword)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.svc.Unlocked())
}

func TestService_LockClearsRPCCache(t *testing.T) {
	f := restoredFixture(t)

	_, err := f.svc.Balance(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, f.clients)

	f.svc.Lock()
	for url, client := range f.clients {
		assert.True(t, client.closed, "client for %s not closed on lock", url)
	}
}

func TestService_Accounts(t *testing.T) {
	f := restoredFixture(t)

	addresses, err := f.svc.Accounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"0x9858EfFD232B4033E47d90003D41EC34EcaEda94"}, addresses)
}

func TestService_AddAccount(t *testing.T) {
	f := restoredFixture(t)

	account, err := f.svc.AddAccount()
	require.NoError(t, err)
	assert.Equal(t, 1, account.Index)

	addresses, err := f.svc.Accounts()
	require.NoError(t, err)
	assert.Len(t, addresses, 2)
	assert.NotEqual(t, addresses[0], addresses[1])
}

func TestService_AddAccountWithoutMnemonic(t *testing.T) {
	f := newFixture(t)
	derived, err := keystore.DeriveAccount(testMnemonic, 0)
	require.NoError(t, err)
	_, err = f.svc.ImportPrivateKey(derived.PrivateKey, testPassword)
	require.NoError(t, err)

	_, err = f.svc.AddAccount()
	assert.ErrorIs(t, err, ErrNoMnemonic)
}

func TestService_SwitchAccount(t *testing.T) {
	f := restoredFixture(t)
	_, err := f.svc.AddAccount()
	require.NoError(t, err)

	require.NoError(t, f.svc.SwitchAccount(1))
	state, err := f.svc.State()
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentAccount)

	assert.ErrorIs(t, f.svc.SwitchAccount(5), ErrInvalidAccountIndex)
}

func TestService_SwitchNetwork(t *testing.T) {
	f := restoredFixture(t)

	require.NoError(t, f.svc.SwitchNetwork(context.Background(), keystore.ChainIDSepolia))
	network, err := f.svc.CurrentNetwork()
	require.NoError(t, err)
	assert.Equal(t, uint64(keystore.ChainIDSepolia), network.ChainID)
}

func TestService_SwitchNetworkUnknownChain(t *testing.T) {
	f := restoredFixture(t)
	err := f.svc.SwitchNetwork(context.Background(), 137)
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestService_SwitchNetworkProbeFailureIsAdvisory(t *testing.T) {
	f := restoredFixture(t)
	f.allDown = true

	require.NoError(t, f.svc.SwitchNetwork(context.Background(), keystore.ChainIDSepolia))
	network, err := f.svc.CurrentNetwork()
	require.NoError(t, err)
	assert.Equal(t, uint64(keystore.ChainIDSepolia), network.ChainID)
}

func TestService_AddNetwork(t *testing.T) {
	f := restoredFixture(t)

	err := f.svc.AddNetwork(context.Background(), keystore.Network{
		Name:    "Polygon",
		ChainID: 137,
		Symbol:  "POL",
		RPCURLs: []string{"https://polygon-rpc.example"},
	})
	require.NoError(t, err)

	network, err := f.svc.CurrentNetwork()
	require.NoError(t, err)
	assert.Equal(t, uint64(137), network.ChainID)
}

func TestService_AddNetworkProbeFailureBlocks(t *testing.T) {
	f := restoredFixture(t)
	f.allDown = true

	err := f.svc.AddNetwork(context.Background(), keystore.Network{
		Name:    "Polygon",
		ChainID: 137,
		Symbol:  "POL",
		RPCURLs: []string{"https://polygon-rpc.example"},
	})
	assert.ErrorIs(t, err, rpcpool.ErrNoReachableEndpoint)

	// The network was not added.
	err = f.svc.SwitchNetwork(context.Background(), 137)
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestService_AddNetworkDuplicateChain(t *testing.T) {
	f := restoredFixture(t)
	err := f.svc.AddNetwork(context.Background(), keystore.Network{
		Name:    "Mainnet again",
		ChainID: keystore.ChainIDMainnet,
		Symbol:  "ETH",
		RPCURLs: []string{"https://rpc.example"},
	})
	assert.ErrorIs(t, err, ErrChainExists)
}

func TestService_AddNetworkMissingFields(t *testing.T) {
	f := restoredFixture(t)
	err := f.svc.AddNetwork(context.Background(), keystore.Network{ChainID: 137})
	assert.Error(t, err)
}

func TestService_RemoveNetwork(t *testing.T) {
	f := restoredFixture(t)
	require.NoError(t, f.svc.AddNetwork(context.Background(), keystore.Network{
		Name:    "Polygon",
		ChainID: 137,
		Symbol:  "POL",
		RPCURLs: []string{"https://polygon-rpc.example"},
	}))

	require.NoError(t, f.svc.RemoveNetwork(137))
	network, err := f.svc.CurrentNetwork()
	require.NoError(t, err)
	assert.Equal(t, uint64(keystore.ChainIDMainnet), network.ChainID)

	assert.ErrorIs(t, f.svc.RemoveNetwork(keystore.ChainIDMainnet), ErrBuiltinChain)
	assert.ErrorIs(t, f.svc.RemoveNetwork(keystore.ChainIDSepolia), ErrBuiltinChain)
}

func TestService_TestNetworkConnection(t *testing.T) {
	f := restoredFixture(t)

	result := f.svc.TestNetworkConnection(context.Background(), keystore.ChainIDMainnet)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RPCURL)

	result = f.svc.TestNetworkConnection(context.Background(), 999)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestService_TestNetworkConnectionAllDown(t *testing.T) {
	f := restoredFixture(t)
	f.allDown = true

	result := f.svc.TestNetworkConnection(context.Background(), keystore.ChainIDMainnet)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Ethereum Mainnet")
}

func TestService_Balance(t *testing.T) {
	f := restoredFixture(t)

	balance, err := f.svc.Balance(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1.5", balance)
}

func TestService_BalanceDegradesToZero(t *testing.T) {
	f := restoredFixture(t)
	f.allDown = true

	balance, err := f.svc.Balance(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "0", balance)
}

func TestService_SignMessage(t *testing.T) {
	f := restoredFixture(t)

	signature, err := f.svc.SignMessage([]byte("hello"))
	require.NoError(t, err)
	// 65 bytes hex-encoded with 0x prefix.
	assert.Len(t, signature, 132)

	f.svc.Lock()
	_, err = f.svc.SignMessage([]byte("hello"))
	assert.ErrorIs(t, err, ErrLocked)
}

func TestService_SignTransaction(t *testing.T) {
	f := restoredFixture(t)

	to := "0x000000000000000000000000000000000000dEaD"
	tx, err := f.svc.SignTransaction(context.Background(), to, big.NewInt(1), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())

	signer := types.NewEIP155Signer(big.NewInt(keystore.ChainIDMainnet))
	from, err := types.Sender(signer, tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), from)
}

func TestService_SendTransaction(t *testing.T) {
	f := restoredFixture(t)

	hash, err := f.svc.SendTransaction(context.Background(), "0x000000000000000000000000000000000000dEaD", big.NewInt(1), 0, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	var sent int
	for _, client := range f.clients {
		sent += len(client.sent)
	}
	assert.Equal(t, 1, sent)
}

func TestService_SaveRPCIndex(t *testing.T) {
	f := restoredFixture(t)

	network, err := f.svc.CurrentNetwork()
	require.NoError(t, err)

	require.NoError(t, f.svc.SaveRPCIndex(network.ChainID, 2))
	network, err = f.svc.CurrentNetwork()
	require.NoError(t, err)
	assert.Equal(t, 2, network.LastRPCIndex)

	// Unknown chains are ignored.
	require.NoError(t, f.svc.SaveRPCIndex(4242, 1))
}
