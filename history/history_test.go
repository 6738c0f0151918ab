package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

type stubProvider struct {
	name  string
	txs   []Transaction
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) GetTransactions(ctx context.Context, chainID uint64, address string, opts Options) ([]Transaction, error) {
	p.calls++
	return p.txs, p.err
}

func TestService_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", txs: []Transaction{{Hash: "0xaa"}}}
	second := &stubProvider{name: "second"}
	svc := NewService(nil, first, second)

	txs, err := svc.GetTransactions(context.Background(), 1, testAddress, Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0xaa", txs[0].Hash)
	assert.Zero(t, second.calls)
}

func TestService_FallsBackOnFailure(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("rate limited")}
	second := &stubProvider{name: "second", txs: []Transaction{{Hash: "0xbb"}}}
	svc := NewService(nil, first, second)

	txs, err := svc.GetTransactions(context.Background(), 1, testAddress, Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0xbb", txs[0].Hash)
	assert.Equal(t, 1, first.calls)
}

func TestService_AllProvidersFail(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("down")}
	second := &stubProvider{name: "second", err: errors.New("also down")}
	svc := NewService(nil, first, second)

	_, err := svc.GetTransactions(context.Background(), 1, testAddress, Options{})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "second", provErr.Provider)
	assert.Equal(t, uint64(1), provErr.ChainID)
	assert.EqualError(t, provErr.Cause, "also down")
}

func TestService_NoProviders(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.GetTransactions(context.Background(), 1, testAddress, Options{})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestEtherscan_ParsesTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "account", r.URL.Query().Get("module"))
		assert.Equal(t, "txlist", r.URL.Query().Get("action"))
		assert.Equal(t, testAddress, r.URL.Query().Get("address"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort"))
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "1",
			"message": "OK",
			"result": []map[string]string{{
				"hash":        "0xabc",
				"from":        testAddress,
				"to":          "0x1111111111111111111111111111111111111111",
				"value":       "1000000000000000000",
				"blockNumber": "19000000",
				"timeStamp":   "1700000000",
			}},
		})
	}))
	defer srv.Close()

	e := NewEtherscan("", srv.Client())
	withBaseURL(t, 1, srv.URL)

	txs, err := e.GetTransactions(context.Background(), 1, testAddress, Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0xabc", txs[0].Hash)
	assert.Equal(t, uint64(19000000), txs[0].BlockNumber)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), txs[0].Timestamp)
}

func TestEtherscan_EmptyHistoryIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "0",
			"message": "No transactions found",
			"result":  []map[string]string{},
		})
	}))
	defer srv.Close()

	e := NewEtherscan("", srv.Client())
	withBaseURL(t, 1, srv.URL)

	txs, err := e.GetTransactions(context.Background(), 1, testAddress, Options{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestEtherscan_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "0",
			"message": "NOTOK",
			"result":  []map[string]string{},
		})
	}))
	defer srv.Close()

	e := NewEtherscan("", srv.Client())
	withBaseURL(t, 1, srv.URL)

	_, err := e.GetTransactions(context.Background(), 1, testAddress, Options{})
	assert.ErrorContains(t, err, "NOTOK")
}

func TestEtherscan_UnsupportedChain(t *testing.T) {
	e := NewEtherscan("", nil)
	_, err := e.GetTransactions(context.Background(), 137, testAddress, Options{})
	assert.ErrorContains(t, err, "not supported")
}

func TestMoralis_ParsesTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+testAddress, r.URL.Path)
		assert.Equal(t, "0x1", r.URL.Query().Get("chain"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]string{{
				"hash":            "0xdef",
				"from_address":    testAddress,
				"to_address":      "0x2222222222222222222222222222222222222222",
				"value":           "500000000000000000",
				"block_number":    "19000001",
				"block_timestamp": "2023-11-14T22:13:20Z",
			}},
		})
	}))
	defer srv.Close()

	m := NewMoralis("test-key", srv.Client())
	previous := moralisBaseURL
	moralisBaseURL = srv.URL
	t.Cleanup(func() { moralisBaseURL = previous })

	txs, err := m.GetTransactions(context.Background(), 1, testAddress, Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0xdef", txs[0].Hash)
	assert.Equal(t, uint64(19000001), txs[0].BlockNumber)
	assert.Equal(t, time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC), txs[0].Timestamp)
}

func TestMoralis_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewMoralis("bad-key", srv.Client())
	previous := moralisBaseURL
	moralisBaseURL = srv.URL
	t.Cleanup(func() { moralisBaseURL = previous })

	_, err := m.GetTransactions(context.Background(), 1, testAddress, Options{})
	assert.ErrorContains(t, err, "unexpected status 401")
}

// withBaseURL points a chain's Etherscan endpoint at a test server for the
// duration of one test.
func withBaseURL(t *testing.T, chainID uint64, base string) {
	t.Helper()
	previous, had := etherscanBaseURLs[chainID]
	etherscanBaseURLs[chainID] = base
	t.Cleanup(func() {
		if had {
			etherscanBaseURLs[chainID] = previous
		} else {
			delete(etherscanBaseURLs, chainID)
		}
	})
}
