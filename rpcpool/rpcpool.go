// Package rpcpool finds and caches a reachable RPC endpoint for each
// configured network, rotating through the endpoint list on failure.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/zihandong029/firstwallet/keystore"
)

// DefaultProbeTimeout bounds the liveness probe for a single endpoint.
const DefaultProbeTimeout = 5 * time.Second

// ErrNoReachableEndpoint is returned when every endpoint of a network failed
// its liveness probe. The selector never retries in a loop; each invocation
// makes exactly one pass over the endpoint list.
var ErrNoReachableEndpoint = errors.New("no reachable RPC endpoint")

// Client is the subset of ethclient.Client the wallet uses. BlockNumber
// doubles as the liveness probe.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// DialFunc opens a client for an endpoint URL.
type DialFunc func(ctx context.Context, url string) (Client, error)

// EthDial is the production DialFunc, backed by ethclient.
func EthDial(ctx context.Context, url string) (Client, error) {
	return ethclient.DialContext(ctx, url)
}

// IndexSaver persists the last working endpoint index for a chain so the
// next selection starts there. Save failures are advisory.
type IndexSaver func(chainID uint64, index int) error

type cacheKey struct {
	chainID uint64
	index   int
}

// Config tunes a Selector.
type Config struct {
	ProbeTimeout time.Duration
}

// Selector owns the live connection cache and the rotation algorithm.
type Selector struct {
	cfg    Config
	dial   DialFunc
	saver  IndexSaver
	logger *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]Client
}

// NewSelector creates a Selector. saver may be nil; dial defaults to EthDial.
func NewSelector(cfg Config, dial DialFunc, saver IndexSaver, logger *slog.Logger) *Selector {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if dial == nil {
		dial = EthDial
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		cfg:    cfg,
		dial:   dial,
		saver:  saver,
		logger: logger,
		cache:  make(map[cacheKey]Client),
	}
}

// Client returns a live client for the network and the endpoint index it is
// connected to. The remembered index is tried first (via the cache if a
// connection exists); on failure the remaining endpoints are walked starting
// at the next index, wrapping exactly once.
func (s *Selector) Client(ctx context.Context, network keystore.Network) (Client, int, error) {
	n := len(network.RPCURLs)
	if n == 0 {
		return nil, 0, fmt.Errorf("network %s: %w", network.Name, ErrNoReachableEndpoint)
	}
	start := network.LastRPCIndex
	if start < 0 || start >= n {
		start = 0
	}

	offset := 0
	if cached := s.cachedClient(network.ChainID, start); cached != nil {
		if err := s.probe(ctx, cached); err == nil {
			return cached, start, nil
		}
		s.logger.Warn("cached RPC connection failed probe, rotating",
			"network", network.Name, "index", start)
		s.evict(network.ChainID, start)
		// The remembered endpoint has had its one try.
		offset = 1
	}

	for i := offset; i < n; i++ {
		index := (start + i) % n
		url := network.RPCURLs[index]

		client, err := s.dial(ctx, url)
		if err != nil {
			s.logger.Warn("RPC dial failed", "network", network.Name, "url", url, "err", err)
			continue
		}
		if err := s.probe(ctx, client); err != nil {
			s.logger.Warn("RPC probe failed", "network", network.Name, "url", url, "err", err)
			client.Close()
			continue
		}

		s.adopt(network.ChainID, index, client)
		if s.saver != nil {
			if err := s.saver(network.ChainID, index); err != nil {
				s.logger.Warn("saving endpoint index failed",
					"network", network.Name, "index", index, "err", err)
			}
		}
		s.logger.Info("RPC endpoint selected", "network", network.Name, "url", url, "index", index)
		return client, index, nil
	}

	return nil, 0, fmt.Errorf("network %s: %w", network.Name, ErrNoReachableEndpoint)
}

// Probe checks that a network has at least one reachable endpoint. The
// selected client stays cached for subsequent calls.
func (s *Selector) Probe(ctx context.Context, network keystore.Network) (int, error) {
	_, index, err := s.Client(ctx, network)
	return index, err
}

// Invalidate drops all cached connections for a chain.
func (s *Selector) Invalidate(chainID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, client := range s.cache {
		if key.chainID == chainID {
			client.Close()
			delete(s.cache, key)
		}
	}
}

// Clear drops every cached connection. Hooked to the session lock: a live
// connection has no meaning without an active account context.
func (s *Selector) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, client := range s.cache {
		client.Close()
		delete(s.cache, key)
	}
}

func (s *Selector) probe(ctx context.Context, client Client) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()
	_, err := client.BlockNumber(probeCtx)
	return err
}

func (s *Selector) cachedClient(chainID uint64, index int) Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[cacheKey{chainID: chainID, index: index}]
}

func (s *Selector) adopt(chainID uint64, index int, client Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cacheKey{chainID: chainID, index: index}
	if old, ok := s.cache[key]; ok && old != client {
		old.Close()
	}
	s.cache[key] = client
}

func (s *Selector) evict(chainID uint64, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cacheKey{chainID: chainID, index: index}
	if client, ok := s.cache[key]; ok {
		client.Close()
		delete(s.cache, key)
	}
}
