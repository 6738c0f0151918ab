package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/zihandong029/firstwallet/keystore"
)

// ConnectionTestResult reports the outcome of a network liveness test.
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	RPCURL  string `json:"rpc_url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CurrentNetwork returns the selected network.
func (s *Service) CurrentNetwork() (keystore.Network, error) {
	state, err := s.State()
	if err != nil {
		return keystore.Network{}, err
	}
	return state.ActiveNetwork(), nil
}

// Networks returns all configured networks in wallet order.
func (s *Service) Networks() ([]keystore.Network, error) {
	state, err := s.State()
	if err != nil {
		return nil, err
	}
	return state.Networks, nil
}

// SwitchNetwork selects the network with the given chain ID. The liveness
// probe is advisory: its failure is logged but does not block the switch.
func (s *Service) SwitchNetwork(ctx context.Context, chainID uint64) error {
	state, _, err := s.unlockedState()
	if err != nil {
		return err
	}
	index, ok := state.FindNetwork(chainID)
	if !ok {
		return fmt.Errorf("chain %d: %w", chainID, ErrUnknownChain)
	}

	if _, err := s.rpc.Probe(ctx, state.Networks[index]); err != nil {
		s.logger.Warn("network probe failed on switch, proceeding anyway",
			"chain_id", chainID, "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, password, err := s.unlockedState()
	if err != nil {
		return err
	}
	index, ok = state.FindNetwork(chainID)
	if !ok {
		return fmt.Errorf("chain %d: %w", chainID, ErrUnknownChain)
	}
	state.CurrentNetwork = index
	if err := s.keys.Persist(state, password); err != nil {
		return err
	}
	s.sessions.Touch()
	s.logger.Info("network switched", "chain_id", chainID)
	return nil
}

// AddNetwork validates, probes and appends a new network, then switches to
// it. Unlike SwitchNetwork the probe is mandatory: an unreachable network is
// not added.
func (s *Service) AddNetwork(ctx context.Context, network keystore.Network) error {
	if network.Name == "" || network.Symbol == "" || len(network.RPCURLs) == 0 || network.ChainID == 0 {
		return errors.New("network requires name, symbol, chain ID and at least one RPC URL")
	}

	state, _, err := s.unlockedState()
	if err != nil {
		return err
	}
	if _, exists := state.FindNetwork(network.ChainID); exists {
		return fmt.Errorf("chain %d: %w", network.ChainID, ErrChainExists)
	}

	network.LastRPCIndex = 0
	index, err := s.rpc.Probe(ctx, network)
	if err != nil {
		return fmt.Errorf("verifying new network: %w", err)
	}
	network.LastRPCIndex = index

	s.mu.Lock()
	defer s.mu.Unlock()
	state, password, err := s.unlockedState()
	if err != nil {
		return err
	}
	if _, exists := state.FindNetwork(network.ChainID); exists {
		return fmt.Errorf("chain %d: %w", network.ChainID, ErrChainExists)
	}
	state.Networks = append(state.Networks, network)
	state.CurrentNetwork = len(state.Networks) - 1
	if err := s.keys.Persist(state, password); err != nil {
		return err
	}
	s.sessions.Touch()
	s.logger.Info("network added", "chain_id", network.ChainID, "name", network.Name)
	return nil
}

// RemoveNetwork deletes a configured network. Built-in networks are
// protected; removing the active network falls back to the first one.
func (s *Service) RemoveNetwork(chainID uint64) error {
	if keystore.IsBuiltinChain(chainID) {
		return fmt.Errorf("chain %d: %w", chainID, ErrBuiltinChain)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, password, err := s.unlockedState()
	if err != nil {
		return err
	}
	index, ok := state.FindNetwork(chainID)
	if !ok {
		return fmt.Errorf("chain %d: %w", chainID, ErrUnknownChain)
	}

	state.Networks = append(state.Networks[:index], state.Networks[index+1:]...)
	switch {
	case state.CurrentNetwork == index:
		state.CurrentNetwork = 0
	case state.CurrentNetwork > index:
		state.CurrentNetwork--
	}
	if err := s.keys.Persist(state, password); err != nil {
		return err
	}
	s.rpc.Invalidate(chainID)
	s.sessions.Touch()
	return nil
}

// TestNetworkConnection probes the network with the given chain ID and
// reports which endpoint answered. Infrastructure failure is a result, not
// an error; it never affects wallet or session state.
func (s *Service) TestNetworkConnection(ctx context.Context, chainID uint64) ConnectionTestResult {
	state, _, err := s.unlockedState()
	if err != nil {
		return ConnectionTestResult{Error: err.Error()}
	}
	index, ok := state.FindNetwork(chainID)
	if !ok {
		return ConnectionTestResult{Error: fmt.Sprintf("chain %d not configured", chainID)}
	}
	network := state.Networks[index]

	endpointIndex, err := s.rpc.Probe(ctx, network)
	if err != nil {
		return ConnectionTestResult{Error: err.Error()}
	}
	s.sessions.Touch()
	return ConnectionTestResult{Success: true, RPCURL: network.RPCURLs[endpointIndex]}
}

// SaveRPCIndex persists a network's last working endpoint index. Wired as
// the selector's IndexSaver; unknown chains are ignored so probes of
// not-yet-added networks stay side-effect free.
func (s *Service) SaveRPCIndex(chainID uint64, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, password, err := s.unlockedState()
	if err != nil {
		return nil
	}
	networkIndex, ok := state.FindNetwork(chainID)
	if !ok {
		return nil
	}
	if state.Networks[networkIndex].LastRPCIndex == index {
		return nil
	}
	state.Networks[networkIndex].LastRPCIndex = index
	return s.keys.Persist(state, password)
}

// Balance returns the address's balance on the active network, formatted in
// ether. RPC failure degrades to "0" rather than propagating; this mirrors
// the original behavior and keeps a flaky endpoint from blocking the UI.
func (s *Service) Balance(ctx context.Context, address string) (string, error) {
	state, err := s.State()
	if err != nil {
		return "", err
	}
	if address == "" {
		address = state.ActiveAccount().Address
	}

	client, _, err := s.rpc.Client(ctx, state.ActiveNetwork())
	if err != nil {
		s.logger.Warn("balance read failed, returning zero", "err", err)
		return "0", nil
	}
	balance, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		s.logger.Warn("balance read failed, returning zero", "err", err)
		return "0", nil
	}
	return formatEther(balance), nil
}

func formatEther(wei *big.Int) string {
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return ether.Text('f', -1)
}
