package keystore

import (
	"errors"
	"fmt"
)

// Built-in chain IDs. The networks for these chains ship with every wallet
// and can never be removed.
const (
	ChainIDMainnet = 1
	ChainIDSepolia = 11155111
)

// Account is a single derived or imported key. It only ever leaves process
// memory inside the encrypted wallet blob.
type Account struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Index      int    `json:"index"`
}

// Network is a configured chain with an ordered list of candidate RPC
// endpoints. LastRPCIndex remembers which endpoint answered most recently so
// the selector can try it first next time.
type Network struct {
	Name             string   `json:"name"`
	ChainID          uint64   `json:"chain_id"`
	Symbol           string   `json:"symbol"`
	RPCURLs          []string `json:"rpc_urls"`
	LastRPCIndex     int      `json:"last_rpc_index"`
	BlockExplorerURL string   `json:"block_explorer_url,omitempty"`
}

// WalletState is the decrypted payload of the wallet blob. It is replaced
// wholesale on every mutation; there are no partial updates.
type WalletState struct {
	Accounts       []Account `json:"accounts"`
	CurrentAccount int       `json:"current_account"`
	Mnemonic       string    `json:"mnemonic,omitempty"`
	Networks       []Network `json:"networks"`
	CurrentNetwork int       `json:"current_network"`
}

// Validate checks the structural invariants of a wallet state: non-empty
// account and network lists, in-range current indices, and unique chain IDs.
func (s *WalletState) Validate() error {
	if len(s.Accounts) == 0 {
		return errors.New("wallet state has no accounts")
	}
	if s.CurrentAccount < 0 || s.CurrentAccount >= len(s.Accounts) {
		return fmt.Errorf("current account index %d out of range [0,%d)", s.CurrentAccount, len(s.Accounts))
	}
	if len(s.Networks) == 0 {
		return errors.New("wallet state has no networks")
	}
	if s.CurrentNetwork < 0 || s.CurrentNetwork >= len(s.Networks) {
		return fmt.Errorf("current network index %d out of range [0,%d)", s.CurrentNetwork, len(s.Networks))
	}
	seen := make(map[uint64]bool, len(s.Networks))
	for _, n := range s.Networks {
		if seen[n.ChainID] {
			return fmt.Errorf("duplicate chain ID %d", n.ChainID)
		}
		seen[n.ChainID] = true
		if len(n.RPCURLs) == 0 {
			return fmt.Errorf("network %q has no RPC endpoints", n.Name)
		}
	}
	return nil
}

// ActiveAccount returns the currently selected account.
func (s *WalletState) ActiveAccount() Account {
	return s.Accounts[s.CurrentAccount]
}

// ActiveNetwork returns the currently selected network.
func (s *WalletState) ActiveNetwork() Network {
	return s.Networks[s.CurrentNetwork]
}

// FindNetwork returns the index of the network with the given chain ID.
func (s *WalletState) FindNetwork(chainID uint64) (int, bool) {
	for i, n := range s.Networks {
		if n.ChainID == chainID {
			return i, true
		}
	}
	return 0, false
}

// IsBuiltinChain reports whether chainID belongs to a network that ships
// with the wallet and must not be removed.
func IsBuiltinChain(chainID uint64) bool {
	return chainID == ChainIDMainnet || chainID == ChainIDSepolia
}

// DefaultNetworks returns the two built-in networks, each with several
// public fallback endpoints.
func DefaultNetworks() []Network {
	return []Network{
		{
			Name:    "Ethereum Mainnet",
			ChainID: ChainIDMainnet,
			Symbol:  "ETH",
			RPCURLs: []string{
				"https://rpc.ankr.com/eth",
				"https://ethereum.publicnode.com",
				"https://eth-mainnet.rpcfast.com",
				"https://cloudflare-eth.com",
			},
			BlockExplorerURL: "https://etherscan.io",
		},
		{
			Name:    "Sepolia Testnet",
			ChainID: ChainIDSepolia,
			Symbol:  "SEP",
			RPCURLs: []string{
				"https://rpc.sepolia.org",
				"https://rpc2.sepolia.org",
				"https://eth-sepolia.public.blastapi.io",
				"https://ethereum-sepolia.publicnode.com",
			},
			BlockExplorerURL: "https://sepolia.etherscan.io",
		},
	}
}
