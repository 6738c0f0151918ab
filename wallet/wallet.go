// Package wallet is the service layer over the encrypted key store, the
// unlock session, and the RPC endpoint selector. All wallet-state mutations
// are serialized through a single mutex; the stored blob is replaced
// wholesale on every change.
package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zihandong029/firstwallet/keystore"
	"github.com/zihandong029/firstwallet/rpcpool"
	"github.com/zihandong029/firstwallet/session"
)

var (
	// ErrLocked indicates the operation needs an active unlock session.
	ErrLocked = errors.New("wallet is locked")
	// ErrNoMnemonic indicates account derivation was requested on a wallet
	// imported from a raw private key.
	ErrNoMnemonic = errors.New("wallet has no mnemonic")
	// ErrUnknownChain indicates no configured network has the requested
	// chain ID.
	ErrUnknownChain = errors.New("unrecognized chain")
	// ErrChainExists indicates a network with the chain ID is already
	// configured.
	ErrChainExists = errors.New("chain already configured")
	// ErrBuiltinChain indicates an attempt to remove a built-in network.
	ErrBuiltinChain = errors.New("built-in network cannot be removed")
	// ErrInvalidAccountIndex indicates an out-of-range account switch.
	ErrInvalidAccountIndex = errors.New("invalid account index")
)

// Service coordinates the key store, session and RPC selector.
type Service struct {
	keys     *keystore.Store
	sessions *session.Manager
	rpc      *rpcpool.Selector
	logger   *slog.Logger

	// mu serializes every read-modify-write of the wallet blob. It is never
	// held across RPC calls.
	mu sync.Mutex
}

// New wires a wallet service. The session's lock transition clears the RPC
// connection cache.
func New(keys *keystore.Store, sessions *session.Manager, rpc *rpcpool.Selector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{keys: keys, sessions: sessions, rpc: rpc, logger: logger}
	sessions.OnLock(rpc.Clear)
	return s
}

// Sessions exposes the session manager to the dispatcher.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Exists reports whether a wallet has been created.
func (s *Service) Exists() (bool, error) {
	return s.keys.Exists()
}

// Generate creates a brand-new wallet from fresh entropy, persists it under
// password and unlocks the session. Returns the mnemonic (shown to the user
// exactly once) and the first account address.
func (s *Service) Generate(password string, entropyBits int) (mnemonic, address string, err error) {
	if entropyBits == 0 {
		entropyBits = keystore.Entropy12Words
	}
	mnemonic, err = keystore.NewMnemonic(entropyBits)
	if err != nil {
		return "", "", err
	}
	address, err = s.createFromMnemonic(mnemonic, password)
	if err != nil {
		return "", "", err
	}
	return mnemonic, address, nil
}

// Restore creates the wallet from an existing mnemonic.
func (s *Service) Restore(mnemonic, password string) (string, error) {
	if !keystore.ValidateMnemonic(mnemonic) {
		return "", keystore.ErrInvalidMnemonic
	}
	return s.createFromMnemonic(mnemonic, password)
}

func (s *Service) createFromMnemonic(mnemonic, password string) (string, error) {
	account, err := keystore.DeriveAccount(mnemonic, 0)
	if err != nil {
		return "", err
	}
	state := &keystore.WalletState{
		Accounts:       []keystore.Account{account},
		CurrentAccount: 0,
		Mnemonic:       mnemonic,
		Networks:       keystore.DefaultNetworks(),
		CurrentNetwork: 0,
	}
	if err := s.create(state, password); err != nil {
		return "", err
	}
	return account.Address, nil
}

// ImportPrivateKey creates the wallet from a raw private key. Such a wallet
// has no mnemonic and cannot derive further accounts.
func (s *Service) ImportPrivateKey(privateKey, password string) (string, error) {
	account, err := keystore.AccountFromPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	state := &keystore.WalletState{
		Accounts:       []keystore.Account{account},
		CurrentAccount: 0,
		Networks:       keystore.DefaultNetworks(),
		CurrentNetwork: 0,
	}
	if err := s.create(state, password); err != nil {
		return "", err
	}
	return account.Address, nil
}

func (s *Service) create(state *keystore.WalletState, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.keys.Create(state, password); err != nil {
		return err
	}
	s.sessions.Activate(password)
	s.logger.Info("wallet created", "accounts", len(state.Accounts))
	return nil
}

// Unlock verifies password against the key store and activates the session.
// Password failures are an expected outcome, not an error.
func (s *Service) Unlock(password string) (bool, error) {
	_, err := s.keys.Unlock(password)
	if errors.Is(err, keystore.ErrInvalidPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.sessions.Activate(password)
	s.logger.Info("wallet unlocked")
	return true, nil
}

// Lock ends the session. The RPC cache is cleared via the session hook.
func (s *Service) Lock() {
	s.sessions.Lock()
	s.logger.Info("wallet locked")
}

// Unlocked reports whether an unlock session is active.
func (s *Service) Unlocked() bool {
	return s.sessions.Unlocked()
}

// State decrypts and returns the wallet state. Every successful read slides
// the session window forward.
func (s *Service) State() (*keystore.WalletState, error) {
	state, _, err := s.unlockedState()
	if err != nil {
		return nil, err
	}
	s.sessions.Touch()
	return state, nil
}

// Accounts returns all account addresses in wallet order.
func (s *Service) Accounts() ([]string, error) {
	state, err := s.State()
	if err != nil {
		return nil, err
	}
	addresses := make([]string, len(state.Accounts))
	for i, account := range state.Accounts {
		addresses[i] = account.Address
	}
	return addresses, nil
}

// CurrentAccount returns the selected account's address.
func (s *Service) CurrentAccount() (string, error) {
	state, err := s.State()
	if err != nil {
		return "", err
	}
	return state.ActiveAccount().Address, nil
}

// AddAccount derives the next account from the mnemonic and persists it.
func (s *Service) AddAccount() (keystore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, password, err := s.unlockedState()
	if err != nil {
		return keystore.Account{}, err
	}
	if state.Mnemonic == "" {
		return keystore.Account{}, ErrNoMnemonic
	}

	account, err := keystore.DeriveAccount(state.Mnemonic, len(state.Accounts))
	if err != nil {
		return keystore.Account{}, err
	}
	state.Accounts = append(state.Accounts, account)
	if err := s.keys.Persist(state, password); err != nil {
		return keystore.Account{}, err
	}
	s.sessions.Touch()
	s.logger.Info("account added", "address", account.Address, "index", account.Index)
	return account, nil
}

// SwitchAccount selects the account at index.
func (s *Service) SwitchAccount(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, password, err := s.unlockedState()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(state.Accounts) {
		return ErrInvalidAccountIndex
	}
	state.CurrentAccount = index
	if err := s.keys.Persist(state, password); err != nil {
		return err
	}
	s.sessions.Touch()
	return nil
}

// unlockedState reads the wallet state using the session passphrase.
// Callers that mutate must hold s.mu around the full read-modify-write.
func (s *Service) unlockedState() (*keystore.WalletState, string, error) {
	password, ok := s.sessions.Passphrase()
	if !ok {
		return nil, "", ErrLocked
	}
	state, err := s.keys.Unlock(password)
	if err != nil {
		return nil, "", fmt.Errorf("reading wallet state: %w", err)
	}
	return state, password, nil
}
