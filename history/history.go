// Package history retrieves transaction history from external block-explorer
// APIs, walking a configured provider list until one answers.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Transaction is one historical transfer as reported by an explorer.
type Transaction struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// Options narrows a history query.
type Options struct {
	Page     int
	PageSize int
}

// ProviderError is the typed failure for a single provider attempt. It is
// surfaced to callers unmodified.
type ProviderError struct {
	Provider string
	ChainID  uint64
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("history provider %s (chain %d): %v", e.Provider, e.ChainID, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Provider fetches history from one external service.
type Provider interface {
	Name() string
	GetTransactions(ctx context.Context, chainID uint64, address string, opts Options) ([]Transaction, error)
}

// Service walks providers in order and returns the first successful result.
// If every provider fails, the last failure is returned as a *ProviderError.
type Service struct {
	providers []Provider
	logger    *slog.Logger
}

// NewService creates a history service over an ordered provider list.
func NewService(logger *slog.Logger, providers ...Provider) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{providers: providers, logger: logger}
}

// GetTransactions queries each provider in order until one succeeds.
func (s *Service) GetTransactions(ctx context.Context, chainID uint64, address string, opts Options) ([]Transaction, error) {
	if len(s.providers) == 0 {
		return nil, &ProviderError{Provider: "none", ChainID: chainID, Cause: fmt.Errorf("no history providers configured")}
	}

	var lastErr *ProviderError
	for _, provider := range s.providers {
		transactions, err := provider.GetTransactions(ctx, chainID, address, opts)
		if err == nil {
			return transactions, nil
		}
		lastErr = &ProviderError{Provider: provider.Name(), ChainID: chainID, Cause: err}
		s.logger.Warn("history provider failed, trying next",
			"provider", provider.Name(), "chain_id", chainID, "err", err)
	}
	return nil, lastErr
}
