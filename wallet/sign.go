package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const defaultGasLimit = 21000

// SignMessage signs an EIP-191 personal message with the current account.
func (s *Service) SignMessage(message []byte) (string, error) {
	priv, err := s.currentKey()
	if err != nil {
		return "", err
	}
	defer zeroKey(priv)

	signature, err := crypto.Sign(accounts.TextHash(message), priv)
	if err != nil {
		return "", fmt.Errorf("signing message: %w", err)
	}
	// Shift V into the 27/28 range expected by eth_sign consumers.
	signature[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(signature), nil
}

// SignTransaction builds and signs a legacy transaction from the current
// account on the active network, fetching the nonce and gas price over RPC.
// It does not broadcast.
func (s *Service) SignTransaction(ctx context.Context, to string, value *big.Int, gasLimit uint64, gasPrice *big.Int) (*types.Transaction, error) {
	return s.buildSignedTx(ctx, to, value, gasLimit, gasPrice)
}

// SendTransaction signs and broadcasts, returning the transaction hash.
func (s *Service) SendTransaction(ctx context.Context, to string, value *big.Int, gasLimit uint64, gasPrice *big.Int) (string, error) {
	tx, err := s.buildSignedTx(ctx, to, value, gasLimit, gasPrice)
	if err != nil {
		return "", err
	}

	state, err := s.State()
	if err != nil {
		return "", err
	}
	client, _, err := s.rpc.Client(ctx, state.ActiveNetwork())
	if err != nil {
		return "", err
	}
	if err := client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}
	s.logger.Info("transaction sent", "hash", tx.Hash().Hex(), "to", to)
	return tx.Hash().Hex(), nil
}

func (s *Service) buildSignedTx(ctx context.Context, to string, value *big.Int, gasLimit uint64, gasPrice *big.Int) (*types.Transaction, error) {
	state, err := s.State()
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("invalid recipient address %q", to)
	}
	network := state.ActiveNetwork()

	client, _, err := s.rpc.Client(ctx, network)
	if err != nil {
		return nil, err
	}

	priv, err := s.currentKey()
	if err != nil {
		return nil, err
	}
	defer zeroKey(priv)
	from := crypto.PubkeyToAddress(priv.PublicKey)

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}
	if gasPrice == nil {
		gasPrice, err = client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching gas price: %w", err)
		}
	}
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	toAddr := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
	})

	signer := types.NewEIP155Signer(new(big.Int).SetUint64(network.ChainID))
	signed, err := types.SignTx(tx, signer, priv)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// currentKey parses the active account's private key. The returned key must
// be zeroed by the caller after use.
func (s *Service) currentKey() (*ecdsa.PrivateKey, error) {
	state, err := s.State()
	if err != nil {
		return nil, err
	}
	raw := strings.TrimPrefix(state.ActiveAccount().PrivateKey, "0x")
	priv, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing account key: %w", err)
	}
	return priv, nil
}

func zeroKey(priv *ecdsa.PrivateKey) {
	if priv != nil && priv.D != nil {
		priv.D.SetInt64(0)
	}
}
