// Package dispatcher is the single entry point for page-originated JSON-RPC
// method calls. It coordinates the wallet service, the origin authorization
// gate, the consent bridge and the UI surfaces, and translates every failure
// into a page-facing {code, message} pair.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/zihandong029/firstwallet/authz"
	"github.com/zihandong029/firstwallet/history"
	"github.com/zihandong029/firstwallet/keystore"
	"github.com/zihandong029/firstwallet/rpcpool"
	"github.com/zihandong029/firstwallet/wallet"
)

// ZeroAddress is the sentinel returned when the account list cannot be read
// and the fallback policy is active.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// DefaultUnlockWait bounds how long eth_requestAccounts waits for the user
// to unlock before proceeding best-effort.
const DefaultUnlockWait = 30 * time.Second

// UI triggers the privileged wallet surfaces. Both calls are fire-and-forget
// side effects; the dispatcher never waits on them directly.
type UI interface {
	ShowSetup()
	ShowUnlock()
}

// Approver runs the consent round-trip for an origin.
type Approver interface {
	RequestApproval(ctx context.Context, origin string) (bool, error)
}

// HistorySource supplies transaction history for an account.
type HistorySource interface {
	GetTransactions(ctx context.Context, chainID uint64, address string, opts history.Options) ([]history.Transaction, error)
}

// Policy holds the dispatcher's tunable behavior.
type Policy struct {
	// StrictAccounts disables the zero-address fallback: account read
	// failures surface as errors instead of a sentinel address.
	StrictAccounts bool
	// UnlockWait bounds the soft wait for an unlock during
	// eth_requestAccounts.
	UnlockWait time.Duration
}

// Request is one page-originated call, tagged with its origin by the relay.
type Request struct {
	Origin string          `json:"origin"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries either a result or an error, never both.
type Response struct {
	Result any       `json:"result,omitempty"`
	Err    *RPCError `json:"error,omitempty"`
}

// Dispatcher routes requests to the wallet service.
type Dispatcher struct {
	wallet  *wallet.Service
	gate    *authz.Gate
	consent Approver
	ui      UI
	history HistorySource
	policy  Policy
	logger  *slog.Logger
}

// New wires a dispatcher. history may be nil if no provider is configured.
func New(w *wallet.Service, gate *authz.Gate, consent Approver, ui UI, hist HistorySource, policy Policy, logger *slog.Logger) *Dispatcher {
	if policy.UnlockWait == 0 {
		policy.UnlockWait = DefaultUnlockWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		wallet:  w,
		gate:    gate,
		consent: consent,
		ui:      ui,
		history: hist,
		policy:  policy,
		logger:  logger,
	}
}

// Handle executes one request and always returns a well-formed response.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	method, known := ParseMethod(req.Method)
	if !known {
		return fail(rpcErrorf(CodeMethodNotFound, "the method %s does not exist", req.Method))
	}
	d.logger.Debug("dispatching request", "origin", req.Origin, "method", req.Method)

	switch method {
	case MethodRequestAccounts:
		return d.requestAccounts(ctx, req.Origin)
	case MethodAccounts:
		return d.accounts(req.Origin)
	case MethodChainID:
		return d.chainID()
	case MethodNetVersion:
		return d.netVersion()
	case MethodGetBalance:
		return d.getBalance(ctx, req)
	case MethodSwitchChain:
		return d.switchChain(ctx, req)
	case MethodAddChain:
		return d.addChain(ctx, req)
	case MethodTxHistory:
		return d.transactionHistory(ctx, req)
	case MethodSendTransaction, MethodPersonalSign:
		return fail(rpcErrorf(CodeUnsupportedMethod, "%s is not supported by this wallet", req.Method))
	default:
		return fail(rpcErrorf(CodeMethodNotFound, "the method %s does not exist", req.Method))
	}
}

// requestAccounts runs the connection-establishing state machine: setup,
// unlock, consent, then the account listing.
func (d *Dispatcher) requestAccounts(ctx context.Context, origin string) Response {
	exists, err := d.wallet.Exists()
	if err != nil {
		return d.failure(err)
	}
	if !exists {
		d.ui.ShowSetup()
		return fail(rpcError(CodeUserActionRequired, "wallet has not been created"))
	}

	if !d.wallet.Unlocked() {
		d.ui.ShowUnlock()
		waitCtx, cancel := context.WithTimeout(ctx, d.policy.UnlockWait)
		// The unlock wait is soft: on timeout we proceed and let the
		// account read below decide what the page gets.
		_ = d.wallet.Sessions().WaitUnlock(waitCtx)
		cancel()
	}

	if !d.gate.IsAuthorized(origin) {
		approved, err := d.consent.RequestApproval(ctx, origin)
		if err != nil {
			return d.failure(err)
		}
		if !approved {
			return fail(rpcError(CodeUserRejected, "user rejected the connection request"))
		}
		if err := d.gate.Authorize(origin); err != nil {
			return d.failure(err)
		}
	}

	accounts, err := d.wallet.Accounts()
	if err != nil {
		if d.policy.StrictAccounts {
			return d.failure(err)
		}
		d.logger.Warn("account read failed, returning zero-address fallback", "err", err)
		return ok([]string{ZeroAddress})
	}
	return ok(accounts)
}

// accounts is the silent variant: no UI, no errors, empty list unless the
// wallet is unlocked and the origin authorized.
func (d *Dispatcher) accounts(origin string) Response {
	if !d.wallet.Unlocked() || !d.gate.IsAuthorized(origin) {
		return ok([]string{})
	}
	accounts, err := d.wallet.Accounts()
	if err != nil {
		d.logger.Warn("account read failed", "err", err)
		return ok([]string{})
	}
	return ok(accounts)
}

func (d *Dispatcher) chainID() Response {
	network, err := d.wallet.CurrentNetwork()
	if err != nil {
		return d.failure(err)
	}
	return ok(hexutil.EncodeUint64(network.ChainID))
}

func (d *Dispatcher) netVersion() Response {
	network, err := d.wallet.CurrentNetwork()
	if err != nil {
		return d.failure(err)
	}
	return ok(strconv.FormatUint(network.ChainID, 10))
}

func (d *Dispatcher) getBalance(ctx context.Context, req Request) Response {
	if rpcErr := d.requireAuthorized(req.Origin); rpcErr != nil {
		return fail(rpcErr)
	}
	var params []string
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fail(rpcError(CodeInvalidParams, "eth_getBalance expects [address]"))
		}
	}
	var address string
	if len(params) > 0 {
		address = params[0]
	}
	balance, err := d.wallet.Balance(ctx, address)
	if err != nil {
		return d.failure(err)
	}
	return ok(balance)
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

func (d *Dispatcher) switchChain(ctx context.Context, req Request) Response {
	if rpcErr := d.requireAuthorized(req.Origin); rpcErr != nil {
		return fail(rpcErr)
	}
	var params []switchChainParams
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
		return fail(rpcError(CodeInvalidParams, "wallet_switchEthereumChain expects [{chainId}]"))
	}
	chainID, err := hexutil.DecodeUint64(params[0].ChainID)
	if err != nil {
		return fail(rpcErrorf(CodeInvalidParams, "invalid chainId %q", params[0].ChainID))
	}
	if err := d.wallet.SwitchNetwork(ctx, chainID); err != nil {
		return d.failure(err)
	}
	return ok(nil)
}

type addChainParams struct {
	ChainID        string   `json:"chainId"`
	ChainName      string   `json:"chainName"`
	RPCURLs        []string `json:"rpcUrls"`
	NativeCurrency struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"nativeCurrency"`
	BlockExplorerURLs []string `json:"blockExplorerUrls"`
}

func (d *Dispatcher) addChain(ctx context.Context, req Request) Response {
	if rpcErr := d.requireAuthorized(req.Origin); rpcErr != nil {
		return fail(rpcErr)
	}
	var params []addChainParams
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
		return fail(rpcError(CodeInvalidParams, "wallet_addEthereumChain expects [{chainId, chainName, rpcUrls, nativeCurrency}]"))
	}
	p := params[0]
	if p.ChainName == "" || len(p.RPCURLs) == 0 || p.NativeCurrency.Symbol == "" {
		return fail(rpcError(CodeUserRejected, "chainName, rpcUrls and nativeCurrency are required"))
	}
	chainID, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return fail(rpcErrorf(CodeInvalidParams, "invalid chainId %q", p.ChainID))
	}

	network := keystore.Network{
		Name:    p.ChainName,
		ChainID: chainID,
		Symbol:  p.NativeCurrency.Symbol,
		RPCURLs: p.RPCURLs,
	}
	if len(p.BlockExplorerURLs) > 0 {
		network.BlockExplorerURL = p.BlockExplorerURLs[0]
	}
	if err := d.wallet.AddNetwork(ctx, network); err != nil {
		return d.failure(err)
	}
	return ok(nil)
}

type historyParams struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func (d *Dispatcher) transactionHistory(ctx context.Context, req Request) Response {
	if rpcErr := d.requireAuthorized(req.Origin); rpcErr != nil {
		return fail(rpcErr)
	}
	if d.history == nil {
		return fail(rpcError(CodeUnsupportedMethod, "no history provider configured"))
	}

	var opts history.Options
	if len(req.Params) > 0 {
		var params []historyParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fail(rpcError(CodeInvalidParams, "wallet_getTransactionHistory expects [{page, pageSize}]"))
		}
		if len(params) > 0 {
			opts = history.Options{Page: params[0].Page, PageSize: params[0].PageSize}
		}
	}

	account, err := d.wallet.CurrentAccount()
	if err != nil {
		return d.failure(err)
	}
	network, err := d.wallet.CurrentNetwork()
	if err != nil {
		return d.failure(err)
	}
	transactions, err := d.history.GetTransactions(ctx, network.ChainID, account, opts)
	if err != nil {
		return d.failure(err)
	}
	return ok(transactions)
}

func (d *Dispatcher) requireAuthorized(origin string) *RPCError {
	if !d.gate.IsAuthorized(origin) {
		return rpcError(CodeUserActionRequired, "origin has not been authorized")
	}
	return nil
}

// failure translates internal errors to the page-facing taxonomy. Unknown
// failures become an opaque internal error; the cause is logged, not leaked.
func (d *Dispatcher) failure(err error) Response {
	var (
		rpcErr      *RPCError
		providerErr *history.ProviderError
	)
	switch {
	case errors.As(err, &rpcErr):
		return fail(rpcErr)
	case errors.Is(err, wallet.ErrLocked):
		return fail(rpcError(CodeUserActionRequired, "wallet is locked"))
	case errors.Is(err, keystore.ErrWalletNotFound):
		return fail(rpcError(CodeUserActionRequired, "wallet has not been created"))
	case errors.Is(err, wallet.ErrUnknownChain):
		return fail(rpcError(CodeUnrecognizedChain, "unrecognized chain"))
	case errors.Is(err, wallet.ErrChainExists):
		return fail(rpcError(CodeUserRejected, "chain is already configured"))
	case errors.Is(err, rpcpool.ErrNoReachableEndpoint):
		return fail(rpcErrorf(CodeUserRejected, "network verification failed: %v", err))
	case errors.As(err, &providerErr):
		// Provider failures are typed and surfaced unmodified.
		return fail(rpcError(CodeInternal, providerErr.Error()))
	default:
		d.logger.Error("request failed", "err", err)
		return fail(rpcError(CodeInternal, "internal error"))
	}
}

func ok(result any) Response {
	return Response{Result: result}
}

func fail(err *RPCError) Response {
	return Response{Err: err}
}
