package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zihandong029/firstwallet/dispatcher"
	"github.com/zihandong029/firstwallet/keystore"
)

// Relay forwards a page-originated JSON-RPC call to the dispatcher. The
// relay always answers HTTP 200; failures travel in the JSON-RPC error
// field, exactly as a page-side provider expects.
func (a *API) Relay(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Origin == "" || req.Method == "" {
		writeError(w, http.StatusBadRequest, "origin and method are required")
		return
	}
	writeJSON(w, http.StatusOK, a.dispatcher.Handle(r.Context(), req))
}

func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	exists, err := a.wallet.Exists()
	if err != nil {
		mapError(w, err)
		return
	}
	status := StatusResponse{Exists: exists, Unlocked: a.wallet.Unlocked()}
	if a.notifier != nil {
		if surface, ok := a.notifier.PendingSurface(); ok {
			status.PendingSurface = surface
		}
	}
	if status.Unlocked {
		if address, err := a.wallet.CurrentAccount(); err == nil {
			status.Address = address
		}
		if network, err := a.wallet.CurrentNetwork(); err == nil {
			status.ChainID = network.ChainID
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entropy := keystore.Entropy12Words
	if req.Words == 24 {
		entropy = keystore.Entropy24Words
	}
	mnemonic, address, err := a.wallet.Generate(req.Password, entropy)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{Mnemonic: mnemonic, Address: address})
}

func (a *API) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	address, err := a.wallet.Restore(req.Mnemonic, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddressResponse{Address: address})
}

func (a *API) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	address, err := a.wallet.ImportPrivateKey(req.PrivateKey, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddressResponse{Address: address})
}

func (a *API) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ok, err := a.wallet.Unlock(req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	writeJSON(w, http.StatusOK, UnlockResponse{Unlocked: true})
}

func (a *API) Lock(w http.ResponseWriter, r *http.Request) {
	a.wallet.Lock()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.wallet.Accounts()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (a *API) AddAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.wallet.AddAccount()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddressResponse{Address: account.Address})
}

func (a *API) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	var req SwitchAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.wallet.SwitchAccount(req.Index); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := a.wallet.Balance(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

func (a *API) SignMessage(w http.ResponseWriter, r *http.Request) {
	var req SignMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	signature, err := a.wallet.SignMessage([]byte(req.Message))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SignMessageResponse{Signature: signature})
}

func (a *API) SendTransaction(w http.ResponseWriter, r *http.Request) {
	var req SendTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "value must be a decimal wei string")
		return
	}
	var gasPrice *big.Int
	if req.GasPrice != "" {
		gasPrice, ok = new(big.Int).SetString(req.GasPrice, 10)
		if !ok {
			writeError(w, http.StatusBadRequest, "gas_price must be a decimal wei string")
			return
		}
	}
	hash, err := a.wallet.SendTransaction(r.Context(), req.To, value, req.GasLimit, gasPrice)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SendTransactionResponse{Hash: hash})
}

func (a *API) ListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := a.wallet.Networks()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, networks)
}

func (a *API) AddNetwork(w http.ResponseWriter, r *http.Request) {
	var network keystore.Network
	if err := json.NewDecoder(r.Body).Decode(&network); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.wallet.AddNetwork(r.Context(), network); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *API) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	var req SwitchNetworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.wallet.SwitchNetwork(r.Context(), req.ChainID); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) RemoveNetwork(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain ID")
		return
	}
	if err := a.wallet.RemoveNetwork(chainID); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) TestNetwork(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain ID")
		return
	}
	writeJSON(w, http.StatusOK, a.wallet.TestNetworkConnection(r.Context(), chainID))
}

func (a *API) PendingConsents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.consent.Pending())
}

func (a *API) ApproveConsent(w http.ResponseWriter, r *http.Request) {
	a.resolveConsent(w, r, true)
}

func (a *API) RejectConsent(w http.ResponseWriter, r *http.Request) {
	a.resolveConsent(w, r, false)
}

func (a *API) resolveConsent(w http.ResponseWriter, r *http.Request, approved bool) {
	requestID := chi.URLParam(r, "requestID")
	if !a.consent.Resolve(requestID, approved) {
		writeError(w, http.StatusNotFound, "unknown or already resolved request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ListAuthorizations(w http.ResponseWriter, r *http.Request) {
	records, err := a.gate.List()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// RevokeAuthorization revokes one origin, or all of them when no origin is
// given. The origin travels as a query parameter since it contains slashes.
func (a *API) RevokeAuthorization(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	var err error
	if origin == "" {
		err = a.gate.RevokeAll()
	} else {
		err = a.gate.Revoke(origin)
	}
	if err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
