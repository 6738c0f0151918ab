package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zihandong029/firstwallet/keystore"
	"github.com/zihandong029/firstwallet/rpcpool"
	"github.com/zihandong029/firstwallet/wallet"
)

// ErrorResponse is the uniform failure body for popup endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keystore.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, keystore.ErrInvalidMnemonic):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, keystore.ErrInvalidPrivateKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, keystore.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, keystore.ErrWalletExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, keystore.ErrWalletNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrLocked):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, wallet.ErrNoMnemonic):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, wallet.ErrUnknownChain):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrChainExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrBuiltinChain):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, wallet.ErrInvalidAccountIndex):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rpcpool.ErrNoReachableEndpoint):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
