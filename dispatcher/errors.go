package dispatcher

import "fmt"

// JSON-RPC / EIP-1193 error codes surfaced to the requesting page.
const (
	// CodeUserRejected covers explicit rejection and consent timeout; the
	// two are deliberately indistinguishable to the page.
	CodeUserRejected = 4001
	// CodeUserActionRequired is returned when the wallet does not exist yet
	// or a read needs an unlock the user has not performed.
	CodeUserActionRequired = 4100
	// CodeUnsupportedMethod marks methods that are recognized but
	// deliberately not implemented by this surface.
	CodeUnsupportedMethod = 4200
	// CodeUnrecognizedChain is returned by chain switches to an
	// unconfigured chain ID.
	CodeUnrecognizedChain = 4902
	// CodeMethodNotFound is the JSON-RPC code for unknown method strings.
	CodeMethodNotFound = -32601
	// CodeInvalidParams is the JSON-RPC code for malformed parameters.
	CodeInvalidParams = -32602
	// CodeInternal is the catch-all; details are logged, never leaked.
	CodeInternal = -32603
)

// RPCError is the page-facing failure shape.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func rpcError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func rpcErrorf(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}
