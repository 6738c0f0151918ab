package api

// StatusResponse reports wallet presence and session state. Address and
// chain ID are only populated while unlocked.
type StatusResponse struct {
	Exists   bool   `json:"exists"`
	Unlocked bool   `json:"unlocked"`
	Address  string `json:"address,omitempty"`
	ChainID  uint64 `json:"chain_id,omitempty"`
	// PendingSurface names a privileged surface ("setup" or "unlock") the
	// dispatcher asked for; reading it consumes the prompt.
	PendingSurface string `json:"pending_surface,omitempty"`
}

// CreateRequest creates a brand-new wallet.
type CreateRequest struct {
	Password string `json:"password"`
	// Words selects the mnemonic length, 12 or 24. Defaults to 12.
	Words int `json:"words,omitempty"`
}

// CreateResponse carries the one-time mnemonic reveal.
type CreateResponse struct {
	Mnemonic string `json:"mnemonic"`
	Address  string `json:"address"`
}

// RestoreRequest recreates a wallet from a mnemonic.
type RestoreRequest struct {
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"`
}

// ImportRequest creates a wallet from a raw private key.
type ImportRequest struct {
	PrivateKey string `json:"private_key"`
	Password   string `json:"password"`
}

// AddressResponse returns a single account address.
type AddressResponse struct {
	Address string `json:"address"`
}

// UnlockRequest opens a session.
type UnlockRequest struct {
	Password string `json:"password"`
}

// UnlockResponse reports whether the password was accepted.
type UnlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

// SwitchAccountRequest selects an account by index.
type SwitchAccountRequest struct {
	Index int `json:"index"`
}

// BalanceResponse carries an ether-denominated balance string.
type BalanceResponse struct {
	Balance string `json:"balance"`
}

// SignMessageRequest signs an arbitrary message with the current account.
type SignMessageRequest struct {
	Message string `json:"message"`
}

// SignMessageResponse carries the hex signature.
type SignMessageResponse struct {
	Signature string `json:"signature"`
}

// SendTransactionRequest submits a value transfer from the current account.
// Value and gas price are decimal wei strings; zero gas limit means the
// default transfer limit.
type SendTransactionRequest struct {
	To       string `json:"to"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gas_limit,omitempty"`
	GasPrice string `json:"gas_price,omitempty"`
}

// SendTransactionResponse carries the submitted transaction hash.
type SendTransactionResponse struct {
	Hash string `json:"hash"`
}

// SwitchNetworkRequest selects a network by chain ID.
type SwitchNetworkRequest struct {
	ChainID uint64 `json:"chain_id"`
}
