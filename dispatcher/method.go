package dispatcher

// Method is the closed set of page-facing JSON-RPC methods.
type Method string

const (
	MethodRequestAccounts Method = "eth_requestAccounts"
	MethodAccounts        Method = "eth_accounts"
	MethodChainID         Method = "eth_chainId"
	MethodNetVersion      Method = "net_version"
	MethodGetBalance      Method = "eth_getBalance"
	MethodSwitchChain     Method = "wallet_switchEthereumChain"
	MethodAddChain        Method = "wallet_addEthereumChain"
	MethodTxHistory       Method = "wallet_getTransactionHistory"

	// Named but deliberately unimplemented: they would need a per-action
	// consent dialog this surface does not provide.
	MethodSendTransaction Method = "eth_sendTransaction"
	MethodPersonalSign    Method = "personal_sign"
)

var knownMethods = map[Method]bool{
	MethodRequestAccounts: true,
	MethodAccounts:        true,
	MethodChainID:         true,
	MethodNetVersion:      true,
	MethodGetBalance:      true,
	MethodSwitchChain:     true,
	MethodAddChain:        true,
	MethodTxHistory:       true,
	MethodSendTransaction: true,
	MethodPersonalSign:    true,
}

// ParseMethod maps a wire string onto the closed method set.
func ParseMethod(s string) (Method, bool) {
	m := Method(s)
	return m, knownMethods[m]
}
