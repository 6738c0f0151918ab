package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var etherscanBaseURLs = map[uint64]string{
	1:        "https://api.etherscan.io/api",
	11155111: "https://api-sepolia.etherscan.io/api",
}

// Etherscan fetches normal-transaction history from the Etherscan API
// family.
type Etherscan struct {
	apiKey string
	client *http.Client
}

var _ Provider = (*Etherscan)(nil)

// NewEtherscan creates an Etherscan provider. client may be nil.
func NewEtherscan(apiKey string, client *http.Client) *Etherscan {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Etherscan{apiKey: apiKey, client: client}
}

func (e *Etherscan) Name() string { return "etherscan" }

type etherscanResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Result  []etherscanTx `json:"result"`
}

type etherscanTx struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
}

func (e *Etherscan) GetTransactions(ctx context.Context, chainID uint64, address string, opts Options) ([]Transaction, error) {
	base, ok := etherscanBaseURLs[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d not supported", chainID)
	}

	query := url.Values{
		"module":  {"account"},
		"action":  {"txlist"},
		"address": {address},
		"sort":    {"desc"},
	}
	if e.apiKey != "" {
		query.Set("apikey", e.apiKey)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("offset", strconv.Itoa(opts.PageSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload etherscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	// Status "0" with message "No transactions found" is an empty result,
	// not a failure.
	if payload.Status != "1" && payload.Message != "No transactions found" {
		return nil, fmt.Errorf("API error: %s", payload.Message)
	}

	transactions := make([]Transaction, 0, len(payload.Result))
	for _, tx := range payload.Result {
		transactions = append(transactions, Transaction{
			Hash:        tx.Hash,
			From:        tx.From,
			To:          tx.To,
			Value:       tx.Value,
			BlockNumber: parseUint(tx.BlockNumber),
			Timestamp:   time.Unix(int64(parseUint(tx.TimeStamp)), 0).UTC(),
		})
	}
	return transactions, nil
}

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}
