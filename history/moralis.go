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

var moralisBaseURL = "https://deep-index.moralis.io/api/v2.2"

// Moralis fetches wallet history from the Moralis deep-index API.
type Moralis struct {
	apiKey string
	client *http.Client
}

var _ Provider = (*Moralis)(nil)

// NewMoralis creates a Moralis provider. client may be nil.
func NewMoralis(apiKey string, client *http.Client) *Moralis {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Moralis{apiKey: apiKey, client: client}
}

func (m *Moralis) Name() string { return "moralis" }

type moralisResponse struct {
	Result []moralisTx `json:"result"`
}

type moralisTx struct {
	Hash        string `json:"hash"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Value       string `json:"value"`
	BlockNumber string `json:"block_number"`
	BlockTime   string `json:"block_timestamp"`
}

func (m *Moralis) GetTransactions(ctx context.Context, chainID uint64, address string, opts Options) ([]Transaction, error) {
	query := url.Values{
		"chain": {"0x" + strconv.FormatUint(chainID, 16)},
		"order": {"DESC"},
	}
	if opts.PageSize > 0 {
		query.Set("limit", strconv.Itoa(opts.PageSize))
	}

	endpoint := fmt.Sprintf("%s/%s?%s", moralisBaseURL, url.PathEscape(address), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", m.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload moralisResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	transactions := make([]Transaction, 0, len(payload.Result))
	for _, tx := range payload.Result {
		timestamp, _ := time.Parse(time.RFC3339, tx.BlockTime)
		transactions = append(transactions, Transaction{
			Hash:        tx.Hash,
			From:        tx.FromAddress,
			To:          tx.ToAddress,
			Value:       tx.Value,
			BlockNumber: parseUint(tx.BlockNumber),
			Timestamp:   timestamp.UTC(),
		})
	}
	return transactions, nil
}
