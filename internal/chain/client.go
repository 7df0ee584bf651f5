// Package chain provides ledger interaction for the player layer: a JSON-RPC
// client against the ledger node, program-derived address computation, and
// transaction construction for the player program.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Client is a JSON-RPC client for the ledger node.
type Client struct {
	rpcURL     string
	httpClient *http.Client

	confirmInterval time.Duration
	confirmAttempts int
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	RPCURL  string
	Timeout time.Duration

	// Confirmation polling; zero values take defaults.
	ConfirmInterval time.Duration
	ConfirmAttempts int
}

// NewClient creates a new ledger client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.ConfirmInterval
	if interval == 0 {
		interval = 500 * time.Millisecond
	}
	attempts := cfg.ConfirmAttempts
	if attempts == 0 {
		attempts = 20
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		confirmInterval: interval,
		confirmAttempts: attempts,
	}, nil
}

// Call makes an RPC call to the ledger node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// GetAccountInfo returns account details, or nil when no account exists at
// the address.
func (c *Client) GetAccountInfo(ctx context.Context, addr Address) (*AccountInfo, error) {
	result, err := c.Call(ctx, "getaccountinfo", []interface{}{string(addr)})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var info AccountInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AccountExists reports whether an account exists at the address.
func (c *Client) AccountExists(ctx context.Context, addr Address) (bool, error) {
	info, err := c.GetAccountInfo(ctx, addr)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// LatestBlockhash returns the most recent network checkpoint.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	result, err := c.Call(ctx, "getlatestblockhash", nil)
	if err != nil {
		return Blockhash{}, err
	}

	var bh Blockhash
	if err := json.Unmarshal(result, &bh); err != nil {
		return Blockhash{}, err
	}
	return bh, nil
}

// SendTransaction submits a serialized transaction and returns its reference.
// Rejections are returned as *Fault with a classified kind.
func (c *Client) SendTransaction(ctx context.Context, tx *Transaction) (string, error) {
	encoded, err := tx.Serialize()
	if err != nil {
		return "", err
	}

	result, err := c.Call(ctx, "sendtransaction", []interface{}{encoded})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return "", classifyFault(rpcErr)
		}
		return "", err
	}

	var response struct {
		TxRef string `json:"tx_ref"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return "", err
	}
	return response.TxRef, nil
}

// SubmitAndConfirm submits a transaction and polls until the node reports it
// confirmed.
func (c *Client) SubmitAndConfirm(ctx context.Context, tx *Transaction) (string, error) {
	txRef, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < c.confirmAttempts; attempt++ {
		confirmed, err := c.transactionConfirmed(ctx, txRef)
		if err != nil {
			return "", err
		}
		if confirmed {
			return txRef, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.confirmInterval):
		}
	}

	return "", fmt.Errorf("transaction %s not confirmed after %d attempts", txRef, c.confirmAttempts)
}

func (c *Client) transactionConfirmed(ctx context.Context, txRef string) (bool, error) {
	result, err := c.Call(ctx, "gettransactionstatus", []interface{}{txRef})
	if err != nil {
		return false, err
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(result, &status); err != nil {
		return false, err
	}
	switch status.Status {
	case "confirmed", "finalized":
		return true, nil
	case "failed":
		return false, fmt.Errorf("transaction %s failed on ledger", txRef)
	default:
		return false, nil
	}
}

// Ledger node fault codes. Classification happens once here; callers switch
// on Fault.Kind.
const (
	rpcCodeInsufficientFunds = -32002
	rpcCodeAccountInUse      = -32003
)

func classifyFault(rpcErr *RPCError) *Fault {
	kind := FaultOther

	switch rpcErr.Code {
	case rpcCodeInsufficientFunds:
		kind = FaultFunding
	case rpcCodeAccountInUse:
		kind = FaultCollision
	default:
		// Older nodes report detail only inside the error data logs.
		if data, err := json.Marshal(rpcErr.Data); err == nil {
			logs := gjson.GetBytes(data, "logs")
			combined := strings.ToLower(rpcErr.Message + " " + logs.Raw)
			switch {
			case strings.Contains(combined, "insufficient funds"):
				kind = FaultFunding
			case strings.Contains(combined, "already in use"):
				kind = FaultCollision
			}
		}
	}

	return &Fault{Kind: kind, Code: rpcErr.Code, Message: rpcErr.Message}
}
