package chain

import (
	"encoding/json"
	"fmt"
)

// Address is a base58-encoded 32-byte ledger address.
type Address string

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// RPCError is a JSON-RPC error object returned by the ledger node.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// AccountInfo describes an on-chain account.
type AccountInfo struct {
	Address Address `json:"address"`
	Owner   Address `json:"owner"`
	Balance uint64  `json:"balance"`
	Data    string  `json:"data,omitempty"` // base64-encoded account payload
}

// Blockhash is a recent network checkpoint used to anchor a transaction.
type Blockhash struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// FaultKind classifies a rejected ledger submission. Callers branch on the
// kind instead of inspecting fault text.
type FaultKind int

const (
	// FaultOther covers any rejection that is not specifically classified.
	FaultOther FaultKind = iota
	// FaultFunding indicates the fee payer cannot cover the submission.
	FaultFunding
	// FaultCollision indicates an account at a derived address already exists.
	FaultCollision
)

func (k FaultKind) String() string {
	switch k {
	case FaultFunding:
		return "funding"
	case FaultCollision:
		return "collision"
	default:
		return "other"
	}
}

// Fault is a classified ledger submission failure.
type Fault struct {
	Kind    FaultKind
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("ledger fault (%s): %s", f.Kind, f.Message)
}
