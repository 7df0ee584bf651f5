package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type rpcHandler func(method string, params []interface{}) (interface{}, *RPCError)

func newFakeNode(t *testing.T, handle rpcHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		RPCURL:          srv.URL,
		ConfirmInterval: time.Millisecond,
		ConfirmAttempts: 3,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGetAccountInfoAbsent(t *testing.T) {
	client := newFakeNode(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		if method != "getaccountinfo" {
			t.Errorf("unexpected method %s", method)
		}
		return nil, nil
	})

	info, err := client.GetAccountInfo(context.Background(), "someaddress")
	if err != nil {
		t.Fatalf("get account info: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil info for absent account, got %+v", info)
	}

	exists, err := client.AccountExists(context.Background(), "someaddress")
	if err != nil {
		t.Fatalf("account exists: %v", err)
	}
	if exists {
		t.Fatalf("expected account to not exist")
	}
}

func TestSubmitAndConfirm(t *testing.T) {
	polls := 0
	client := newFakeNode(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		switch method {
		case "sendtransaction":
			return map[string]string{"tx_ref": "tx-1"}, nil
		case "gettransactionstatus":
			polls++
			if polls < 2 {
				return map[string]string{"status": "pending"}, nil
			}
			return map[string]string{"status": "confirmed"}, nil
		default:
			return nil, &RPCError{Code: -32601, Message: "method not found"}
		}
	})

	key, err := NewKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	tx := NewTransaction(key.Address(), Blockhash{Hash: "h"})

	txRef, err := client.SubmitAndConfirm(context.Background(), tx)
	if err != nil {
		t.Fatalf("submit and confirm: %v", err)
	}
	if txRef != "tx-1" {
		t.Fatalf("expected tx-1, got %s", txRef)
	}
	if polls != 2 {
		t.Fatalf("expected 2 status polls, got %d", polls)
	}
}

func TestFaultClassification(t *testing.T) {
	cases := []struct {
		name string
		err  RPCError
		want FaultKind
	}{
		{"funding code", RPCError{Code: -32002, Message: "fee payer balance too low"}, FaultFunding},
		{"collision code", RPCError{Code: -32003, Message: "account exists"}, FaultCollision},
		{"funding text", RPCError{Code: -32000, Message: "simulation failed: insufficient funds for fee"}, FaultFunding},
		{"collision in logs", RPCError{Code: -32000, Message: "simulation failed", Data: map[string]interface{}{"logs": []string{"Allocate: account already in use"}}}, FaultCollision},
		{"unclassified", RPCError{Code: -32000, Message: "blockhash expired"}, FaultOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rpcErr := tc.err
			client := newFakeNode(t, func(method string, params []interface{}) (interface{}, *RPCError) {
				return nil, &rpcErr
			})

			key, err := NewKeypair()
			if err != nil {
				t.Fatalf("keypair: %v", err)
			}
			_, err = client.SendTransaction(context.Background(), NewTransaction(key.Address(), Blockhash{Hash: "h"}))
			if err == nil {
				t.Fatalf("expected fault")
			}

			var fault *Fault
			if !errors.As(err, &fault) {
				t.Fatalf("expected *Fault, got %T: %v", err, err)
			}
			if fault.Kind != tc.want {
				t.Fatalf("expected kind %s, got %s", tc.want, fault.Kind)
			}
		})
	}
}
