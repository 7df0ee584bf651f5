package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	app "github.com/cobx-network/player_layer/internal/app"
	"github.com/cobx-network/player_layer/internal/app/services/identity"
	"github.com/cobx-network/player_layer/internal/chain"
)

const (
	testSecret     = "handler-test-secret"
	testAdminToken = "admin-token"
	testProgram    = chain.Address("PlayerProg1111111111111111111111")
	testMint       = chain.Address("CobxMint111111111111111111111111")
)

// stubLedger accepts every submission and tracks which addresses exist.
type stubLedger struct {
	mu        sync.Mutex
	accounts  map[chain.Address]bool
	submits   int
	submitErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{accounts: make(map[chain.Address]bool)}
}

func (l *stubLedger) AccountExists(ctx context.Context, addr chain.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[addr], nil
}

func (l *stubLedger) LatestBlockhash(ctx context.Context) (chain.Blockhash, error) {
	return chain.Blockhash{Hash: "stubhash", Height: 1}, nil
}

func (l *stubLedger) SubmitAndConfirm(ctx context.Context, tx *chain.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return "", l.submitErr
	}
	l.submits++
	for _, ins := range tx.Instructions {
		for _, addr := range ins.Accounts {
			l.accounts[addr] = true
		}
	}
	return fmt.Sprintf("tx-%d", l.submits), nil
}

type testServer struct {
	srv      *httptest.Server
	verifier *identity.JWTVerifier
	ledger   *stubLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	verifier := identity.NewJWTVerifier(testSecret)
	ledger := newStubLedger()
	key, err := chain.NewKeypair()
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}

	application := app.New(app.Config{
		Ledger:    ledger,
		Program:   chain.PlayerProgram{ID: testProgram, Mint: testMint},
		ServerKey: key,
		Cluster:   "devnet",
		Verifier:  verifier,
	})
	srv := httptest.NewServer(NewHandler(application, testAdminToken, nil))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, verifier: verifier, ledger: ledger}
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := ts.verifier.Issue(userID, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp, decoded
}

func rawString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return s
}

func TestRegisterAndProvisionWeb2(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")

	resp, body := ts.do(t, http.MethodPost, "/v1/register", token, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: got %d, want 201", resp.StatusCode)
	}
	if got := rawString(t, body["user_id"]); got != "user-1" {
		t.Errorf("user_id: got %q", got)
	}
	if _, ok := body["session_private_key"]; ok {
		t.Error("session private key must not appear in API responses")
	}

	resp, body = ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero","class":1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("provision: got %d, body %v", resp.StatusCode, body)
	}
	player := rawString(t, body["player_address"])
	if player == "" {
		t.Fatal("expected player address in response")
	}

	resp, body = ts.do(t, http.MethodGet, "/v1/profile", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: got %d", resp.StatusCode)
	}
	if got := rawString(t, body["pda_status"]); got != "active" {
		t.Errorf("pda_status: got %q, want active", got)
	}
	if got := rawString(t, body["player_account_address"]); got != player {
		t.Errorf("profile address %q does not match provision result %q", got, player)
	}
}

func TestProvisionConflictStatus(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")

	ts.do(t, http.MethodPost, "/v1/register", token, "")
	if resp, _ := ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first provision: got %d", resp.StatusCode)
	}

	resp, _ := ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second provision: got %d, want 409", resp.StatusCode)
	}
}

func TestValidationStatus(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")
	ts.do(t, http.MethodPost, "/v1/register", token, "")

	resp, _ := ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero","class":9}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range class: got %d, want 400", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/v1/profile", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodGet, "/v1/profile", "garbage", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: got %d, want 401", resp.StatusCode)
	}

	// Valid token, but no profile row yet.
	resp, _ = ts.do(t, http.MethodGet, "/v1/profile", ts.token(t, "ghost"), "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unregistered user: got %d, want 404", resp.StatusCode)
	}
}

func TestWalletLinkAndWeb3Provision(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")
	ts.do(t, http.MethodPost, "/v1/register", token, "")

	// Web3 without a linked wallet is a client error.
	resp, _ := ts.do(t, http.MethodPost, "/v1/accounts/web3", token, `{"name":"hero","class":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("web3 without wallet: got %d, want 400", resp.StatusCode)
	}

	wallet, err := chain.NewKeypair()
	if err != nil {
		t.Fatalf("wallet keypair: %v", err)
	}
	resp, _ = ts.do(t, http.MethodPost, "/v1/wallet", token,
		fmt.Sprintf(`{"wallet":%q}`, wallet.Address()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("link wallet: got %d", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodPost, "/v1/accounts/web3", token, `{"name":"hero","class":1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("web3 provision: got %d, body %v", resp.StatusCode, body)
	}
}

func TestFundingFaultIsServerError(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")
	ts.do(t, http.MethodPost, "/v1/register", token, "")

	ts.ledger.mu.Lock()
	ts.ledger.submitErr = &chain.Fault{Kind: chain.FaultFunding, Message: "insufficient funds"}
	ts.ledger.mu.Unlock()

	resp, body := ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("funding fault: got %d, want 500", resp.StatusCode)
	}
	if got := rawString(t, body["error"]); !strings.Contains(got, "operator action required") {
		t.Errorf("expected operator-facing message, got %q", got)
	}
}

func TestListIntents(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")
	ts.do(t, http.MethodPost, "/v1/register", token, "")
	ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero"}`)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/v1/intents", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list intents: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list intents: got %d", resp.StatusCode)
	}

	var intents []struct {
		PlayerAddress string `json:"player_address"`
		State         string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&intents); err != nil {
		t.Fatalf("decode intents: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %d", len(intents))
	}
	if intents[0].State != "linked" {
		t.Errorf("intent state: got %q, want linked", intents[0].State)
	}
	if intents[0].PlayerAddress == "" {
		t.Error("expected player address on intent")
	}
}

func TestMetricsExposesLedgerSubmissions(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")
	ts.do(t, http.MethodPost, "/v1/register", token, "")
	ts.do(t, http.MethodPost, "/v1/accounts/web2", token, `{"name":"hero"}`)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `player_layer_ledger_submissions_total{success="true"}`) {
		t.Error("expected ledger submission counter in scrape output")
	}
}

func TestPrepareIsStateless(t *testing.T) {
	ts := newTestServer(t)

	wallet, err := chain.NewKeypair()
	if err != nil {
		t.Fatalf("wallet keypair: %v", err)
	}
	resp, body := ts.do(t, http.MethodPost, "/v1/accounts/web3/prepare", "",
		fmt.Sprintf(`{"wallet":%q,"name":"hero","class":1}`, wallet.Address()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prepare: got %d, body %v", resp.StatusCode, body)
	}
	if rawString(t, body["transaction"]) == "" {
		t.Error("expected serialized transaction")
	}
	if ts.ledger.submits != 0 {
		t.Errorf("prepare must not submit; got %d submissions", ts.ledger.submits)
	}
}

func TestAdminConfig(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/v1/admin/config", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no admin token: got %d, want 401", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodPost, "/v1/admin/config", testAdminToken, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bootstrap: got %d, body %v", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, "/v1/admin/config", testAdminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config lookup: got %d", resp.StatusCode)
	}
	var exists bool
	if err := json.Unmarshal(body["already_exists"], &exists); err != nil || !exists {
		t.Errorf("expected already_exists=true after bootstrap, body %v", body)
	}
}

func TestProgressionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "user-1")
	ts.do(t, http.MethodPost, "/v1/register", token, "")

	resp, body := ts.do(t, http.MethodPost, "/v1/progression/experience", token, `{"delta":150}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add experience: got %d", resp.StatusCode)
	}
	var level int
	if err := json.Unmarshal(body["level"], &level); err != nil || level != 2 {
		t.Errorf("level after 150 xp: got %v, want 2", body["level"])
	}

	resp, body = ts.do(t, http.MethodGet, "/v1/progression", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get progression: got %d", resp.StatusCode)
	}
	var exp int64
	if err := json.Unmarshal(body["experience"], &exp); err != nil || exp != 150 {
		t.Errorf("experience: got %v, want 150", body["experience"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: got %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodGet, "/readyz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz with no checks: got %d", resp.StatusCode)
	}
}
