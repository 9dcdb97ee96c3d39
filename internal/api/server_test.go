package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"rangeHedger/internal/rangeorder"
	"rangeHedger/internal/scenario"
)

var (
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

type testServer struct {
	env *scenario.Environment
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env, err := scenario.NewEnvironment(context.Background(), scenario.EnvConfig{
		Pair: scenario.Pair{
			HedgedToken:       weth,
			ReferenceToken:    usdc,
			HedgedDecimals:    18,
			ReferenceDecimals: 6,
		},
		InitialPrice:          decimal.NewFromInt(3280),
		Fees:                  []uint32{500},
		PoolFee:               3000,
		OnlyAuthorizedFulfill: true,
		CustodyReference:      decimal.NewFromInt(100000),
	}, scenario.Options{})
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	acc := env.Config.Accounts
	tokens, err := ParseTokens([]string{
		"vault-token=" + acc.Vault.Hex(),
		"manager-token=" + acc.Manager.Hex(),
		"guardian-token=" + acc.Guardian.Hex(),
		"stranger-token=" + acc.Stranger.Hex(),
	})
	if err != nil {
		t.Fatalf("parse tokens: %v", err)
	}
	srv := httptest.NewServer(NewServer(env.Controller, tokens, nil).Handler())
	t.Cleanup(srv.Close)
	return &testServer{env: env, srv: srv}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestHedgeAndViews(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/v1/hedge", "vault-token", map[string]string{"delta": "-0.5"})
	if status != http.StatusOK {
		t.Fatalf("hedge: %d %v", status, body)
	}
	if body["direction"] != "ABOVE" {
		t.Fatalf("expected ABOVE order, got %v", body["direction"])
	}

	status, body = s.do(t, http.MethodGet, "/v1/state", "", nil)
	if status != http.StatusOK || body["state"] != string(rangeorder.StateActiveUnfilled) {
		t.Fatalf("state: %d %v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/v1/price", "", nil)
	if status != http.StatusOK || body["inverted"] != true {
		t.Fatalf("price: %d %v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/v1/balances", "", nil)
	if status != http.StatusOK || body["amount0"] == "0" {
		t.Fatalf("balances: %d %v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/v1/value", "", nil)
	if status != http.StatusOK {
		t.Fatalf("value: %d %v", status, body)
	}
	value, err := decimal.NewFromString(fmt.Sprint(body["value"]))
	if err != nil || value.LessThan(decimal.NewFromInt(1600)) {
		t.Fatalf("expected value around 1640 USDC, got %v", body["value"])
	}

	status, body = s.do(t, http.MethodGet, "/v1/position", "", nil)
	if status != http.StatusOK || body["lower_tick"] == float64(0) {
		t.Fatalf("position: %d %v", status, body)
	}
}

func TestMutationsRequireToken(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodPost, "/v1/exit", "", nil)
	if status != http.StatusUnauthorized || body["error"] != errUnauthenticated {
		t.Fatalf("expected 401, got %d %v", status, body)
	}
	status, _ = s.do(t, http.MethodPost, "/v1/exit", "unknown", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", status)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/v1/hedge", "stranger-token", map[string]string{"delta": "1"})
	if status != http.StatusForbidden || body["error"] != "UNAUTHORIZED" {
		t.Fatalf("expected 403 UNAUTHORIZED, got %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/v1/fulfill", "manager-token", nil)
	if status != http.StatusConflict || body["error"] != "NoActivePosition" {
		t.Fatalf("expected 409 NoActivePosition, got %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/v1/withdraw", "vault-token", map[string]string{"amount": "-1"})
	if status != http.StatusBadRequest || body["error"] != "InvalidAmount" {
		t.Fatalf("expected 400 InvalidAmount, got %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/v1/fee", "manager-token", map[string]interface{}{"fee": 500, "extra": true})
	if status != http.StatusBadRequest || body["error"] != errInvalidRequest {
		t.Fatalf("expected 400 InvalidRequest, got %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/v1/fee", "manager-token", map[string]interface{}{"fee": 10000})
	if status != http.StatusInternalServerError || body["error"] != "Internal" {
		t.Fatalf("expected 500 for unknown fee tier, got %d %v", status, body)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/v1/fee", "manager-token", map[string]interface{}{"fee": 500})
	if status != http.StatusOK {
		t.Fatalf("set fee: %d %v", status, body)
	}
	status, body = s.do(t, http.MethodGet, "/v1/fee", "", nil)
	if status != http.StatusOK || body["fee"] != float64(500) {
		t.Fatalf("fee: %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/v1/authorized-fulfill", "manager-token", map[string]interface{}{})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without enabled, got %d %v", status, body)
	}
	status, _ = s.do(t, http.MethodPost, "/v1/authorized-fulfill", "manager-token", map[string]interface{}{"enabled": false})
	if status != http.StatusOK {
		t.Fatalf("set authorized fulfill: %d", status)
	}
	status, body = s.do(t, http.MethodGet, "/v1/authorized-fulfill", "", nil)
	if status != http.StatusOK || body["enabled"] != false {
		t.Fatalf("authorized fulfill: %d %v", status, body)
	}

	ctx := context.Background()
	acc := s.env.Config.Accounts
	s.env.Ledger.Mint(usdc, acc.Engine, s.env.RawAmount(usdc, decimal.NewFromInt(10)))
	status, body = s.do(t, http.MethodPost, "/v1/withdraw", "vault-token", map[string]string{"amount": "25"})
	if status != http.StatusOK || body["sent"] != "10000000" {
		t.Fatalf("withdraw: %d %v", status, body)
	}

	s.env.Ledger.Mint(weth, acc.Engine, s.env.RawAmount(weth, decimal.NewFromInt(1)))
	status, body = s.do(t, http.MethodPost, "/v1/recover", "guardian-token", map[string]string{
		"token":     weth.Hex(),
		"recipient": acc.Guardian.Hex(),
		"amount":    "1000000000000000000",
	})
	if status != http.StatusOK {
		t.Fatalf("recover: %d %v", status, body)
	}
	got, err := s.env.Balance(ctx, weth, acc.Guardian)
	if err != nil || !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected guardian to hold 1 WETH, got %s %v", got, err)
	}

	status, body = s.do(t, http.MethodPost, "/v1/recover", "guardian-token", map[string]string{"token": "weth", "recipient": acc.Guardian.Hex(), "amount": "1"})
	if status != http.StatusBadRequest || body["error"] != errInvalidRequest {
		t.Fatalf("expected 400 for bad token, got %d %v", status, body)
	}
}

func TestParseTokens(t *testing.T) {
	if _, err := ParseTokens([]string{"no-separator"}); err == nil {
		t.Fatalf("expected error for missing separator")
	}
	if _, err := ParseTokens([]string{"tok=not-an-address"}); err == nil {
		t.Fatalf("expected error for bad address")
	}
	tokens, err := ParseTokens([]string{" tok = 0x000000000000000000000000000000000000e002 "})
	if err != nil || tokens["tok"] != common.HexToAddress("0xe002") {
		t.Fatalf("unexpected %v %v", tokens, err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{rangeorder.ErrUnauthorizedFulfill, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", rangeorder.ErrInActivePosition), http.StatusConflict},
		{fmt.Errorf("%w: bad", rangeorder.ErrInvalidRange), http.StatusBadRequest},
		{fmt.Errorf("%w: short", rangeorder.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
