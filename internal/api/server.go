package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/pricing"
	"rangeHedger/internal/rangeorder"
)

// errUnauthenticated is returned for mutations without a known bearer token.
const errUnauthenticated = "UNAUTHENTICATED"

const errInvalidRequest = "InvalidRequest"

// Server exposes the engine's views and operations over HTTP.
type Server struct {
	controller *rangeorder.Controller
	manager    *rangeorder.Manager
	tokens     map[string]common.Address
	logger     *zap.Logger
}

// NewServer builds a Server. tokens maps bearer tokens to caller addresses.
func NewServer(controller *rangeorder.Controller, tokens map[string]common.Address, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		controller: controller,
		manager:    controller.Manager(),
		tokens:     tokens,
		logger:     logger,
	}
}

// ParseTokens parses "token=address" pairs.
func ParseTokens(entries []string) (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(entries))
	for _, entry := range entries {
		token, addr, ok := strings.Cut(entry, "=")
		token, addr = strings.TrimSpace(token), strings.TrimSpace(addr)
		if !ok || token == "" || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid api token entry %q", entry)
		}
		out[token] = common.HexToAddress(addr)
	}
	return out, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/position", s.handlePosition)
	mux.HandleFunc("GET /v1/price", s.handlePrice)
	mux.HandleFunc("GET /v1/balances", s.handleBalances)
	mux.HandleFunc("GET /v1/value", s.handleValue)
	mux.HandleFunc("GET /v1/fee", s.handleFee)
	mux.HandleFunc("GET /v1/authorized-fulfill", s.handleAuthorizedFulfill)
	mux.HandleFunc("GET /v1/state", s.handleState)

	mux.HandleFunc("POST /v1/hedge", s.authed(s.handleHedge))
	mux.HandleFunc("POST /v1/fulfill", s.authed(s.handleFulfill))
	mux.HandleFunc("POST /v1/exit", s.authed(s.handleExit))
	mux.HandleFunc("POST /v1/fee", s.authed(s.handleSetFee))
	mux.HandleFunc("POST /v1/authorized-fulfill", s.authed(s.handleSetAuthorizedFulfill))
	mux.HandleFunc("POST /v1/withdraw", s.authed(s.handleWithdraw))
	mux.HandleFunc("POST /v1/recover", s.authed(s.handleRecover))

	return mux
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller common.Address)

func (s *Server) authed(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		caller, known := s.tokens[strings.TrimSpace(token)]
		if !ok || !known {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errUnauthenticated})
			return
		}
		next(w, r, caller)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type proceedsView struct {
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

func (s *Server) handlePosition(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Position())
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	price, inverted, err := s.controller.GetPoolPrice(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"price": price, "inverted": inverted})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	amount0, amount1, err := s.manager.GetUnderlyingBalances(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conv := s.manager.Converter()
	hedged, reference := conv.Split(amount0, amount1)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount0":   amount0.String(),
		"amount1":   amount1.String(),
		"hedged":    pricing.FromRaw(hedged, conv.HedgedDecimals()),
		"reference": pricing.FromRaw(reference, conv.ReferenceDecimals()),
	})
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	value, err := s.manager.GetPoolDenominatedValue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": value})
}

func (s *Server) handleFee(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint32{"fee": s.manager.PoolFee()})
}

func (s *Server) handleAuthorizedFulfill(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.manager.OnlyAuthorizedFulfill()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.manager.State(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(st)})
}

func (s *Server) handleHedge(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req struct {
		Delta decimal.Decimal `json:"delta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	pos, err := s.controller.HedgeDelta(r.Context(), caller, req.Delta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleFulfill(w http.ResponseWriter, r *http.Request, caller common.Address) {
	proceeds, err := s.manager.FulfillActiveRangeOrder(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proceedsView{Amount0: proceeds.Amount0.String(), Amount1: proceeds.Amount1.String()})
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request, caller common.Address) {
	proceeds, err := s.manager.ExitActiveRangeOrder(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proceedsView{Amount0: proceeds.Amount0.String(), Amount1: proceeds.Amount1.String()})
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req struct {
		Fee uint32 `json:"fee"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.SetPoolFee(r.Context(), caller, req.Fee); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"fee": req.Fee})
}

func (s *Server) handleSetAuthorizedFulfill(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errInvalidRequest})
		return
	}
	if err := s.manager.SetAuthorizedFulfill(r.Context(), caller, *req.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req struct {
		// Amount is in reference token units.
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	raw := pricing.ToRaw(req.Amount, s.manager.Converter().ReferenceDecimals())
	sent, err := s.manager.Withdraw(r.Context(), caller, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sent": sent.String()})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req struct {
		Token     string `json:"token"`
		Recipient string `json:"recipient"`
		// Amount is in the token's smallest unit.
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || !common.IsHexAddress(req.Token) || !common.IsHexAddress(req.Recipient) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errInvalidRequest})
		return
	}
	err := s.manager.RecoverERC20(r.Context(), caller, common.HexToAddress(req.Token), common.HexToAddress(req.Recipient), amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recovered": amount.String()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errInvalidRequest})
		return false
	}
	return true
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var authErr *rangeorder.AuthorizationError
	var stateErr *rangeorder.StateError
	switch {
	case errors.As(err, &authErr):
		return http.StatusForbidden
	case errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.Is(err, rangeorder.ErrInvalidRange), errors.Is(err, rangeorder.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, rangeorder.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	name := rangeorder.ErrorName(err)
	if name == "" {
		name = "Internal"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("error", name))
	}
	writeJSON(w, status, errorBody{Error: name})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
