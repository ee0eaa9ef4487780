package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"risparmio/internal/core"
	applog "risparmio/internal/log"
)

// Ledger is the slice of the savings ledger the API needs.
type Ledger interface {
	Deposit(ctx context.Context, user string, amount int64) (core.BalanceView, error)
	Withdraw(ctx context.Context, user string, amount int64) (core.BalanceView, error)
	Balance(ctx context.Context, user string) (core.BalanceView, error)
	UpdateParams(params core.Params) error
}

type amountRequest struct {
	User   string `json:"user"`
	Amount int64  `json:"amount"`
}

type paramsRequest struct {
	AnnualRateBps int64  `json:"annual_rate_bps"`
	LockPeriod    string `json:"lock_period"`
}

func decodeAmountRequest(r *http.Request) (amountRequest, error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return amountRequest{}, errBadRequest("invalid request body")
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		return amountRequest{}, errBadRequest("user is required")
	}
	return req, nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAmountRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.ledger.Deposit(r.Context(), req.User, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Deposit accepted",
		applog.FieldUser, req.User, applog.FieldAmount, req.Amount)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAmountRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.ledger.Withdraw(r.Context(), req.User, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Withdrawal accepted",
		applog.FieldUser, req.User, applog.FieldAmount, req.Amount)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, errBadRequest("user is a mandatory query parameter"))
		return
	}

	view, err := s.ledger.Balance(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var req paramsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	lockPeriod, err := time.ParseDuration(req.LockPeriod)
	if err != nil {
		writeError(w, r, errBadRequest("invalid lock_period: expected a duration like 720h"))
		return
	}

	params := core.Params{AnnualRateBps: req.AnnualRateBps, LockPeriod: lockPeriod}
	if err := s.ledger.UpdateParams(params); err != nil {
		writeError(w, r, errBadRequest(err.Error()))
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Savings policy updated",
		applog.FieldRateBps, params.AnnualRateBps,
		applog.FieldLock, params.LockPeriod.String())
	w.WriteHeader(http.StatusNoContent)
}
