package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"risparmio/internal/core"
	applog "risparmio/internal/log"
)

type errorResponse struct {
	Error      string     `json:"error"`
	Kind       string     `json:"kind"`
	UnlockTime *time.Time `json:"unlock_time,omitempty"`
}

// badRequestError marks malformed input detected at the transport layer.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequestError{msg: msg} }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to status codes: invalid input is 400,
// an over-principal withdrawal 422, an active lock 423 with the unlock
// timestamp, and a declined external transfer 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var badReq *badRequestError
	var lockErr *core.LockedError

	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	resp.Kind = "internal"

	switch {
	case errors.As(err, &badReq):
		status = http.StatusBadRequest
		resp.Kind = "bad_request"
	case errors.Is(err, core.ErrInvalidAmount):
		status = http.StatusBadRequest
		resp.Kind = "invalid_amount"
	case errors.Is(err, core.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
		resp.Kind = "insufficient_balance"
	case errors.As(err, &lockErr):
		status = http.StatusLocked
		resp.Kind = "lock_period_active"
		unlock := lockErr.UnlockTime.UTC()
		resp.UnlockTime = &unlock
	case errors.Is(err, core.ErrTransferFailed):
		status = http.StatusBadGateway
		resp.Kind = "transfer_failed"
	}

	if status >= 500 {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldStatus, status,
			applog.FieldError, err.Error())
	}

	writeJSON(w, status, resp)
}
