// Package http exposes the savings ledger as a JSON API.
package http

import (
	"net/http"

	applog "risparmio/internal/log"
)

type Server struct {
	http.Server
	ledger Ledger
	logger *applog.Logger
}

// NewServer builds the API server around a ledger. Routes:
//
//	POST /api/deposit      deposit into the caller's savings account
//	POST /api/withdraw     withdraw unlocked principal
//	GET  /api/balance      read-only balance view, public for any user
//	PUT  /api/params       administrative policy update
//	GET  /health           liveness probe
func NewServer(addr string, ledger Ledger, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	s := &Server{
		Server: http.Server{Addr: addr},
		ledger: ledger,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/withdraw", s.handleWithdraw)
	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("PUT /api/params", s.handleUpdateParams)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.Handler = applog.Middleware(logger)(mux)
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
