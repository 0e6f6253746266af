package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/api/wallet", s.handleCreateWallet).Methods("POST")
	r.HandleFunc("/api/expenses", s.requireAuth(s.handleCreateExpense)).Methods("POST")
	r.HandleFunc("/api/expenses", s.handleListExpenses).Methods("GET")
	r.HandleFunc("/api/expenses/{address}", s.optionalAuth(s.handleGetExpense)).Methods("GET")
	r.HandleFunc("/api/expenses/{address}/pay", s.requireAuth(s.handlePay)).Methods("POST")
	r.HandleFunc("/api/expenses/{address}/settle", s.requireAuth(s.handleSettle)).Methods("POST")
	r.HandleFunc("/api/oracle/price", s.handleGetPrice).Methods("GET")
	r.HandleFunc("/api/oracle/price", s.handlePutPrice).Methods("PUT")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
