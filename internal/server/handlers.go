// Package server exposes the protocol transitions and read path over HTTP.
//
// The server custodies dev wallets and signs on behalf of authenticated
// sessions; the protocol core only ever sees the keys.Signer capability.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/spleety/spleety/internal/config"
	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/models"
	"github.com/spleety/spleety/internal/oracle"
	"github.com/spleety/spleety/internal/program"
	"github.com/spleety/spleety/internal/scanner"
)

// Server wires the protocol components behind the HTTP API.
type Server struct {
	cfg       *config.Config
	ledger    *ledger.Ledger
	program   *program.Program
	scanner   *scanner.Scanner
	publisher *oracle.Publisher
	jwt       *JWTManager
	vault     *vault
}

// New assembles a Server.
func New(
	cfg *config.Config,
	l *ledger.Ledger,
	prog *program.Program,
	sc *scanner.Scanner,
	pub *oracle.Publisher,
) *Server {
	return &Server{
		cfg:       cfg,
		ledger:    l,
		program:   prog,
		scanner:   sc,
		publisher: pub,
		jwt:       NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		vault:     newVault(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeProgramError maps the protocol error taxonomy to HTTP statuses.
func writeProgramError(w http.ResponseWriter, err error) {
	var status int
	switch program.Classify(err) {
	case program.ClassValidation:
		status = http.StatusBadRequest
	case program.ClassStateConflict:
		status = http.StatusConflict
	case program.ClassAuthorization:
		status = http.StatusForbidden
	case program.ClassResource:
		status = http.StatusPaymentRequired
	case program.ClassDecode:
		status = http.StatusBadGateway
	case program.ClassConversion:
		status = http.StatusServiceUnavailable
	case program.ClassNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, err)
}

// usdString renders USD micro-units as a decimal dollar amount.
func usdString(micro uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(micro), -6).String()
}

// nativeString renders native minor units as a decimal coin amount.
func nativeString(minor uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(minor), -9).String()
}

type expenseJSON struct {
	Address          string `json:"address"`
	Authority        string `json:"authority"`
	Title            string `json:"title"`
	TotalUSD         string `json:"total_usd"`
	PerPersonUSD     string `json:"per_person_usd"`
	ParticipantCount uint8  `json:"participant_count"`
	PaidCount        uint8  `json:"paid_count"`
	Settled          bool   `json:"settled"`
	CreatedAt        int64  `json:"created_at"`
}

func expenseToJSON(addr keys.Address, g *models.ExpenseGroup) expenseJSON {
	return expenseJSON{
		Address:          addr.String(),
		Authority:        g.Authority.String(),
		Title:            g.Title,
		TotalUSD:         usdString(g.TotalAmountUSD),
		PerPersonUSD:     usdString(g.AmountPerPersonUSD),
		ParticipantCount: g.ParticipantCount,
		PaidCount:        g.PaidCount,
		Settled:          g.Settled,
		CreatedAt:        g.CreatedAt,
	}
}

type participantJSON struct {
	Wallet     string `json:"wallet"`
	Expense    string `json:"expense"`
	HasPaid    bool   `json:"has_paid"`
	PaidUSD    string `json:"paid_usd"`
	PaidNative string `json:"paid_native"`
	PaidAt     int64  `json:"paid_at"`
}

func participantToJSON(p *models.Participant) participantJSON {
	return participantJSON{
		Wallet:     p.Wallet.String(),
		Expense:    p.ExpenseGroup.String(),
		HasPaid:    p.HasPaid,
		PaidUSD:    usdString(p.PaidAmountUSD),
		PaidNative: nativeString(p.PaidAmountNative),
		PaidAt:     p.PaidAt,
	}
}

// handleCreateWallet provisions a funded dev wallet and opens a session.
func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	kp, err := s.vault.create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.ledger.Airdrop(r.Context(), kp.Address(), s.cfg.AirdropAmount); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	token, err := s.jwt.Generate(kp.Address().String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"address": kp.Address().String(),
		"token":   token,
		"balance": nativeString(s.ledger.Balance(kp.Address())),
	})
}

type createExpenseRequest struct {
	ExpenseID        string `json:"expense_id"`
	Title            string `json:"title"`
	TotalUSD         string `json:"total_usd"`
	ParticipantCount uint8  `json:"participant_count"`
}

// handleCreateExpense registers a new expense for the session wallet.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ExpenseID == "" {
		req.ExpenseID = uuid.NewString()
	}

	totalMicro, err := parseUSD(req.TotalUSD)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	signer, err := s.sessionSigner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	addr, group, err := s.program.CreateExpense(
		r.Context(), signer, req.ExpenseID, req.Title, totalMicro, req.ParticipantCount)
	observeTransition("create", err)
	if err != nil {
		writeProgramError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"expense_id": req.ExpenseID,
		"expense":    expenseToJSON(addr, group),
	})
}

// handleListExpenses lists a creator's expenses, newest first.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	creator, err := keys.ParseAddress(r.URL.Query().Get("creator"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	listings, err := s.scanner.ListExpensesFor(r.Context(), creator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]expenseJSON, len(listings))
	for i, l := range listings {
		out[i] = expenseToJSON(l.Address, l.Group)
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

// handleGetExpense fetches one expense; with a session, the caller's own
// payment record rides along.
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	addr, err := keys.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	group, err := s.program.FetchExpenseGroup(r.Context(), addr)
	if err != nil {
		writeProgramError(w, err)
		return
	}

	resp := map[string]any{"expense": expenseToJSON(addr, group)}
	if wallet, ok := WalletFromContext(r.Context()); ok {
		participant, err := s.program.FetchParticipant(r.Context(), addr, wallet)
		if err != nil {
			writeProgramError(w, err)
			return
		}
		if participant != nil {
			resp["participant"] = participantToJSON(participant)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePay pays the session wallet's share into the expense.
func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	addr, err := keys.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	signer, err := s.sessionSigner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	partAddr, participant, err := s.program.JoinAndPay(r.Context(), signer, addr)
	observeTransition("pay", err)
	if err != nil {
		writeProgramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participant_address": partAddr.String(),
		"participant":         participantToJSON(participant),
	})
}

// handleSettle withdraws the expense's transferable balance to the session
// wallet, which must be the expense authority.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	addr, err := keys.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	signer, err := s.sessionSigner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	withdrawn, err := s.program.Settle(r.Context(), signer, addr)
	observeTransition("settle", err)
	if err != nil {
		writeProgramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"withdrawn_native": nativeString(withdrawn),
	})
}

// handleGetPrice returns the current oracle snapshot.
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	feedAddr, _, err := s.program.Deriver().OracleAddress()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	feed, err := oracle.Read(s.ledger, feedAddr)
	if err != nil {
		writeProgramError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"native_per_usd": oracle.FormatPrice(feed),
		"mantissa":       feed.PriceMantissa,
		"exponent":       feed.Exponent,
		"updated_at":     feed.UpdatedAt,
	})
}

type putPriceRequest struct {
	NativePerUSD string `json:"native_per_usd"`
}

// handlePutPrice publishes a fresh dev oracle snapshot.
func (s *Server) handlePutPrice(w http.ResponseWriter, r *http.Request) {
	var req putPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mantissa, exponent, err := oracle.ParsePrice(req.NativePerUSD)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := s.publisher.Publish(r.Context(), mantissa, exponent, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"feed_address": addr.String(),
		"mantissa":     mantissa,
		"exponent":     exponent,
	})
}

// sessionSigner resolves the authenticated wallet to its signing capability.
func (s *Server) sessionSigner(r *http.Request) (keys.Signer, error) {
	wallet, ok := WalletFromContext(r.Context())
	if !ok {
		return nil, ErrMissingToken
	}
	return s.vault.signer(wallet)
}

// parseUSD converts a decimal dollar string to USD micro-units, truncating
// sub-micro precision the way the original client does.
func parseUSD(raw string) (uint64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, errors.New("amount must not be negative")
	}
	micro := d.Shift(6).Truncate(0).BigInt()
	if !micro.IsUint64() {
		return 0, errors.New("amount out of range")
	}
	return micro.Uint64(), nil
}
