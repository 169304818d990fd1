package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/authz"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/dto"
)

// Ledger define as operações de carteira usadas pelo handler HTTP (ledger.Postgres)
type Ledger interface {
	authz.RoleLookup
	Account(ctx context.Context, userID string) (ledger.Account, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, typ ledger.EntryType, ref string) (decimal.Decimal, error)
	Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, ref string) (fromBal, toBal decimal.Decimal, err error)
	Entries(ctx context.Context, accountID string, limit int) ([]ledger.Entry, error)
}

const defaultEntries = 50

// Server expõe endpoints HTTP da carteira
type Server struct {
	log      *zap.Logger
	ledger   Ledger
	validate *validator.Validate
}

func NewServer(log *zap.Logger, l Ledger) *Server {
	return &Server{log: log, ledger: l, validate: validator.New()}
}

// Router retorna as rotas da API de carteira
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware("wallet-service"))
	r.Use(authz.Middleware(s.log, s.ledger))

	r.Get("/wallet", s.getWallet)
	r.Get("/wallet/entries", s.entries)
	r.With(authz.Require(authz.CapGenerateFunds)).Post("/wallet/deposit", s.deposit)
	r.With(authz.Require(authz.CapTransferFunds)).Post("/wallet/transfer", s.transfer)
	return r
}

// getWallet retorna saldo, papel e capacidades do chamador
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	acc, err := s.ledger.Account(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{
		Success:      true,
		UserID:       acc.ID,
		Role:         string(acc.Role),
		Balance:      acc.Balance,
		Capabilities: p.Caps.List(),
	})
}

// entries lista o histórico do chamador, mais recentes primeiro
func (s *Server) entries(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	limit := defaultEntries
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	es, err := s.ledger.Entries(r.Context(), p.UserID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if es == nil {
		es = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, dto.EntriesResponse{Success: true, Entries: es})
}

// deposit gera saldo de sistema para qualquer conta
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	var req dto.DepositRequest
	if !s.decode(w, r, &req) {
		return
	}
	ref := req.Reference
	if ref == "" {
		ref = uuid.NewString()
	}
	bal, err := s.ledger.Credit(r.Context(), req.UserID, req.Amount, ledger.EntrySystemGeneration, ref)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("funds generated",
		zap.String("by", p.UserID),
		zap.String("userId", req.UserID),
		zap.String("amount", req.Amount.String()),
		zap.String("reference", ref),
	)
	writeJSON(w, http.StatusOK, dto.DepositResponse{Success: true, UserID: req.UserID, NewBalance: bal})
}

// transfer move saldo; enviar de outra conta exige wallet.transfer_any
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	var req dto.TransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	from := req.FromUserID
	if from == "" {
		from = p.UserID
	}
	if from != p.UserID && !p.Can(authz.CapTransferAnyFrom) {
		writeError(w, http.StatusForbidden, "missing capability "+string(authz.CapTransferAnyFrom))
		return
	}
	ref := req.Reference
	if ref == "" {
		ref = uuid.NewString()
	}

	fromBal, toBal, err := s.ledger.Transfer(r.Context(), from, req.ToUserID, req.Amount, ref)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("funds transferred",
		zap.String("by", p.UserID),
		zap.String("from", from),
		zap.String("to", req.ToUserID),
		zap.String("amount", req.Amount.String()),
	)
	writeJSON(w, http.StatusOK, dto.TransferResponse{
		Success:         true,
		FromUserID:      from,
		ToUserID:        req.ToUserID,
		NewBalance:      fromBal,
		ReceiverBalance: toBal,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrSameAccount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("wallet request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Message: msg})
}
