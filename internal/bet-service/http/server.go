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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/bet-service/dto"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/service"
	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/shared/authz"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

// Wagers é o que os handlers usam do service.Service
type Wagers interface {
	PlaceWager(ctx context.Context, slip betting.Slip) (service.Placed, error)
	Wager(ctx context.Context, callerID string, viewAll bool, wagerID string) (betting.Ticket, error)
	UserWagers(ctx context.Context, f repo.Filter) ([]betting.Ticket, int, error)
	Quote(ctx context.Context, userID, wagerID string) (betting.CashoutQuote, error)
	CashOut(ctx context.Context, userID, wagerID string) (betting.CashoutQuote, decimal.Decimal, error)
	Settle(ctx context.Context, wagerID string, results []betting.SelectionResult) (service.SettleResult, error)
	Sweep(ctx context.Context, batch int) (service.SweepReport, error)
	Stats(ctx context.Context) ([]repo.StatusStats, error)
}

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxPage      = 100000 // limita o OFFSET
)

// Server expõe a API de apostas
type Server struct {
	log       *zap.Logger
	svc       Wagers
	accounts  authz.RoleLookup
	ws        http.HandlerFunc // nil desliga /ws
	validate  *validator.Validate
	sweepSize int
}

func NewServer(log *zap.Logger, svc Wagers, accounts authz.RoleLookup, ws http.HandlerFunc, sweepSize int) *Server {
	return &Server{
		log:       log,
		svc:       svc,
		accounts:  accounts,
		ws:        ws,
		validate:  validator.New(),
		sweepSize: sweepSize,
	}
}

// Router monta as rotas; toda rota passa pela identificação do chamador
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware("bet-service"))
	r.Use(authz.Middleware(s.log, s.accounts))

	r.With(authz.Require(authz.CapPlaceBets)).Post("/bets", s.placeWager)
	r.Get("/bets", s.listWagers)
	r.Get("/bets/{id}", s.getWager)
	r.With(authz.Require(authz.CapCashout)).Get("/bets/{id}/cashout", s.quoteCashout)
	r.With(authz.Require(authz.CapCashout)).Post("/bets/{id}/cashout", s.cashOut)

	r.Route("/admin", func(r chi.Router) {
		r.With(authz.Require(authz.CapSettleBets)).Post("/bets/{id}/settle", s.settle)
		r.With(authz.Require(authz.CapSettleBets)).Post("/settlement/sweep", s.sweep)
		r.With(authz.Require(authz.CapViewAllWagers)).Get("/bets/stats", s.stats)
	})

	if s.ws != nil {
		r.Get("/ws", s.ws)
	}
	return r
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())

	var req dto.PlaceWagerRequest
	if !s.decode(w, r, &req) {
		return
	}
	placed, err := s.svc.PlaceWager(r.Context(), req.Slip(p.UserID))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceWagerResponse{
		Success:    true,
		Wager:      dto.FromTicket(placed.Ticket),
		NewBalance: placed.NewBalance,
	})
}

// listWagers lista as apostas do chamador; ?userId= de outro usuário ou ?scope=all exigem bets.view_all
func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	q := r.URL.Query()

	f := repo.Filter{UserID: p.UserID}
	if u := q.Get("userId"); u != "" && u != p.UserID {
		if !p.Can(authz.CapViewAllWagers) {
			writeError(w, http.StatusForbidden, "missing capability "+string(authz.CapViewAllWagers))
			return
		}
		f.UserID = u
	}
	if q.Get("scope") == "all" {
		if !p.Can(authz.CapViewAllWagers) {
			writeError(w, http.StatusForbidden, "missing capability "+string(authz.CapViewAllWagers))
			return
		}
		f.UserID = ""
	}
	if st := q.Get("status"); st != "" {
		if !betting.WagerStatus(st).Valid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		f.Status = betting.WagerStatus(st)
	}

	page := intParam(q.Get("page"), defaultPage)
	limit := intParam(q.Get("limit"), defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	if page > maxPage {
		writeError(w, http.StatusBadRequest, "page out of range")
		return
	}
	f.Limit, f.Offset = limit, (page-1)*limit

	tickets, total, err := s.svc.UserWagers(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := dto.WagerListResponse{Success: true, Wagers: make([]dto.WagerResponse, len(tickets)), Page: page, Limit: limit, Total: total}
	for i, t := range tickets {
		out.Wagers[i] = dto.FromTicket(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	t, err := s.svc.Wager(r.Context(), p.UserID, p.Can(authz.CapViewAllWagers), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTicket(t))
}

func (s *Server) quoteCashout(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	q, err := s.svc.Quote(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromQuote(q))
}

func (s *Server) cashOut(w http.ResponseWriter, r *http.Request) {
	p, _ := authz.FromContext(r.Context())
	q, bal, err := s.svc.CashOut(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CashoutResponse{Success: true, Cashout: dto.FromQuote(q), NewBalance: bal})
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Settle(r.Context(), chi.URLParam(r, "id"), req.SelectionResults())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := dto.SettleResponse{Success: true, Finalized: res.Finalized, Wager: dto.FromTicket(res.Ticket)}
	if res.Finalized {
		credit := res.Decision.Credit
		out.Credit = &credit
	}
	if res.NewBalance.Valid {
		bal := res.NewBalance.Decimal
		out.NewBalance = &bal
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	var req dto.SweepRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}
	batch := s.sweepSize
	if req.BatchSize > 0 {
		batch = req.BatchSize
	}
	rep, err := s.svc.Sweep(r.Context(), batch)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

// decode lê o JSON e roda as tags de validação; responde 400 sozinho em caso de erro
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

// fail traduz erros de domínio em status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	var ve *betting.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, validationStatus(ve), dto.ErrorResponse{Message: ve.Reason, Code: ve.Code})
	case betting.IsIntegrity(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func validationStatus(ve *betting.ValidationError) int {
	switch ve.Code {
	case betting.ErrWagerNotFound.Code, betting.ErrSelectionNotFound.Code:
		return http.StatusNotFound
	case betting.ErrInsufficientBalance.Code, betting.ErrOddsChanged.Code, betting.ErrWagerNotPending.Code,
		betting.ErrSelectionsPending.Code, betting.ErrCashoutLostSelection.Code, betting.ErrCashoutNoWon.Code,
		betting.ErrCashoutNothingLeft.Code, betting.ErrCashoutCutoff.Code:
		return http.StatusConflict
	case betting.ErrStakeLimit.Code, betting.ErrSelectionLimit.Code, betting.ErrPayoutLimit.Code:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func intParam(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Message: msg})
}
