// Package gateway é a borda HTTP: roteia /api/* para bet-service e wallet-service.
// A identidade (X-User-ID) chega aqui já resolvida pela autenticação externa.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

// Targets são as URLs base dos serviços
type Targets struct {
	Bet    string
	Wallet string
}

func proxy(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s target %q", name, to)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"message":"upstream unavailable"}`))
	}
	return rp, nil
}

// NewRouter monta as rotas:
// /api/bets/*, /api/admin/*, /api/ws -> bet-service; /api/wallet/* -> wallet-service
func NewRouter(log *zap.Logger, t Targets) (http.Handler, error) {
	bet, err := proxy(log, "bet-service", t.Bet)
	if err != nil {
		return nil, err
	}
	wallet, err := proxy(log, "wallet-service", t.Wallet)
	if err != nil {
		return nil, err
	}
	toBet := http.StripPrefix("/api", bet)
	toWallet := http.StripPrefix("/api", wallet)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware("api-gateway"))
	r.Use(withCORS)
	r.Use(forwardRequestID)

	r.Handle("/api/bets", toBet)
	r.Handle("/api/bets/*", toBet)
	r.Handle("/api/admin/*", toBet)
	r.Handle("/api/ws", toBet)
	r.Handle("/api/wallet", toWallet)
	r.Handle("/api/wallet/*", toWallet)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r, nil
}

// forwardRequestID repassa o id gerado pelo middleware do chi aos serviços
func forwardRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", "Authorization", "X-User-ID"}, ", "))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
