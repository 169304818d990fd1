// Package authz troca as checagens de papel espalhadas nos handlers por um
// conjunto de capacidades calculado uma vez por requisição.
package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

type Capability string

const (
	CapPlaceBets       Capability = "bets.place"
	CapCashout         Capability = "bets.cashout"
	CapSettleBets      Capability = "bets.settle"
	CapViewAllWagers   Capability = "bets.view_all"
	CapGenerateFunds   Capability = "wallet.generate"
	CapTransferFunds   Capability = "wallet.transfer"
	CapTransferAnyFrom Capability = "wallet.transfer_any"
)

var roleCapabilities = map[Role][]Capability{
	RoleUser:  {CapPlaceBets, CapCashout},
	RoleAdmin: {CapPlaceBets, CapCashout, CapSettleBets, CapViewAllWagers, CapTransferFunds},
	RoleSuperuser: {
		CapPlaceBets, CapCashout, CapSettleBets, CapViewAllWagers,
		CapTransferFunds, CapTransferAnyFrom, CapGenerateFunds,
	},
}

// Set é o conjunto de capacidades efetivas de um principal
type Set map[Capability]struct{}

// ForRole devolve as capacidades do papel; papel desconhecido não tem nenhuma
func ForRole(r Role) Set {
	s := make(Set, len(roleCapabilities[r]))
	for _, c := range roleCapabilities[r] {
		s[c] = struct{}{}
	}
	return s
}

func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Principal é quem está chamando a API
type Principal struct {
	UserID string
	Role   Role
	Caps   Set
}

func (p Principal) Can(c Capability) bool { return p.Caps.Has(c) }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// HeaderUserID é preenchido pelo gateway depois da autenticação
const HeaderUserID = "X-User-ID"

// RoleLookup resolve o papel de uma conta (abrindo a conta na primeira vez)
type RoleLookup interface {
	EnsureAccount(ctx context.Context, userID string) (Role, error)
}

// ErrUnknownRole indica conta com papel fora do conjunto conhecido
var ErrUnknownRole = errors.New("unknown role")

// Middleware identifica o chamador, resolve o papel e grava o Principal no contexto
func Middleware(log *zap.Logger, lookup RoleLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
				return
			}

			role, err := lookup.EnsureAccount(r.Context(), userID)
			if err == nil && !role.Valid() {
				err = ErrUnknownRole
			}
			if err != nil {
				log.Error("resolve principal", zap.String("userId", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not resolve account")
				return
			}

			p := Principal{UserID: userID, Role: role, Caps: ForRole(role)}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Require bloqueia a rota quando o principal não tem a capacidade
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if !p.Can(c) {
				writeError(w, http.StatusForbidden, "missing capability "+string(c))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Message: msg})
}
