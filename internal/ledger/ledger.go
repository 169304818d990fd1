// Package ledger é o livro-razão de saldos. Toda mudança de saldo é um delta
// atômico aplicado por um único UPDATE, nunca leitura seguida de escrita.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
)

type EntryType string

const (
	EntryBetPlacement     EntryType = "bet_placement"
	EntryBetWin           EntryType = "bet_win"
	EntryBetRefund        EntryType = "bet_refund"
	EntryCashout          EntryType = "cashout"
	EntrySystemGeneration EntryType = "system_generation"
	EntryTransfer         EntryType = "transfer"
)

// Entry é uma linha do histórico. Amount tem sinal (débito negativo).
type Entry struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Type         EntryType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Querier é satisfeito por *sql.DB, *sql.Tx, *sqlx.DB e *sqlx.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Adjust soma delta (positivo=crédito, negativo=débito) ao saldo e devolve o novo saldo.
// Não há trava de saldo negativo aqui; quem debita checa antes ou usa Debit.
func Adjust(ctx context.Context, q Querier, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := q.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance`,
		delta, accountID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}
	return bal, nil
}

// Debit subtrai amount só se o saldo cobrir, na mesma instrução.
// Dois débitos concorrentes na mesma conta serializam no lock da linha e o segundo
// reavalia o WHERE com o saldo já atualizado.
func Debit(ctx context.Context, q Querier, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var bal decimal.Decimal
	err := q.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1 RETURNING balance`,
		amount, accountID).Scan(&bal)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}
	return decimal.Zero, ErrInsufficientFunds
}

// Record grava a linha de histórico; deve rodar na mesma transação do ajuste
func Record(ctx context.Context, q Querier, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, account_id, entry_type, amount, balance_after, reference) VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.AccountID, string(e.Type), e.Amount, e.BalanceAfter, e.Reference)
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}
