package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/shared/authz"
)

// Account é a conta do usuário com saldo e papel
type Account struct {
	ID        string          `json:"id"`
	Role      authz.Role      `json:"role"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Postgres implementa as operações de carteira sobre o livro-razão
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureAccount devolve o papel da conta, abrindo-a com papel user e saldo zero no primeiro acesso
func (p *Postgres) EnsureAccount(ctx context.Context, userID string) (authz.Role, error) {
	// DO UPDATE espera um insert concorrente da mesma conta e sempre devolve a linha
	const q = `
		INSERT INTO accounts (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING role`

	var role string
	if err := p.db.QueryRowContext(ctx, q, userID).Scan(&role); err != nil {
		return "", fmt.Errorf("ensure account: %w", err)
	}
	return authz.Role(role), nil
}

func (p *Postgres) Account(ctx context.Context, userID string) (Account, error) {
	var (
		a    Account
		role string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, role, balance, created_at FROM accounts WHERE id = $1`, userID).
		Scan(&a.ID, &role, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	a.Role = authz.Role(role)
	return a, nil
}

// Credit incrementa o saldo e registra a entrada na mesma transação
func (p *Postgres) Credit(ctx context.Context, accountID string, amount decimal.Decimal, typ EntryType, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	bal, err := Adjust(ctx, tx, accountID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if err := Record(ctx, tx, Entry{AccountID: accountID, Type: typ, Amount: amount, BalanceAfter: bal, Reference: ref}); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

// Transfer move amount entre contas numa transação. As linhas são tocadas em ordem
// de id para que transferências cruzadas não travem uma à outra.
func (p *Postgres) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, ref string) (fromBal, toBal decimal.Decimal, err error) {
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	if fromID == toID {
		return decimal.Zero, decimal.Zero, ErrSameAccount
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer tx.Rollback()

	debit := func() error {
		fromBal, err = Debit(ctx, tx, fromID, amount)
		return err
	}
	credit := func() error {
		toBal, err = Adjust(ctx, tx, toID, amount)
		return err
	}
	steps := []func() error{debit, credit}
	if toID < fromID {
		steps = []func() error{credit, debit}
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}

	if err := Record(ctx, tx, Entry{AccountID: fromID, Type: EntryTransfer, Amount: amount.Neg(), BalanceAfter: fromBal, Reference: ref}); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := Record(ctx, tx, Entry{AccountID: toID, Type: EntryTransfer, Amount: amount, BalanceAfter: toBal, Reference: ref}); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return fromBal, toBal, nil
}

// Entries lista o histórico da conta, mais recente primeiro
func (p *Postgres) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, entry_type, amount, balance_after, reference, created_at
		  FROM ledger_entries
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e   Entry
			typ string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &typ, &e.Amount, &e.BalanceAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
