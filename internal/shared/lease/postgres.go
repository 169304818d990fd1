// Package lease implementa exclusão mútua entre instâncias via uma linha de
// lease com TTL no Postgres. Um lease expirado pode ser tomado por outro dono.
package lease

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Postgres struct {
	db       *sql.DB
	newOwner func() string
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, newOwner: uuid.NewString}
}

// TryLock tenta adquirir o lease name por ttl. ok=false quando outro dono ainda o detém.
// release só apaga o lease se ele ainda pertencer a este dono.
func (p *Postgres) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	owner := p.newOwner()

	const q = `
		INSERT INTO sweep_leases (name, owner, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
		ON CONFLICT (name) DO UPDATE
		   SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		 WHERE sweep_leases.expires_at <= NOW()
		RETURNING owner`

	var got string
	err = p.db.QueryRowContext(ctx, q, name, owner, ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", name, err)
	}

	release = func(ctx context.Context) error {
		if _, err := p.db.ExecContext(ctx, `DELETE FROM sweep_leases WHERE name = $1 AND owner = $2`, name, owner); err != nil {
			return fmt.Errorf("release lease %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}
