// Package matches guarda as partidas vindas do feed. O upsert é sempre por
// external_id e nunca altera uma partida já liquidada.
package matches

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/radieske/sports-bet-ledger/internal/betting"
)

const columns = `external_id, sport_key, sport_title, home_team, away_team, commence_time, status,
	home_score, away_score, result, settled, last_updated`

// Postgres implementa o store de partidas
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Upsert grava dados de agenda de uma partida (match_updates). Não toca placar nem
// resultado, e não rebaixa uma partida já encerrada.
func (p *Postgres) Upsert(ctx context.Context, m betting.Match) error {
	const q = `
		INSERT INTO matches
		  (external_id, sport_key, sport_title, home_team, away_team, commence_time, status, last_updated)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (external_id) DO UPDATE SET
		  sport_key     = EXCLUDED.sport_key,
		  sport_title   = EXCLUDED.sport_title,
		  home_team     = EXCLUDED.home_team,
		  away_team     = EXCLUDED.away_team,
		  commence_time = EXCLUDED.commence_time,
		  status        = CASE WHEN matches.status = 'ended' THEN matches.status ELSE EXCLUDED.status END,
		  last_updated  = EXCLUDED.last_updated
		WHERE NOT matches.settled`
	_, err := p.db.ExecContext(ctx, q,
		m.ExternalID, m.SportKey, m.SportTitle, m.HomeTeam, m.AwayTeam,
		m.CommenceTime, string(m.Status), m.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", m.ExternalID, err)
	}
	return nil
}

// RecordResult grava o placar final pelo mesmo upsert por external_id.
// changed=false quando a partida já estava liquidada.
func (p *Postgres) RecordResult(ctx context.Context, m betting.Match) (bool, error) {
	const q = `
		INSERT INTO matches
		  (external_id, sport_key, sport_title, home_team, away_team, commence_time, status,
		   home_score, away_score, result, last_updated)
		VALUES
		  ($1,$2,$3,$4,$5,$6,'ended',$7,$8,$9,$10)
		ON CONFLICT (external_id) DO UPDATE SET
		  status       = 'ended',
		  home_score   = EXCLUDED.home_score,
		  away_score   = EXCLUDED.away_score,
		  result       = EXCLUDED.result,
		  last_updated = EXCLUDED.last_updated
		WHERE NOT matches.settled`
	res, err := p.db.ExecContext(ctx, q,
		m.ExternalID, m.SportKey, m.SportTitle, m.HomeTeam, m.AwayTeam, m.CommenceTime,
		m.HomeScore, m.AwayScore, string(m.Result), m.LastUpdated,
	)
	if err != nil {
		return false, fmt.Errorf("record result %s: %w", m.ExternalID, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListAwaitingResult lista partidas sem resultado gravado que começaram dentro da
// janela, qualquer que seja o status. Uma partida marcada ended pela agenda continua
// sendo consultada até o placar chegar.
func (p *Postgres) ListAwaitingResult(ctx context.Context, from, to time.Time) ([]betting.Match, error) {
	return p.list(ctx, `SELECT `+columns+` FROM matches
		WHERE NOT settled AND result IS NULL AND commence_time BETWEEN $1 AND $2
		ORDER BY sport_key, commence_time`, from, to)
}

// ListUnsettled lista partidas encerradas, com resultado, ainda não liquidadas
func (p *Postgres) ListUnsettled(ctx context.Context, limit int) ([]betting.Match, error) {
	return p.list(ctx, `SELECT `+columns+` FROM matches
		WHERE status = 'ended' AND NOT settled AND result IS NOT NULL
		ORDER BY commence_time
		LIMIT $1`, limit)
}

// MarkSettled fecha a partida; devolve false se outra passada chegou antes
func (p *Postgres) MarkSettled(ctx context.Context, externalID string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE matches SET settled = TRUE, last_updated = NOW() WHERE external_id = $1 AND NOT settled`, externalID)
	if err != nil {
		return false, fmt.Errorf("mark match settled %s: %w", externalID, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) list(ctx context.Context, q string, args ...any) ([]betting.Match, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []betting.Match
	for rows.Next() {
		var (
			m          betting.Match
			status     string
			home, away sql.NullInt64
			result     sql.NullString
			title      sql.NullString
		)
		if err := rows.Scan(&m.ExternalID, &m.SportKey, &title, &m.HomeTeam, &m.AwayTeam, &m.CommenceTime,
			&status, &home, &away, &result, &m.Settled, &m.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.SportTitle = title.String
		m.Status = betting.MatchStatus(status)
		m.Result = betting.Outcome(result.String)
		if home.Valid {
			v := int(home.Int64)
			m.HomeScore = &v
		}
		if away.Valid {
			v := int(away.Int64)
			m.AwayScore = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
