package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

// Store persiste a trilha de auditoria das rodadas no Postgres.
// Tabela round_events é append-only; a reconstrução de qualquer rodada é a
// releitura dos seus eventos em ordem.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert grava um evento de rodada. payload entra como JSONB cru para
// preservar exatamente o que o engine emitiu.
func (s *Store) Insert(ctx context.Context, env events.Envelope) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO round_events (round_id, event_type, payload, emitted_at)
		VALUES ($1,$2,$3,$4)`,
		int64(env.RoundID), env.Type, []byte(env.Payload), time.UnixMilli(env.TsUnixMs),
	)
	return err
}

// CountByRound retorna quantos eventos uma rodada acumulou (exposto pra
// inspeção/debug via worker).
func (s *Store) CountByRound(ctx context.Context, roundID uint64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM round_events WHERE round_id=$1`, int64(roundID)).Scan(&n)
	return n, err
}
