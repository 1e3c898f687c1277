package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityTrade/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_snapshots (
	session_id    TEXT        NOT NULL,
	seq           BIGINT      NOT NULL,
	mode          TEXT        NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL,
	state         TEXT        NOT NULL,
	errors        TEXT[]      NOT NULL DEFAULT '{}',
	token_in      TEXT,
	token_out     TEXT,
	amount_in     NUMERIC     NOT NULL DEFAULT 0,
	amount_out    NUMERIC     NOT NULL DEFAULT 0,
	provider      TEXT,
	price_impact  NUMERIC,
	payload_to    TEXT,
	payload_data  TEXT,
	payload_value NUMERIC,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, seq)
)`

// Store provides Postgres persistence for session snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create trade_snapshots: %w", err)
	}
	return nil
}

// PutSnapshots inserts snapshot records; a repeated (session, seq) overwrites the earlier row.
func (s *Store) PutSnapshots(ctx context.Context, records []model.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		errs := r.Errors
		if errs == nil {
			errs = []string{}
		}
		batch.Queue(`
			INSERT INTO trade_snapshots (
				session_id, seq, mode, recorded_at, state, errors, token_in, token_out,
				amount_in, amount_out, provider, price_impact, payload_to, payload_data, payload_value
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (session_id, seq)
			DO UPDATE SET
				recorded_at = EXCLUDED.recorded_at,
				state = EXCLUDED.state,
				errors = EXCLUDED.errors,
				amount_in = EXCLUDED.amount_in,
				amount_out = EXCLUDED.amount_out,
				provider = EXCLUDED.provider,
				price_impact = EXCLUDED.price_impact,
				payload_to = EXCLUDED.payload_to,
				payload_data = EXCLUDED.payload_data,
				payload_value = EXCLUDED.payload_value
		`,
			r.SessionID,
			int64(r.Seq),
			r.Mode,
			r.RecordedAt,
			r.State,
			errs,
			nullable(r.TokenIn),
			nullable(r.TokenOut),
			r.AmountIn.String(),
			r.AmountOut.String(),
			nullable(r.Provider),
			impactText(r),
			nullable(r.PayloadTo),
			nullable(r.PayloadData),
			nullable(r.PayloadWei),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func impactText(r model.SnapshotRecord) *string {
	if r.PriceImpact == nil {
		return nil
	}
	v := r.PriceImpact.String()
	return &v
}
