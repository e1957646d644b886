package writer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
)

// PGStore persists transfers into the transfers table. Redelivered records
// hit the unique key and are ignored.
type PGStore struct {
	db *sql.DB
}

func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS transfers (
  id           bigserial      PRIMARY KEY,
  signature    text           NOT NULL,
  from_account text           NOT NULL,
  to_account   text           NOT NULL,
  amount       numeric(40,18) NOT NULL,
  symbol       text           NOT NULL,
  observed_at  timestamptz    NOT NULL,
  block_slot   bigint         NOT NULL,
  stored_at    timestamptz    NOT NULL DEFAULT now(),
  UNIQUE (signature, from_account, to_account, amount, symbol, block_slot)
);
CREATE INDEX IF NOT EXISTS idx_transfers_slot ON transfers(block_slot);
CREATE INDEX IF NOT EXISTS idx_transfers_symbol_observed ON transfers(symbol, observed_at);
`

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	return err
}

const insertTransfer = `
INSERT INTO transfers (signature, from_account, to_account, amount, symbol, observed_at, block_slot)
VALUES ($1, $2, $3, $4::numeric, $5, to_timestamp($6), $7)
ON CONFLICT DO NOTHING`

// Write inserts t. stored is false when the row already existed.
func (s *PGStore) Write(ctx context.Context, t model.Transfer) (bool, error) {
	res, err := s.db.ExecContext(ctx, insertTransfer,
		t.Signature, t.FromAccount, t.ToAccount,
		decimal.NewFromFloat(t.Amount).String(),
		t.Symbol, t.Timestamp, int64(t.BlockSlot),
	)
	if err != nil {
		return false, fmt.Errorf("insert transfer %s: %w", t.Signature, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
