package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srdtrk/ibc-packet-tracker/storage"
)

var _ storage.Sink = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tracker_updates (
	id          BIGSERIAL PRIMARY KEY,
	label       TEXT        NOT NULL,
	height      BIGINT      NOT NULL,
	rendered    TEXT        NOT NULL,
	diff        JSONB       NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS packet_outcomes (
	src_chain_id TEXT        NOT NULL,
	src_port     TEXT        NOT NULL,
	src_channel  TEXT        NOT NULL,
	sequence     TEXT        NOT NULL,
	kind         TEXT        NOT NULL,
	ack          TEXT        NOT NULL DEFAULT '',
	error        TEXT        NOT NULL DEFAULT '',
	txs          JSONB       NOT NULL,
	observed_at  TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (src_chain_id, src_port, src_channel, sequence)
);
`

// Store provides Postgres persistence for tracker updates and packet outcomes.
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

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutUpdates inserts tracker updates.
func (s *Store) PutUpdates(ctx context.Context, updates []storage.UpdateRecord) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		diff, err := json.Marshal(u.Diff)
		if err != nil {
			return fmt.Errorf("marshal diff at height %d: %w", u.Height, err)
		}
		batch.Queue(`
			INSERT INTO tracker_updates (label, height, rendered, diff, observed_at)
			VALUES ($1, $2, $3, $4, $5)
		`,
			u.Label,
			int64(u.Height),
			u.Rendered,
			diff,
			u.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range updates {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutPacketOutcomes inserts or updates packet outcomes. A packet is keyed by
// its source endpoint and sequence.
func (s *Store) PutPacketOutcomes(ctx context.Context, outcomes []storage.OutcomeRecord) error {
	if len(outcomes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range outcomes {
		txs, err := json.Marshal(o.Txs)
		if err != nil {
			return fmt.Errorf("marshal txs of packet %s: %w", o.Sequence, err)
		}
		batch.Queue(`
			INSERT INTO packet_outcomes (
				src_chain_id, src_port, src_channel, sequence, kind, ack, error, txs, observed_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (src_chain_id, src_port, src_channel, sequence)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				ack = EXCLUDED.ack,
				error = EXCLUDED.error,
				txs = EXCLUDED.txs,
				observed_at = EXCLUDED.observed_at,
				updated_at = now()
		`,
			o.SrcChainID,
			o.SrcPort,
			o.SrcChannel,
			o.Sequence,
			o.Kind,
			o.Ack,
			o.Error,
			txs,
			o.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range outcomes {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PacketOutcomeKind returns the stored kind of a packet, false when unknown.
func (s *Store) PacketOutcomeKind(ctx context.Context, chainID, port, channel, sequence string) (string, bool, error) {
	var kind string
	row := s.pool.QueryRow(ctx, `
		SELECT kind FROM packet_outcomes
		WHERE src_chain_id=$1 AND src_port=$2 AND src_channel=$3 AND sequence=$4
	`, chainID, port, channel, sequence)
	if err := row.Scan(&kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return kind, true, nil
}
