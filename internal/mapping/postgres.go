package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/matching"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS product_mappings (
	id                 TEXT PRIMARY KEY,
	competitor_sku     TEXT NOT NULL,
	competitor_company TEXT NOT NULL DEFAULT '',
	target_sku         TEXT NOT NULL,
	confidence         DOUBLE PRECISION NOT NULL,
	source             TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (competitor_sku, competitor_company)
);

CREATE INDEX IF NOT EXISTS idx_product_mappings_target ON product_mappings(target_sku);
`

const postgresUpsert = `
INSERT INTO product_mappings (id, competitor_sku, competitor_company, target_sku, confidence, source, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (competitor_sku, competitor_company) DO UPDATE SET
	target_sku = EXCLUDED.target_sku,
	confidence = EXCLUDED.confidence,
	source     = EXCLUDED.source,
	updated_at = EXCLUDED.updated_at
RETURNING ` + postgresColumns

const postgresColumns = `id, competitor_sku, competitor_company, target_sku, confidence, source, created_at, updated_at`

// Migrate creates the mappings table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool if this store created it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) upsert(ctx context.Context, q rowQuerier, m Mapping) (*Mapping, error) {
	m, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	stored, err := scanMapping(q.QueryRow(ctx, postgresUpsert,
		uuid.New().String(), m.CompetitorSKU, m.CompetitorCompany, m.TargetSKU, m.Confidence, m.Source, now, now,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert mapping %s", m.CompetitorSKU)
	}
	return stored, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, m Mapping) (*Mapping, error) {
	return s.upsert(ctx, s.pool, m)
}

// Import implements Store.
func (s *PostgresStore) Import(ctx context.Context, ms []Mapping) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin import")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, m := range ms {
		if _, err := s.upsert(ctx, tx, m); err != nil {
			return 0, eris.Wrapf(err, "postgres: import row %d", i+1)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit import")
	}
	return len(ms), nil
}

// Lookup implements Store.
func (s *PostgresStore) Lookup(ctx context.Context, sku, company string) (*Mapping, error) {
	m, err := scanMapping(s.pool.QueryRow(ctx,
		`SELECT `+postgresColumns+` FROM product_mappings
		 WHERE competitor_sku = $1 AND (competitor_company = $2 OR competitor_company = '')
		 ORDER BY competitor_company DESC, confidence DESC LIMIT 1`,
		sku, company,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: lookup mapping")
	}
	return m, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Mapping, error) {
	var (
		where []string
		args  []any
	)
	f.Company = matching.NormalizeBrand(f.Company)
	if f.Company != "" {
		args = append(args, f.Company)
		where = append(where, fmt.Sprintf("competitor_company = $%d", len(args)))
	}
	if f.TargetSKU != "" {
		args = append(args, f.TargetSKU)
		where = append(where, fmt.Sprintf("target_sku = $%d", len(args)))
	}

	query := `SELECT ` + postgresColumns + ` FROM product_mappings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(f), f.Offset)
	query += fmt.Sprintf(" ORDER BY competitor_sku, competitor_company LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate mappings")
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM product_mappings WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete mapping %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete mapping %s", id)
	}
	return nil
}
