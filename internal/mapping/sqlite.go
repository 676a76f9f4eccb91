package mapping

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/product-match/internal/matching"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS product_mappings (
	id                 TEXT PRIMARY KEY,
	competitor_sku     TEXT NOT NULL,
	competitor_company TEXT NOT NULL DEFAULT '',
	target_sku         TEXT NOT NULL,
	confidence         REAL NOT NULL,
	source             TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (competitor_sku, competitor_company)
);

CREATE INDEX IF NOT EXISTS idx_product_mappings_target ON product_mappings(target_sku);
`

const sqliteUpsert = `
INSERT INTO product_mappings (id, competitor_sku, competitor_company, target_sku, confidence, source, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (competitor_sku, competitor_company) DO UPDATE SET
	target_sku = excluded.target_sku,
	confidence = excluded.confidence,
	source     = excluded.source,
	updated_at = excluded.updated_at
RETURNING id`

const sqliteColumns = `id, competitor_sku, competitor_company, target_sku, confidence, source, created_at, updated_at`

// Migrate creates the mappings table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) upsert(ctx context.Context, q queryRower, m Mapping) (*Mapping, error) {
	m, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m.ID = uuid.New().String()
	m.CreatedAt, m.UpdatedAt = now, now

	var id string
	err = q.QueryRowContext(ctx, sqliteUpsert,
		m.ID, m.CompetitorSKU, m.CompetitorCompany, m.TargetSKU, m.Confidence, m.Source, now, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert mapping %s", m.CompetitorSKU)
	}

	// On conflict the existing row keeps its id and created_at.
	stored, err := scanMapping(q.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM product_mappings WHERE id = ?`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read mapping %s", id)
	}
	return stored, nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, m Mapping) (*Mapping, error) {
	return s.upsert(ctx, s.db, m)
}

// Import implements Store.
func (s *SQLiteStore) Import(ctx context.Context, ms []Mapping) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	for i, m := range ms {
		if _, err := s.upsert(ctx, tx, m); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import row %d", i+1)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return len(ms), nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, sku, company string) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM product_mappings
		 WHERE competitor_sku = ? AND (competitor_company = ? OR competitor_company = '')
		 ORDER BY competitor_company DESC, confidence DESC LIMIT 1`,
		sku, company,
	)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup mapping")
	}
	return m, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Mapping, error) {
	var (
		where []string
		args  []any
	)
	f.Company = matching.NormalizeBrand(f.Company)
	if f.Company != "" {
		where = append(where, "competitor_company = ?")
		args = append(args, f.Company)
	}
	if f.TargetSKU != "" {
		where = append(where, "target_sku = ?")
		args = append(args, f.TargetSKU)
	}

	query := `SELECT ` + sqliteColumns + ` FROM product_mappings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY competitor_sku, competitor_company LIMIT ? OFFSET ?"
	args = append(args, listLimit(f), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close() //nolint:errcheck

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate mappings")
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_mappings WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete mapping %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: delete mapping %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMapping(row scannable) (*Mapping, error) {
	var m Mapping
	err := row.Scan(&m.ID, &m.CompetitorSKU, &m.CompetitorCompany, &m.TargetSKU,
		&m.Confidence, &m.Source, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
