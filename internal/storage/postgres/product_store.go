// Package postgres provides the Postgres-backed product URL store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// DefaultTable is the table product URLs land in when none is configured.
const DefaultTable = "product_urls"

// maxRowsPerStatement keeps each INSERT well under the 65535 bind parameter limit.
const maxRowsPerStatement = 5000

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidTableName reports whether name is safe to interpolate as an identifier.
func ValidTableName(name string) bool {
	return validTableName.MatchString(name)
}

// Config controls the Postgres connection pool used for product rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// ProductStore writes product URLs into Postgres.
type ProductStore struct {
	pool  pgxIface
	table string
}

// NewProductStore connects a pool using cfg and verifies it with a ping.
func NewProductStore(ctx context.Context, cfg Config) (*ProductStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := resolveTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ProductStore{pool: pool, table: table}, nil
}

// NewProductStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProductStoreWithPool(pool pgxIface, table string) (*ProductStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	resolved, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	return &ProductStore{pool: pool, table: resolved}, nil
}

func resolveTable(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !ValidTableName(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Table returns the destination table name.
func (s *ProductStore) Table() string {
	return s.table
}

// Close releases the underlying pool resources.
func (s *ProductStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TableExists reports whether the destination table is present.
func (s *ProductStore) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, s.table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", s.table, err)
	}
	return exists, nil
}

// CreateSchemaIfAbsent creates the table and its domain index when missing.
// Existing tables are left untouched.
func (s *ProductStore) CreateSchemaIfAbsent(ctx context.Context) error {
	exists, err := s.TableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	domain TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_domain_idx ON %s (domain)`, s.table, s.table)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("create domain index: %w", err)
	}
	return nil
}

// BulkInsert writes rows in one transaction. URLs already present are
// skipped, so replaying a batch is harmless.
func (s *ProductStore) BulkInsert(ctx context.Context, rows []crawler.ProductRecord) (err error) {
	rows = uniqueByURL(rows)
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	for start := 0; start < len(rows); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(rows))
		query, args := s.insertStatement(rows[start:end])
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert product urls: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit product urls: %w", err)
	}
	return nil
}

func (s *ProductStore) insertStatement(rows []crawler.ProductRecord) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (url, domain) VALUES ", s.table)
	args := make([]any, 0, len(rows)*2)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d)", i*2+1, i*2+2)
		args = append(args, row.URL, row.Domain)
	}
	b.WriteString(" ON CONFLICT (url) DO NOTHING")
	return b.String(), args
}

func uniqueByURL(rows []crawler.ProductRecord) []crawler.ProductRecord {
	seen := make(map[string]struct{}, len(rows))
	out := make([]crawler.ProductRecord, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.URL]; ok {
			continue
		}
		seen[row.URL] = struct{}{}
		out = append(out, row)
	}
	return out
}
