package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"IntelRadar/internal/domain"
	"IntelRadar/internal/ports"
)

var tableNameExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore persists records into a single append-only table.
// The table has no unique index; dedup lives in the pipeline.
type SQLStore struct {
	db      *sql.DB
	table   string
	builder sq.StatementBuilderType
}

var _ ports.RecordStore = (*SQLStore)(nil)

// OpenSQLStore opens a database for driver ("sqlite" or "postgres").
func OpenSQLStore(driver, dsn, table string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	var format sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		format = sq.Dollar
	}
	store, err := NewSQLStore(db, table, format)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wires an existing sql.DB implementation.
func NewSQLStore(db *sql.DB, table string, format sq.PlaceholderFormat) (*SQLStore, error) {
	if !tableNameExpr.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLStore{
		db:      db,
		table:   table,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
	}, nil
}

// Init creates the table when missing.
func (s *SQLStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	captured_at TEXT NOT NULL,
	source_url TEXT NOT NULL,
	article_title TEXT NOT NULL,
	tech_cluster TEXT NOT NULL,
	target_audience TEXT NOT NULL,
	industry_trend TEXT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Keys returns every stored URL/title pair.
func (s *SQLStore) Keys(ctx context.Context) ([]domain.RecordKey, error) {
	query, args, err := s.builder.Select("source_url", "article_title").From(s.table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keys query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}

	var keys []domain.RecordKey
	for rows.Next() {
		var k domain.RecordKey
		if err := rows.Scan(&k.URL, &k.Title); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return keys, nil
}

// Append inserts one row.
func (s *SQLStore) Append(ctx context.Context, record domain.IntelligenceRecord) error {
	query, args, err := s.builder.Insert(s.table).
		Columns("captured_at", "source_url", "article_title", "tech_cluster", "target_audience", "industry_trend").
		Values(
			record.CapturedAt.Format(domain.CapturedAtLayout),
			record.SourceURL,
			record.ArticleTitle,
			record.TechCluster,
			record.TargetAudience,
			record.IndustryTrend,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
