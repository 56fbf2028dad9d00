// Package introspect reads table schemas from live databases so the
// generation pipelines can work from the real column layout instead of
// hand-written definitions. SQLite, PostgreSQL, and MySQL are supported.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure-Go SQLite driver (no CGO required)

	"github.com/genforge/genforge/internal/domain"
)

// Source reads schemas from one database connection. It implements
// domain.SchemaSource.
type Source struct {
	db     *sql.DB
	driver string
}

// Open connects to the database behind dsn. driver is one of "sqlite",
// "postgres", "mysql".
func Open(driver, dsn string) (*Source, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Source{db: db, driver: driver}, nil
}

// Close releases the underlying connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// Driver reports the driver this source was opened with.
func (s *Source) Driver() string {
	return s.driver
}

// Tables lists the user tables of the connected database, sorted by name.
func (s *Source) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch s.driver {
	case "sqlite":
		query = `SELECT name FROM sqlite_master
		         WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case "postgres":
		query = `SELECT table_name FROM information_schema.tables
		         WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	case "mysql":
		query = `SELECT table_name FROM information_schema.tables
		         WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

// Describe reads the column layout of one table.
func (s *Source) Describe(ctx context.Context, table string) (domain.Schema, error) {
	var (
		columns []domain.Column
		err     error
	)
	switch s.driver {
	case "sqlite":
		columns, err = s.describeSQLite(ctx, table)
	case "postgres":
		columns, err = s.describePostgres(ctx, table)
	case "mysql":
		columns, err = s.describeMySQL(ctx, table)
	}
	if err != nil {
		return domain.Schema{}, err
	}
	if len(columns) == 0 {
		return domain.Schema{}, fmt.Errorf("%w: %q", domain.ErrTableNotFound, table)
	}
	return domain.Schema{Table: table, Columns: columns}, nil
}

func (s *Source) describeSQLite(ctx context.Context, table string) ([]domain.Column, error) {
	// PRAGMA does not take placeholders; the identifier is quoted instead.
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []domain.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			dbType  string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &dbType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, domain.Column{
			Name:       name,
			DBType:     dbType,
			Kind:       mapKind(dbType),
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

func (s *Source) describePostgres(ctx context.Context, table string) ([]domain.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []domain.Column
	for rows.Next() {
		var name, dbType, nullable string
		if err := rows.Scan(&name, &dbType, &nullable); err != nil {
			return nil, err
		}
		columns = append(columns, domain.Column{
			Name:     name,
			DBType:   dbType,
			Kind:     mapKind(dbType),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pks, err := s.postgresPrimaryKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	for i := range columns {
		if pks[columns[i].Name] {
			columns[i].PrimaryKey = true
			columns[i].Nullable = false
		}
	}
	return columns, nil
}

func (s *Source) postgresPrimaryKeys(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		 WHERE tc.constraint_type = 'PRIMARY KEY'
		   AND tc.table_schema = 'public' AND tc.table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys of %s: %w", table, err)
	}
	defer rows.Close()

	pks := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pks[name] = true
	}
	return pks, rows.Err()
}

func (s *Source) describeMySQL(ctx context.Context, table string) ([]domain.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable, column_key
		 FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ?
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []domain.Column
	for rows.Next() {
		var name, dbType, nullable, key string
		if err := rows.Scan(&name, &dbType, &nullable, &key); err != nil {
			return nil, err
		}
		pk := strings.EqualFold(key, "PRI")
		columns = append(columns, domain.Column{
			Name:       name,
			DBType:     dbType,
			Kind:       mapKind(dbType),
			Nullable:   strings.EqualFold(nullable, "YES") && !pk,
			PrimaryKey: pk,
		})
	}
	return columns, rows.Err()
}

// quoteIdent wraps an identifier in double quotes, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
