package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend behind a DB
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps a sql.DB with the dialect needed to adapt queries
type DB struct {
	*sql.DB
	Dialect Dialect
}

// New opens a database from a URL. postgres:// and postgresql:// use lib/pq;
// sqlite://, file: and :memory: use the embedded SQLite driver.
func New(databaseURL string) (*DB, error) {
	dialect, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	driver := "postgres"
	if dialect == DialectSQLite {
		driver = "sqlite"
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite allows a single writer; in-memory databases are per connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, Dialect: dialect}, nil
}

func parseDatabaseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case databaseURL == "":
		return "", "", fmt.Errorf("database URL is required")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case databaseURL == ":memory:", strings.HasPrefix(databaseURL, "file:"):
		return DialectSQLite, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite URL is missing a path")
		}
		if path == ":memory:" {
			return DialectSQLite, "file::memory:?" + sqliteTimeFormat, nil
		}
		if !strings.Contains(path, "?") {
			path += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&" + sqliteTimeFormat
		}
		return DialectSQLite, "file:" + path, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %s", schemeOf(databaseURL))
	}
}

func schemeOf(u string) string {
	if i := strings.Index(u, "://"); i > 0 {
		return u[:i]
	}
	return "unknown"
}

// sqliteTimeFormat stores timestamps as sortable text
const sqliteTimeFormat = "_time_format=sqlite"

var postgresPlaceholder = regexp.MustCompile(`\$(\d+)`)

// Rebind converts $n placeholders to the dialect's form
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectSQLite {
		return query
	}
	return postgresPlaceholder.ReplaceAllString(query, "?$1")
}

// HealthCheck pings the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
