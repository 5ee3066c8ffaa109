package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/bizpulse/bizpulse/analyst/internal/config"
)

// sqlLoader reads the latest record from a database with a configured query.
type sqlLoader struct {
	src config.Source
	db  *sql.DB
}

func newSQLLoader(src config.Source) (*sqlLoader, error) {
	dsn := src.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("source %q: environment variable %q is empty", src.ID, src.DSNEnv)
	}
	if src.Driver == "mysql" {
		var err error
		if dsn, err = toMySQLDSN(dsn); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.ID, err)
		}
	}

	db, err := sql.Open(src.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("source %q: open %s: %w", src.ID, src.Driver, err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &sqlLoader{src: src, db: db}, nil
}

// Load runs the source query. It must return exactly one row; each column
// whose name is a record field becomes that field, and NULL leaves it absent.
func (l *sqlLoader) Load(ctx context.Context) (*Result, error) {
	res := newResult(l.src)

	fields, err := queryRecord(ctx, l.db, l.src.Query)
	if err != nil {
		res.Err = fmt.Errorf("sql source %q: %w", l.src.ID, err)
		return res, nil
	}
	res.Fields = fields
	return res, nil
}

// Close releases the database handle.
func (l *sqlLoader) Close() error {
	return l.db.Close()
}

func queryRecord(ctx context.Context, db *sql.DB, query string) (map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		return nil, errors.New("query returned no rows")
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if rows.Next() {
		return nil, errors.New("query returned more than one row")
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	fields := make(map[string]any, len(cols))
	for i, col := range cols {
		v := vals[i]
		if v == nil {
			continue
		}
		// Drivers hand DECIMAL and text columns back as bytes.
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		fields[strings.ToLower(col)] = v
	}
	return fields, nil
}

// toMySQLDSN accepts mysql:// and mariadb:// URLs as well as native driver
// DSNs and returns a native DSN.
func toMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mysql://") && !strings.HasPrefix(dsn, "mariadb://") {
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		return dsn, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn url: %w", err)
	}
	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", errors.New("dsn url needs user, host and database")
	}
	return cfg.FormatDSN(), nil
}
