// Package warehouse executes generated SQL against the configured database
// and returns results as tables.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

// Supported database/sql driver names.
const (
	DriverSQLite    = "sqlite3"
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "pgx"
)

// Options tune a DB handle. Zero values pick defaults.
type Options struct {
	QueryTimeout    time.Duration
	SchemaTTL       time.Duration
	ConnectAttempts int
	// MaxRows stops scanning after this many rows; 0 means unlimited.
	MaxRows int
	Logger  *slog.Logger
}

func (o *Options) setDefaults() {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 30 * time.Second
	}
	if o.SchemaTTL <= 0 {
		o.SchemaTTL = 5 * time.Minute
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 3
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// DB is a read-only handle on a warehouse.
type DB struct {
	db     *sql.DB
	driver string
	opts   Options

	schemaMu sync.Mutex
	schema   *ttlcache.Cache[string, string]
}

const schemaKey = "schema"

// Open connects to dsn with driver and pings it, retrying with exponential
// backoff.
func Open(ctx context.Context, driver, dsn string, opts Options) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverSQLServer, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q (want %s, %s or %s)", driver, DriverSQLite, DriverSQLServer, DriverPostgres)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database DSN is empty; set db_dsn or QUERYLENS_DB_DSN")
	}
	opts.setDefaults()
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// every :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			opts.Logger.Debug("warehouse ping failed", "driver", driver, "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(opts.ConnectAttempts)))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return &DB{
		db:     db,
		driver: driver,
		opts:   opts,
		schema: ttlcache.New(ttlcache.WithTTL[string, string](opts.SchemaTTL)),
	}, nil
}

// Close releases the connection pool.
func (d *DB) Close() error { return d.db.Close() }

// Driver returns the database/sql driver name.
func (d *DB) Driver() string { return d.driver }

// Dialect names the SQL flavour for prompts.
func (d *DB) Dialect() string {
	switch d.driver {
	case DriverSQLServer:
		return "T-SQL"
	case DriverPostgres:
		return "PostgreSQL"
	}
	return "SQLite"
}
