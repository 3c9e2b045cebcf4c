// Package database owns the pooled connection to the relational store.
//
// Gateway is the only way the rest of the service reaches the store. It runs
// parameterized statements through gorm and reports every failure as either
// a *ConnectionError or a *QueryError.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"studentapi/internal/config"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// PoolConfig bounds the connection pool. Callers beyond MaxOpenConns wait
// for a free connection without limit.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Result describes the outcome of a statement that returns no rows.
type Result struct {
	RowsAffected int64
}

type Gateway struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	dialect string
	log     zerolog.Logger
}

// New builds a Gateway for the configured driver. No connection is opened
// until the first statement, so New succeeds while the store is still down.
func New(cfg config.DatabaseConfig, log zerolog.Logger) (*Gateway, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	return Open(dialector, PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	}, log)
}

// Open wraps an arbitrary gorm dialector. Tests use it with SQLite.
func Open(dialector gorm.Dialector, pool PoolConfig, log zerolog.Logger) (*Gateway, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableAutomaticPing: true,
		TranslateError:       true,
		Logger:               newGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}

	return &Gateway{
		db:      db,
		sqlDB:   sqlDB,
		dialect: dialector.Name(),
		log:     log,
	}, nil
}

// Dialector selects the gorm driver for cfg.Driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DialectMySQL:
		return mysql.New(mysql.Config{
			DSN:                       mysqlDSN(cfg),
			SkipInitializeWithVersion: true,
		}), nil
	case DialectPostgres:
		return postgres.Open(postgresDSN(cfg)), nil
	case DialectSQLite:
		name := cfg.Name
		if !strings.HasPrefix(name, "file:") && name != ":memory:" && !strings.HasSuffix(name, ".db") {
			name += ".db"
		}
		return sqlite.Open(name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// dialTimeout bounds a single connect attempt to MySQL or PostgreSQL.
const dialTimeout = 5 * time.Second

func mysqlDSN(cfg config.DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dsn.DBName = cfg.Name
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Timeout = dialTimeout
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

func postgresDSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(dialTimeout/time.Second)))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Dialect reports the gorm dialector name (mysql, postgres or sqlite).
func (g *Gateway) Dialect() string {
	return g.dialect
}

// Exec runs a statement that returns no rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	tx := g.db.WithContext(ctx).Exec(query, args...)
	if tx.Error != nil {
		return Result{}, classify(query, tx.Error)
	}
	return Result{RowsAffected: tx.RowsAffected}, nil
}

// Query runs a statement and scans every row into dest, which must be a
// pointer to a slice of structs.
func (g *Gateway) Query(ctx context.Context, dest any, query string, args ...any) error {
	if err := g.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error; err != nil {
		return classify(query, err)
	}
	return nil
}

// Create inserts value, leaving the columns named in omit to their store
// defaults, and fills in the generated primary key.
func (g *Gateway) Create(ctx context.Context, value any, omit ...string) error {
	tx := g.db.WithContext(ctx)
	if len(omit) > 0 {
		tx = tx.Omit(omit...)
	}
	if err := tx.Create(value).Error; err != nil {
		return classify("INSERT", err)
	}
	return nil
}

// Acquire checks out one pooled connection and releases it straight away.
func (g *Gateway) Acquire(ctx context.Context) error {
	conn, err := g.sqlDB.Conn(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return &ConnectionError{Err: err}
	}
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.sqlDB.PingContext(ctx); err != nil {
		return &ConnectionError{Err: err}
	}
	return nil
}

// Stats returns the pool statistics of the underlying sql.DB.
func (g *Gateway) Stats() sql.DBStats {
	return g.sqlDB.Stats()
}

func (g *Gateway) Close() error {
	g.log.Info().Msg("closing database connection pool")
	return g.sqlDB.Close()
}
