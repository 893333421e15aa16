package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"github.com/padraicbc/usertokenapi/config"
	"github.com/padraicbc/usertokenapi/models"
)

// Options tune how a store connection is opened.
type Options struct {
	ReadOnly     bool
	BusyTimeout  time.Duration
	MaxOpenConns int
	Debug        bool
}

// Setup opens the store described by cfg. It does not touch the schema;
// call InitSchema afterwards.
func Setup(cfg *config.Config) (*bun.DB, error) {
	return Open(cfg.DBDriver, cfg.DSN(), Options{
		ReadOnly:     cfg.ReadOnly,
		BusyTimeout:  cfg.BusyTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		Debug:        cfg.Debug,
	})
}

// Open returns a bun handle for driver ("sqlite", "postgres" or "mysql").
// The returned *bun.DB wraps a pool; it is safe for concurrent use and must
// be closed by the caller.
func Open(driver, dsn string, opts Options) (*bun.DB, error) {
	var db *bun.DB

	switch driver {
	case config.DriverSQLite:
		sqldb, err := sql.Open("sqlite3", sqliteDSN(dsn, opts))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())

	case config.DriverPostgres:
		params := map[string]interface{}{}
		if opts.BusyTimeout > 0 {
			params["lock_timeout"] = strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10)
		}
		if opts.ReadOnly {
			params["default_transaction_read_only"] = "on"
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithConnParams(params),
		))
		db = bun.NewDB(sqldb, pgdialect.New())

	case config.DriverMySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		if mc.Params == nil {
			mc.Params = map[string]string{}
		}
		if opts.BusyTimeout > 0 {
			secs := int(math.Ceil(opts.BusyTimeout.Seconds()))
			mc.Params["innodb_lock_wait_timeout"] = strconv.Itoa(secs)
		}
		if opts.ReadOnly {
			mc.Params["transaction_read_only"] = "1"
		}
		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db = bun.NewDB(sql.OpenDB(connector), mysqldialect.New())

	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// sqliteDSN turns a plain path into a go-sqlite3 URI with the busy timeout
// and journal settings applied.
func sqliteDSN(path string, opts Options) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	params := url.Values{}
	if opts.ReadOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
		params.Set("_txlock", "immediate")
	}
	if opts.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + params.Encode()
}

// InitOptions controls InitSchema.
type InitOptions struct {
	MaxRetries  int
	RetryDelay  time.Duration
	CreateIndex bool
	Logger      *zap.Logger
}

// InitSchema pings the store and creates the user table, retrying with a
// constant delay. It gives up after MaxRetries attempts.
func InitSchema(ctx context.Context, db *bun.DB, opts InitOptions) error {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Millisecond
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			log.Warn("store not reachable", zap.Int("attempt", attempt), zap.Int("max", attempts), zap.Error(err))
			return retry.RetryableError(err)
		}
		if err := CreateTables(ctx, db, opts.CreateIndex, log); err != nil {
			log.Warn("schema init failed", zap.Int("attempt", attempt), zap.Int("max", attempts), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("init schema after %d attempts: %w", attempt, err)
	}
	log.Info("schema ready", zap.Int("attempts", attempt))
	return nil
}

// CreateTables creates the user table and, optionally, the (mail, hashed_password)
// lookup index. Both statements are idempotent.
func CreateTables(ctx context.Context, db *bun.DB, withIndex bool, log *zap.Logger) error {
	if _, err := db.NewCreateTable().Model((*models.User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating table for %T: %w", (*models.User)(nil), err)
	}

	if !withIndex {
		return nil
	}
	_, err := db.NewCreateIndex().
		Model((*models.User)(nil)).
		Index("user_mail_hashed_password_idx").
		Column("mail", "hashed_password").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		// Not every dialect accepts IF NOT EXISTS on indexes; the index is an optimisation only.
		log.Warn("index", zap.Error(err))
	}
	return nil
}

// Ping runs a trivial query against the store.
func Ping(ctx context.Context, db *bun.DB) error {
	var one int
	return db.NewRaw("SELECT 1").Scan(ctx, &one)
}
