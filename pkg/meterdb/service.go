// MeterDB stores the Linky stream and daily rollup tables.
// Production setups use MySQL; a single SQLite file is supported for
// small installs and is what the tests run against.
// This database should only be written to by linky_collector.
package meterdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/config"
	"github.com/NotCoffee418/linky_meter/pkg/pathing"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

var (
	ErrConnection    = errors.New("database connection failed")
	ErrSchema        = errors.New("database schema setup failed")
	ErrUnknownDriver = errors.New("unknown database driver")
)

//go:embed schema/*/*.sql
var schemaFS embed.FS

const pingTimeout = 5 * time.Second

type MeterDB struct {
	db     *sql.DB
	driver string
	loc    *time.Location
	logger *zap.Logger
}

// Open connects to the configured database and verifies the connection.
// loc is the location clock columns are read back in.
func Open(cfg config.DatabaseConfig, loc *time.Location, logger *zap.Logger) (*MeterDB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case config.DriverMySQL:
		db, err = sql.Open("mysql", cfg.BuildMySQLDSN())
		if err == nil {
			db.SetConnMaxLifetime(60 * time.Minute)
			db.SetMaxIdleConns(2)
			db.SetMaxOpenConns(4)
		}
	case config.DriverSQLite:
		if err := pathing.EnsureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %v", ErrConnection, err)
		}
		db, err = sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err == nil {
			// SQLite only supports one writer
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MeterDB{
		db:     db,
		driver: cfg.Driver,
		loc:    loc,
		logger: logger.Named("meterdb"),
	}, nil
}

func (m *MeterDB) DB() *sql.DB {
	return m.db
}

func (m *MeterDB) Driver() string {
	return m.driver
}

func (m *MeterDB) Close() error {
	return m.db.Close()
}

// EnsureSchema creates the stream and dailies tables when they are missing.
// Existing tables are left untouched, so calling it on every start is safe.
func (m *MeterDB) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{TableStream, TableDailies} {
		exists, err := m.tableExists(ctx, table)
		if err != nil {
			return fmt.Errorf("%w: check table %s: %v", ErrSchema, table, err)
		}
		if exists {
			continue
		}

		m.logger.Info("Table is missing, creating it", zap.String("table", table))
		if err := m.createTable(ctx, table); err != nil {
			return fmt.Errorf("%w: create table %s: %v", ErrSchema, table, err)
		}
		m.logger.Info("Table created", zap.String("table", table))
	}
	return nil
}

func (m *MeterDB) tableExists(ctx context.Context, table string) (bool, error) {
	var query string
	switch m.driver {
	case config.DriverMySQL:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	default:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}

	var count int
	if err := m.db.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *MeterDB) createTable(ctx context.Context, table string) error {
	script, err := schemaFS.ReadFile(fmt.Sprintf("schema/%s/%s.sql", m.driver, table))
	if err != nil {
		return err
	}

	// On SQLite the index is created in the same transaction as its table.
	return m.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range splitStatements(string(script)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (m *MeterDB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op once committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
