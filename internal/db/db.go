package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

var ErrUnsupportedDriver = errors.New("unsupported db driver")

type Options struct {
	Driver         Driver
	DSN            string
	SQLitePath     string
	FallbackSQLite bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Handle is an open database together with the driver actually in use, which
// may differ from the requested one after a fallback.
type Handle struct {
	*sql.DB
	Driver Driver
}

func DefaultOptions() Options {
	return Options{
		Driver:          DriverPostgres,
		SQLitePath:      "academy.db",
		FallbackSQLite:  true,
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects to the configured database and ensures the schema exists.
// A failed Postgres connection falls back to the local SQLite file when
// FallbackSQLite is set.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Handle, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch opts.Driver {
	case DriverPostgres, "":
		h, err := OpenPostgres(ctx, opts)
		if err == nil {
			return h, nil
		}
		if !opts.FallbackSQLite {
			return nil, err
		}
		log.Warn("postgres unavailable, using local sqlite",
			zap.Error(err),
			zap.String("sqlite_path", opts.SQLitePath),
		)
		return OpenSQLite(ctx, opts.SQLitePath)
	case DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, opts.Driver)
	}
}

func OpenPostgres(ctx context.Context, opts Options) (*Handle, error) {
	if opts.DSN == "" {
		return nil, errors.New("open postgres: empty dsn")
	}
	db, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = opts.MaxOpenConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	h := &Handle{DB: db, Driver: DriverPostgres}
	if err := h.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func OpenSQLite(ctx context.Context, path string) (*Handle, error) {
	if path == "" {
		path = "academy.db"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	h := &Handle{DB: db, Driver: DriverSQLite}
	if err := h.prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *Handle) prepare(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping %s: %w", h.Driver, err)
	}
	if err := EnsureSchema(ctx, h.DB, h.Driver); err != nil {
		return err
	}
	return nil
}

func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var stmts []string
	switch driver {
	case DriverSQLite:
		stmts = schemaSQLite
	case DriverPostgres:
		stmts = schemaPostgres
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		school TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_school ON students (school)`,
	`CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		exam_date TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		total_items INTEGER NOT NULL DEFAULT 0,
		max_score REAL NOT NULL DEFAULT 0,
		item_weights_json TEXT NOT NULL DEFAULT '{}',
		answer_key_json TEXT NOT NULL DEFAULT '{}',
		target_school TEXT NOT NULL DEFAULT '',
		pass_threshold REAL,
		grade_bands_json TEXT NOT NULL DEFAULT '[]',
		scores_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		school TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_school ON students (school)`,
	`CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		exam_date TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		total_items INTEGER NOT NULL DEFAULT 0,
		max_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		item_weights_json TEXT NOT NULL DEFAULT '{}',
		answer_key_json TEXT NOT NULL DEFAULT '{}',
		target_school TEXT NOT NULL DEFAULT '',
		pass_threshold DOUBLE PRECISION,
		grade_bands_json TEXT NOT NULL DEFAULT '[]',
		scores_json TEXT NOT NULL DEFAULT '[]',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}
