package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdv-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore connects to the database and applies pending migrations
func NewStore(driver, databaseURL string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if err := configureSQLite(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return s, nil
}

// configureSQLite pins a single connection so writers serialize and an
// in-memory database survives for the life of the pool.
func configureSQLite(db *sqlx.DB) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the configured driver name
func (s *Store) Driver() string {
	return s.driver
}

// Tx scopes store operations to one database transaction
type Tx struct {
	tx    *sqlx.Tx
	store *Store
}

// InTx runs fn inside a transaction. Any error from fn rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &models.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &models.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

func (t *Tx) rebind(query string) string {
	return t.tx.Rebind(query)
}

// wrap classifies raw driver errors into domain errors.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		verr *models.ValidationError
		nerr *models.NotFoundError
		cerr *models.ConflictError
		perr *models.PersistenceError
	)
	if errors.As(err, &verr) || errors.As(err, &nerr) || errors.As(err, &cerr) || errors.As(err, &perr) {
		return err
	}
	if isUniqueViolation(err) {
		return &models.ConflictError{Message: op + ": duplicate value", Err: err}
	}
	return &models.PersistenceError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewNotFoundError(entity, id)
	}
	return nil
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("read affected rows", err)
	}
	if n == 0 {
		return models.NewNotFoundError(entity, id)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
