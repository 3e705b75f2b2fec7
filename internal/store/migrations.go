package store

import (
	"context"
	"fmt"
	"sort"

	"pdv-service/internal/util"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

type migration struct {
	version     string
	description string
	sqlite      []string
	postgres    []string
}

var migrations = []migration{
	{
		version:     "1.0.0",
		description: "catalog, users and orders",
		sqlite: []string{
			`CREATE TABLE users (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE categories (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				color TEXT NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE products (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				price TEXT NOT NULL,
				category_id TEXT NOT NULL REFERENCES categories(id),
				available BOOLEAN NOT NULL DEFAULT 1,
				stock_quantity INTEGER,
				track_stock BOOLEAN NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_products_category ON products(category_id)`,
			`CREATE TABLE order_counters (
				name TEXT PRIMARY KEY,
				value INTEGER NOT NULL
			)`,
			`INSERT INTO order_counters (name, value) VALUES ('orders', 0)`,
			`CREATE TABLE orders (
				id TEXT PRIMARY KEY,
				order_number INTEGER NOT NULL UNIQUE,
				status TEXT NOT NULL,
				total TEXT NOT NULL,
				payment_method TEXT NOT NULL,
				customer_name TEXT,
				user_id TEXT NOT NULL REFERENCES users(id),
				idempotency_key TEXT UNIQUE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_orders_created_at ON orders(created_at)`,
			`CREATE INDEX idx_orders_status ON orders(status)`,
			`CREATE TABLE order_items (
				id TEXT PRIMARY KEY,
				order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				line_number INTEGER NOT NULL DEFAULT 0,
				product_id TEXT NOT NULL REFERENCES products(id),
				quantity INTEGER NOT NULL CHECK (quantity > 0),
				unit_price TEXT NOT NULL,
				subtotal TEXT NOT NULL,
				note TEXT
			)`,
			`CREATE INDEX idx_order_items_order ON order_items(order_id)`,
			`CREATE INDEX idx_order_items_product ON order_items(product_id)`,
		},
		postgres: []string{
			`CREATE TABLE users (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(20) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE categories (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				color VARCHAR(20) NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE products (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				price NUMERIC(12,2) NOT NULL,
				category_id VARCHAR(36) NOT NULL REFERENCES categories(id),
				available BOOLEAN NOT NULL DEFAULT TRUE,
				stock_quantity INTEGER,
				track_stock BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX idx_products_category ON products(category_id)`,
			`CREATE TABLE order_counters (
				name VARCHAR(50) PRIMARY KEY,
				value BIGINT NOT NULL
			)`,
			`INSERT INTO order_counters (name, value) VALUES ('orders', 0)`,
			`CREATE TABLE orders (
				id VARCHAR(36) PRIMARY KEY,
				order_number BIGINT NOT NULL UNIQUE,
				status VARCHAR(20) NOT NULL,
				total NUMERIC(12,2) NOT NULL,
				payment_method VARCHAR(20) NOT NULL,
				customer_name VARCHAR(255),
				user_id VARCHAR(36) NOT NULL REFERENCES users(id),
				idempotency_key VARCHAR(255) UNIQUE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX idx_orders_created_at ON orders(created_at)`,
			`CREATE INDEX idx_orders_status ON orders(status)`,
			`CREATE TABLE order_items (
				id VARCHAR(36) PRIMARY KEY,
				order_id VARCHAR(36) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				line_number INTEGER NOT NULL DEFAULT 0,
				product_id VARCHAR(36) NOT NULL REFERENCES products(id),
				quantity INTEGER NOT NULL CHECK (quantity > 0),
				unit_price NUMERIC(12,2) NOT NULL,
				subtotal NUMERIC(12,2) NOT NULL,
				note TEXT
			)`,
			`CREATE INDEX idx_order_items_order ON order_items(order_id)`,
			`CREATE INDEX idx_order_items_product ON order_items(product_id)`,
		},
	},
	{
		version:     "1.1.0",
		description: "order comments",
		sqlite: []string{
			`CREATE TABLE comments (
				id TEXT PRIMARY KEY,
				order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				author_name TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_comments_order ON comments(order_id)`,
		},
		postgres: []string{
			`CREATE TABLE comments (
				id VARCHAR(36) PRIMARY KEY,
				order_id VARCHAR(36) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				author_name VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX idx_comments_order ON comments(order_id)`,
		},
	},
	{
		version:     "1.2.0",
		description: "per-line stock reservation flag",
		sqlite: []string{
			`ALTER TABLE order_items ADD COLUMN stock_reserved BOOLEAN NOT NULL DEFAULT 0`,
		},
		postgres: []string{
			`ALTER TABLE order_items ADD COLUMN stock_reserved BOOLEAN NOT NULL DEFAULT FALSE`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func (s *Store) Migrate(ctx context.Context) error {
	logger := util.GetLogger()

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version VARCHAR(32) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(current)
	if err != nil {
		return err
	}

	for _, m := range pending {
		stmts := m.sqlite
		if s.driver == DriverPostgres {
			stmts = m.postgres
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.version, err)
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %s failed: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
			m.version, now()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}

		logger.Info("Applied migration",
			zap.String("version", m.version),
			zap.String("description", m.description))
	}

	return nil
}

// SchemaVersion returns the highest applied migration, or nil on an empty database.
func (s *Store) SchemaVersion(ctx context.Context) (*semver.Version, error) {
	var applied []string
	if err := s.db.SelectContext(ctx, &applied, "SELECT version FROM schema_version"); err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	var latest *semver.Version
	for _, raw := range applied {
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %q: %w", raw, err)
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, nil
}

func pendingMigrations(current *semver.Version) ([]migration, error) {
	type versioned struct {
		v *semver.Version
		m migration
	}

	var out []versioned
	for _, m := range migrations {
		v, err := semver.NewVersion(m.version)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %q: %w", m.version, err)
		}
		if current == nil || v.GreaterThan(current) {
			out = append(out, versioned{v: v, m: m})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].v.LessThan(out[j].v) })

	result := make([]migration, len(out))
	for i, vm := range out {
		result[i] = vm.m
	}
	return result, nil
}
