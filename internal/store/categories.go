package store

import (
	"context"
	"database/sql"
	"errors"

	"pdv-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const categoryColumns = `id, name, description, color, active, created_at, updated_at`

// CreateCategory inserts a category. Duplicate names return a ConflictError.
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	return insertCategory(ctx, s.db, c)
}

func insertCategory(ctx context.Context, q queryer, c *models.Category) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.Description, c.Color, c.Active, c.CreatedAt, c.UpdatedAt)
	return wrap("create category", err)
}

// GetCategory retrieves a category by ID
func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	err := s.db.GetContext(ctx, &c, s.rebind("SELECT "+categoryColumns+" FROM categories WHERE id = ?"), id)
	if nf := notFound(err, "category", id); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, wrap("get category", err)
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, "SELECT "+categoryColumns+" FROM categories ORDER BY name")
	if err != nil {
		return nil, wrap("list categories", err)
	}
	return categories, nil
}

// UpdateCategory overwrites the mutable category fields
func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	c.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE categories SET name = ?, description = ?, color = ?, active = ?, updated_at = ?
		WHERE id = ?`),
		c.Name, c.Description, c.Color, c.Active, c.UpdatedAt, c.ID)
	if err != nil {
		return wrap("update category", err)
	}
	return requireAffected(res, "category", c.ID)
}

// DeleteCategory removes a category. Products still attached to it are moved
// to the default category (reassign) or deleted with it (cascade). A category
// with products and no strategy is rejected.
func (s *Store) DeleteCategory(ctx context.Context, id string, strategy models.CategoryDeleteStrategy) error {
	return s.InTx(ctx, func(tx *Tx) error {
		var c models.Category
		err := tx.tx.GetContext(ctx, &c, tx.rebind("SELECT "+categoryColumns+" FROM categories WHERE id = ?"), id)
		if nf := notFound(err, "category", id); nf != nil {
			return nf
		}
		if err != nil {
			return wrap("get category", err)
		}
		if c.Name == models.DefaultCategoryName {
			return models.NewValidationError("id", "the %s category cannot be deleted", models.DefaultCategoryName)
		}

		var products int
		if err := tx.tx.GetContext(ctx, &products,
			tx.rebind("SELECT COUNT(*) FROM products WHERE category_id = ?"), id); err != nil {
			return wrap("count category products", err)
		}

		if products > 0 {
			switch strategy {
			case models.CategoryDeleteReassign:
				fallback, err := tx.ensureDefaultCategory(ctx)
				if err != nil {
					return err
				}
				if _, err := tx.tx.ExecContext(ctx,
					tx.rebind("UPDATE products SET category_id = ?, updated_at = ? WHERE category_id = ?"),
					fallback.ID, now(), id); err != nil {
					return wrap("reassign products", err)
				}
			case models.CategoryDeleteCascade:
				var sold int
				if err := tx.tx.GetContext(ctx, &sold, tx.rebind(`
					SELECT COUNT(*) FROM order_items oi
					JOIN products p ON p.id = oi.product_id
					WHERE p.category_id = ?`), id); err != nil {
					return wrap("count category sales", err)
				}
				if sold > 0 {
					return &models.ConflictError{Message: "category " + id + " has products referenced by existing orders"}
				}
				if _, err := tx.tx.ExecContext(ctx,
					tx.rebind("DELETE FROM products WHERE category_id = ?"), id); err != nil {
					return wrap("delete category products", err)
				}
			default:
				return models.NewValidationError("strategy",
					"category has %d products; use strategy=%s or strategy=%s",
					products, models.CategoryDeleteReassign, models.CategoryDeleteCascade)
			}
		}

		res, err := tx.tx.ExecContext(ctx, tx.rebind("DELETE FROM categories WHERE id = ?"), id)
		if err != nil {
			return wrap("delete category", err)
		}
		return requireAffected(res, "category", id)
	})
}

// EnsureDefaultCategory returns the default category, creating it on first use.
func (s *Store) EnsureDefaultCategory(ctx context.Context) (*models.Category, error) {
	var c *models.Category
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		c, err = tx.ensureDefaultCategory(ctx)
		return err
	})
	return c, err
}

func (t *Tx) ensureDefaultCategory(ctx context.Context) (*models.Category, error) {
	var c models.Category
	err := sqlx.GetContext(ctx, t.tx, &c,
		t.rebind("SELECT "+categoryColumns+" FROM categories WHERE name = ?"), models.DefaultCategoryName)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get default category", err)
	}

	c = models.Category{
		Name:        models.DefaultCategoryName,
		Description: "Products without a category",
		Color:       "#9E9E9E",
		Active:      true,
	}
	if err := insertCategory(ctx, t.tx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
