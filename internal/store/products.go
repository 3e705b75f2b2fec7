package store

import (
	"context"

	"pdv-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, description, price, category_id, available, stock_quantity, track_stock, created_at, updated_at`

// CreateProduct inserts a product. ID and timestamps are filled in.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	query := s.rebind(`
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.CategoryID, p.Available,
		p.StockQuantity, p.TrackStock, p.CreatedAt, p.UpdatedAt)
	return wrap("create product", err)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, q queryer, id string) (*models.Product, error) {
	var p models.Product
	err := sqlx.GetContext(ctx, q, &p, q.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	if nf := notFound(err, "product", id); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, wrap("get product", err)
	}
	return &p, nil
}

// ListProducts returns products ordered by name
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE 1=1"
	var args []interface{}
	if filter.CategoryID != "" {
		query += " AND category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.AvailableOnly {
		query += " AND available = ?"
		args = append(args, true)
	}
	query += " ORDER BY name"

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, s.rebind(query), args...); err != nil {
		return nil, wrap("list products", err)
	}
	return products, nil
}

// UpdateProduct overwrites the mutable product fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE products
		SET name = ?, description = ?, price = ?, category_id = ?, available = ?,
			stock_quantity = ?, track_stock = ?, updated_at = ?
		WHERE id = ?`),
		p.Name, p.Description, p.Price, p.CategoryID, p.Available,
		p.StockQuantity, p.TrackStock, p.UpdatedAt, p.ID)
	if err != nil {
		return wrap("update product", err)
	}
	return requireAffected(res, "product", p.ID)
}

// DeleteProduct removes a product that was never sold
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.InTx(ctx, func(tx *Tx) error {
		var sold int
		if err := tx.tx.GetContext(ctx, &sold,
			tx.rebind("SELECT COUNT(*) FROM order_items WHERE product_id = ?"), id); err != nil {
			return wrap("count product sales", err)
		}
		if sold > 0 {
			return &models.ConflictError{Message: "product " + id + " appears in existing orders"}
		}

		res, err := tx.tx.ExecContext(ctx, tx.rebind("DELETE FROM products WHERE id = ?"), id)
		if err != nil {
			return wrap("delete product", err)
		}
		return requireAffected(res, "product", id)
	})
}

// GetProduct reads a product inside the transaction
func (t *Tx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return getProduct(ctx, t.tx, id)
}

// DecrementStock takes qty units from a stock-tracked product. It reports
// false when the product does not have enough stock.
func (t *Tx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.rebind(`
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND track_stock = ? AND stock_quantity >= ?`),
		qty, now(), productID, true, qty)
	if err != nil {
		return false, wrap("decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("decrement stock", err)
	}
	return n == 1, nil
}

// RestoreStock returns qty units to a stock-tracked product. It reports
// false when the product no longer tracks stock.
func (t *Tx) RestoreStock(ctx context.Context, productID string, qty int) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.rebind(`
		UPDATE products
		SET stock_quantity = COALESCE(stock_quantity, 0) + ?, updated_at = ?
		WHERE id = ? AND track_stock = ?`),
		qty, now(), productID, true)
	if err != nil {
		return false, wrap("restore stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("restore stock", err)
	}
	return n == 1, nil
}
