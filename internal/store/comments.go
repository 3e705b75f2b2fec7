package store

import (
	"context"

	"pdv-service/internal/models"

	"github.com/google/uuid"
)

// CreateComment appends a comment to an existing order
func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	return s.InTx(ctx, func(tx *Tx) error {
		var exists int
		if err := tx.tx.GetContext(ctx, &exists,
			tx.rebind("SELECT COUNT(*) FROM orders WHERE id = ?"), c.OrderID); err != nil {
			return wrap("check order", err)
		}
		if exists == 0 {
			return models.NewNotFoundError("order", c.OrderID)
		}

		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.CreatedAt = now()
		c.UpdatedAt = c.CreatedAt

		_, err := tx.tx.ExecContext(ctx, tx.rebind(`
			INSERT INTO comments (id, order_id, content, author_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			c.ID, c.OrderID, c.Content, c.AuthorName, c.CreatedAt, c.UpdatedAt)
		return wrap("create comment", err)
	})
}

// ListComments returns the comments of an order, oldest first
func (s *Store) ListComments(ctx context.Context, orderID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.SelectContext(ctx, &comments, s.rebind(`
		SELECT id, order_id, content, author_name, created_at, updated_at
		FROM comments WHERE order_id = ?
		ORDER BY created_at`), orderID)
	if err != nil {
		return nil, wrap("list comments", err)
	}
	return comments, nil
}
