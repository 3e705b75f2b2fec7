package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pdv-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderSelect = `
	SELECT o.id, o.order_number, o.status, o.total, o.payment_method, o.customer_name,
		o.user_id, o.idempotency_key, o.created_at, o.updated_at,
		COALESCE(u.name, '') AS user_name
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id`

const itemSelect = `
	SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.subtotal, oi.note,
		oi.stock_reserved, COALESCE(p.name, '') AS product_name
	FROM order_items oi
	LEFT JOIN products p ON p.id = oi.product_id`

// NextSequenceNumber increments the order counter and returns the new value.
// The counter never falls behind numbers already present in orders.
func (t *Tx) NextSequenceNumber(ctx context.Context) (int64, error) {
	query := `
		UPDATE order_counters
		SET value = MAX(value, (SELECT COALESCE(MAX(order_number), 0) FROM orders)) + 1
		WHERE name = 'orders'
		RETURNING value`
	if t.store.driver == DriverPostgres {
		query = `
			UPDATE order_counters
			SET value = GREATEST(value, (SELECT COALESCE(MAX(order_number), 0) FROM orders)) + 1
			WHERE name = 'orders'
			RETURNING value`
	}

	var n int64
	if err := t.tx.GetContext(ctx, &n, query); err != nil {
		return 0, wrap("assign order number", err)
	}
	return n, nil
}

// NextMaxNumber returns MAX(order_number)+1 as seen by this transaction.
// Concurrent callers may get the same value; the unique index decides.
func (t *Tx) NextMaxNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := t.tx.GetContext(ctx, &n, "SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders"); err != nil {
		return 0, wrap("assign order number", err)
	}
	return n, nil
}

// InsertOrder writes the order and its items. IDs and timestamps must be set.
func (t *Tx) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := t.tx.ExecContext(ctx, t.rebind(`
		INSERT INTO orders (id, order_number, status, total, payment_method, customer_name,
			user_id, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.OrderNumber, o.Status, o.Total, o.PaymentMethod, o.CustomerName,
		o.UserID, o.IdempotencyKey, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return wrap("create order", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.OrderID = o.ID
		_, err := t.tx.ExecContext(ctx, t.rebind(`
			INSERT INTO order_items (id, order_id, line_number, product_id, quantity, unit_price, subtotal, note, stock_reserved)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			item.ID, item.OrderID, i, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal, item.Note, item.StockReserved)
		if err != nil {
			return wrap("create order item", err)
		}
	}
	return nil
}

// SetStockReserved records whether an order line currently holds stock.
func (t *Tx) SetStockReserved(ctx context.Context, itemID string, reserved bool) error {
	res, err := t.tx.ExecContext(ctx, t.rebind(`UPDATE order_items SET stock_reserved = ? WHERE id = ?`), reserved, itemID)
	if err != nil {
		return wrap("update order item", err)
	}
	return requireAffected(res, "order item", itemID)
}

// GetOrder reads an order and its items inside the transaction. On Postgres
// the order row stays locked until the transaction ends.
func (t *Tx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := orderSelect + " WHERE o.id = ?"
	if t.store.driver == DriverPostgres {
		query += " FOR UPDATE OF o"
	}
	o, err := getOrder(ctx, t.tx, query, id)
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, t.tx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByIdempotencyKey returns nil when no order carries key
func (t *Tx) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	o, err := getOrder(ctx, t.tx, orderSelect+" WHERE o.idempotency_key = ?", key)
	if models.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, t.tx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOrderStatus changes status and updated_at only.
func (t *Tx) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		t.rebind("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?"),
		status, at, id)
	if err != nil {
		return wrap("update order status", err)
	}
	return requireAffected(res, "order", id)
}

// GetOrder retrieves an order with its items
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := getOrder(ctx, s.db, orderSelect+" WHERE o.id = ?", id)
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, s.db, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil if absent
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	o, err := getOrder(ctx, s.db, orderSelect+" WHERE o.idempotency_key = ?", key)
	if models.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, s.db, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns orders newest first, with items
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	query := orderSelect + " WHERE 1=1"
	var args []interface{}
	if filter.Status != nil {
		query += " AND o.status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY o.created_at DESC, o.order_number DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, s.rebind(query), args...); err != nil {
		return nil, wrap("list orders", err)
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := loadItems(ctx, s.db, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// CountOrders returns the number of orders matching filter, ignoring paging
func (s *Store) CountOrders(ctx context.Context, filter models.OrderFilter) (int, error) {
	query := "SELECT COUNT(*) FROM orders WHERE 1=1"
	var args []interface{}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	var n int
	err := s.db.GetContext(ctx, &n, s.rebind(query), args...)
	return n, wrap("count orders", err)
}

// SalesBetween returns non-cancelled orders created in [from, to), without items.
func (s *Store) SalesBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, s.rebind(orderSelect+`
		WHERE o.created_at >= ? AND o.created_at < ? AND o.status <> ?
		ORDER BY o.created_at`),
		from.UTC(), to.UTC(), models.OrderStatusCancelled)
	if err != nil {
		return nil, wrap("query sales", err)
	}
	return orders, nil
}

// SoldItemsBetween returns the lines of non-cancelled orders created in [from, to).
func (s *Store) SoldItemsBetween(ctx context.Context, from, to time.Time) ([]models.SoldItem, error) {
	items := []models.SoldItem{}
	err := s.db.SelectContext(ctx, &items, s.rebind(`
		SELECT oi.order_id, oi.product_id, COALESCE(p.name, '') AS product_name, oi.quantity, oi.subtotal
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.created_at >= ? AND o.created_at < ? AND o.status <> ?`),
		from.UTC(), to.UTC(), models.OrderStatusCancelled)
	if err != nil {
		return nil, wrap("query sold items", err)
	}
	return items, nil
}

func getOrder(ctx context.Context, q queryer, query string, id string) (*models.Order, error) {
	var o models.Order
	err := sqlx.GetContext(ctx, q, &o, q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("order", id)
	}
	if err != nil {
		return nil, wrap("get order", err)
	}
	return &o, nil
}

func loadItems(ctx context.Context, q queryer, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In(itemSelect+" WHERE oi.order_id IN (?) ORDER BY oi.order_id, oi.line_number", ids)
	if err != nil {
		return wrap("build order items query", err)
	}

	var items []models.OrderItem
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return wrap("get order items", err)
	}
	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}
