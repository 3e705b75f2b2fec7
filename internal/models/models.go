package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products on the sales screen
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Color       string    `db:"color" json:"color"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultCategoryName receives products of categories deleted with the reassign strategy.
const DefaultCategoryName = "Uncategorized"

// Product represents a sellable item in the catalog
type Product struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	CategoryID    string          `db:"category_id" json:"categoryId"`
	Available     bool            `db:"available" json:"available"`
	StockQuantity *int            `db:"stock_quantity" json:"stockQuantity,omitempty"`
	TrackStock    bool            `db:"track_stock" json:"trackStock"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// User is a PDV operator
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// User roles
const (
	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
)

// Order represents a sale registered at the counter
type Order struct {
	ID             string          `db:"id" json:"id"`
	OrderNumber    int64           `db:"order_number" json:"orderNumber"`
	Status         OrderStatus     `db:"status" json:"status"`
	Total          decimal.Decimal `db:"total" json:"total"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"paymentMethod"`
	CustomerName   *string         `db:"customer_name" json:"customerName,omitempty"`
	UserID         string          `db:"user_id" json:"userId"`
	UserName       string          `db:"user_name" json:"userName,omitempty"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
	Items          []OrderItem     `db:"-" json:"items"`
}

// OrderItem is one product line of an order. UnitPrice is captured at sale time.
type OrderItem struct {
	ID          string          `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"orderId"`
	ProductID   string          `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName,omitempty"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
	Note        *string         `db:"note" json:"note,omitempty"`
	// StockReserved is set while this line holds units of a tracked product
	StockReserved bool `db:"stock_reserved" json:"-"`
}

// Comment is a free-text note attached to an order
type Comment struct {
	ID         string    `db:"id" json:"id"`
	OrderID    string    `db:"order_id" json:"orderId"`
	Content    string    `db:"content" json:"content"`
	AuthorName string    `db:"author_name" json:"authorName"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus normalizes user input. COMPLETED is kept as an alias of DELIVERED.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return s, true
	case "COMPLETED":
		return OrderStatusDelivered, true
	default:
		return "", false
	}
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusDelivered, OrderStatusCancelled},
}

// CanTransitionTo reports whether the status machine allows moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// PaymentMethod is how the customer paid
type PaymentMethod string

// Payment methods
const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentPix        PaymentMethod = "PIX"
)

// PaymentMethods lists every accepted payment method in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentPix}

// ParsePaymentMethod validates a payment method string.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	pm := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range PaymentMethods {
		if pm == known {
			return pm, true
		}
	}
	return "", false
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status *OrderStatus
	Limit  int
	Offset int
}

// ProductFilter narrows product listings
type ProductFilter struct {
	CategoryID    string
	AvailableOnly bool
}

// CategoryDeleteStrategy decides what happens to products of a deleted category
type CategoryDeleteStrategy string

const (
	CategoryDeleteReassign CategoryDeleteStrategy = "reassign"
	CategoryDeleteCascade  CategoryDeleteStrategy = "cascade"
)

// SoldItem is one order line joined with its order, used for sales rankings
type SoldItem struct {
	OrderID     string          `db:"order_id"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	Subtotal    decimal.Decimal `db:"subtotal"`
}
