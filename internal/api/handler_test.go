package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pdv-service/internal/eventbus"
	"pdv-service/internal/models"
	"pdv-service/internal/service"
	"pdv-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	router  *gin.Engine
	store   *store.Store
	auth    *service.AuthService
	cashier *models.User
	burger  *models.Product
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newAPIEnv(t *testing.T, opts Options) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := eventbus.New()
	t.Cleanup(bus.Close)

	auth := service.NewAuthService(st, "test-secret", time.Hour)
	ctx := context.Background()
	cashier, err := auth.CreateUser(ctx, "Ana", "ana@pdv.local", "secret123", models.RoleCashier)
	require.NoError(t, err)

	catalog := service.NewCatalogService(st)
	burger, err := catalog.CreateProduct(ctx, &service.ProductRequest{
		Name:  "Burger",
		Price: decimal.RequireFromString("12.99"),
	})
	require.NoError(t, err)

	if opts.Database == nil {
		opts.Database = st
	}
	svc := Services{
		Orders: service.NewOrderService(st, bus, service.OrderServiceConfig{
			NumberAssignment:  service.OrderNumberSequence,
			StrictTransitions: true,
			InstanceID:        "api-test",
		}),
		Reports:  service.NewReportService(st, nil, service.ReportServiceConfig{Location: time.UTC}),
		Catalog:  catalog,
		Comments: service.NewCommentService(st),
		Auth:     auth,
	}

	router := gin.New()
	NewHandler(svc, opts).SetupRoutes(router)

	return &apiEnv{router: router, store: st, auth: auth, cashier: cashier, burger: burger}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) token(t *testing.T) string {
	t.Helper()
	resp, err := e.auth.Login(context.Background(), &service.LoginRequest{Email: "ana@pdv.local", Password: "secret123"})
	require.NoError(t, err)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}

func TestHealthCheck(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newAPIEnv(t, Options{Database: fakePinger{err: errors.New("db down")}, Cache: fakePinger{}})
	w = down.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestCreateOrderEndpoint(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body := gin.H{
		"userId":        env.cashier.ID,
		"paymentMethod": "pix",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 2}},
	}
	w := env.do(t, http.MethodPost, "/api/v1/orders", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, int64(1), order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentPix, order.PaymentMethod)
	assert.True(t, decimal.RequireFromString("25.98").Equal(order.Total))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Burger", order.Items[0].ProductName)
}

func TestCreateOrderIdempotencyHeader(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body := gin.H{
		"userId":        env.cashier.ID,
		"paymentMethod": "CASH",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
	}
	headers := map[string]string{"Idempotency-Key": "till-1-0001"}

	first := env.do(t, http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := env.do(t, http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b models.Order
	decode(t, first, &a)
	decode(t, second, &b)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.OrderNumber, b.OrderNumber)
}

func TestCreateOrderValidation(t *testing.T) {
	env := newAPIEnv(t, Options{})

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"malformed body", "not an object", http.StatusBadRequest},
		{"zero quantity", gin.H{
			"userId":        env.cashier.ID,
			"paymentMethod": "CASH",
			"items":         []gin.H{{"productId": env.burger.ID, "quantity": 0}},
		}, http.StatusBadRequest},
		{"bad payment", gin.H{
			"userId":        env.cashier.ID,
			"paymentMethod": "VOUCHER",
			"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
		}, http.StatusBadRequest},
		{"unknown product", gin.H{
			"userId":        env.cashier.ID,
			"paymentMethod": "CASH",
			"items":         []gin.H{{"productId": "missing", "quantity": 1}},
		}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/orders", tt.body, nil)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestUserFromToken(t *testing.T) {
	env := newAPIEnv(t, Options{AuthRequired: true})

	body := gin.H{
		"paymentMethod": "CASH",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
	}
	w := env.do(t, http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/orders", body, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := map[string]string{"Authorization": "Bearer " + env.token(t)}
	w = env.do(t, http.MethodPost, "/api/v1/orders", body, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, env.cashier.ID, order.UserID)

	w = env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/comments", gin.H{"content": "no onions"}, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var comment models.Comment
	decode(t, w, &comment)
	assert.Equal(t, "Ana", comment.AuthorName)
}

func TestCreateOrderRejectsForeignUserID(t *testing.T) {
	env := newAPIEnv(t, Options{AuthRequired: true})
	ctx := context.Background()
	other, err := env.auth.CreateUser(ctx, "Bia", "bia@pdv.local", "secret123", models.RoleCashier)
	require.NoError(t, err)

	auth := map[string]string{"Authorization": "Bearer " + env.token(t)}
	body := gin.H{
		"userId":        other.ID,
		"paymentMethod": "CASH",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
	}
	w := env.do(t, http.MethodPost, "/api/v1/orders", body, auth)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	body["userId"] = env.cashier.ID
	w = env.do(t, http.MethodPost, "/api/v1/orders", body, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, env.cashier.ID, order.UserID)
}

func TestRespondErrorPersistenceBeforeConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(Services{}, Options{})

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", &models.ConflictError{Message: "product is referenced by orders"}, http.StatusConflict},
		{"persistence wrapping conflict", &models.PersistenceError{
			Op:  "assign order number after 3 attempts",
			Err: &models.ConflictError{Message: "order number 7 already taken"},
		}, http.StatusInternalServerError},
		{"persistence", &models.PersistenceError{Op: "list orders", Err: errors.New("disk I/O error")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)

			h.respondError(c, tt.err)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ana@pdv.local", "password": "secret123"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp service.LoginResponse
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ana@pdv.local", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderStatusEndpoint(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body := gin.H{
		"userId":        env.cashier.ID,
		"paymentMethod": "CASH",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
	}
	w := env.do(t, http.MethodPost, "/api/v1/orders", body, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	decode(t, w, &order)

	path := "/api/v1/orders/" + order.ID + "/status"
	w = env.do(t, http.MethodPut, path, gin.H{"status": "preparing"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &order)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)

	w = env.do(t, http.MethodPut, path, gin.H{"status": "PENDING"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, path, gin.H{"status": "LOST"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/orders/missing/status", gin.H{"status": "READY"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body := gin.H{
		"userId":        env.cashier.ID,
		"paymentMethod": "CASH",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
	}
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/orders", body, nil).Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/orders?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list service.OrderList
	decode(t, w, &list)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Orders, 2)

	w = env.do(t, http.MethodGet, "/api/v1/orders?status=CANCELLED", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Equal(t, 0, list.Total)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/orders?limit=abc", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/orders?status=LOST", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/orders/missing", nil, nil).Code)
}

func TestStatisticsEndpoints(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/api/v1/statistics/dashboard", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap service.DashboardSnapshot
	decode(t, w, &snap)
	assert.False(t, snap.Degraded)
	assert.Len(t, snap.DailySales, 30)

	w = env.do(t, http.MethodPost, "/api/v1/statistics/reports", gin.H{"startDate": "2026-01-01", "endDate": "2026-01-31"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report service.SalesReport
	decode(t, w, &report)
	assert.Equal(t, 0, report.OrderCount)
	assert.Len(t, report.PaymentMethods, 4)

	w = env.do(t, http.MethodPost, "/api/v1/statistics/reports", gin.H{"startDate": "2026-02-01", "endDate": "2026-01-01"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodPost, "/api/v1/categories", gin.H{"name": "Drinks"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var drinks models.Category
	decode(t, w, &drinks)

	w = env.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "Soda", "price": "4.50", "categoryId": drinks.ID}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "Bad", "price": "-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/products?categoryId="+drinks.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products struct {
		Products []models.Product `json:"products"`
	}
	decode(t, w, &products)
	require.Len(t, products.Products, 1)
	assert.Equal(t, "Soda", products.Products[0].Name)

	w = env.do(t, http.MethodDelete, "/api/v1/categories/"+drinks.ID, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/categories/"+drinks.ID+"?strategy=reassign", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/categories/"+drinks.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductDeleteConflict(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body := gin.H{
		"userId":        env.cashier.ID,
		"paymentMethod": "CASH",
		"items":         []gin.H{{"productId": env.burger.ID, "quantity": 1}},
	}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/orders", body, nil).Code)

	w := env.do(t, http.MethodDelete, "/api/v1/products/"+env.burger.ID, nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
