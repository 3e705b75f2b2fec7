package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pdv-service/internal/models"
	"pdv-service/internal/service"
	"pdv-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the business services exposed over HTTP
type Services struct {
	Orders   *service.OrderService
	Reports  *service.ReportService
	Catalog  *service.CatalogService
	Comments *service.CommentService
	Auth     *service.AuthService
}

// Options configures the HTTP layer. Cache may be nil.
type Options struct {
	AuthRequired bool
	Database     Pinger
	Cache        Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	return &Handler{
		svc:    svc,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", h.login)

	protected := v1.Group("", h.authenticate())
	{
		protected.POST("/orders", h.createOrder)
		protected.GET("/orders", h.listOrders)
		protected.GET("/orders/:id", h.getOrder)
		protected.PUT("/orders/:id/status", h.updateOrderStatus)
		protected.POST("/orders/:id/comments", h.addComment)
		protected.GET("/orders/:id/comments", h.listComments)

		protected.GET("/statistics/dashboard", h.getDashboard)
		protected.POST("/statistics/reports", h.getReport)

		protected.GET("/products", h.listProducts)
		protected.POST("/products", h.createProduct)
		protected.GET("/products/:id", h.getProduct)
		protected.PUT("/products/:id", h.updateProduct)
		protected.DELETE("/products/:id", h.deleteProduct)

		protected.GET("/categories", h.listCategories)
		protected.POST("/categories", h.createCategory)
		protected.GET("/categories/:id", h.getCategory)
		protected.PUT("/categories/:id", h.updateCategory)
		protected.DELETE("/categories/:id", h.deleteCategory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "up"}

	if h.opts.Database != nil {
		if err := h.opts.Database.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = "down"
			h.logger.Warn("Database health check failed", zap.Error(err))
		}
	}
	if h.opts.Cache != nil {
		checks["cache"] = "up"
		if err := h.opts.Cache.Ping(ctx); err != nil {
			checks["cache"] = "down"
		}
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// authenticate reads an optional bearer token. When auth is required a
// missing token is rejected; a malformed one always is.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if h.opts.AuthRequired {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
				return
			}
			c.Next()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := h.svc.Auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func currentClaims(c *gin.Context) *service.TokenClaims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*service.TokenClaims)
	return claims
}

// respondError maps domain errors onto HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case models.IsPersistence(err):
		h.internalError(c, err)
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": verr.Error(),
			"field":   verr.Field,
		})
	case models.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	case models.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"details": err.Error(),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": err.Error(),
		})
	default:
		h.internalError(c, err)
	}
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
	})
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameter",
			"details": key + " must be an integer",
		})
		return 0, false
	}
	return v, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
