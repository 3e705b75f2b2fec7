package api

import (
	"net/http"

	"pdv-service/internal/models"
	"pdv-service/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateStatusRequest moves an order through its lifecycle
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// createOrder handles order creation requests
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	// Get idempotency key from header if not in body
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	if claims := currentClaims(c); claims != nil {
		if req.UserID != "" && req.UserID != claims.UserID {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"details": "userId does not match the authenticated user",
			})
			return
		}
		req.UserID = claims.UserID
	}

	result, err := h.svc.Orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result.Order)
}

// listOrders handles paged order listings, newest first
func (h *Handler) listOrders(c *gin.Context) {
	var filter models.OrderFilter

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid query parameter",
				"details": "unknown status " + raw,
			})
			return
		}
		filter.Status = &status
	}

	var ok bool
	if filter.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}
	if filter.Offset, ok = queryInt(c, "offset", 0); !ok {
		return
	}

	list, err := h.svc.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// getOrder handles get order requests
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// updateOrderStatus handles status transitions
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.svc.Orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// addComment attaches a note to an order. The author defaults to the
// authenticated operator.
func (h *Handler) addComment(c *gin.Context) {
	var req service.CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.AuthorName == "" {
		if claims := currentClaims(c); claims != nil {
			req.AuthorName = claims.Name
		}
	}

	comment, err := h.svc.Comments.AddComment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) listComments(c *gin.Context) {
	comments, err := h.svc.Comments.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}
