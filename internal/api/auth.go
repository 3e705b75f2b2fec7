package api

import (
	"net/http"

	"pdv-service/internal/service"

	"github.com/gin-gonic/gin"
)

// login exchanges operator credentials for a bearer token
func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
