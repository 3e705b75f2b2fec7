package api

import (
	"net/http"

	"pdv-service/internal/service"

	"github.com/gin-gonic/gin"
)

// getDashboard returns the dashboard snapshot. A degraded snapshot is still
// served with 200 so the screen keeps rendering.
func (h *Handler) getDashboard(c *gin.Context) {
	snap := h.svc.Reports.GetDashboardSnapshot(c.Request.Context())
	c.JSON(http.StatusOK, snap)
}

// getReport aggregates sales over an inclusive date range
func (h *Handler) getReport(c *gin.Context) {
	var req service.ReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.svc.Reports.GetReport(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
