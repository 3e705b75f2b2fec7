package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"pdv-service/internal/models"
	"pdv-service/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func (s *Server) handleGetDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.reports.GetDashboardSnapshot(ctx))
}

func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	start, err := requireString(args, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := requireString(args, "end_date")
	if err != nil {
		return nil, err
	}

	report, err := s.reports.GetReport(ctx, &service.ReportRequest{
		StartDate: start,
		EndDate:   end,
		Period:    getStringDefault(args, "period", ""),
	})
	if err != nil {
		return toolError(err)
	}
	return jsonResult(report)
}

func (s *Server) handleListOrders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	filter := models.OrderFilter{
		Limit:  getIntDefault(args, "limit", 0),
		Offset: getIntDefault(args, "offset", 0),
	}
	if raw := getStringDefault(args, "status", ""); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "unknown status", map[string]interface{}{
				"param": "status",
				"value": raw,
			})
		}
		filter.Status = &status
	}

	list, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(list)
}

func (s *Server) handleGetOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(arguments(request), "order_id")
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(order)
}

func (s *Server) handleUpdateOrderStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	id, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}
	status, err := requireString(args, "status")
	if err != nil {
		return nil, err
	}

	order, err := s.orders.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(order)
}

// toolError reports domain failures as tool results so the client can show
// them; anything else is an internal error.
func toolError(err error) (*mcp.CallToolResult, error) {
	if !models.IsPersistence(err) && (models.IsValidation(err) || models.IsNotFound(err) || models.IsConflict(err)) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, newMCPError(ErrorCodeInternalError, "request failed", map[string]interface{}{
		"error": err.Error(),
	})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode result", nil)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return v, nil
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
