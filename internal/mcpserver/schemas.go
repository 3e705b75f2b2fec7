package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func getDashboardTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_dashboard",
		Description: "Sales dashboard: today, week and month totals, trends, top products, recent orders and the last 30 days",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func getReportTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_report",
		Description: "Sales report between two calendar dates, both inclusive",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"start_date": map[string]interface{}{
					"type":        "string",
					"description": "First day of the report (YYYY-MM-DD)",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"description": "Last day of the report (YYYY-MM-DD)",
				},
				"period": map[string]interface{}{
					"type":        "string",
					"description": "Free-form label echoed back in the report",
				},
			},
			Required: []string{"start_date", "end_date"},
		},
	}
}

func listOrdersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_orders",
		Description: "List orders newest first, optionally filtered by status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "PENDING, PREPARING, READY, DELIVERED or CANCELLED",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Page size (1-200)",
					"default":     50,
					"minimum":     1,
					"maximum":     200,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of orders to skip",
					"default":     0,
					"minimum":     0,
				},
			},
		},
	}
}

func getOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_order",
		Description: "Fetch one order with its items",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": map[string]interface{}{
					"type":        "string",
					"description": "Order identifier",
				},
			},
			Required: []string{"order_id"},
		},
	}
}

func updateOrderStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_order_status",
		Description: "Move an order to a new status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id": map[string]interface{}{
					"type":        "string",
					"description": "Order identifier",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Target status; COMPLETED is accepted as DELIVERED",
				},
			},
			Required: []string{"order_id", "status"},
		},
	}
}
