// Package mcpserver exposes the PDV back office to MCP clients over stdio:
// the sales dashboard, reports, and order lookup and status changes.
package mcpserver

import (
	"context"

	"pdv-service/internal/service"

	"github.com/mark3labs/mcp-go/server"
)

const (
	// ServerName is the MCP server name
	ServerName = "pdv-service"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the PDV services
type Server struct {
	mcp     *server.MCPServer
	orders  *service.OrderService
	reports *service.ReportService
}

// NewServer creates a new MCP server instance
func NewServer(orders *service.OrderService, reports *service.ReportService) *Server {
	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		orders:  orders,
		reports: reports,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(getDashboardTool(), s.handleGetDashboard)
	s.mcp.AddTool(getReportTool(), s.handleGetReport)
	s.mcp.AddTool(listOrdersTool(), s.handleListOrders)
	s.mcp.AddTool(getOrderTool(), s.handleGetOrder)
	s.mcp.AddTool(updateOrderStatusTool(), s.handleUpdateOrderStatus)
}
