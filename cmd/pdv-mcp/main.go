package main

import (
	"context"
	"log"

	"pdv-service/config"
	"pdv-service/internal/eventbus"
	"pdv-service/internal/mcpserver"
	"pdv-service/internal/service"
	"pdv-service/internal/store"
	"pdv-service/internal/util"

	"go.uber.org/zap"
)

// pdv-mcp serves the back office tools over stdio. Stdout carries the
// protocol, so every log line goes to stderr.
func main() {
	cfg := config.Load()

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build(zap.Fields(zap.String("service", "pdv-mcp")))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	util.SetLogger(logger)
	defer util.SyncLogger()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	assignment, err := service.ParseOrderNumberAssignment(cfg.Business.OrderNumberStrategy)
	if err != nil {
		logger.Fatal("Invalid order number strategy", zap.Error(err))
	}

	bus := eventbus.New()
	defer bus.Close()

	orders := service.NewOrderService(db, bus, service.OrderServiceConfig{
		NumberAssignment:  assignment,
		MaxRetries:        cfg.Business.OrderNumberMaxRetries,
		StrictTransitions: cfg.Business.StrictStatusTransitions,
		InstanceID:        cfg.Server.InstanceID,
	})
	reports := service.NewReportService(db, nil, service.ReportServiceConfig{
		Location:          cfg.Server.Location(),
		TopProductsLimit:  cfg.Business.TopProductsLimit,
		RecentOrdersLimit: cfg.Business.RecentOrdersLimit,
	})

	logger.Info("Serving MCP on stdio", zap.String("driver", db.Driver()))
	if err := mcpserver.NewServer(orders, reports).Serve(context.Background()); err != nil {
		logger.Error("MCP server stopped", zap.Error(err))
	}
}
