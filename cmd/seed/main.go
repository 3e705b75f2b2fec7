package main

import (
	"context"
	"log"

	"pdv-service/config"
	"pdv-service/internal/models"
	"pdv-service/internal/service"
	"pdv-service/internal/store"
	"pdv-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedProduct struct {
	name     string
	price    string
	category string
	stock    *int
}

func intPtr(v int) *int { return &v }

var seedCategories = []service.CategoryRequest{
	{Name: "Lanches", Description: "Burgers and sandwiches", Color: "#E53935"},
	{Name: "Acompanhamentos", Description: "Sides", Color: "#FB8C00"},
	{Name: "Bebidas", Description: "Drinks", Color: "#1E88E5"},
	{Name: "Sobremesas", Description: "Desserts", Color: "#8E24AA"},
}

var seedProducts = []seedProduct{
	{name: "X-Burger", price: "18.90", category: "Lanches"},
	{name: "X-Salada", price: "20.90", category: "Lanches"},
	{name: "X-Bacon", price: "23.90", category: "Lanches"},
	{name: "Batata Frita", price: "12.50", category: "Acompanhamentos"},
	{name: "Onion Rings", price: "14.00", category: "Acompanhamentos"},
	{name: "Refrigerante Lata", price: "6.00", category: "Bebidas", stock: intPtr(120)},
	{name: "Suco Natural", price: "9.50", category: "Bebidas"},
	{name: "Agua Mineral", price: "4.00", category: "Bebidas", stock: intPtr(200)},
	{name: "Sorvete", price: "8.00", category: "Sobremesas", stock: intPtr(40)},
}

// seed loads a demo catalog and operator accounts. Running it twice is
// harmless: existing categories are reused and the catalog is only filled
// when empty.
func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	auth := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if _, err := auth.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("Failed to create admin", zap.Error(err))
	}
	if _, err := auth.CreateUser(ctx, "Caixa 1", "caixa1@pdv.local", "caixa123", models.RoleCashier); err != nil {
		if !models.IsConflict(err) {
			logger.Fatal("Failed to create cashier", zap.Error(err))
		}
	}

	catalog := service.NewCatalogService(db)
	existing, err := catalog.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		logger.Fatal("Failed to list products", zap.Error(err))
	}
	if len(existing) > 0 {
		logger.Info("Catalog already seeded", zap.Int("products", len(existing)))
		return
	}

	categories, err := catalog.ListCategories(ctx)
	if err != nil {
		logger.Fatal("Failed to list categories", zap.Error(err))
	}
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}

	for i := range seedCategories {
		req := seedCategories[i]
		if _, ok := byName[req.Name]; ok {
			continue
		}
		c, err := catalog.CreateCategory(ctx, &req)
		if err != nil {
			logger.Fatal("Failed to create category", zap.String("name", req.Name), zap.Error(err))
		}
		byName[c.Name] = c.ID
	}

	for _, sp := range seedProducts {
		_, err := catalog.CreateProduct(ctx, &service.ProductRequest{
			Name:          sp.name,
			Price:         decimal.RequireFromString(sp.price),
			CategoryID:    byName[sp.category],
			StockQuantity: sp.stock,
			TrackStock:    sp.stock != nil,
		})
		if err != nil {
			logger.Fatal("Failed to create product", zap.String("name", sp.name), zap.Error(err))
		}
	}

	logger.Info("Seed complete",
		zap.Int("categories", len(seedCategories)),
		zap.Int("products", len(seedProducts)))
}
