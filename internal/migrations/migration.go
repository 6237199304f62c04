package migrations

import (
	"context"
	"fmt"
	"order_engine/internal/database"
	"order_engine/internal/models"
	"order_engine/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunMigrations brings the schema up to date without touching existing rows.
func RunMigrations(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("running database migrations")
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database migrations completed")
	return nil
}

const (
	DemoTenantID = "demo"
	DemoPassword = "password123"
)

type demoItem struct {
	name     string
	category string
	price    string
	stock    int
}

var demoMenu = []demoItem{
	{"Margherita Pizza", "pizza", "9.50", 20},
	{"Pepperoni Pizza", "pizza", "11.00", 15},
	{"Caesar Salad", "salad", "7.25", 10},
	{"Garlic Bread", "sides", "3.50", 30},
	{"Lemonade", "drinks", "2.00", 40},
}

var demoStaff = []struct {
	username string
	role     models.UserRole
}{
	{"manager", models.RoleManager},
	{"kitchen", models.RoleKitchen},
	{"rider1", models.RoleRider},
	{"rider2", models.RoleRider},
}

// SeedDemoData provisions the demo tenant with staff and a small menu in one transaction. It
// returns the created users, or nothing when the tenant already exists.
func SeedDemoData(ctx context.Context, store repository.Store, logger *zap.Logger) ([]*models.User, error) {
	var created []*models.User
	err := store.Transaction(ctx, func(r *repository.Repositories) error {
		exists, err := r.Tenants.Exists(ctx, DemoTenantID)
		if err != nil {
			return fmt.Errorf("check demo tenant: %w", err)
		}
		if exists {
			return nil
		}

		if err := r.Tenants.Create(ctx, &models.Tenant{ID: DemoTenantID, Name: "Demo Kitchen"}); err != nil {
			return fmt.Errorf("create demo tenant: %w", err)
		}

		for _, s := range demoStaff {
			user := &models.User{TenantID: DemoTenantID, Username: s.username, Role: s.role}
			if err := user.SetPassword(DemoPassword); err != nil {
				return fmt.Errorf("hash password for %s: %w", s.username, err)
			}
			if err := r.Users.Create(ctx, user); err != nil {
				return fmt.Errorf("create user %s: %w", s.username, err)
			}
			created = append(created, user)
		}

		for _, item := range demoMenu {
			menuItem := &models.MenuItem{
				TenantID:          DemoTenantID,
				Name:              item.name,
				Category:          item.category,
				Price:             decimal.RequireFromString(item.price),
				StockQuantity:     item.stock,
				LowStockThreshold: 5,
			}
			if err := r.MenuItems.Create(ctx, menuItem); err != nil {
				return fmt.Errorf("create menu item %s: %w", item.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) == 0 {
		logger.Info("demo tenant already exists", zap.String("tenant_id", DemoTenantID))
		return nil, nil
	}
	logger.Info("demo data created",
		zap.String("tenant_id", DemoTenantID),
		zap.Int("users", len(created)),
		zap.Int("menu_items", len(demoMenu)))
	return created, nil
}
