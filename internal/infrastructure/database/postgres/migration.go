// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/order"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger logrus.FieldLogger) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("Running database auto-migrations")

	// Dependency order
	models := []interface{}{
		// Catalog
		&catalog.Category{},
		&catalog.Product{},

		// Cart
		&cart.CartLine{},

		// Orders and the charge ledger
		&order.Order{},
		&order.OrderDetail{},
		&order.ChargeAttempt{},
	}

	for _, model := range models {
		m.logger.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("Database auto-migrations completed")
	return nil
}

// CreateIndexes creates additional indexes for the hot queries
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// Catalog
		"CREATE INDEX IF NOT EXISTS idx_products_category_name ON products(category_id, name)",

		// Cart
		"CREATE INDEX IF NOT EXISTS idx_cart_lines_owner_id ON cart_lines(owner_key, id)",

		// Orders
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_details_order ON order_details(order_id)",

		// Charge attempts
		"CREATE INDEX IF NOT EXISTS idx_charge_attempts_owner_status ON charge_attempts(owner_key, status)",
		"CREATE INDEX IF NOT EXISTS idx_charge_attempts_reconciliation ON charge_attempts(needs_reconciliation, updated_at) WHERE needs_reconciliation",
	}

	failed := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("Failed to create index")
			failed++
		}
	}

	m.logger.WithFields(logrus.Fields{
		"created": len(indexes) - failed,
		"failed":  failed,
	}).Info("Created database indexes")
	return nil
}

// SeedInitialData inserts the demo catalog
func (m *Migration) SeedInitialData() error {
	if err := m.seedCatalog(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	return nil
}

type seedProduct struct {
	name        string
	description string
	price       string
}

func (m *Migration) seedCatalog() error {
	catalogSeed := []struct {
		category catalog.Category
		products []seedProduct
	}{
		{
			category: catalog.Category{Name: "Board Games", Description: "Tabletop games for two or more players"},
			products: []seedProduct{
				{"Carcassonne", "Tile-laying game of medieval cities", "34.99"},
				{"Ticket to Ride", "Cross-country train adventure", "44.99"},
			},
		},
		{
			category: catalog.Category{Name: "Puzzles", Description: "Jigsaw and logic puzzles"},
			products: []seedProduct{
				{"Night Sky 1000", "1000 piece jigsaw puzzle", "19.50"},
				{"Rubik's Cube", "The original 3x3 cube", "12.00"},
			},
		},
		{
			category: catalog.Category{Name: "Accessories", Description: "Dice, sleeves and storage"},
			products: []seedProduct{
				{"Polyhedral Dice Set", "Seven dice in a cloth bag", "9.99"},
			},
		},
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range catalogSeed {
			category := entry.category
			err := tx.Where("name = ?", category.Name).First(&category).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
				m.logger.WithField("category", category.Name).Info("Created category")
			case err != nil:
				return err
			}

			for _, p := range entry.products {
				product := catalog.Product{
					Name:        p.name,
					Description: p.description,
					Price:       decimal.RequireFromString(p.price),
					CategoryID:  category.ID,
				}
				if err := tx.Where("name = ?", product.Name).FirstOrCreate(&product).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
