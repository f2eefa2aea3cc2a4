package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"appproft-buybox-sync/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLCatalogRepository implements CatalogRepository against the product
// catalog database. The sync engine only reads from it; the catalog is
// owned by the listing side of the platform.
type MySQLCatalogRepository struct {
	db *sql.DB
}

// NewMySQLCatalogRepository creates a new MySQL catalog repository.
// dsn example: "user:password@tcp(localhost:3306)/catalog?parseTime=true"
func NewMySQLCatalogRepository(dsn string) (*MySQLCatalogRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	log.Printf("[MySQLCatalogRepository] Connected to catalog database")
	return &MySQLCatalogRepository{db: db}, nil
}

// ListTrackedItems returns every product flagged for buy box tracking.
func (r *MySQLCatalogRepository) ListTrackedItems(ctx context.Context) ([]model.TrackedItem, error) {
	query := `
		SELECT asin, name, price, created_at
		FROM products
		WHERE is_tracked = 1
		ORDER BY asin`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked items: %w", err)
	}
	defer rows.Close()

	var items []model.TrackedItem
	for rows.Next() {
		var item model.TrackedItem
		if err := rows.Scan(&item.ASIN, &item.Name, &item.OwnPrice, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracked item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetOwnPrice returns our listed price for an ASIN.
func (r *MySQLCatalogRepository) GetOwnPrice(ctx context.Context, asin string) (float64, error) {
	query := `SELECT price FROM products WHERE asin = ? LIMIT 1`

	var price float64
	err := r.db.QueryRowContext(ctx, query, asin).Scan(&price)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("no catalog entry for asin: %s", asin)
		}
		return 0, fmt.Errorf("failed to get own price: %w", err)
	}
	return price, nil
}

// Close closes the catalog connection.
func (r *MySQLCatalogRepository) Close() error {
	return r.db.Close()
}

// Ensure MySQLCatalogRepository implements CatalogRepository
var _ CatalogRepository = (*MySQLCatalogRepository)(nil)
