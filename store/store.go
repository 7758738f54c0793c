// Package store provides the product catalog and order ledger on
// PostgreSQL via bun.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/teerapap/storeflow/agent/contract"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
)

const recommendationLimit = 5

// Config holds the PostgreSQL connection settings.
type Config struct {
	DSN string `envconfig:"DSN" required:"true"`
}

// Store implements contract.ProductStore on a bun.DB handle.
type Store struct {
	db *bun.DB
}

func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: store: empty dsn", contract.ErrValidation)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return NewWithDB(bun.NewDB(sqldb, pgdialect.New())), nil
}

// NewWithDB wraps an existing handle. Useful for tests and migrations.
func NewWithDB(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.NewSelect().
		Model((*Product)(nil)).
		ColumnExpr("DISTINCT category").
		Where("quantity > 0").
		OrderExpr("category ASC").
		Scan(ctx, &categories)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	return categories, nil
}

func (s *Store) searchRowsQuery(query contract.SearchQuery) *bun.SelectQuery {
	q := s.db.NewSelect().Model((*Product)(nil)).Where("quantity > 0")
	if text := strings.TrimSpace(query.Text); text != "" {
		term := "%" + strings.ToLower(text) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("LOWER(product_name) LIKE ?", term).
				WhereOr("LOWER(description) LIKE ?", term)
		})
	}
	if query.Category != "" {
		q = q.Where("LOWER(category) = LOWER(?)", query.Category)
	}
	if query.MinPrice != nil {
		q = q.Where("price >= ?", *query.MinPrice)
	}
	if query.MaxPrice != nil {
		q = q.Where("price <= ?", *query.MaxPrice)
	}
	return q.Order("price ASC")
}

// Metadata spans the whole in-stock catalog, not the filtered set, so an
// empty match still tells the planner what alternatives exist.
func (s *Store) categoryCountsQuery() *bun.SelectQuery {
	return s.db.NewSelect().
		Model((*Product)(nil)).
		ColumnExpr("category AS name").
		ColumnExpr("COUNT(*) AS product_count").
		Where("quantity > 0").
		GroupExpr("category").
		OrderExpr("product_count DESC")
}

func (s *Store) priceRangeQuery() *bun.SelectQuery {
	return s.db.NewSelect().
		Model((*Product)(nil)).
		ColumnExpr("MIN(price) AS min").
		ColumnExpr("MAX(price) AS max").
		ColumnExpr("AVG(price) AS average").
		Where("quantity > 0")
}

func (s *Store) SearchProducts(ctx context.Context, query contract.SearchQuery) (contract.SearchResult, error) {
	var rows []Product
	if err := s.searchRowsQuery(query).Scan(ctx, &rows); err != nil {
		return contract.SearchResult{}, fmt.Errorf("store: search products: %w", err)
	}

	result := contract.SearchResult{
		Products: make([]contract.Product, 0, len(rows)),
		Total:    len(rows),
	}
	for _, p := range rows {
		result.Products = append(result.Products, toContractProduct(p))
	}

	if err := s.categoryCountsQuery().Scan(ctx, &result.ByCat); err != nil {
		return contract.SearchResult{}, fmt.Errorf("store: category counts: %w", err)
	}
	if err := s.priceRangeQuery().Scan(ctx, &result.Prices); err != nil {
		return contract.SearchResult{}, fmt.Errorf("store: price range: %w", err)
	}
	return result, nil
}

// Recommendations favors the customer's recently ordered categories and
// falls back to a random in-stock sample for first-time customers.
func (s *Store) Recommendations(ctx context.Context, customerID string) ([]contract.Product, error) {
	var categories []string
	err := s.db.NewSelect().
		ColumnExpr("p.category").
		TableExpr("orders AS o").
		Join("JOIN order_details AS od ON od.order_id = o.order_id").
		Join("JOIN products AS p ON p.product_id = od.product_id").
		Where("o.customer_id = ?", customerID).
		GroupExpr("p.category").
		OrderExpr("MAX(o.order_date) DESC").
		Limit(3).
		Scan(ctx, &categories)
	if err != nil {
		return nil, fmt.Errorf("store: recent categories: %w", err)
	}

	q := s.db.NewSelect().Model((*Product)(nil)).Where("quantity > 0")
	if len(categories) > 0 {
		q = q.Where("category IN (?)", bun.In(categories))
	}
	var rows []Product
	if err := q.OrderExpr("RANDOM()").Limit(recommendationLimit).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("store: recommendations: %w", err)
	}

	out := make([]contract.Product, 0, len(rows))
	for _, p := range rows {
		out = append(out, toContractProduct(p))
	}
	return out, nil
}

func toContractProduct(p Product) contract.Product {
	return contract.Product{
		ProductID:   strconv.FormatInt(p.ID, 10),
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Quantity,
	}
}
