package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbQuerier is the subset of pgxpool.Pool the store uses.
type dbQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCatalog serves the catalog from the analytical products table.
type PostgresCatalog struct {
	db dbQuerier
}

// NewPostgresCatalog initializes a catalog backed by pgxpool.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresCatalog{db: pool}
}

func newPostgresCatalogWithQuerier(db dbQuerier) *PostgresCatalog {
	if db == nil {
		panic("catalog: querier required")
	}
	return &PostgresCatalog{db: db}
}

const productColumns = `id, category, subtype, name, photo_url, color, price, stock, discount_pct, final_price, description`

// Search runs a filtered product query ordered by final price ascending.
// Only in-stock rows are searchable.
func (c *PostgresCatalog) Search(ctx context.Context, q Query) ([]Product, error) {
	conditions := []string{"stock > 0"}
	args := []any{}

	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Text != "" {
		ph := addArg("%" + strings.ToLower(q.Text) + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE %[1]s OR LOWER(category) LIKE %[1]s OR LOWER(subtype) LIKE %[1]s OR LOWER(color) LIKE %[1]s OR LOWER(description) LIKE %[1]s)", ph))
	}
	if q.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(category) = LOWER(%s)", addArg(q.Category)))
	}
	if q.Subtype != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(subtype) = LOWER(%s)", addArg(q.Subtype)))
	}
	if q.Color != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(color) LIKE %s", addArg("%"+strings.ToLower(q.Color)+"%")))
	}
	if q.PriceMin > 0 {
		conditions = append(conditions, fmt.Sprintf("final_price >= %s", addArg(q.PriceMin)))
	}
	if q.PriceMax > 0 {
		conditions = append(conditions, fmt.Sprintf("final_price <= %s", addArg(q.PriceMax)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	sql := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY final_price ASC LIMIT %s`,
		productColumns, strings.Join(conditions, " AND "), addArg(limit))

	rows, err := c.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: search query: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GetByID fetches one product regardless of stock. Returns nil when absent.
func (c *PostgresCatalog) GetByID(ctx context.Context, id string) (*Product, error) {
	sql := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 LIMIT 1`, productColumns)
	row := c.db.QueryRow(ctx, sql, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: get product %s: %w", id, err)
	}
	return p, nil
}

// ListCategories returns distinct categories with sellable stock.
func (c *PostgresCatalog) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := c.db.Query(ctx, `SELECT DISTINCT category FROM products WHERE stock > 0 ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, fmt.Errorf("catalog: scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate categories: %w", err)
	}
	return categories, nil
}

// Discounted returns in-stock products with a discount, best discount first.
func (c *PostgresCatalog) Discounted(ctx context.Context) ([]Product, error) {
	sql := fmt.Sprintf(`SELECT %s FROM products WHERE stock > 0 AND discount_pct > 0 ORDER BY discount_pct DESC, final_price ASC`, productColumns)
	rows, err := c.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("catalog: discounted query: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Cheapest returns the n lowest-priced in-stock products.
func (c *PostgresCatalog) Cheapest(ctx context.Context, n int) ([]Product, error) {
	if n <= 0 {
		n = 3
	}
	sql := fmt.Sprintf(`SELECT %s FROM products WHERE stock > 0 ORDER BY final_price ASC LIMIT $1`, productColumns)
	rows, err := c.db.Query(ctx, sql, n)
	if err != nil {
		return nil, fmt.Errorf("catalog: cheapest query: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p           Product
		photoURL    *string
		color       *string
		description *string
	)
	if err := row.Scan(
		&p.ID,
		&p.Category,
		&p.Subtype,
		&p.Name,
		&photoURL,
		&color,
		&p.Price,
		&p.Stock,
		&p.DiscountPct,
		&p.FinalPrice,
		&description,
	); err != nil {
		return nil, err
	}
	if photoURL != nil {
		p.PhotoURL = NormalizePhotoURL(*photoURL)
	}
	if color != nil {
		p.Color = *color
	}
	if description != nil {
		p.Description = *description
	}
	return &p, nil
}
