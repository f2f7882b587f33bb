package catalog

import (
	"context"
	"sort"
	"strings"
)

// Query describes a product search. Zero-valued fields are ignored.
type Query struct {
	Text     string
	Category string
	Subtype  string
	Color    string
	PriceMin float64
	PriceMax float64
	Limit    int
}

// DefaultLimit caps searches that do not specify their own limit.
const DefaultLimit = 10

// Service is the uniform interface over the catalog backends. Results of
// Search and Cheapest are sorted ascending by effective price.
type Service interface {
	Search(ctx context.Context, q Query) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	Discounted(ctx context.Context) ([]Product, error)
	Cheapest(ctx context.Context, n int) ([]Product, error)
}

// sortByPrice orders products ascending by effective price in place and
// returns the slice for chaining. Ties keep their existing order so
// repeated calls stay deterministic.
func sortByPrice(products []Product) []Product {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].EffectivePrice() < products[j].EffectivePrice()
	})
	return products
}

// matchesQuery applies Query filters to a single product. Used by the
// in-memory backend and by backends that post-filter gateway results.
func matchesQuery(p Product, q Query) bool {
	if !p.Available() {
		return false
	}
	if q.Text != "" {
		searchable := strings.ToLower(strings.Join([]string{p.Name, p.Category, p.Subtype, p.Color, p.Description}, " "))
		if !strings.Contains(searchable, strings.ToLower(q.Text)) {
			return false
		}
	}
	if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
		return false
	}
	if q.Subtype != "" && !strings.EqualFold(p.Subtype, q.Subtype) {
		return false
	}
	if q.Color != "" && !strings.Contains(strings.ToLower(p.Color), strings.ToLower(q.Color)) {
		return false
	}
	if q.PriceMin > 0 && p.EffectivePrice() < q.PriceMin {
		return false
	}
	if q.PriceMax > 0 && p.EffectivePrice() > q.PriceMax {
		return false
	}
	return true
}
