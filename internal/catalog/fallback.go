package catalog

import (
	"context"
	"log/slog"
)

// FallbackCatalog chains the analytical backend, the tool gateway, and the
// built-in offline catalog. Every operation tries the backends in order
// and only surfaces the offline data when all configured backends fail,
// so a turn never sees an empty catalog because of infrastructure.
type FallbackCatalog struct {
	primary   Service
	secondary Service
	offline   *MemoryCatalog
	logger    *slog.Logger
}

// NewFallbackCatalog builds the chain. Either backend may be nil; the
// offline catalog is always present.
func NewFallbackCatalog(primary, secondary Service, logger *slog.Logger) *FallbackCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackCatalog{
		primary:   primary,
		secondary: secondary,
		offline:   NewMemoryCatalog(demoProducts()),
		logger:    logger,
	}
}

func (f *FallbackCatalog) backends() []Service {
	backends := make([]Service, 0, 3)
	if f.primary != nil {
		backends = append(backends, f.primary)
	}
	if f.secondary != nil {
		backends = append(backends, f.secondary)
	}
	backends = append(backends, f.offline)
	return backends
}

// Search tries each backend until one answers.
func (f *FallbackCatalog) Search(ctx context.Context, q Query) ([]Product, error) {
	var lastErr error
	for _, backend := range f.backends() {
		products, err := backend.Search(ctx, q)
		if err == nil {
			return products, nil
		}
		lastErr = err
		f.logger.Warn("catalog backend search failed, trying next", "error", err)
	}
	return nil, lastErr
}

// GetByID tries each backend until one answers.
func (f *FallbackCatalog) GetByID(ctx context.Context, id string) (*Product, error) {
	var lastErr error
	for _, backend := range f.backends() {
		p, err := backend.GetByID(ctx, id)
		if err == nil {
			return p, nil
		}
		lastErr = err
		f.logger.Warn("catalog backend lookup failed, trying next", "error", err, "product_id", id)
	}
	return nil, lastErr
}

// ListCategories tries each backend until one answers.
func (f *FallbackCatalog) ListCategories(ctx context.Context) ([]string, error) {
	var lastErr error
	for _, backend := range f.backends() {
		categories, err := backend.ListCategories(ctx)
		if err == nil {
			return categories, nil
		}
		lastErr = err
		f.logger.Warn("catalog backend categories failed, trying next", "error", err)
	}
	return nil, lastErr
}

// Discounted tries each backend until one answers.
func (f *FallbackCatalog) Discounted(ctx context.Context) ([]Product, error) {
	var lastErr error
	for _, backend := range f.backends() {
		products, err := backend.Discounted(ctx)
		if err == nil {
			return products, nil
		}
		lastErr = err
		f.logger.Warn("catalog backend discounted failed, trying next", "error", err)
	}
	return nil, lastErr
}

// Cheapest tries each backend until one answers.
func (f *FallbackCatalog) Cheapest(ctx context.Context, n int) ([]Product, error) {
	var lastErr error
	for _, backend := range f.backends() {
		products, err := backend.Cheapest(ctx, n)
		if err == nil {
			return products, nil
		}
		lastErr = err
		f.logger.Warn("catalog backend cheapest failed, trying next", "error", err)
	}
	return nil, lastErr
}

// MemoryCatalog serves a fixed product list. It backs the offline
// fallback and unit tests.
type MemoryCatalog struct {
	products []Product
}

// NewMemoryCatalog copies the given products into an in-memory catalog.
func NewMemoryCatalog(products []Product) *MemoryCatalog {
	copied := make([]Product, len(products))
	copy(copied, products)
	return &MemoryCatalog{products: copied}
}

// Search filters and sorts the fixed list.
func (m *MemoryCatalog) Search(_ context.Context, q Query) ([]Product, error) {
	var results []Product
	for _, p := range m.products {
		if matchesQuery(p, q) {
			results = append(results, p)
		}
	}
	sortByPrice(results)
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetByID returns the product with the given id, nil when absent.
func (m *MemoryCatalog) GetByID(_ context.Context, id string) (*Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

// ListCategories returns the distinct categories in listing order.
func (m *MemoryCatalog) ListCategories(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var categories []string
	for _, p := range m.products {
		if !p.Available() {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories, nil
}

// Discounted returns discounted products, best discount first.
func (m *MemoryCatalog) Discounted(_ context.Context) ([]Product, error) {
	var results []Product
	for _, p := range m.products {
		if p.Available() && p.DiscountPct > 0 {
			results = append(results, p)
		}
	}
	// Highest discount first, cheapest breaking ties.
	sortByPrice(results)
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].DiscountPct > results[i].DiscountPct {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	return results, nil
}

// Cheapest returns the n lowest-priced sellable products.
func (m *MemoryCatalog) Cheapest(_ context.Context, n int) ([]Product, error) {
	if n <= 0 {
		n = 3
	}
	var results []Product
	for _, p := range m.products {
		if p.Available() {
			results = append(results, p)
		}
	}
	sortByPrice(results)
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// demoProducts is the fixed offline catalog, mirroring the production
// seed data so demo conversations look like real ones.
func demoProducts() []Product {
	return []Product{
		{
			ID: "ROSA-001", Category: "Flores", Subtype: "Ramo",
			Name:     "Ramo de 12 Rosas Rojas",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo1",
			Color:    "Rojo", Price: 89.00, Stock: 50, DiscountPct: 10, FinalPrice: 80.10,
			Description: "Hermoso ramo de 12 rosas rojas ecuatorianas, envueltas en papel kraft elegante.",
		},
		{
			ID: "ROSA-002", Category: "Flores", Subtype: "Sombrerera",
			Name:     "Sombrerera de Rosas Rosadas",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo2",
			Color:    "Rosa", Price: 149.00, Stock: 30, DiscountPct: 0, FinalPrice: 149.00,
			Description: "Elegante sombrerera con 24 rosas rosadas premium en caja de lujo.",
		},
		{
			ID: "COMBO-001", Category: "Combos", Subtype: "Combo Romántico",
			Name:     "Combo Amor Eterno",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo3",
			Color:    "Rojo", Price: 199.00, Stock: 20, DiscountPct: 15, FinalPrice: 169.15,
			Description: "Ramo de 12 rosas + Oso de peluche + Caja de chocolates Ferrero.",
		},
		{
			ID: "GIRA-001", Category: "Flores", Subtype: "Ramo",
			Name:     "Ramo de Girasoles Alegres",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo4",
			Color:    "Amarillo", Price: 79.00, Stock: 40, DiscountPct: 0, FinalPrice: 79.00,
			Description: "Radiante ramo de 8 girasoles frescos, perfectos para alegrar cualquier día.",
		},
		{
			ID: "PELUCH-001", Category: "Peluches", Subtype: "Oso",
			Name:     "Oso de Peluche Grande",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo5",
			Color:    "Beige", Price: 59.00, Stock: 100, DiscountPct: 0, FinalPrice: 59.00,
			Description: "Tierno oso de peluche de 40cm, súper suave y abrazable.",
		},
		{
			ID: "CHOCO-001", Category: "Chocolates", Subtype: "Caja",
			Name:     "Caja de Chocolates Premium",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo6",
			Color:    "Variado", Price: 89.00, Stock: 60, DiscountPct: 5, FinalPrice: 84.55,
			Description: "Exquisita selección de 24 chocolates finos en elegante caja.",
		},
		{
			ID: "TULIP-001", Category: "Flores", Subtype: "Ramo",
			Name:     "Ramo de Tulipanes Holandeses",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo7",
			Color:    "Multicolor", Price: 129.00, Stock: 25, DiscountPct: 0, FinalPrice: 129.00,
			Description: "Elegante ramo de 15 tulipanes importados en colores surtidos.",
		},
		{
			ID: "ORQUI-001", Category: "Flores", Subtype: "Arreglo",
			Name:     "Orquídea Phalaenopsis",
			PhotoURL: "https://drive.google.com/uc?export=view&id=demo8",
			Color:    "Blanco", Price: 169.00, Stock: 15, DiscountPct: 0, FinalPrice: 169.00,
			Description: "Hermosa orquídea blanca en maceta decorativa, dura semanas.",
		},
	}
}
