package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// explicitSearchPhrases trigger a proactive catalog lookup even when we
// know nothing else about the customer yet.
var explicitSearchPhrases = []string{
	"muestrame", "muestra me", "ensename", "quiero ver",
	"que tienes", "que tienen", "que opciones", "opciones",
	"ver productos", "recomiendame", "recomienda", "sugiereme",
	"catalogo", "que me ofreces",
}

const excerptLimit = 5

// ContextEngine decides when a customer message warrants fetching live
// catalog data, runs the search and renders the result as a prompt
// block the model can copy product tags from. It also picks one
// complementary product to suggest alongside the results.
type ContextEngine struct {
	catalog catalog.Service
	logger  *logging.Logger
}

// NewContextEngine builds the engine. The catalog is required.
func NewContextEngine(cat catalog.Service, logger *logging.Logger) *ContextEngine {
	if cat == nil {
		panic("conversation: catalog service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ContextEngine{catalog: cat, logger: logger}
}

// ShouldSearch applies the proactive search rule: search when we hold a
// preference signal together with a budget, or when the customer asks
// to see products outright.
func (e *ContextEngine) ShouldSearch(message string, pctx *PreferenceContext) bool {
	text := normalizeText(message)
	for _, phrase := range explicitSearchPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	if !pctx.HasBudget() {
		return false
	}
	return pctx.ProductType != "" || pctx.Flower != "" || pctx.Occasion != "" || pctx.Color != ""
}

// BuildQuery picks the most specific preference as the search text.
// Product type beats flower beats occasion beats color; with none of
// those the raw message is used as-is.
func (e *ContextEngine) BuildQuery(message string, pctx *PreferenceContext) catalog.Query {
	q := catalog.Query{Limit: catalog.DefaultLimit}
	switch {
	case pctx.ProductType != "":
		q.Text = pctx.ProductType
	case pctx.Flower != "":
		q.Text = pctx.Flower
	case pctx.Occasion != "":
		q.Text = pctx.Occasion
	case pctx.Color != "":
		q.Text = pctx.Color
	default:
		q.Text = strings.TrimSpace(message)
	}
	if pctx.Color != "" && q.Text != pctx.Color {
		q.Color = pctx.Color
	}
	return q
}

// budgetFilter keeps products at or under the customer ceiling. When
// nothing fits, the three cheapest candidates are offered instead so
// the reply never comes back empty handed.
func budgetFilter(products []catalog.Product, pctx *PreferenceContext) []catalog.Product {
	cap := pctx.BudgetMax
	if cap <= 0 {
		cap = defaultBudgetCap
	}
	var within []catalog.Product
	for _, p := range products {
		if p.EffectivePrice() <= cap {
			within = append(within, p)
		}
	}
	if len(within) > 0 {
		return within
	}
	if len(products) > 3 {
		return products[:3]
	}
	return products
}

// Excerpt runs the proactive search and renders the catalog block. It
// returns the block, the products it contains and the chosen upsell
// candidate. An empty block means nothing relevant was found; the
// caller then lets the model answer from conversation alone.
func (e *ContextEngine) Excerpt(ctx context.Context, message string, conv *Conversation) (string, []catalog.Product, *catalog.Product, error) {
	q := e.BuildQuery(message, &conv.Context)
	results, err := e.catalog.Search(ctx, q)
	if err != nil {
		return "", nil, nil, fmt.Errorf("conversation: catalog search failed: %w", err)
	}
	if len(results) == 0 && conv.Context.WantsDiscount {
		if results, err = e.catalog.Discounted(ctx); err != nil {
			return "", nil, nil, fmt.Errorf("conversation: discount lookup failed: %w", err)
		}
	}
	if len(results) == 0 {
		return "", nil, nil, nil
	}

	results = budgetFilter(results, &conv.Context)
	if len(results) > excerptLimit {
		results = results[:excerptLimit]
	}

	upsell := e.pickCrossSell(ctx, conv, results)

	var b strings.Builder
	b.WriteString("CATALOGO DISPONIBLE (copia estos datos exactamente):\n")
	for _, p := range results {
		b.WriteString(productTag(p))
		b.WriteByte('\n')
	}
	if upsell != nil {
		b.WriteString("COMPLEMENTO SUGERIDO (ofrecelo al final como pregunta):\n")
		b.WriteString(productTag(*upsell))
		b.WriteByte('\n')
	}
	b.WriteString("INSTRUCCIONES: presenta los productos usando exactamente los tags [PRODUCTO:...] de arriba, sin inventar precios ni productos.")
	return b.String(), results, upsell, nil
}

// productTag renders the directive form the model is asked to echo.
func productTag(p catalog.Product) string {
	return fmt.Sprintf("[PRODUCTO:%s|%s|%.2f|%s]",
		p.ID, p.Name, p.EffectivePrice(), catalog.PhotoThumbnail(p.PhotoURL, ""))
}

// pickCrossSell selects one complementary product for the current
// results. Birthdays get balloons, flowers get chocolates or a plush,
// a plush gets roses. Products already in the cart or already among
// the results are never suggested.
func (e *ContextEngine) pickCrossSell(ctx context.Context, conv *Conversation, results []catalog.Product) *catalog.Product {
	var queries []string
	switch {
	case conv.Context.Occasion == "Cumpleaños":
		queries = []string{"globos", "chocolates"}
	case conv.Context.ProductType == "peluche":
		queries = []string{"rosas"}
	case resultsAreFlowers(results):
		queries = []string{"chocolates", "peluche"}
	default:
		// Fall back to a discounted item matching the occasion, if any.
		if conv.Context.Occasion != "" {
			if p := e.discountedForOccasion(ctx, conv, results); p != nil {
				return p
			}
		}
		return nil
	}

	for _, qtext := range queries {
		// A category the customer already has in the cart is not offered
		// again; move on to the next complement.
		if conv.Cart.Contains("", qtext) {
			continue
		}
		found, err := e.catalog.Search(ctx, catalog.Query{Text: qtext, Limit: 5})
		if err != nil {
			e.logger.Warn("cross-sell lookup failed", "query", qtext, "error", err)
			continue
		}
		for _, p := range found {
			if eligibleCrossSell(p, conv, results) {
				// Birthday balloons: prefer an explicitly birthday-themed one.
				if qtext == "globos" && conv.Context.Occasion == "Cumpleaños" {
					if themed := birthdayThemed(found, conv, results); themed != nil {
						return themed
					}
				}
				pick := p
				return &pick
			}
		}
	}
	return nil
}

func (e *ContextEngine) discountedForOccasion(ctx context.Context, conv *Conversation, results []catalog.Product) *catalog.Product {
	found, err := e.catalog.Discounted(ctx)
	if err != nil {
		return nil
	}
	occ := normalizeText(conv.Context.Occasion)
	for _, p := range found {
		if !eligibleCrossSell(p, conv, results) {
			continue
		}
		haystack := normalizeText(p.Name + " " + p.Subtype + " " + p.Description)
		if strings.Contains(haystack, occ) {
			pick := p
			return &pick
		}
	}
	return nil
}

func birthdayThemed(candidates []catalog.Product, conv *Conversation, results []catalog.Product) *catalog.Product {
	for _, p := range candidates {
		if !eligibleCrossSell(p, conv, results) {
			continue
		}
		name := normalizeText(p.Name)
		if strings.Contains(name, "cumple") || strings.Contains(name, "feliz") {
			pick := p
			return &pick
		}
	}
	return nil
}

func eligibleCrossSell(p catalog.Product, conv *Conversation, results []catalog.Product) bool {
	if !p.Available() {
		return false
	}
	if conv.Cart.Contains(p.ID, "") {
		return false
	}
	for _, r := range results {
		if r.ID == p.ID {
			return false
		}
	}
	return true
}

func resultsAreFlowers(results []catalog.Product) bool {
	for _, p := range results {
		cat := normalizeText(p.Category)
		if strings.Contains(cat, "flor") || strings.Contains(cat, "ramo") || strings.Contains(cat, "rosa") {
			return true
		}
	}
	return false
}
