package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// affirmations are short replies that count as accepting an open offer.
var affirmations = []string{
	"si", "sii", "siii", "ok", "okay", "dale", "claro", "perfecto",
	"bueno", "va", "ya", "obvio", "me interesa", "por supuesto",
	"esta bien", "de acuerdo", "claro que si", "si por favor",
	"si quiero", "si deseo", "muestrame", "mostrame",
}

// upsellCategories maps offer keywords found in assistant messages to
// the catalog query used to fulfill an acceptance. Order matters:
// earlier categories win when one message mentions several.
var upsellCategories = []struct {
	keywords []string
	query    string
	label    string
}{
	{[]string{"globo", "globos"}, "globos", "globos"},
	{[]string{"chocolate", "chocolates", "bombones"}, "chocolates", "chocolates"},
	{[]string{"peluche", "peluches", "oso", "osito"}, "peluche", "peluches"},
}

// offerMarkers are generic words that indicate an assistant message was
// an offer even when phrased without a category keyword nearby.
var offerMarkers = []string{"complementar", "agregar", "acompañar", "acompanar", "añadir", "anadir"}

const (
	upsellLookback = 10
	upsellMaxCards = 3
)

// UpsellOutcome is a short-circuit reply produced when the customer
// accepts a pending complement offer. The model is not consulted; the
// offered category's products are shown as cards and the customer picks
// which one to add.
type UpsellOutcome struct {
	Text     string
	Products []ProductCard
}

// UpsellDetector recognizes "si" style replies to a complement offer
// and answers with the offered category's available products.
type UpsellDetector struct {
	catalog catalog.Service
	logger  *logging.Logger
}

func NewUpsellDetector(cat catalog.Service, logger *logging.Logger) *UpsellDetector {
	if cat == nil {
		panic("conversation: catalog service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &UpsellDetector{catalog: cat, logger: logger}
}

// Detect inspects the customer message against the recent assistant
// turns. It returns nil when the message is not an acceptance of an
// open offer; the caller then proceeds with a normal model turn.
// Cart talk ("agrégalo", "al carrito") is never an acceptance: those
// messages are about a product already on screen and belong to the
// add-to-cart directive flow.
func (d *UpsellDetector) Detect(ctx context.Context, message string, conv *Conversation) *UpsellOutcome {
	text := normalizeText(message)
	if strings.Contains(text, "carrito") || strings.Contains(text, "agregar") {
		return nil
	}
	if !isAffirmation(message) {
		return nil
	}

	category, label := d.pendingOfferCategory(conv)
	if category == "" {
		return nil
	}

	results, err := d.catalog.Search(ctx, catalog.Query{Text: category, Limit: 5})
	if err != nil {
		d.logger.Warn("upsell search failed", "category", category, "error", err)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	var cards []ProductCard
	for _, prod := range results {
		if conv.Cart.Contains(prod.ID, prod.Name) {
			continue
		}
		cards = append(cards, CardFromProduct(prod))
		if len(cards) == upsellMaxCards {
			break
		}
	}

	if len(cards) == 0 {
		return &UpsellOutcome{
			Text: fmt.Sprintf("¡Ya tienes %s en tu carrito! ¿Deseas algo más o generamos el link de pago?", label),
		}
	}
	return &UpsellOutcome{
		Text:     fmt.Sprintf("¡Aquí tienes los %s disponibles!", label),
		Products: cards,
	}
}

// pendingOfferCategory scans the recent assistant turns for a question
// that offered a complement and returns its query and customer-facing
// label.
func (d *UpsellDetector) pendingOfferCategory(conv *Conversation) (string, string) {
	for _, msg := range conv.RecentAssistant(upsellLookback) {
		if !strings.Contains(msg.Content, "?") {
			continue
		}
		text := normalizeText(msg.Content)
		if !containsAny(text, offerMarkers) && !mentionsAnyCategory(text) {
			continue
		}
		for _, cat := range upsellCategories {
			if containsAny(text, cat.keywords) {
				return cat.query, cat.label
			}
		}
	}
	return "", ""
}

func mentionsAnyCategory(text string) bool {
	for _, cat := range upsellCategories {
		if containsAny(text, cat.keywords) {
			return true
		}
	}
	return false
}

func isAffirmation(message string) bool {
	text := strings.Trim(normalizeText(message), " !¡.,")
	if text == "" {
		return false
	}
	for _, a := range affirmations {
		if text == a {
			return true
		}
	}
	// Longer messages still count when they open with an acceptance,
	// e.g. "si dale, me encantan".
	if len(strings.Fields(text)) <= 6 {
		for _, a := range []string{"si ", "dale ", "claro ", "ok "} {
			if strings.HasPrefix(text, a) {
				return true
			}
		}
	}
	return false
}
