package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// BubbleSeparator splits a model reply into separately delivered chat
// bubbles.
const BubbleSeparator = "|NUEVA_BURBUJA|"

// checkoutPlaceholder is the literal a model emits when it wants the
// platform to mint the order code. Any other code is taken verbatim.
const checkoutPlaceholder = "CODIGO"

var (
	productTagRe      = regexp.MustCompile(`\[PRODUCTO:([^|\]]+)\|([^|\]]+)\|([^|\]]+)(?:\|([^\]]*))?\]`)
	searchTagRe       = regexp.MustCompile(`\[BUSCAR_PRODUCTO:([^\]]+)\]`)
	addCartTagRe      = regexp.MustCompile(`\[AGREGAR_CARRITO:([^|\]]*)\|([^|\]]+)\|([^\]]+)\]`)
	checkoutTagRe     = regexp.MustCompile(`\[CHECKOUT:([^\]]+)\]`)
	viewCartTagRe     = regexp.MustCompile(`\[VER_CARRITO\]`)
	genCheckoutTagRe  = regexp.MustCompile(`\[GENERAR_CHECKOUT\]`)
	leftoverTagRe     = regexp.MustCompile(`\[(?:PRODUCTO|BUSCAR_PRODUCTO|AGREGAR_CARRITO|CHECKOUT|VER_CARRITO|GENERAR_CHECKOUT)[^\]]*\]?`)
	checkoutCodeShape = regexp.MustCompile(`^RST[A-Z0-9]{8}$`)
)

// ParsedReply is the outcome of running a raw model reply through the
// directive parser: customer-safe text plus the structured side effects
// the directives requested.
type ParsedReply struct {
	Text     string
	Products []ProductCard
	Effects  []Effect
}

// DirectiveParser interprets the action tags a model reply may carry
// and applies them to the session. Malformed tags are stripped without
// surfacing errors to the customer.
type DirectiveParser struct {
	catalog         catalog.Service
	checkoutBaseURL string
	logger          *logging.Logger
	newCode         func() string
}

// NewDirectiveParser builds a parser. checkoutBaseURL is the public
// storefront origin the payment links point at.
func NewDirectiveParser(cat catalog.Service, checkoutBaseURL string, logger *logging.Logger) *DirectiveParser {
	if cat == nil {
		panic("conversation: catalog service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DirectiveParser{
		catalog:         cat,
		checkoutBaseURL: strings.TrimRight(checkoutBaseURL, "/"),
		logger:          logger,
		newCode:         NewCheckoutCode,
	}
}

// NewCheckoutCode mints an order reference: RST plus eight uppercase
// alphanumerics.
func NewCheckoutCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "RST" + raw[:8]
}

// ValidCheckoutCode reports whether a code has the minted shape.
func ValidCheckoutCode(code string) bool {
	return checkoutCodeShape.MatchString(code)
}

// Parse applies every directive in raw to the conversation, in a fixed
// order: product cards, then search, then cart mutations, then
// checkout. The returned text has all tags replaced or removed.
func (p *DirectiveParser) Parse(ctx context.Context, raw string, conv *Conversation) ParsedReply {
	reply := ParsedReply{Text: raw}

	p.applyProductTags(&reply)
	p.applySearchTag(ctx, &reply)
	p.applyAddToCart(ctx, &reply, conv)
	p.applyViewCart(&reply, conv)
	p.applyCheckout(&reply, conv)
	p.applyGenerateCheckout(&reply, conv)

	// Anything still shaped like a directive did not parse; drop it so
	// the customer never sees raw tags.
	reply.Text = leftoverTagRe.ReplaceAllString(reply.Text, "")
	reply.Text = strings.TrimSpace(reply.Text)
	return reply
}

func (p *DirectiveParser) applyProductTags(reply *ParsedReply) {
	reply.Text = productTagRe.ReplaceAllStringFunc(reply.Text, func(tag string) string {
		m := productTagRe.FindStringSubmatch(tag)
		id := strings.TrimSpace(m[1])
		name := strings.TrimSpace(m[2])
		price := parseTagPrice(m[3])
		image := ""
		if len(m) > 4 {
			image = strings.TrimSpace(m[4])
		}
		if name == "" {
			return ""
		}
		reply.Products = append(reply.Products, ProductCard{
			ProductID:  id,
			Name:       name,
			PriceLabel: catalog.FormatPrice(price),
			Price:      price,
			ImageURL:   catalog.PhotoThumbnail(image, ""),
		})
		reply.Effects = append(reply.Effects, Effect{
			Type:        EffectShowProduct,
			ProductID:   id,
			ProductName: name,
			Price:       price,
		})
		return fmt.Sprintf("\n**%s** - %s", name, catalog.FormatPrice(price))
	})
}

// applySearchTag resolves at most one inline search per reply. Extra
// occurrences are stripped by the leftover pass.
func (p *DirectiveParser) applySearchTag(ctx context.Context, reply *ParsedReply) {
	m := searchTagRe.FindStringSubmatchIndex(reply.Text)
	if m == nil {
		return
	}
	query := strings.TrimSpace(reply.Text[m[2]:m[3]])
	replacement := ""
	results, err := p.catalog.Search(ctx, catalog.Query{Text: query, Limit: 3})
	if err != nil {
		p.logger.Warn("inline search failed", "query", query, "error", err)
		results = nil
	}
	if len(results) == 0 {
		replacement = fmt.Sprintf("No encontré productos disponibles para %q en este momento.", query)
	} else {
		var b strings.Builder
		for _, prod := range results {
			fmt.Fprintf(&b, "\n**%s** - %s", prod.Name, prod.PriceLabel())
			reply.Products = append(reply.Products, CardFromProduct(prod))
		}
		replacement = b.String()
	}
	reply.Effects = append(reply.Effects, Effect{
		Type:    EffectSearch,
		Query:   query,
		Results: len(results),
	})
	reply.Text = reply.Text[:m[0]] + replacement + reply.Text[m[1]:]
}

// applyAddToCart handles one cart addition per reply. The tag is
// removed even when the product cannot be resolved.
func (p *DirectiveParser) applyAddToCart(ctx context.Context, reply *ParsedReply, conv *Conversation) {
	m := addCartTagRe.FindStringSubmatchIndex(reply.Text)
	if m == nil {
		return
	}
	id := strings.TrimSpace(substr(reply.Text, m[2], m[3]))
	name := strings.TrimSpace(substr(reply.Text, m[4], m[5]))
	reply.Text = reply.Text[:m[0]] + reply.Text[m[1]:]

	prod := p.resolveProduct(ctx, id, name)
	if prod == nil {
		p.logger.Warn("add-to-cart could not resolve product", "id", id, "name", name)
		return
	}
	conv.Cart.Add(prod.ID, prod.Name, prod.EffectivePrice(), 1)
	// A fresh addition settles any open upsell offer.
	conv.Context.LastUpsellID = ""
	conv.Context.PendingUpsell = nil
	snap := conv.Cart.Snapshot()
	reply.Effects = append(reply.Effects, Effect{
		Type:        EffectAddToCart,
		ProductID:   prod.ID,
		ProductName: prod.Name,
		Price:       prod.EffectivePrice(),
		Cart:        &snap,
	})
}

func (p *DirectiveParser) resolveProduct(ctx context.Context, id, name string) *catalog.Product {
	if id != "" {
		if prod, err := p.catalog.GetByID(ctx, id); err == nil && prod != nil {
			return prod
		}
	}
	if name == "" {
		return nil
	}
	results, err := p.catalog.Search(ctx, catalog.Query{Text: name, Limit: 1})
	if err != nil || len(results) == 0 {
		return nil
	}
	return &results[0]
}

func (p *DirectiveParser) applyViewCart(reply *ParsedReply, conv *Conversation) {
	if !viewCartTagRe.MatchString(reply.Text) {
		return
	}
	snap := conv.Cart.Snapshot()
	reply.Text = viewCartTagRe.ReplaceAllString(reply.Text, "\n"+conv.Cart.ChatSummary())
	reply.Effects = append(reply.Effects, Effect{Type: EffectViewCart, Cart: &snap})
}

func (p *DirectiveParser) applyCheckout(reply *ParsedReply, conv *Conversation) {
	m := checkoutTagRe.FindStringSubmatchIndex(reply.Text)
	if m == nil {
		return
	}
	code := strings.TrimSpace(substr(reply.Text, m[2], m[3]))
	if code == "" || strings.EqualFold(code, checkoutPlaceholder) {
		code = p.newCode()
	}
	url := p.checkoutURL(code)
	replacement := fmt.Sprintf("\n\nLink de pago: %s", url)
	reply.Text = reply.Text[:m[0]] + replacement + reply.Text[m[1]:]
	snap := conv.Cart.Snapshot()
	reply.Effects = append(reply.Effects, Effect{
		Type: EffectCheckout,
		Code: code,
		URL:  url,
		Cart: &snap,
	})
}

func (p *DirectiveParser) applyGenerateCheckout(reply *ParsedReply, conv *Conversation) {
	if !genCheckoutTagRe.MatchString(reply.Text) {
		return
	}
	if len(conv.Cart.Items) == 0 {
		reply.Text = genCheckoutTagRe.ReplaceAllString(reply.Text,
			"\nTu carrito esta vacio, agrega un producto antes de finalizar la compra.")
		return
	}
	code := p.newCode()
	url := p.checkoutURL(code)
	snap := conv.Cart.Snapshot()
	replacement := fmt.Sprintf("\n%s\n\nLink de pago: %s", conv.Cart.ChatSummary(), url)
	reply.Text = genCheckoutTagRe.ReplaceAllString(reply.Text, replacement)
	reply.Effects = append(reply.Effects, Effect{
		Type: EffectCheckout,
		Code: code,
		URL:  url,
		Cart: &snap,
	})
}

func (p *DirectiveParser) checkoutURL(code string) string {
	return fmt.Sprintf("%s/checkout/%s", p.checkoutBaseURL, code)
}

// parseTagPrice accepts "89.90", "S/89.90" and "S/ 89.90".
func parseTagPrice(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "S/")
	s = strings.TrimPrefix(s, "s/")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func substr(s string, lo, hi int) string {
	if lo < 0 || hi < 0 {
		return ""
	}
	return s[lo:hi]
}
