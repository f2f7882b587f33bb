package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
)

// Channel identifies where a conversation originates.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
	ChannelWidget    Channel = "widget"
)

// Valid reports whether the channel is one the platform can deliver to.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelInstagram, ChannelWidget:
		return true
	}
	return false
}

// Message is a single utterance in a session. Role follows the model
// wire convention: "user" or "assistant".
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CartItem is one product line in a session cart. Subtotal is always
// Quantity times UnitPrice and is recomputed on every mutation.
type CartItem struct {
	ProductID   string  `json:"producto_id"`
	ProductName string  `json:"nombre"`
	Quantity    int     `json:"cantidad"`
	UnitPrice   float64 `json:"precio_unitario"`
	Subtotal    float64 `json:"subtotal"`
}

// Cart accumulates products a customer has accepted during a session.
// It holds at most one line per product id.
type Cart struct {
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Add merges a product into the cart. Re-adding an existing product id
// increments its quantity instead of creating a duplicate line.
func (c *Cart) Add(productID, name string, unitPrice float64, qty int) {
	if qty <= 0 {
		qty = 1
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			c.Items[i].Subtotal = float64(c.Items[i].Quantity) * c.Items[i].UnitPrice
			c.UpdatedAt = time.Now().UTC()
			return
		}
	}
	c.Items = append(c.Items, CartItem{
		ProductID:   productID,
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		Subtotal:    float64(qty) * unitPrice,
	})
	c.UpdatedAt = time.Now().UTC()
}

// Remove drops the line for productID. It reports whether a line was
// removed.
func (c *Cart) Remove(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
	c.UpdatedAt = time.Now().UTC()
}

// Total is the sum of all line subtotals.
func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Subtotal
	}
	return total
}

// Units is the number of physical units across all lines.
func (c *Cart) Units() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Contains reports whether the cart already carries the product, either
// by exact id or by case-insensitive name substring. The name check
// catches the "chocolates ya los tienes" case where the model proposes
// a near-duplicate under a different id.
func (c *Cart) Contains(productID, name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, it := range c.Items {
		if productID != "" && it.ProductID == productID {
			return true
		}
		if needle != "" && strings.Contains(strings.ToLower(it.ProductName), needle) {
			return true
		}
	}
	return false
}

// ChatSummary renders the cart as a customer-facing text block.
func (c *Cart) ChatSummary() string {
	if len(c.Items) == 0 {
		return "Tu carrito esta vacio. Te muestro algunas opciones si me cuentas que buscas."
	}
	var b strings.Builder
	b.WriteString("Tu carrito:\n")
	for _, it := range c.Items {
		fmt.Fprintf(&b, "- %s x%d: %s\n", it.ProductName, it.Quantity, catalog.FormatPrice(it.Subtotal))
	}
	fmt.Fprintf(&b, "Total: %s", catalog.FormatPrice(c.Total()))
	return b.String()
}

// Snapshot freezes the cart for transport in results and effects.
func (c *Cart) Snapshot() CartSnapshot {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return CartSnapshot{
		Items: items,
		Total: c.Total(),
		Units: c.Units(),
	}
}

// CartSnapshot is an immutable copy of a cart at a point in time.
type CartSnapshot struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
	Units int        `json:"units"`
}

// PreferenceContext carries everything the extractor has learned about
// the customer during the session. Zero values mean "not yet known".
type PreferenceContext struct {
	Occasion      string  `json:"ocasion,omitempty"`
	BudgetMin     float64 `json:"presupuesto_min,omitempty"`
	BudgetMax     float64 `json:"presupuesto_max,omitempty"`
	Color         string  `json:"color_preferido,omitempty"`
	Flower        string  `json:"flor_preferida,omitempty"`
	ProductType   string  `json:"tipo_producto,omitempty"`
	WantsCheap    bool    `json:"busca_economico,omitempty"`
	WantsDiscount bool    `json:"busca_descuento,omitempty"`
	WantsPremium  bool    `json:"busca_premium,omitempty"`

	// PendingUpsell is the complementary product last offered alongside
	// search results; LastUpsellID survives until the customer either
	// accepts it or adds something else to the cart.
	PendingUpsell *ProductCard `json:"upsell_pendiente,omitempty"`
	LastUpsellID  string       `json:"ultimo_upsell_id,omitempty"`
}

// HasBudget reports whether any spending bound is known.
func (p *PreferenceContext) HasBudget() bool {
	return p.BudgetMin > 0 || p.BudgetMax > 0
}

// Summary renders the known preferences for prompt injection. Empty
// when nothing has been learned yet.
func (p *PreferenceContext) Summary() string {
	var parts []string
	if p.Occasion != "" {
		parts = append(parts, "Ocasion: "+p.Occasion)
	}
	if p.BudgetMax > 0 {
		if p.BudgetMin > 0 {
			parts = append(parts, fmt.Sprintf("Presupuesto: S/%.0f a S/%.0f", p.BudgetMin, p.BudgetMax))
		} else {
			parts = append(parts, fmt.Sprintf("Presupuesto maximo: S/%.0f", p.BudgetMax))
		}
	} else if p.BudgetMin > 0 {
		parts = append(parts, fmt.Sprintf("Presupuesto desde: S/%.0f", p.BudgetMin))
	}
	if p.Color != "" {
		parts = append(parts, "Color preferido: "+p.Color)
	}
	if p.Flower != "" {
		parts = append(parts, "Flor preferida: "+p.Flower)
	}
	if p.ProductType != "" {
		parts = append(parts, "Tipo de producto: "+p.ProductType)
	}
	if p.WantsCheap {
		parts = append(parts, "Busca opciones economicas")
	}
	if p.WantsDiscount {
		parts = append(parts, "Pregunta por descuentos")
	}
	if p.WantsPremium {
		parts = append(parts, "Busca algo premium")
	}
	if len(parts) == 0 {
		return ""
	}
	return "LO QUE SE DEL CLIENTE:\n- " + strings.Join(parts, "\n- ")
}

// Conversation is the full per-session state: history, cart and learned
// preferences. It is persisted as a single JSON document.
type Conversation struct {
	SessionID string            `json:"session_id"`
	Channel   Channel           `json:"channel"`
	UserID    string            `json:"user_id,omitempty"`
	Messages  []Message         `json:"messages"`
	Cart      Cart              `json:"cart"`
	Context   PreferenceContext `json:"context"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewConversation builds an empty session.
func NewConversation(sessionID string, channel Channel, userID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		SessionID: sessionID,
		Channel:   channel,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records an utterance and bumps the session clock.
func (c *Conversation) Append(role, content string) {
	now := time.Now().UTC()
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: now})
	c.UpdatedAt = now
}

// Recent returns up to n of the latest messages, oldest first.
func (c *Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// RecentAssistant returns up to n of the latest assistant messages,
// newest first.
func (c *Conversation) RecentAssistant(n int) []Message {
	var out []Message
	for i := len(c.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if c.Messages[i].Role == "assistant" {
			out = append(out, c.Messages[i])
		}
	}
	return out
}

// ProductCard is a product rendered for display in a channel: the image
// plus caption a channel adapter turns into a WhatsApp media message,
// an Instagram card or a widget tile.
type ProductCard struct {
	ProductID  string  `json:"producto_id"`
	Name       string  `json:"nombre"`
	PriceLabel string  `json:"precio"`
	Price      float64 `json:"precio_valor"`
	ImageURL   string  `json:"imagen,omitempty"`
	Category   string  `json:"categoria,omitempty"`
	IsUpsell   bool    `json:"es_upsell,omitempty"`
}

// CardFromProduct converts a catalog product into its display form.
func CardFromProduct(p catalog.Product) ProductCard {
	return ProductCard{
		ProductID:  p.ID,
		Name:       p.Name,
		PriceLabel: p.PriceLabel(),
		Price:      p.EffectivePrice(),
		ImageURL:   catalog.PhotoThumbnail(p.PhotoURL, ""),
		Category:   p.Category,
	}
}

// EffectType enumerates the side effects a turn can request.
type EffectType string

const (
	EffectShowProduct EffectType = "show_product"
	EffectSearch      EffectType = "search"
	EffectAddToCart   EffectType = "add_to_cart"
	EffectViewCart    EffectType = "view_cart"
	EffectCheckout    EffectType = "checkout"
)

// Effect is a structured side effect extracted from a model reply.
type Effect struct {
	Type        EffectType    `json:"type"`
	ProductID   string        `json:"producto_id,omitempty"`
	ProductName string        `json:"nombre,omitempty"`
	Price       float64       `json:"precio,omitempty"`
	Query       string        `json:"query,omitempty"`
	Results     int           `json:"resultados,omitempty"`
	Code        string        `json:"codigo,omitempty"`
	URL         string        `json:"url,omitempty"`
	Cart        *CartSnapshot `json:"carrito,omitempty"`
}

// TurnRequest is one inbound customer message bound to a session.
type TurnRequest struct {
	SessionID string  `json:"session_id"`
	Channel   Channel `json:"channel"`
	UserID    string  `json:"user_id,omitempty"`
	Message   string  `json:"message"`
}

// Validate rejects requests the engine cannot process.
func (r TurnRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("conversation: session_id is required")
	}
	if !r.Channel.Valid() {
		return fmt.Errorf("conversation: unknown channel %q", r.Channel)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("conversation: message cannot be empty")
	}
	return nil
}

// TurnResult is everything a channel needs to answer the customer.
type TurnResult struct {
	SessionID string        `json:"session_id"`
	Channel   Channel       `json:"channel"`
	Bubbles   []string      `json:"bubbles"`
	Products  []ProductCard `json:"products,omitempty"`
	Effects   []Effect      `json:"effects,omitempty"`
	Cart      CartSnapshot  `json:"cart"`
}
