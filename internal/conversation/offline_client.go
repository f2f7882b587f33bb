package conversation

import (
	"strings"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
)

// OfflineResponder produces deterministic, directive-bearing replies
// when no model provider is configured or every provider failed. The
// output goes through the same directive parser as a real model reply,
// so the customer still gets product cards, cart updates and payment
// links while degraded.
type OfflineResponder struct{}

func NewOfflineResponder() *OfflineResponder {
	return &OfflineResponder{}
}

var (
	greetingWords = []string{"hola", "buenas", "buenos dias", "buenas tardes", "buenas noches", "hey", "alo"}
	cartWords     = []string{"carrito", "mi pedido", "que llevo"}
	checkoutWords = []string{"pagar", "finaliza", "finalizar", "checkout", "link de pago", "comprar ya", "terminar"}
	storeWords    = []string{"tienda", "tiendas", "horario", "direccion", "donde estan", "local"}
)

// Respond renders a reply for one turn. products and upsell come from
// the proactive search that already ran for this message; they may be
// empty.
func (r *OfflineResponder) Respond(conv *Conversation, message string, products []catalog.Product, upsell *catalog.Product) string {
	text := normalizeText(message)

	switch {
	case containsAny(text, cartWords):
		return "Claro, aquí está tu pedido:\n[VER_CARRITO]"
	case containsAny(text, checkoutWords):
		return "¡Perfecto! Genero tu link de pago:\n[GENERAR_CHECKOUT]"
	case containsAny(text, storeWords):
		return storeReply()
	}

	if len(products) > 0 {
		return productReply(products, upsell)
	}

	if containsAny(text, greetingWords) && len(strings.Fields(text)) <= 4 {
		return WelcomeMessage
	}

	return "¡Con gusto te ayudo a encontrar el regalo perfecto! 🌹" + BubbleSeparator +
		"Cuéntame, ¿para qué ocasión es y cuánto te gustaría invertir?"
}

func productReply(products []catalog.Product, upsell *catalog.Product) string {
	var b strings.Builder
	b.WriteString("Encontré estas opciones para ti:")
	b.WriteString(BubbleSeparator)
	for _, p := range products {
		b.WriteString(productTag(p))
		b.WriteByte('\n')
	}
	b.WriteString(BubbleSeparator)
	if upsell != nil {
		b.WriteString("¿Te gustaría complementar tu regalo con ")
		b.WriteString(upsell.Name)
		b.WriteString(" por ")
		b.WriteString(upsell.PriceLabel())
		b.WriteString("?")
	} else {
		b.WriteString("¿Cuál te gusta más? Puedo agregarlo a tu carrito.")
	}
	return b.String()
}

func storeReply() string {
	return "Tenemos tres tiendas en Lima: Rosatel La Fontana (La Molina), Rosatel Surco y Rosatel Surco Centro." +
		BubbleSeparator +
		"¿Quieres que tu pedido sea para recojo en tienda o delivery?"
}
