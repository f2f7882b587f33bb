package conversation

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) *DirectiveParser {
	t.Helper()
	return NewDirectiveParser(fixtureCatalog(), "https://rosatel.pe", nil)
}

func TestParseProductTag(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	raw := "Te encantará: [PRODUCTO:ROSA-001|Ramo de 12 Rosas Rojas|89.90|https://img/foto.jpg] ¿Qué te parece?"
	reply := p.Parse(context.Background(), raw, conv)

	assert.NotContains(t, reply.Text, "[PRODUCTO")
	assert.Contains(t, reply.Text, "**Ramo de 12 Rosas Rojas** - S/89.90")
	require.Len(t, reply.Products, 1)
	assert.Equal(t, "ROSA-001", reply.Products[0].ProductID)
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, EffectShowProduct, reply.Effects[0].Type)
}

func TestParseSearchTag(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	reply := p.Parse(context.Background(), "Déjame buscar. [BUSCAR_PRODUCTO:globos]", conv)

	assert.NotContains(t, reply.Text, "[BUSCAR_PRODUCTO")
	assert.Contains(t, reply.Text, "Globos Metalicos Surtidos")
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, EffectSearch, reply.Effects[0].Type)
	assert.Equal(t, "globos", reply.Effects[0].Query)
	assert.Equal(t, 2, reply.Effects[0].Results)
	assert.Len(t, reply.Products, 2)
}

func TestParseSearchTagNoResults(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	reply := p.Parse(context.Background(), "[BUSCAR_PRODUCTO:helados]", conv)
	assert.Contains(t, reply.Text, "No encontré productos")
	assert.Empty(t, reply.Products)
}

func TestParseAddToCartResolvesAndMerges(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Context.LastUpsellID = "CHOC-001"

	reply := p.Parse(context.Background(), "¡Listo! [AGREGAR_CARRITO:ROSA-001|Ramo de 12 Rosas Rojas|89.90] Agregado a tu carrito.", conv)

	assert.NotContains(t, reply.Text, "[AGREGAR_CARRITO")
	require.Len(t, conv.Cart.Items, 1)
	assert.Equal(t, "ROSA-001", conv.Cart.Items[0].ProductID)
	assert.Empty(t, conv.Context.LastUpsellID, "a cart addition settles the open offer")

	// Re-adding the same product merges instead of duplicating.
	p.Parse(context.Background(), "[AGREGAR_CARRITO:ROSA-001|Ramo de 12 Rosas Rojas|89.90]", conv)
	require.Len(t, conv.Cart.Items, 1)
	assert.Equal(t, 2, conv.Cart.Items[0].Quantity)
}

func TestParseAddToCartFallsBackToNameSearch(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	p.Parse(context.Background(), "[AGREGAR_CARRITO:|Oso de Peluche|69.90]", conv)
	require.Len(t, conv.Cart.Items, 1)
	assert.Equal(t, "PELU-001", conv.Cart.Items[0].ProductID)
}

func TestParseAddToCartUnresolvableStripsTag(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	reply := p.Parse(context.Background(), "[AGREGAR_CARRITO:NOPE-9|Producto Fantasma|10.00]", conv)
	assert.Empty(t, conv.Cart.Items)
	assert.NotContains(t, reply.Text, "AGREGAR_CARRITO")
}

func TestParseCheckoutMintsCode(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Cart.Add("ROSA-001", "Ramo de 12 Rosas Rojas", 89.90, 1)

	reply := p.Parse(context.Background(), "Perfecto. [CHECKOUT:CODIGO]", conv)

	require.Len(t, reply.Effects, 1)
	eff := reply.Effects[0]
	assert.Equal(t, EffectCheckout, eff.Type)
	assert.Regexp(t, regexp.MustCompile(`^RST[A-Z0-9]{8}$`), eff.Code)
	assert.Equal(t, "https://rosatel.pe/checkout/"+eff.Code, eff.URL)
	assert.Contains(t, reply.Text, "Link de pago: https://rosatel.pe/checkout/")
	require.NotNil(t, eff.Cart)
	assert.InDelta(t, 89.90, eff.Cart.Total, 0.001)
}

func TestParseCheckoutKeepsWellFormedCode(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	reply := p.Parse(context.Background(), "[CHECKOUT:RSTA1B2C3D4]", conv)
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, "RSTA1B2C3D4", reply.Effects[0].Code)
}

func TestParseCheckoutTakesAnyNonPlaceholderVerbatim(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	// Only the CODIGO placeholder triggers minting; everything else is
	// an order reference chosen upstream and must survive untouched.
	reply := p.Parse(context.Background(), "[CHECKOUT:FLOR123]", conv)
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, "FLOR123", reply.Effects[0].Code)
	assert.Equal(t, "https://rosatel.pe/checkout/FLOR123", reply.Effects[0].URL)
	assert.Contains(t, reply.Text, "Link de pago: https://rosatel.pe/checkout/FLOR123")
}

func TestParseViewCart(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Cart.Add("CHOC-001", "Caja de Chocolates Deluxe", 59.90, 2)

	reply := p.Parse(context.Background(), "Claro: [VER_CARRITO]", conv)
	assert.Contains(t, reply.Text, "Caja de Chocolates Deluxe x2")
	assert.Contains(t, reply.Text, "Total: S/119.80")
}

func TestParseGenerateCheckoutEmptyCart(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	reply := p.Parse(context.Background(), "[GENERAR_CHECKOUT]", conv)
	assert.Contains(t, reply.Text, "carrito esta vacio")
	assert.Empty(t, reply.Effects)
}

func TestParseGenerateCheckoutWithItems(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Cart.Add("GLOB-001", "Globos Feliz Cumpleanos", 39.90, 1)

	reply := p.Parse(context.Background(), "[GENERAR_CHECKOUT]", conv)
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, EffectCheckout, reply.Effects[0].Type)
	assert.Contains(t, reply.Text, "Link de pago:")
	assert.Contains(t, reply.Text, "Globos Feliz Cumpleanos")
}

func TestParseStripsMalformedTags(t *testing.T) {
	p := newTestParser(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	raw := "Mira [PRODUCTO:solo-un-campo] y también [CHECKOUT sin cierre"
	reply := p.Parse(context.Background(), raw, conv)

	assert.NotContains(t, reply.Text, "[PRODUCTO")
	assert.NotContains(t, reply.Text, "[CHECKOUT")
	assert.Empty(t, reply.Products)
}

func TestNewCheckoutCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code := NewCheckoutCode()
		assert.True(t, ValidCheckoutCode(code), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes should not repeat constantly")
}
