package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
)

// fixtureCatalog is the in-memory catalog shared by the package tests.
func fixtureCatalog() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog([]catalog.Product{
		{ID: "GLOB-002", Category: "globos", Name: "Globos Metalicos Surtidos", Price: 29.90, Stock: 25},
		{ID: "GLOB-001", Category: "globos", Name: "Globos Feliz Cumpleanos", Price: 39.90, Stock: 30},
		{ID: "CHOC-001", Category: "chocolates", Name: "Caja de Chocolates Deluxe", Price: 59.90, Stock: 15},
		{ID: "PELU-001", Category: "peluches", Name: "Oso de Peluche Grande", Price: 69.90, Stock: 8},
		{ID: "VINO-001", Category: "vino", Name: "Vino Tinto Reserva", Price: 75.00, Stock: 12},
		{ID: "GIRA-001", Category: "flores", Subtype: "ramo", Name: "Ramo de Girasoles", Color: "amarillo", Price: 79.90, Stock: 7},
		{ID: "ROSA-001", Category: "flores", Subtype: "ramo", Name: "Ramo de 12 Rosas Rojas", Color: "rojo", Price: 89.90, Stock: 10},
		{ID: "BOX-001", Category: "box", Name: "Box Rosas y Chocolates", Price: 149.90, Stock: 5, DiscountPct: 10},
		{ID: "ROSA-002", Category: "flores", Subtype: "ramo", Name: "Ramo Premium de 24 Rosas", Color: "rojo", Price: 189.90, Stock: 4},
		{ID: "ORQUI-001", Category: "plantas", Name: "Orquidea Phalaenopsis", Price: 120.00, Stock: 0},
	})
}

func TestCartAddMergesByProductID(t *testing.T) {
	var cart Cart
	cart.Add("ROSA-001", "Ramo de 12 Rosas Rojas", 89.90, 1)
	cart.Add("CHOC-001", "Caja de Chocolates Deluxe", 59.90, 1)
	cart.Add("ROSA-001", "Ramo de 12 Rosas Rojas", 89.90, 2)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.InDelta(t, 3*89.90, cart.Items[0].Subtotal, 0.001)
	assert.InDelta(t, 3*89.90+59.90, cart.Total(), 0.001)
	assert.Equal(t, 4, cart.Units())
}

func TestCartRemoveAndClear(t *testing.T) {
	var cart Cart
	cart.Add("A", "Uno", 10, 1)
	cart.Add("B", "Dos", 20, 1)

	assert.True(t, cart.Remove("A"))
	assert.False(t, cart.Remove("A"))
	require.Len(t, cart.Items, 1)

	cart.Clear()
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total())
}

func TestCartContainsByIDAndNameSubstring(t *testing.T) {
	var cart Cart
	cart.Add("CHOC-001", "Caja de Chocolates Deluxe", 59.90, 1)

	assert.True(t, cart.Contains("CHOC-001", ""))
	assert.True(t, cart.Contains("", "chocolates"))
	assert.False(t, cart.Contains("PELU-001", "peluche"))
}

func TestCartSnapshotIsDetached(t *testing.T) {
	var cart Cart
	cart.Add("A", "Uno", 10, 2)
	snap := cart.Snapshot()
	cart.Add("A", "Uno", 10, 1)

	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, 20.0, snap.Total)
	assert.Equal(t, 2, snap.Units)
}

func TestTurnRequestValidate(t *testing.T) {
	valid := TurnRequest{SessionID: "whatsapp:1", Channel: ChannelWhatsApp, Message: "hola"}
	assert.NoError(t, valid.Validate())

	for name, req := range map[string]TurnRequest{
		"missing session": {Channel: ChannelWhatsApp, Message: "hola"},
		"bad channel":     {SessionID: "x", Channel: Channel("sms"), Message: "hola"},
		"empty message":   {SessionID: "x", Channel: ChannelWidget, Message: "   "},
	} {
		assert.Error(t, req.Validate(), name)
	}
}

func TestConversationRecentWindows(t *testing.T) {
	conv := NewConversation("widget:1", ChannelWidget, "")
	for i := 0; i < 15; i++ {
		conv.Append(ChatRoleUser, "u")
		conv.Append(ChatRoleAssistant, "a")
	}

	recent := conv.Recent(10)
	assert.Len(t, recent, 10)
	assert.Equal(t, ChatRoleAssistant, recent[len(recent)-1].Role)

	assistants := conv.RecentAssistant(3)
	require.Len(t, assistants, 3)
	for _, m := range assistants {
		assert.Equal(t, ChatRoleAssistant, m.Role)
	}
}

func TestSplitBubbles(t *testing.T) {
	bubbles := SplitBubbles("Hola" + BubbleSeparator + "  " + BubbleSeparator + "¿Qué buscas?")
	assert.Equal(t, []string{"Hola", "¿Qué buscas?"}, bubbles)

	assert.Len(t, SplitBubbles("   "), 1, "empty reply becomes an apology bubble")
}

func TestPreferenceSummary(t *testing.T) {
	p := PreferenceContext{Occasion: "Cumpleaños", BudgetMax: 150, Flower: "rosas", WantsDiscount: true}
	summary := p.Summary()
	assert.Contains(t, summary, "Cumpleaños")
	assert.Contains(t, summary, "S/150")
	assert.Contains(t, summary, "rosas")

	var empty PreferenceContext
	assert.Empty(t, empty.Summary())
}
