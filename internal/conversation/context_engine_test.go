package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
)

func newTestContextEngine(t *testing.T) *ContextEngine {
	t.Helper()
	return NewContextEngine(fixtureCatalog(), nil)
}

func TestShouldSearchRequiresSignalPlusBudget(t *testing.T) {
	ce := newTestContextEngine(t)

	assert.False(t, ce.ShouldSearch("hola", &PreferenceContext{}))
	assert.False(t, ce.ShouldSearch("es para un cumpleaños", &PreferenceContext{Occasion: "Cumpleaños"}),
		"occasion alone is not enough")
	assert.True(t, ce.ShouldSearch("es para un cumpleaños", &PreferenceContext{Occasion: "Cumpleaños", BudgetMax: 150}))
	assert.True(t, ce.ShouldSearch("da igual", &PreferenceContext{Flower: "rosas", BudgetMin: 50}))
}

func TestShouldSearchExplicitPhrase(t *testing.T) {
	ce := newTestContextEngine(t)
	assert.True(t, ce.ShouldSearch("muéstrame opciones", &PreferenceContext{}))
	assert.True(t, ce.ShouldSearch("¿qué tienes?", &PreferenceContext{}))
}

func TestBuildQueryPriority(t *testing.T) {
	ce := newTestContextEngine(t)

	full := PreferenceContext{ProductType: "ramo", Flower: "rosas", Occasion: "Amor", Color: "rojo"}
	assert.Equal(t, "ramo", ce.BuildQuery("da igual", &full).Text)

	noType := PreferenceContext{Flower: "rosas", Occasion: "Amor", Color: "rojo"}
	q := ce.BuildQuery("da igual", &noType)
	assert.Equal(t, "rosas", q.Text)
	assert.Equal(t, "rojo", q.Color)

	onlyOccasion := PreferenceContext{Occasion: "Cumpleaños"}
	assert.Equal(t, "Cumpleaños", ce.BuildQuery("da igual", &onlyOccasion).Text)

	empty := PreferenceContext{}
	assert.Equal(t, "quiero un detalle", ce.BuildQuery("  quiero un detalle ", &empty).Text)
}

func TestBudgetFilterStrictCeiling(t *testing.T) {
	products := []catalog.Product{
		{ID: "A", Name: "A", Price: 50, Stock: 1},
		{ID: "B", Name: "B", Price: 120, Stock: 1},
		{ID: "C", Name: "C", Price: 200, Stock: 1},
	}
	filtered := budgetFilter(products, &PreferenceContext{BudgetMax: 100})
	require.Len(t, filtered, 1)
	assert.Equal(t, "A", filtered[0].ID)
}

func TestBudgetFilterRescuesCheapestThree(t *testing.T) {
	products := []catalog.Product{
		{ID: "A", Name: "A", Price: 150, Stock: 1},
		{ID: "B", Name: "B", Price: 180, Stock: 1},
		{ID: "C", Name: "C", Price: 220, Stock: 1},
		{ID: "D", Name: "D", Price: 300, Stock: 1},
	}
	filtered := budgetFilter(products, &PreferenceContext{BudgetMax: 100})
	require.Len(t, filtered, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{filtered[0].ID, filtered[1].ID, filtered[2].ID})
}

func TestExcerptRendersTagsAndRespectsBudget(t *testing.T) {
	ce := newTestContextEngine(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Context = PreferenceContext{Flower: "rosas", BudgetMax: 100}

	excerpt, found, _, err := ce.Excerpt(context.Background(), "rosas por favor", conv)
	require.NoError(t, err)
	require.NotEmpty(t, found)

	assert.Contains(t, excerpt, "CATALOGO DISPONIBLE")
	assert.Contains(t, excerpt, "[PRODUCTO:ROSA-001|Ramo de 12 Rosas Rojas|89.90|")
	assert.NotContains(t, excerpt, "ROSA-002", "premium bouquet is over budget")
	for _, p := range found {
		assert.LessOrEqual(t, p.EffectivePrice(), 100.0)
	}
}

func TestExcerptCrossSellFlowersGetChocolates(t *testing.T) {
	ce := newTestContextEngine(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Context = PreferenceContext{Flower: "rosas", BudgetMax: 100}

	excerpt, _, upsell, err := ce.Excerpt(context.Background(), "rosas", conv)
	require.NoError(t, err)
	require.NotNil(t, upsell)
	assert.Equal(t, "CHOC-001", upsell.ID)
	assert.Contains(t, excerpt, "COMPLEMENTO SUGERIDO")
}

func TestExcerptCrossSellBirthdayPrefersThemedBalloons(t *testing.T) {
	ce := newTestContextEngine(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Context = PreferenceContext{Occasion: "Cumpleaños", Flower: "rosas", BudgetMax: 150}

	_, _, upsell, err := ce.Excerpt(context.Background(), "rosas para cumpleaños", conv)
	require.NoError(t, err)
	require.NotNil(t, upsell)
	assert.Equal(t, "GLOB-001", upsell.ID, "birthday themed balloons win over cheaper plain ones")
}

func TestExcerptCrossSellSkipsCartItems(t *testing.T) {
	ce := newTestContextEngine(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Context = PreferenceContext{Flower: "rosas", BudgetMax: 100}
	conv.Cart.Add("CHOC-001", "Caja de Chocolates Deluxe", 59.90, 1)

	_, _, upsell, err := ce.Excerpt(context.Background(), "rosas", conv)
	require.NoError(t, err)
	require.NotNil(t, upsell)
	assert.Equal(t, "PELU-001", upsell.ID, "falls through to the plush when chocolates are taken")
}

func TestExcerptPeluchePullsRoses(t *testing.T) {
	ce := newTestContextEngine(t)
	conv := NewConversation("widget:1", ChannelWidget, "")
	conv.Context = PreferenceContext{ProductType: "peluche", BudgetMax: 100}

	_, _, upsell, err := ce.Excerpt(context.Background(), "un peluche", conv)
	require.NoError(t, err)
	require.NotNil(t, upsell)
	assert.True(t, strings.Contains(strings.ToLower(upsell.Name), "rosas"))
}

func TestExcerptIsDeterministic(t *testing.T) {
	ce := newTestContextEngine(t)
	build := func() (string, string) {
		conv := NewConversation("widget:1", ChannelWidget, "")
		conv.Context = PreferenceContext{Flower: "rosas", BudgetMax: 100}
		excerpt, _, upsell, err := ce.Excerpt(context.Background(), "rosas", conv)
		require.NoError(t, err)
		require.NotNil(t, upsell)
		return excerpt, upsell.ID
	}

	e1, u1 := build()
	e2, u2 := build()
	assert.Equal(t, e1, e2)
	assert.Equal(t, u1, u2)
}

func TestExcerptNoResults(t *testing.T) {
	ce := newTestContextEngine(t)
	conv := NewConversation("widget:1", ChannelWidget, "")

	excerpt, found, upsell, err := ce.Excerpt(context.Background(), "drones teledirigidos", conv)
	require.NoError(t, err)
	assert.Empty(t, excerpt)
	assert.Empty(t, found)
	assert.Nil(t, upsell)
}
