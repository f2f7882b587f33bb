package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limaTime(t *testing.T, hour int) time.Time {
	t.Helper()
	return time.Date(2026, time.March, 14, hour, 30, 0, 0, Lima())
}

func TestLocationsAreStable(t *testing.T) {
	locs := Locations()
	require.Len(t, locs, 3)
	assert.Equal(t, "Rosatel La Fontana", locs[0].Name)

	// Mutating the returned slice must not leak into the package state.
	locs[0].Name = "mutated"
	assert.Equal(t, "Rosatel La Fontana", Locations()[0].Name)
}

func TestOpenAtRespectsPerStoreHours(t *testing.T) {
	locs := Locations()
	fontana, surco := locs[0], locs[1]

	at9 := limaTime(t, 9)
	assert.False(t, fontana.OpenAt(at9), "La Fontana opens at 10")
	assert.True(t, surco.OpenAt(at9), "Surco opens at 8")

	at23 := limaTime(t, 23)
	assert.False(t, fontana.OpenAt(at23))
	assert.False(t, surco.OpenAt(at23))
}

func TestStatusAt(t *testing.T) {
	surco := Locations()[1]
	assert.Equal(t, "ABIERTA", surco.StatusAt(limaTime(t, 12)))
	assert.Equal(t, "POR CERRAR", surco.StatusAt(limaTime(t, 21)))
	assert.Equal(t, "CERRADA", surco.StatusAt(limaTime(t, 23)))
}

func TestStatusBlockMentionsEveryStore(t *testing.T) {
	block := StatusBlock(limaTime(t, 12))
	for _, s := range Locations() {
		assert.Contains(t, block, s.Name)
	}
	assert.Contains(t, block, "HORA ACTUAL EN LIMA: 12:30")
}
