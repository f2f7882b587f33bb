// Package stores describes the physical Rosatel locations and their
// opening hours so conversational replies can answer "donde estan" and
// "hasta que hora atienden" without a catalog round trip.
package stores

import (
	"fmt"
	"strings"
	"time"
)

// Store is a single retail location. Hours are expressed in whole hours
// local to Lima; none of the locations split their schedule mid-day.
type Store struct {
	Name      string
	Address   string
	District  string
	Phone     string
	OpenHour  int
	CloseHour int
}

// lima resolves once at startup. Containers without tzdata fall back to
// a fixed UTC-5 zone, which is correct year round for Peru.
var lima = func() *time.Location {
	loc, err := time.LoadLocation("America/Lima")
	if err != nil {
		return time.FixedZone("PET", -5*60*60)
	}
	return loc
}()

var locations = []Store{
	{
		Name:      "Rosatel La Fontana",
		Address:   "Av. La Fontana 790",
		District:  "La Molina",
		Phone:     "+51 1 610 5010",
		OpenHour:  10,
		CloseHour: 22,
	},
	{
		Name:      "Rosatel Surco",
		Address:   "Av. Primavera 1796",
		District:  "Santiago de Surco",
		Phone:     "+51 1 610 5020",
		OpenHour:  8,
		CloseHour: 22,
	},
	{
		Name:      "Rosatel Surco Centro",
		Address:   "Av. Caminos del Inca 1803",
		District:  "Santiago de Surco",
		Phone:     "+51 1 610 5030",
		OpenHour:  8,
		CloseHour: 22,
	},
}

// Locations returns all retail locations in presentation order.
func Locations() []Store {
	out := make([]Store, len(locations))
	copy(out, locations)
	return out
}

// Lima returns the timezone every schedule decision is made in.
func Lima() *time.Location {
	return lima
}

// OpenAt reports whether the store is receiving customers at t.
func (s Store) OpenAt(t time.Time) bool {
	h := t.In(lima).Hour()
	return h >= s.OpenHour && h < s.CloseHour
}

// HoursLabel renders the schedule the way it is printed on the door.
func (s Store) HoursLabel() string {
	return fmt.Sprintf("%d:00 - %d:00", s.OpenHour, s.CloseHour)
}

// StatusAt describes the store availability at t for use inside a
// system prompt.
func (s Store) StatusAt(t time.Time) string {
	local := t.In(lima)
	h := local.Hour()
	switch {
	case h >= s.OpenHour && h < s.CloseHour-1:
		return "ABIERTA"
	case h == s.CloseHour-1:
		return "POR CERRAR"
	default:
		return "CERRADA"
	}
}

// StatusBlock renders the store roster with live open/closed state. The
// block is injected verbatim into model prompts, so it stays plain text.
func StatusBlock(now time.Time) string {
	local := now.In(lima)
	var b strings.Builder
	fmt.Fprintf(&b, "HORA ACTUAL EN LIMA: %s\n", local.Format("15:04"))
	b.WriteString("TIENDAS:\n")
	for _, s := range locations {
		fmt.Fprintf(&b, "- %s (%s, %s): %s, hoy %s\n",
			s.Name, s.Address, s.District, s.HoursLabel(), s.StatusAt(now))
	}
	return strings.TrimRight(b.String(), "\n")
}
