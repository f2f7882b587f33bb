package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// Product is the normalized catalog record shared by every backend.
// Backends map their own field naming onto this type at the adapter
// boundary; nothing past the catalog package sees backend field names.
type Product struct {
	ID          string  `json:"id"`
	Category    string  `json:"categoria"`
	Subtype     string  `json:"tipo"`
	Name        string  `json:"producto"`
	PhotoURL    string  `json:"foto,omitempty"`
	Color       string  `json:"color,omitempty"`
	Price       float64 `json:"precio"`
	Stock       int     `json:"stock"`
	DiscountPct float64 `json:"descuento"`
	FinalPrice  float64 `json:"precio_final"`
	Description string  `json:"descripcion,omitempty"`
}

// EffectivePrice returns the price a buyer pays. It prefers the stored
// final price and recomputes from the discount when the backend did not
// provide one.
func (p Product) EffectivePrice() float64 {
	if p.FinalPrice > 0 {
		return p.FinalPrice
	}
	if p.DiscountPct > 0 {
		return p.Price * (1 - p.DiscountPct/100)
	}
	return p.Price
}

// Available reports whether the product can be added to a cart.
// Stock zero means viewable but not purchasable.
func (p Product) Available() bool {
	return p.Stock > 0
}

// PriceLabel renders the effective price as shown to customers, e.g. "S/89.00".
func (p Product) PriceLabel() string {
	return FormatPrice(p.EffectivePrice())
}

// FormatPrice renders an amount in soles with two decimals.
func FormatPrice(amount float64) string {
	return fmt.Sprintf("S/%.2f", amount)
}

var (
	drivePathRE  = regexp.MustCompile(`/(?:file/)?d/([a-zA-Z0-9_-]+)`)
	driveQueryRE = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// NormalizePhotoURL rewrites Google Drive share links into direct-view
// URLs that messaging channels can embed. Non-Drive URLs pass through
// unchanged; empty input stays empty.
func NormalizePhotoURL(url string) string {
	if url == "" {
		return ""
	}
	if strings.Contains(url, "uc?export=view") {
		return url
	}
	if m := drivePathRE.FindStringSubmatch(url); m != nil {
		return "https://drive.google.com/uc?export=view&id=" + m[1]
	}
	if m := driveQueryRE.FindStringSubmatch(url); m != nil {
		return "https://drive.google.com/uc?export=view&id=" + m[1]
	}
	return url
}

// PhotoThumbnail returns a sized Drive thumbnail URL for a product photo,
// or the normalized URL when the photo is not hosted on Drive.
func PhotoThumbnail(url, size string) string {
	direct := NormalizePhotoURL(url)
	if direct == "" {
		return ""
	}
	if size == "" {
		size = "w400"
	}
	if m := driveQueryRE.FindStringSubmatch(direct); m != nil {
		return fmt.Sprintf("https://drive.google.com/thumbnail?id=%s&sz=%s", m[1], size)
	}
	return direct
}
