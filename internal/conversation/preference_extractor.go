package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

// minBudget filters out numbers that are clearly not prices in soles,
// such as "quiero 2 ramos" or "llego en 15 minutos".
const minBudget = 30

// defaultBudgetCap bounds proactive searches when the customer never
// stated a maximum.
const defaultBudgetCap = 500

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u",
)

// normalizeText lowercases and strips accents so keyword tables only
// need one spelling per word. The enye is kept: "años" and "anos" are
// different words.
func normalizeText(s string) string {
	return strings.ToLower(accentReplacer.Replace(s))
}

// Keyword tables map normalized tokens found in customer messages to
// canonical values. Later mentions overwrite earlier ones.
var occasionKeywords = []struct {
	keys  []string
	value string
}{
	{[]string{"cumpleanos", "cumple", "bday"}, "Cumpleaños"},
	{[]string{"aniversario"}, "Aniversario"},
	{[]string{"san valentin", "enamorada", "enamorado", "novia", "novio", "esposa", "esposo", "pareja", "amor"}, "Amor"},
	{[]string{"amistad", "amiga", "amigo"}, "Amistad"},
	{[]string{"graduacion", "graduo", "titulacion"}, "Graduación"},
	{[]string{"condolencias", "funeral", "pesame", "fallecio", "luto"}, "Condolencias"},
	{[]string{"dia de la madre", "mama", "madre"}, "Día de la Madre"},
	{[]string{"nacimiento", "bebe", "baby shower", "recien nacido"}, "Nacimiento"},
	{[]string{"agradecimiento", "agradecer"}, "Agradecimiento"},
	{[]string{"mejorate", "recuperacion", "enferma", "enfermo", "hospital"}, "Recuperación"},
}

var colorKeywords = []struct {
	keys  []string
	value string
}{
	{[]string{"rojo", "roja", "rojos", "rojas"}, "rojo"},
	{[]string{"blanco", "blanca", "blancos", "blancas"}, "blanco"},
	{[]string{"rosado", "rosada", "rosados", "rosadas"}, "rosado"},
	{[]string{"amarillo", "amarilla", "amarillos", "amarillas"}, "amarillo"},
	{[]string{"azul", "azules"}, "azul"},
	{[]string{"lila", "lilas", "morado", "morada", "violeta"}, "lila"},
	{[]string{"naranja", "naranjas"}, "naranja"},
}

var flowerKeywords = []struct {
	keys  []string
	value string
}{
	{[]string{"rosas", "rosa"}, "rosas"},
	{[]string{"girasol", "girasoles"}, "girasoles"},
	{[]string{"tulipan", "tulipanes"}, "tulipanes"},
	{[]string{"lirio", "lirios"}, "lirios"},
	{[]string{"orquidea", "orquideas"}, "orquídeas"},
	{[]string{"gerbera", "gerberas"}, "gerberas"},
	{[]string{"clavel", "claveles"}, "claveles"},
}

var productTypeKeywords = []struct {
	keys  []string
	value string
}{
	{[]string{"ramo", "ramos", "bouquet"}, "ramo"},
	{[]string{"box", "caja"}, "box"},
	{[]string{"arreglo", "arreglos"}, "arreglo"},
	{[]string{"chocolate", "chocolates", "bombones"}, "chocolates"},
	{[]string{"peluche", "peluches", "oso", "osito"}, "peluche"},
	{[]string{"globo", "globos"}, "globos"},
	{[]string{"vino", "vinos", "espumante"}, "vino"},
	{[]string{"desayuno", "desayunos"}, "desayuno"},
	{[]string{"canasta", "canastas"}, "canasta"},
}

var (
	budgetRangeRe = regexp.MustCompile(`(\d{2,5})\s*(?:a|-|hasta)\s*(?:s/\s*)?(\d{2,5})`)
	budgetMaxRe   = regexp.MustCompile(`(?:menos de|hasta|maximo|max|no mas de|como mucho|presupuesto de|tengo)\s*(?:s/\s*)?(\d{2,5})`)
	budgetMinRe   = regexp.MustCompile(`(?:desde|minimo|mas de|a partir de)\s*(?:s/\s*)?(\d{2,5})`)
	budgetBareRe  = regexp.MustCompile(`(?:s/\s*(\d{2,5}))|(\d{2,5})\s*(?:soles|sol\b)`)
)

// ExtractPreferences scans one customer message and folds everything it
// recognizes into the session context. It never clears a field: absence
// of a keyword means "no new information", not "forget what you knew".
func ExtractPreferences(message string, pctx *PreferenceContext) {
	text := normalizeText(message)

	for _, entry := range occasionKeywords {
		if containsAny(text, entry.keys) {
			pctx.Occasion = entry.value
			break
		}
	}
	for _, entry := range colorKeywords {
		if containsAny(text, entry.keys) {
			pctx.Color = entry.value
			break
		}
	}
	for _, entry := range flowerKeywords {
		if containsAny(text, entry.keys) {
			pctx.Flower = entry.value
			break
		}
	}
	for _, entry := range productTypeKeywords {
		if containsAny(text, entry.keys) {
			pctx.ProductType = entry.value
			break
		}
	}

	if containsAny(text, []string{"barato", "economico", "economica", "sencillo"}) {
		pctx.WantsCheap = true
	}
	if containsAny(text, []string{"descuento", "oferta", "ofertas", "promocion", "rebaja"}) {
		pctx.WantsDiscount = true
	}
	if containsAny(text, []string{"premium", "lujo", "elegante", "exclusivo", "lo mejor"}) {
		pctx.WantsPremium = true
	}

	extractBudget(text, pctx)
}

func containsAny(text string, keys []string) bool {
	for _, k := range keys {
		if containsWord(text, k) {
			return true
		}
	}
	return false
}

// containsWord matches on word boundaries so "rosa" does not fire
// inside "rosatel" and "oso" does not fire inside "hermoso".
func containsWord(text, key string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], key)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(key)
		leftOK := start == 0 || !isWordByte(text[start-1])
		rightOK := end == len(text) || !isWordByte(text[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

func extractBudget(text string, pctx *PreferenceContext) {
	if m := budgetRangeRe.FindStringSubmatch(text); m != nil {
		lo, hi := parsePrice(m[1]), parsePrice(m[2])
		if lo >= minBudget && hi >= lo {
			pctx.BudgetMin = lo
			pctx.BudgetMax = hi
			return
		}
	}
	if m := budgetMaxRe.FindStringSubmatch(text); m != nil {
		if v := parsePrice(m[1]); v >= minBudget {
			pctx.BudgetMax = v
			return
		}
	}
	if m := budgetMinRe.FindStringSubmatch(text); m != nil {
		if v := parsePrice(m[1]); v >= minBudget {
			pctx.BudgetMin = v
			return
		}
	}
	if m := budgetBareRe.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v := parsePrice(raw); v >= minBudget {
			pctx.BudgetMax = v
		}
	}
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
