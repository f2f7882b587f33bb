package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ToolboxCatalog serves the catalog through the tool-calling gateway.
// Each catalog operation maps onto one of the gateway's registered tools;
// filters the tools cannot express are applied client-side so callers see
// the same semantics as the analytical backend.
type ToolboxCatalog struct {
	baseURL string
	client  *http.Client
}

// NewToolboxCatalog points the adapter at a gateway base URL, e.g.
// "http://127.0.0.1:5001". The base URL is explicit so tests can run
// against httptest servers.
func NewToolboxCatalog(baseURL string, timeout time.Duration) *ToolboxCatalog {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ToolboxCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Available probes the gateway's toolset endpoint.
func (t *ToolboxCatalog) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api/toolset", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Search picks the most specific tool for the query and post-filters.
func (t *ToolboxCatalog) Search(ctx context.Context, q Query) ([]Product, error) {
	var (
		rows []toolboxRow
		err  error
	)
	switch {
	case q.Category != "" && (q.PriceMin > 0 || q.PriceMax > 0):
		max := q.PriceMax
		if max <= 0 {
			max = 99999
		}
		rows, err = t.invokeRows(ctx, "buscar_por_categoria_precio", map[string]any{
			"categoria":  q.Category,
			"precio_min": q.PriceMin,
			"precio_max": max,
		})
	case q.Text != "":
		rows, err = t.invokeRows(ctx, "buscar_productos", map[string]any{"query": q.Text})
	case q.Color != "":
		rows, err = t.invokeRows(ctx, "buscar_por_color", map[string]any{"color": q.Color})
	case q.Category != "":
		rows, err = t.invokeRows(ctx, "buscar_productos", map[string]any{"query": q.Category})
	default:
		rows, err = t.invokeRows(ctx, "productos_economicos", map[string]any{"limite": DefaultLimit})
	}
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		p := row.toProduct()
		if matchesQuery(p, q) {
			products = append(products, p)
		}
	}
	sortByPrice(products)

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// GetByID fetches a product through the obtener_producto tool.
func (t *ToolboxCatalog) GetByID(ctx context.Context, id string) (*Product, error) {
	rows, err := t.invokeRows(ctx, "obtener_producto", map[string]any{"producto_id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].toProduct()
	return &p, nil
}

// ListCategories lists distinct sellable categories.
func (t *ToolboxCatalog) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := t.invokeRows(ctx, "listar_categorias", map[string]any{})
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Category != "" {
			categories = append(categories, row.Category)
		}
	}
	return categories, nil
}

// Discounted returns products with an active discount.
func (t *ToolboxCatalog) Discounted(ctx context.Context) ([]Product, error) {
	rows, err := t.invokeRows(ctx, "productos_con_descuento", map[string]any{})
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toProduct())
	}
	return products, nil
}

// Cheapest returns the n lowest-priced products.
func (t *ToolboxCatalog) Cheapest(ctx context.Context, n int) ([]Product, error) {
	if n <= 0 {
		n = 3
	}
	rows, err := t.invokeRows(ctx, "productos_economicos", map[string]any{"limite": n})
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toProduct())
	}
	sortByPrice(products)
	if len(products) > n {
		products = products[:n]
	}
	return products, nil
}

// toolboxRow mirrors the gateway's column naming for the products table.
type toolboxRow struct {
	ID          string  `json:"ID"`
	Category    string  `json:"Categoria"`
	Subtype     string  `json:"Tipo"`
	Name        string  `json:"Producto"`
	Photo       string  `json:"Foto"`
	Color       string  `json:"Color"`
	Price       float64 `json:"Precio"`
	Stock       int     `json:"Stock"`
	DiscountPct float64 `json:"Descuento"`
	FinalPrice  float64 `json:"Precio_final"`
	Description string  `json:"Descripcion"`
}

func (r toolboxRow) toProduct() Product {
	return Product{
		ID:          r.ID,
		Category:    r.Category,
		Subtype:     r.Subtype,
		Name:        r.Name,
		PhotoURL:    NormalizePhotoURL(r.Photo),
		Color:       r.Color,
		Price:       r.Price,
		Stock:       r.Stock,
		DiscountPct: r.DiscountPct,
		FinalPrice:  r.FinalPrice,
		Description: r.Description,
	}
}

// invokeRows calls POST /api/tool/{name}/invoke and decodes the row set.
// The gateway wraps rows under "result", "rows" or "data", sometimes as a
// JSON-encoded string, so decoding tries each shape in turn.
func (t *ToolboxCatalog) invokeRows(ctx context.Context, tool string, params map[string]any) ([]toolboxRow, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal %s params: %w", tool, err)
	}

	url := fmt.Sprintf("%s/api/tool/%s/invoke", t.baseURL, tool)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: build %s request: %w", tool, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: invoke %s: %w", tool, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s response: %w", tool, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: tool %s returned status %d", tool, resp.StatusCode)
	}

	return decodeToolboxRows(raw)
}

func decodeToolboxRows(raw []byte) ([]toolboxRow, error) {
	// Bare array
	var rows []toolboxRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Rows   json.RawMessage `json:"rows"`
		Data   json.RawMessage `json:"data"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("catalog: decode tool response: %w", err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("catalog: tool error: %s", envelope.Error)
	}

	for _, payload := range []json.RawMessage{envelope.Result, envelope.Rows, envelope.Data} {
		if len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, &rows); err == nil {
			return rows, nil
		}
		// Rows encoded as a JSON string
		var nested string
		if err := json.Unmarshal(payload, &nested); err == nil {
			if err := json.Unmarshal([]byte(nested), &rows); err == nil {
				return rows, nil
			}
		}
	}
	return nil, nil
}
