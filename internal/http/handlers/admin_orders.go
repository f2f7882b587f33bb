package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rosatel/rosatel-ai-platform/internal/orders"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// OrdersService is the subset of the orders service used by admin endpoints.
type OrdersService interface {
	Get(ctx context.Context, code string) (*orders.Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]orders.Order, error)
	MarkPaid(ctx context.Context, code string, d orders.Delivery) error
}

// AdminOrdersHandler exposes order lookup and fulfillment endpoints.
type AdminOrdersHandler struct {
	svc    OrdersService
	logger *logging.Logger
}

// NewAdminOrdersHandler creates a new admin orders handler.
func NewAdminOrdersHandler(svc OrdersService, logger *logging.Logger) *AdminOrdersHandler {
	if svc == nil {
		panic("handlers: orders service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminOrdersHandler{svc: svc, logger: logger}
}

// Get handles GET /admin/orders/{code}.
func (h *AdminOrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	order, err := h.svc.Get(r.Context(), code)
	if err != nil {
		h.logger.Error("admin orders: get failed", "code", code, "error", err)
		http.Error(w, "failed to load order", http.StatusInternalServerError)
		return
	}
	if order == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListBySession handles GET /admin/orders?session=<id>.
func (h *AdminOrdersHandler) ListBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter is required", http.StatusBadRequest)
		return
	}
	list, err := h.svc.ListBySession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("admin orders: list failed", "session_id", sessionID, "error", err)
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

// markPaidRequest carries the delivery details confirmed at payment time.
type markPaidRequest struct {
	RecipientName string `json:"recipient_name"`
	Address       string `json:"address"`
	District      string `json:"district"`
	Date          string `json:"delivery_date"`
	CardMessage   string `json:"card_message"`
}

// MarkPaid handles POST /admin/orders/{code}/paid.
func (h *AdminOrdersHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	delivery := orders.Delivery{
		RecipientName: req.RecipientName,
		Address:       req.Address,
		District:      req.District,
		Date:          req.Date,
		CardMessage:   req.CardMessage,
	}
	if err := h.svc.MarkPaid(r.Context(), code, delivery); err != nil {
		h.logger.Error("admin orders: mark paid failed", "code", code, "error", err)
		http.Error(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	h.logger.Info("order marked paid", "code", code, "district", req.District)
	writeJSON(w, http.StatusOK, map[string]string{"code": code, "status": string(orders.StatusPaid)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
