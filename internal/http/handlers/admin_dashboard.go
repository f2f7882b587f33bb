package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// AdminDashboardHandler serves the sales overview endpoint.
type AdminDashboardHandler struct {
	db       *sql.DB
	sessions conversation.SessionStore
	logger   *logging.Logger
}

// NewAdminDashboardHandler creates a new admin dashboard handler. Both db
// and sessions may be nil; the corresponding sections are then zeroed.
func NewAdminDashboardHandler(db *sql.DB, sessions conversation.SessionStore, logger *logging.Logger) *AdminDashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminDashboardHandler{db: db, sessions: sessions, logger: logger}
}

// DashboardOverviewResponse contains the main dashboard metrics.
type DashboardOverviewResponse struct {
	Store    string          `json:"store"`
	Period   string          `json:"period"`
	Orders   OrderMetrics    `json:"orders"`
	Revenue  RevenueMetrics  `json:"revenue"`
	Sessions SessionMetrics  `json:"sessions"`
	Channels []ChannelMetric `json:"channels,omitempty"`
}

// OrderMetrics counts orders by status over the selected period.
type OrderMetrics struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Paid      int `json:"paid"`
	Delivered int `json:"delivered"`
	Cancelled int `json:"cancelled"`
}

// RevenueMetrics sums paid order totals in soles.
type RevenueMetrics struct {
	PeriodTotal float64 `json:"period_total"`
	AvgTicket   float64 `json:"avg_ticket"`
}

// SessionMetrics counts live conversation sessions.
type SessionMetrics struct {
	Active int `json:"active"`
}

// ChannelMetric is the per-channel order breakdown.
type ChannelMetric struct {
	Channel string `json:"channel"`
	Orders  int    `json:"orders"`
}

// Overview handles GET /admin/dashboard?days=N (default 7).
func (h *AdminDashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	resp := DashboardOverviewResponse{
		Store:  "Rosatel",
		Period: strconv.Itoa(days) + "d",
	}

	if h.db != nil {
		if err := h.fillOrderMetrics(r, &resp, since); err != nil {
			h.logger.Error("dashboard: order metrics failed", "error", err)
			http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
			return
		}
	}

	if h.sessions != nil {
		ids, err := h.sessions.ListIDs(r.Context())
		if err != nil {
			h.logger.Warn("dashboard: session count failed", "error", err)
		} else {
			resp.Sessions.Active = len(ids)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *AdminDashboardHandler) fillOrderMetrics(r *http.Request, resp *DashboardOverviewResponse, since time.Time) error {
	ctx := r.Context()

	rows, err := h.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM orders WHERE created_at >= $1 GROUP BY status`, since)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		resp.Orders.Total += count
		switch status {
		case "draft":
			resp.Orders.Draft = count
		case "paid":
			resp.Orders.Paid = count
		case "delivered":
			resp.Orders.Delivered = count
		case "cancelled":
			resp.Orders.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var revenue sql.NullFloat64
	var paidCount sql.NullInt64
	err = h.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total), 0), COUNT(*) FROM orders
		 WHERE created_at >= $1 AND status IN ('paid', 'preparing', 'delivered')`, since).
		Scan(&revenue, &paidCount)
	if err != nil {
		return err
	}
	resp.Revenue.PeriodTotal = revenue.Float64
	if paidCount.Int64 > 0 {
		resp.Revenue.AvgTicket = revenue.Float64 / float64(paidCount.Int64)
	}

	chRows, err := h.db.QueryContext(ctx,
		`SELECT channel, COUNT(*) FROM orders WHERE created_at >= $1 GROUP BY channel ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return err
	}
	defer chRows.Close()
	for chRows.Next() {
		var m ChannelMetric
		if err := chRows.Scan(&m.Channel, &m.Orders); err != nil {
			return err
		}
		resp.Channels = append(resp.Channels, m)
	}
	return chRows.Err()
}
