package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
)

func TestAdminDashboardOverview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("draft", 3).
			AddRow("paid", 5).
			AddRow("delivered", 2))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(1234.50, 7))
	mock.ExpectQuery("SELECT channel, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"channel", "count"}).
			AddRow("whatsapp", 6).
			AddRow("widget", 4))

	sessions := conversation.NewMemorySessionStore(0)
	conv := conversation.NewConversation("whatsapp:51987654321", conversation.ChannelWhatsApp, "51987654321")
	conv.Append("user", "hola")
	require.NoError(t, sessions.Save(context.Background(), conv))

	h := NewAdminDashboardHandler(db, sessions, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard?days=30", nil)
	rec := httptest.NewRecorder()
	h.Overview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DashboardOverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "30d", resp.Period)
	assert.Equal(t, 10, resp.Orders.Total)
	assert.Equal(t, 5, resp.Orders.Paid)
	assert.InDelta(t, 1234.50, resp.Revenue.PeriodTotal, 0.001)
	assert.InDelta(t, 176.357, resp.Revenue.AvgTicket, 0.01)
	assert.Equal(t, 1, resp.Sessions.Active)
	require.Len(t, resp.Channels, 2)
	assert.Equal(t, "whatsapp", resp.Channels[0].Channel)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminDashboardWithoutBackends(t *testing.T) {
	h := NewAdminDashboardHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	rec := httptest.NewRecorder()
	h.Overview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DashboardOverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "7d", resp.Period)
	assert.Zero(t, resp.Orders.Total)
	assert.Zero(t, resp.Sessions.Active)
}
