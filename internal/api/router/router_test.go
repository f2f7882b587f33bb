package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/http/handlers"
	"github.com/rosatel/rosatel-ai-platform/internal/webchat"
)

func TestRouterHealth(t *testing.T) {
	h := New(&Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rosatel-ai-platform")
}

func TestRouterUnknownRoute(t *testing.T) {
	h := New(&Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterUnmountedWhenNil(t *testing.T) {
	h := New(&Config{})

	for _, path := range []string{"/chat/widget.js", "/conversations/chat", "/webhooks/whatsapp/", "/admin/stats"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRouterWidgetRoutes(t *testing.T) {
	wh := webchat.NewHandler(nil, nil, []byte("(function(){})();"), "", nil)
	h := New(&Config{WebchatHandler: wh})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/widget.js", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
}

func TestRouterAdminAuth(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(&Config{
		AdminAuthSecret: "secret",
		AdminStats:      handlers.NewAdminStatsHandler(reg, nil),
	})

	// Without a token the admin group rejects.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// With a signed token it passes through.
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterCORSHeaders(t *testing.T) {
	h := New(&Config{CORSAllowedOrigins: []string{"https://rosatel.pe"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://rosatel.pe")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://rosatel.pe", rec.Header().Get("Access-Control-Allow-Origin"))
}
