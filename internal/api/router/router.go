package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rosatel/rosatel-ai-platform/internal/channels/instagram"
	"github.com/rosatel/rosatel-ai-platform/internal/channels/whatsapp"
	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/rosatel/rosatel-ai-platform/internal/http/middleware"
	"github.com/rosatel/rosatel-ai-platform/internal/webchat"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger *logging.Logger

	ConversationHandler *conversation.Handler
	WhatsAppAdapter     *whatsapp.Adapter
	InstagramAdapter    *instagram.Adapter
	WebchatHandler      *webchat.Handler

	AdminDashboard *handlers.AdminDashboardHandler
	AdminOrders    *handlers.AdminOrdersHandler
	AdminStats     *handlers.AdminStatsHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRate limits inbound webhook and chat requests per IP. Zero
	// disables rate limiting.
	WebhookRate  float64
	WebhookBurst int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	rateLimited := func(next chi.Router) {
		if cfg.WebhookRate > 0 && cfg.WebhookBurst > 0 {
			next.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
		}
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Meta channel webhooks.
	if cfg.WhatsAppAdapter != nil {
		r.Route("/webhooks/whatsapp", func(wh chi.Router) {
			rateLimited(wh)
			wh.Get("/", cfg.WhatsAppAdapter.HandleVerification)
			wh.Post("/", cfg.WhatsAppAdapter.HandleWebhook)
		})
	}
	if cfg.InstagramAdapter != nil {
		r.Route("/webhooks/instagram", func(wh chi.Router) {
			rateLimited(wh)
			wh.Get("/", cfg.InstagramAdapter.HandleVerification)
			wh.Post("/", cfg.InstagramAdapter.HandleWebhook)
		})
	}

	// Web widget.
	if cfg.WebchatHandler != nil {
		r.Route("/chat", func(chat chi.Router) {
			rateLimited(chat)
			chat.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
			chat.Post("/message", cfg.WebchatHandler.HandleMessage)
			chat.Get("/history", cfg.WebchatHandler.HandleHistory)
			chat.Get("/widget.js", cfg.WebchatHandler.HandleWidgetJS)
		})
	}

	// Direct conversation API.
	if cfg.ConversationHandler != nil {
		r.Route("/conversations", func(conv chi.Router) {
			rateLimited(conv)
			conv.Post("/message", cfg.ConversationHandler.Message)
			conv.Get("/jobs/{jobID}", cfg.ConversationHandler.Job)
			conv.Post("/chat", cfg.ConversationHandler.Chat)
		})
	}

	// Admin routes behind HMAC JWT.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.AdminDashboard != nil {
				admin.Get("/dashboard", cfg.AdminDashboard.Overview)
			}
			if cfg.AdminOrders != nil {
				admin.Get("/orders", cfg.AdminOrders.ListBySession)
				admin.Get("/orders/{code}", cfg.AdminOrders.Get)
				admin.Post("/orders/{code}/paid", cfg.AdminOrders.MarkPaid)
			}
			if cfg.AdminStats != nil {
				admin.Get("/stats", cfg.AdminStats.Stats)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "rosatel-ai-platform"})
}
