package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rosatel/rosatel-ai-platform/cmd/mainconfig"
	"github.com/rosatel/rosatel-ai-platform/internal/api/router"
	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
	"github.com/rosatel/rosatel-ai-platform/internal/channels/instagram"
	"github.com/rosatel/rosatel-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/rosatel/rosatel-ai-platform/internal/config"
	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/internal/http/handlers"
	"github.com/rosatel/rosatel-ai-platform/internal/notify"
	"github.com/rosatel/rosatel-ai-platform/internal/observability/metrics"
	"github.com/rosatel/rosatel-ai-platform/internal/orders"
	"github.com/rosatel/rosatel-ai-platform/internal/webchat"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting rosatel-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Session store: Redis in production, in-memory for local runs.
	var sessions conversation.SessionStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		sessions = conversation.NewRedisSessionStore(redis.NewClient(opts), cfg.SessionTTL, nil)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory session store")
		sessions = conversation.NewMemorySessionStore(cfg.SessionTTL)
	}

	// Catalog chain: Postgres, then the Toolbox HTTP backend, then the
	// built-in demo catalog.
	var pool *pgxpool.Pool
	var primary, secondary catalog.Service
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		primary = catalog.NewPostgresCatalog(pool)
	}
	if cfg.ToolboxURL != "" {
		secondary = catalog.NewToolboxCatalog(cfg.ToolboxURL, cfg.ToolboxTimeout)
	}
	cat := catalog.NewFallbackCatalog(primary, secondary, logger.Logger)

	// Model providers: Gemini first, Bedrock as fallback. Without either
	// the engine answers through its built-in offline responder.
	var llm conversation.LLMClient
	modelID := cfg.GeminiModel
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to init Gemini client", "error", err)
			os.Exit(1)
		}
		llm = gemini
		if cfg.BedrockModelID != "" {
			bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
			llm = conversation.NewFallbackLLMClient(gemini, bedrock, logger)
		}
	} else if cfg.BedrockModelID != "" {
		llm = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		modelID = cfg.BedrockModelID
	} else {
		logger.Warn("no model provider configured, using offline responder")
	}

	convMetrics := metrics.NewConversationMetrics(nil)

	engineOpts := []conversation.EngineOption{conversation.WithMetrics(convMetrics)}
	if llm != nil {
		engineOpts = append(engineOpts, conversation.WithLLMClient(llm, modelID))
	}
	engine := conversation.NewEngine(sessions, cat, cfg.CheckoutBaseURL, logger, engineOpts...)

	// Turn queue and job tracking.
	var queue conversation.Queue
	if cfg.UseMemoryQueue || cfg.ConversationQueueURL == "" {
		logger.Info("using in-memory turn queue")
		queue = conversation.NewMemoryQueue(64)
	} else {
		queue = conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
	}
	publisher := conversation.NewPublisher(queue, logger)

	var jobStore interface {
		conversation.JobRecorder
		conversation.JobUpdater
	}
	if cfg.UsePostgresJobs && pool != nil {
		jobStore = conversation.NewPGJobStore(pool)
	} else {
		jobStore = conversation.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.TurnJobsTable, logger)
	}

	// Orders and notifications (optional, requires Postgres).
	var db *sql.DB
	var orderSvc *orders.Service
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open orders db", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		var sender notify.EmailSender
		if cfg.SendGridAPIKey != "" {
			sender = notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		} else if cfg.SESFromEmail != "" {
			sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SESFromName,
			}, logger)
		}
		notifier := notify.NewService(sender, cfg.NotifyOrdersEmail, logger)
		orderSvc = orders.NewService(orders.NewRepository(db), notifier, logger)
	}

	// Channel adapters double as reply messengers for the worker.
	messengers := make(map[conversation.Channel]conversation.ReplyMessenger)

	var waAdapter *whatsapp.Adapter
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		waAdapter = whatsapp.NewAdapter(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID,
			cfg.WhatsAppAppSecret, cfg.WhatsAppVerifyToken, publisher, logger)
		messengers[conversation.ChannelWhatsApp] = waAdapter
	}

	var igAdapter *instagram.Adapter
	if cfg.InstagramAccessToken != "" {
		igAdapter = instagram.NewAdapter(cfg.InstagramAccessToken, cfg.InstagramAppSecret,
			cfg.InstagramVerifyToken, publisher, logger)
		messengers[conversation.ChannelInstagram] = igAdapter
	}

	webchatHandler := webchat.NewHandler(publisher, sessions, webchat.WidgetJS, cfg.WidgetAPIKey, logger)
	messengers[conversation.ChannelWidget] = webchat.NewReplyMessenger(webchatHandler, logger)

	// With the in-memory queue the worker must run in-process; nothing
	// else consumes it.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var worker *conversation.Worker
	if cfg.UseMemoryQueue || cfg.ConversationQueueURL == "" {
		workerOpts := []conversation.WorkerOption{
			conversation.WithWorkerCount(cfg.WorkerCount),
			conversation.WithWorkerMetrics(convMetrics),
		}
		if orderSvc != nil {
			workerOpts = append(workerOpts, conversation.WithCheckoutRecorder(orderSvc))
		}
		worker = conversation.NewWorker(engine, queue, jobStore, messengers, logger, workerOpts...)
		worker.Start(runCtx)
	}

	conversationHandler := conversation.NewHandler(publisher, jobStore, engine, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		WhatsAppAdapter:     waAdapter,
		InstagramAdapter:    igAdapter,
		WebchatHandler:      webchatHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		WebhookRate:         10,
		WebhookBurst:        30,
	}
	if db != nil {
		routerCfg.AdminDashboard = handlers.NewAdminDashboardHandler(db, sessions, logger)
	}
	if orderSvc != nil {
		routerCfg.AdminOrders = handlers.NewAdminOrdersHandler(orderSvc, logger)
	}
	routerCfg.AdminStats = handlers.NewAdminStatsHandler(nil, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stop()
	if worker != nil {
		worker.Wait()
	}

	logger.Info("server stopped")
}
