package main

import (
	"context"
	"crypto/tls"
	"database/sql"
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
	"github.com/redis/go-redis/v9"

	"github.com/rosatel/rosatel-ai-platform/cmd/mainconfig"
	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
	"github.com/rosatel/rosatel-ai-platform/internal/channels/instagram"
	"github.com/rosatel/rosatel-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/rosatel/rosatel-ai-platform/internal/config"
	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/internal/notify"
	"github.com/rosatel/rosatel-ai-platform/internal/observability/metrics"
	"github.com/rosatel/rosatel-ai-platform/internal/orders"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// The worker is the sole consumer of the turn queue. It runs the engine
// for every enqueued turn and delivers replies through the channel
// adapters, so it carries the same model/catalog wiring as the API.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting rosatel conversation worker", "env", cfg.Env)

	if cfg.ConversationQueueURL == "" {
		logger.Error("CONVERSATION_QUEUE_URL is required; with the in-memory queue the API consumes turns itself")
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

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
	}

	convMetrics := metrics.NewConversationMetrics(nil)
	engineOpts := []conversation.EngineOption{conversation.WithMetrics(convMetrics)}
	if llm != nil {
		engineOpts = append(engineOpts, conversation.WithLLMClient(llm, modelID))
	}
	engine := conversation.NewEngine(sessions, cat, cfg.CheckoutBaseURL, logger, engineOpts...)

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
	publisher := conversation.NewPublisher(queue, logger)

	var jobStore conversation.JobUpdater
	if cfg.UsePostgresJobs && pool != nil {
		jobStore = conversation.NewPGJobStore(pool)
	} else {
		jobStore = conversation.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.TurnJobsTable, logger)
	}

	messengers := make(map[conversation.Channel]conversation.ReplyMessenger)
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		messengers[conversation.ChannelWhatsApp] = whatsapp.NewAdapter(
			cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID,
			cfg.WhatsAppAppSecret, cfg.WhatsAppVerifyToken, publisher, logger)
	}
	if cfg.InstagramAccessToken != "" {
		messengers[conversation.ChannelInstagram] = instagram.NewAdapter(
			cfg.InstagramAccessToken, cfg.InstagramAppSecret,
			cfg.InstagramVerifyToken, publisher, logger)
	}

	workerOpts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithWorkerMetrics(convMetrics),
	}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
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
		orderSvc := orders.NewService(orders.NewRepository(db), notifier, logger)
		workerOpts = append(workerOpts, conversation.WithCheckoutRecorder(orderSvc))
	}

	worker := conversation.NewWorker(engine, queue, jobStore, messengers, logger, workerOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	worker.Start(runCtx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}
