package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/rosatel/rosatel-ai-platform/cmd/mainconfig"
	"github.com/rosatel/rosatel-ai-platform/internal/archive"
	appconfig "github.com/rosatel/rosatel-ai-platform/internal/config"
	"github.com/rosatel/rosatel-ai-platform/internal/conversation"
	"github.com/rosatel/rosatel-ai-platform/internal/orders"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Scheduled sweep: archives idle conversations to S3 and purges them
// from Redis. Triggered by an EventBridge rule, typically hourly.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.ArchiveBucket == "" {
		logger.Error("ARCHIVE_BUCKET is required")
		os.Exit(1)
	}
	if cfg.RedisAddr == "" {
		logger.Error("REDIS_ADDR is required")
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	sessions := conversation.NewRedisSessionStore(redis.NewClient(opts), cfg.SessionTTL, nil)

	store := archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)

	sweeperOpts := []archive.SweeperOption{
		archive.WithIdleThreshold(cfg.ArchiveAfter),
		archive.WithPurge(),
	}
	if cfg.BedrockModelID != "" {
		classifier := archive.NewClassifier(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, logger)
		sweeperOpts = append(sweeperOpts, archive.WithClassifier(classifier))
	}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open orders db", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		sweeperOpts = append(sweeperOpts, archive.WithOrderLister(orders.NewRepository(db)))
	}

	sweeper := archive.NewSweeper(sessions, store, logger, sweeperOpts...)
	if sweeper == nil {
		logger.Error("archive sweeper not configured")
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, _ events.CloudWatchEvent) error {
		archived, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Error("archive sweep failed", "error", err)
			return err
		}
		logger.Info("archive sweep complete", "archived", archived)
		return nil
	})
}
