package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/codepipeline"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/config"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/consumer"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/dynatrace"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/handlers"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/metrics"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/normalize"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/processor"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/router"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/sender"
)

const serviceName = "eventpush"

func main() {
	// Parse command-line flags
	cfg := &config.Config{}
	flag.StringVar(&cfg.Port, "port", "8080", "HTTP listen port")
	flag.StringVar(&cfg.TenantURL, "dt-tenant-url", "", "Dynatrace tenant URL (or DT_TENANT_URL)")
	flag.StringVar(&cfg.APIToken, "dt-api-token", "", "Dynatrace API token (or DT_API_TOKEN)")
	flag.StringVar(&cfg.AWSRegion, "aws-region", "us-east-1", "AWS region for CodePipeline and S3")
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", "", "Kafka broker addresses (comma-separated); empty disables Kafka ingest")
	flag.StringVar(&cfg.KafkaTopic, "kafka-topic", "events.incoming", "Kafka topic for triggering payloads")
	flag.StringVar(&cfg.KafkaGroupID, "kafka-group-id", "eventpush-group", "Kafka consumer group ID")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for metrics reporting; empty disables it")
	flag.Parse()

	// Set up structured logging
	// Allow DEBUG level via environment variable for troubleshooting
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg.Load()

	slog.Info("Starting eventpush service",
		"port", cfg.Port,
		"dt_tenant_url", cfg.TenantURL,
		"dt_api_token", config.MaskToken(cfg.APIToken),
		"aws_region", cfg.AWSRegion,
		"kafka_brokers", cfg.KafkaBrokers,
		"redis_addr", cfg.RedisAddr,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Initialize the monitoring API configuration. This must succeed before
	// any payload is processed.
	api, err := dynatrace.New(cfg.APIToken, cfg.TenantURL)
	if err != nil {
		slog.Error("Failed to initialize monitoring API configuration", "error", err)
		os.Exit(1)
	}

	// Initialize the orchestrator adapter
	pipeline, err := codepipeline.New(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Error("Failed to initialize CodePipeline client", "error", err)
		os.Exit(1)
	}

	// Optional Redis-backed metrics collection
	var recorder metrics.Recorder = metrics.NewNoOp()
	var collector *metrics.Collector
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		collector = metrics.NewCollector(serviceName, redisClient)
		collector.Start(ctx)
		defer collector.Stop()
		recorder = collector
		slog.Info("Metrics collection enabled", "redis_addr", cfg.RedisAddr)
	}

	normalizer := normalize.New(pipeline, pipeline)
	submitter := sender.New(api)
	proc := processor.NewWithMetrics(normalizer, submitter, pipeline, recorder)

	var metricsSource handlers.MetricsSource
	if collector != nil {
		metricsSource = collector
	}
	h := handlers.NewHandlers(proc, metricsSource)
	srv := router.NewServer(cfg.Port, h)

	// Optional Kafka ingest loop alongside the HTTP server
	if cfg.KafkaBrokers != "" {
		kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		if err != nil {
			slog.Error("Failed to create Kafka consumer", "error", err)
			os.Exit(1)
		}
		defer kafkaConsumer.Close()
		go ingestPayloads(ctx, kafkaConsumer, proc)
	}

	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	slog.Info("Eventpush service stopped")
}
