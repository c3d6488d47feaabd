package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/config"
	dbRedis "github.com/storeway/catsync/internal/db/redis"
	logpkg "github.com/storeway/catsync/internal/logger"
	"github.com/storeway/catsync/internal/metrics"
	"github.com/storeway/catsync/internal/notify"
	checkpointrepo "github.com/storeway/catsync/internal/repository/checkpoint"
	deadletterrepo "github.com/storeway/catsync/internal/repository/deadletter"
	indexdocrepo "github.com/storeway/catsync/internal/repository/indexdoc"
	rankrepo "github.com/storeway/catsync/internal/repository/rank"
	recordmongo "github.com/storeway/catsync/internal/repository/record/mongo"
	tagstorerepo "github.com/storeway/catsync/internal/repository/tagstore"
	chiTransport "github.com/storeway/catsync/internal/transport/chi"
	coordinatoruc "github.com/storeway/catsync/internal/usecase/coordinator"
	healthuc "github.com/storeway/catsync/internal/usecase/health"
	indexwriteruc "github.com/storeway/catsync/internal/usecase/indexwriter"
	rankinguc "github.com/storeway/catsync/internal/usecase/ranking"
	tagimportuc "github.com/storeway/catsync/internal/usecase/tagimport"
	"github.com/storeway/catsync/internal/version"
	"github.com/storeway/catsync/internal/worker"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting catsync pipeline",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("record_store_db", cfg.RecordStore.Database),
	)

	// Search index store (Redis)
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to search index store")

	// Catalog record store (MongoDB)
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.RecordStore.URI))
	if err != nil {
		logger.Fatal("Failed to connect to record store", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()

	records := recordmongo.New(mongoClient.Database(cfg.RecordStore.Database))
	if err := records.Ping(ctx); err != nil {
		logger.Fatal("Record store not ready", zap.Error(err))
	}
	logger.Info("Connected to record store")

	metrics.RegisterPipelineMetrics()

	// Repositories — composition root
	prefix := cfg.Storage.KeyPrefix
	docs := indexdocrepo.New(store, prefix)
	ranks := rankrepo.New(store, prefix)
	tags := tagstorerepo.New(store, prefix)
	checkpoints := checkpointrepo.New(store, prefix)
	deadletters := deadletterrepo.New(store, prefix)

	if err := docs.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure index schema", zap.Error(err))
	}

	// Use case services
	writerSvc := indexwriteruc.New(records, docs, ranks, tags, logger)
	rankingSvc := rankinguc.New(records, ranks, writerSvc, rankinguc.Config{
		Weights: rankinguc.Weights{
			Orders:    cfg.Ranking.WeightOrders,
			Views:     cfg.Ranking.WeightViews,
			Favorites: cfg.Ranking.WeightFavorites,
			Rating:    cfg.Ranking.WeightRating,
		},
		Window:  cfg.Ranking.Window(),
		Recency: cfg.Ranking.RecencyWeights,
	}, logger)
	tagSvc := tagimportuc.New(records, tags, writerSvc, buildTagRules(cfg.Tags), logger)

	notifier := notify.NewStreamNotifier(store, cfg.Alerts.Stream, logger)

	coordinator := coordinatoruc.New(
		records, writerSvc, rankingSvc, tagSvc,
		checkpoints, deadletters, notifier, docs,
		coordinatoruc.Config{
			Workers:     cfg.Pipeline.Workers,
			BatchSize:   cfg.Pipeline.FeedBatchSize,
			MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
			BackoffBase: time.Duration(cfg.Pipeline.RetryBackoffMS) * time.Millisecond,
			BackoffCap:  time.Duration(cfg.Pipeline.RetryBackoffCapMS) * time.Millisecond,
		},
		logger,
	)

	healthSvc := healthuc.New(store, records)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	feedWorker := worker.NewFeedWorker(coordinator, worker.FeedWorkerConfig{
		PollInterval: time.Duration(cfg.Pipeline.FeedPollIntervalMS) * time.Millisecond,
	}, logger)
	scheduleWorker := worker.NewScheduleWorker(coordinator, worker.ScheduleWorkerConfig{
		CycleInterval: time.Duration(cfg.Pipeline.CycleIntervalSec) * time.Second,
		SweepInterval: time.Duration(cfg.Pipeline.RescanIntervalSec) * time.Second,
	}, logger)

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		_ = feedWorker.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		_ = scheduleWorker.Run(workerCtx)
	}()

	// Ops HTTP server
	server := chiTransport.NewServer(coordinator, deadletters, checkpoints, docs, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	coordinator.CancelReindex()
	stopWorkers()
	workers.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Pipeline stopped gracefully")
}

// buildTagRules assembles the closed rule set from configuration.
func buildTagRules(cfg config.TagsConfig) []tagimportuc.Rule {
	var rules []tagimportuc.Rule
	if len(cfg.CategoryTags) > 0 {
		rules = append(rules, tagimportuc.NewCategoryRule(cfg.CategoryTags))
	}
	if len(cfg.PriceBands) > 0 {
		bands := make([]tagimportuc.PriceBand, len(cfg.PriceBands))
		for i, b := range cfg.PriceBands {
			bands[i] = tagimportuc.PriceBand{Max: b.Max, Tag: b.Tag}
		}
		rules = append(rules, tagimportuc.NewPriceBandRule(bands))
	}
	if len(cfg.KeywordTags) > 0 {
		rules = append(rules, tagimportuc.NewKeywordRule(cfg.KeywordTags))
	}
	for _, imp := range cfg.Importers {
		rules = append(rules, tagimportuc.NewImporter(imp.Name, imp.SKUs, imp.Tags, imp.Start, imp.End))
	}
	return rules
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
