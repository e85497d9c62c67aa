// Package main boots the SkillSphere chat service and wires application dependencies.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Patelhetu-177/SkillSphere/internal/auth"
	"github.com/Patelhetu-177/SkillSphere/internal/cache"
	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/config"
	"github.com/Patelhetu-177/SkillSphere/internal/documents"
	"github.com/Patelhetu-177/SkillSphere/internal/generation"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/models"
	"github.com/Patelhetu-177/SkillSphere/internal/queue"
	"github.com/Patelhetu-177/SkillSphere/internal/quiz"
	"github.com/Patelhetu-177/SkillSphere/internal/ratelimit"
	"github.com/Patelhetu-177/SkillSphere/internal/server"
	"github.com/Patelhetu-177/SkillSphere/internal/storage"
	"github.com/Patelhetu-177/SkillSphere/internal/transcript"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	slog.Info("configuration loaded",
		"provider", cfg.LLMProvider,
		"chat_model", cfg.ChatModel,
		"embedding_model", cfg.EmbeddingModel,
		"queue_enabled", cfg.QueueEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	rdb, limiter := connectRedis(ctx, cfg)
	defer func() { _ = rdb.Close() }()

	llm, err := models.New(ctx, models.Provider(cfg.LLMProvider), cfg.ChatModel, cfg.ProviderAPIKey())
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}
	embedder, err := memory.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}

	transcripts := transcript.NewStore(rdb, transcript.WithLimit(cfg.HistoryLimit))
	windows := cache.New(cfg.CacheSize, cfg.CacheTTL)
	retriever := memory.NewRetriever(embedder, store.Vectors, cfg.TopK)
	controller := generation.NewController(llm, cfg.GenerationTimeout)
	genCfg := models.GenerationConfig(float32(cfg.Temperature), int32(cfg.MaxOutputTokens))

	writer := chat.NewTurnWriter(transcripts, store.Messages, windows).WithIndexer(retriever)
	background := chat.NewBackgroundDispatcher(writer, cfg.PersistRetries, 200*time.Millisecond)
	defer background.Wait()

	var dispatcher chat.Dispatcher = background
	if cfg.QueueEnabled {
		connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to parse REDIS_URL for queue: %v", err)
		}
		client := asynq.NewClient(connOpt)
		defer func() { _ = client.Close() }()
		dispatcher = queue.NewDispatcher(client, background)

		worker := queue.NewWorker(connOpt, cfg.QueueConcurrency, writer)
		if err := worker.Start(); err != nil {
			log.Fatalf("%v", err)
		}
		defer worker.Shutdown()
	}

	chatService := chat.NewService(chat.Deps{
		Personas:   store.Personas,
		Messages:   store.Messages,
		Transcript: transcripts,
		Cache:      windows,
		Retriever:  retriever,
		Sampler:    memory.NewSampler(cfg.EnrichMinHistory, cfg.EnrichRate),
		Limiter:    limiter,
		Generator:  controller,
		Dispatcher: dispatcher,
	}, chat.Options{HistoryLimit: cfg.HistoryLimit, TopK: cfg.TopK, Generation: genCfg})

	personaService, err := chat.NewPersonaService(store.Personas)
	if err != nil {
		log.Fatalf("failed to create persona service: %v", err)
	}
	documentService := documents.NewService(store.Documents, retriever, controller, genCfg)
	quizService, err := quiz.NewService(store.Quizzes, controller, retriever, quiz.NewRedisCache(rdb, quiz.DefaultCacheTTL), genCfg)
	if err != nil {
		log.Fatalf("failed to create quiz service: %v", err)
	}

	verifier, err := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer)
	if err != nil {
		log.Fatalf("failed to create token verifier: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	srv := server.New(server.Deps{
		Chat:      chatService,
		Personas:  personaService,
		Documents: documentService,
		Quiz:      quizService,
		Verifier:  verifier,
		Registry:  registry,
	}, server.Options{Addr: cfg.HTTPAddr, CORSOrigins: cfg.CORSOrigins})

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
	slog.Info("waiting for pending turn persistence")
}

// connectRedis returns the transcript client and the rate limiter. Without REDIS_URL an
// in-process Redis holds transcripts for the life of the process and limits are per
// instance.
func connectRedis(ctx context.Context, cfg config.Config) (*redis.Client, ratelimit.Limiter) {
	if cfg.RedisURL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			log.Fatalf("failed to start in-process redis: %v", err)
		}
		slog.Warn("REDIS_URL not set, transcripts are kept in memory", "addr", mr.Addr())
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return rdb, ratelimit.NewLocalLimiter(cfg.RateLimit, cfg.RateWindow)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	return rdb, ratelimit.NewRedisLimiter(rdb, cfg.RateLimit, cfg.RateWindow)
}
