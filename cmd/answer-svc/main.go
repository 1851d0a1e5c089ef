// Package main 问答服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Rogan-afk/NutriNephra/internal/application/answer"
	"github.com/Rogan-afk/NutriNephra/internal/application/guard"
	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/config"
	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/embedding"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/llm"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/docstore"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/milvus"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/redis"
	"github.com/Rogan-afk/NutriNephra/internal/interfaces/http/handler"
	"github.com/Rogan-afk/NutriNephra/internal/interfaces/http/middleware"
	"github.com/Rogan-afk/NutriNephra/internal/interfaces/http/router"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting answer-svc",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// Milvus
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	milvusRepo := milvus.NewRepository(milvusClient)
	summaryIndex := milvus.NewSummaryIndexAdapter(milvusRepo)

	// Redis（可选：失败时禁用缓存与限流，不阻塞启动）
	var redisClient *redis.Client
	var answerCache answer.Cache
	var limiter middleware.RateLimiter
	if rc, err := redis.NewClient(&cfg.Cache.Redis); err != nil {
		log.Warn("redis unavailable, cache and rate limiting disabled", "error", err)
	} else {
		redisClient = rc
		defer func() { _ = redisClient.Close() }()
		answerCache = redis.NewAnswerCache(redisClient, cfg.Cache.AnswerTTL)
		limiter = redis.NewRateLimiter(redisClient)
	}

	// 文档存储快照
	store := docstore.NewStore()
	if snap, err := docstore.LoadSnapshot(cfg.Store.SnapshotDir); err != nil {
		log.Warn("content snapshot not loaded, service will not be ready",
			"dir", cfg.Store.SnapshotDir, "error", err)
	} else {
		store.Swap(snap.Units)
		log.Info("content snapshot loaded", "units", store.Len())
	}

	// Embedder
	embedder, err := embedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init embedder", err)
	}

	// LLM
	llmFactory := llm.NewEinoFactory(cfg)
	generation := llm.NewGenerator(llmFactory, &cfg.LLM)

	// 检索流水线
	modalities := make([]entity.Modality, 0, len(cfg.Retrieval.Modalities))
	for _, m := range cfg.Retrieval.Modalities {
		modalities = append(modalities, entity.Modality(m))
	}
	retriever := retrieval.NewRetriever(embedder, summaryIndex, store, modalities, retrieval.RetryPolicy{
		MaxAttempts: cfg.Retrieval.Retry.MaxAttempts,
		Initial:     cfg.Retrieval.Retry.Initial,
		Max:         cfg.Retrieval.Retry.Max,
		Multiplier:  cfg.Retrieval.Retry.Multiplier,
	})
	classifier := retrieval.NewHeuristicClassifier(cfg.Planner.ComplexTokenThreshold)
	planner := retrieval.NewPlanner(retriever, classifier,
		cfg.Retrieval.KInitial, cfg.Retrieval.KExpand,
		cfg.Planner.MaxRounds, cfg.Planner.RoundTimeout)
	reranker := retrieval.NewLexicalReranker()
	fallback := retrieval.NewKeywordFallback(store, cfg.Rerank.TopK)

	// 守卫
	gate := guard.NewGate(cfg.Guard.MinQueryLength, cfg.Guard.MinAlphaChars)
	counsel := guard.NewCounsel(guard.CounselRules{
		SodiumMgMax:       cfg.Rules.SodiumMgMax,
		PotassiumMgLimit:  cfg.Rules.PotassiumMgLimitFlag,
		PhosphorusMgLimit: cfg.Rules.PhosphorusMgLimit,
		HazardFoods:       cfg.Rules.HazardFoods,
	})

	// 答案合成
	composerOpts := answer.ComposerOptions{
		MaxOutputChars: cfg.Answer.MaxOutputChars,
		Retry: retrieval.RetryPolicy{
			MaxAttempts: cfg.Answer.Retry.MaxAttempts,
			Initial:     cfg.Answer.Retry.Initial,
			Max:         cfg.Answer.Retry.Max,
			Multiplier:  cfg.Answer.Retry.Multiplier,
		},
	}
	composers := map[answer.Mode]answer.Composer{
		answer.ModeAnswerOnly:         answer.NewAnswerOnly(generation, composerOpts),
		answer.ModeAgenticWithSources: answer.NewAgenticWithSources(generation, composerOpts),
	}

	pipeline := answer.NewPipeline(gate, counsel, planner, reranker, fallback, composers, answerCache, answer.PipelineOptions{
		RequestTimeout:                cfg.Answer.RequestTimeout,
		TopK:                          cfg.Rerank.TopK,
		ConsistencyMaxDroppedFraction: cfg.Answer.ConsistencyMaxDroppedFraction,
	})

	// 路由
	r := router.New(cfg, router.Handlers{
		Answer: handler.NewAnswerHandler(pipeline, cfg),
		Health: handler.NewHealthHandler(redisClient, milvusClient, summaryIndex, store),
		Admin:  handler.NewAdminHandler(store, cfg.Store.SnapshotDir),
	}, limiter)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
