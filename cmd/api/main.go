package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"souschef/internal/api"
	"souschef/internal/core/ai/cache"
	"souschef/internal/core/ai/embedding"
	"souschef/internal/core/ai/openai"
	"souschef/internal/core/ai/provider"
	"souschef/internal/core/ai/queue"
	"souschef/internal/core/pantry"
	"souschef/internal/core/rag"
	"souschef/internal/core/recipe"
	"souschef/internal/infrastructure/config"
	"souschef/internal/infrastructure/database"
	"souschef/internal/pkg/common"

	"go.uber.org/zap"
)

// 索引預熱上限；失敗時由第一次查詢再建立
const warmupTimeout = 2 * time.Minute

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openai_api_key", config.MaskAPIKey(cfg.OpenAI.APIKey)),
		zap.String("chat_model", cfg.OpenAI.ChatModel),
		zap.Strings("call_shapes", cfg.OpenAI.CallShapes),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("corpus", cfg.Corpus.Path),
	)

	// 向量快取
	store, err := cache.New(cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	client := openai.NewClient(cfg.OpenAI)
	embedder, err := embedding.New(cfg.Embedding, client)
	if err != nil {
		common.LogFatal("Failed to initialize embedder", zap.Error(err))
	}
	embedder = cache.NewEmbedder(embedder, store)

	// 相似度索引與食譜語料
	corpus := rag.NewFileCorpus(cfg.Corpus.Path)
	index := rag.NewIndex(embedder, corpus, rag.WithSteps(cfg.Corpus.IncludeSteps))
	retriever := rag.NewService(index)
	cookbook := rag.NewCookbook(corpus, index)

	// 所有模型呼叫經由同一個隊列
	generators, err := openai.NewGenerators(client, cfg.OpenAI.CallShapes)
	if err != nil {
		common.LogFatal("Failed to initialize generators", zap.Error(err))
	}
	queueManager := queue.NewManager(cfg.Queue)
	defer queueManager.Close()
	chain := provider.NewChain(queueManager.WrapAll(generators...)...)

	// 食材庫
	db, err := database.Open(cfg.Database)
	if err != nil {
		common.LogFatal("Failed to open pantry database", zap.Error(err))
	}
	defer database.Close(db)

	pantryStore := pantry.NewStore(db)
	if err := pantryStore.Migrate(); err != nil {
		common.LogFatal("Failed to migrate pantry database", zap.Error(err))
	}
	pantrySvc := pantry.NewService(pantryStore, pantry.NewEstimator(chain), cfg.Recommend.ExpiringWithinDays)

	recommender := recipe.NewRecommendService(
		pantrySvc,
		retriever,
		chain,
		recipe.OptionsFromConfig(cfg.Recommend, cfg.OpenAI),
		recipe.WithWebSource(recipe.NewWebSource(chain.Generators()...)),
	)

	deps := api.Dependencies{
		Recommender: recommender,
		Retriever:   retriever,
		Cookbook:    cookbook,
		Pantry:      pantrySvc,
		Index:       index,
		Queue:       queueManager,
		DB:          pantryStore,
	}
	if store != nil {
		deps.Cache = store
	}

	// 設置路由
	router, err := api.SetupRouter(cfg, deps)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 背景預熱索引
	warmCtx, stopWarmup := context.WithTimeout(context.Background(), warmupTimeout)
	defer stopWarmup()
	go func() {
		if err := index.EnsureReady(warmCtx); err != nil {
			common.LogWarn("索引預熱失敗，將於第一次查詢時重試", zap.Error(err))
			return
		}
		common.LogInfo("索引預熱完成", zap.Int("entries", index.Len()))
	}()

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")
	stopWarmup()

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
