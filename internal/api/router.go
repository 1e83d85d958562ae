package api

import (
	"errors"
	"time"

	"souschef/internal/api/handlers/health"
	pantryHandler "souschef/internal/api/handlers/pantry"
	recipeHandler "souschef/internal/api/handlers/recipe"
	"souschef/internal/api/middleware"
	"souschef/internal/core/pantry"
	"souschef/internal/core/rag"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// server 未設寫入上限時使用；推薦最多三次生成
	defaultRequestTimeout = 120 * time.Second
	// 逾時回應需在連線被 WriteTimeout 切斷前寫出
	timeoutHeadroom = 5 * time.Second
)

// requestTimeout 由 server 寫入上限推得 handler 逾時，永遠小於 writeTimeout
func requestTimeout(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return defaultRequestTimeout
	}
	if writeTimeout <= 2*timeoutHeadroom {
		return writeTimeout / 2
	}
	return writeTimeout - timeoutHeadroom
}

// Dependencies 路由需要的服務
type Dependencies struct {
	Recommender recipeHandler.Recommender
	Retriever   rag.Retriever
	Cookbook    recipeHandler.CookbookWriter
	Pantry      *pantry.Service
	Index       health.IndexStatus
	Cache       health.StatsProvider
	Queue       health.StatsProvider
	DB          health.Pinger
}

func (d Dependencies) validate() error {
	switch {
	case d.Recommender == nil:
		return errors.New("recommender is required")
	case d.Retriever == nil:
		return errors.New("retriever is required")
	case d.Cookbook == nil:
		return errors.New("cookbook is required")
	case d.Pantry == nil:
		return errors.New("pantry service is required")
	}
	return nil
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(common.GenerateUUID)))
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Index-Rebuilt"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	timeout := requestTimeout(cfg.Server.WriteTimeout)
	router.Use(middleware.Timeout(timeout))

	// 健康檢查與指標
	healthHandler := health.NewHandler(cfg.App.Version, deps.Index, deps.Cache, deps.Queue, deps.DB)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	recipes := recipeHandler.NewHandler(deps.Recommender, deps.Retriever, deps.Cookbook)
	pantryItems := pantryHandler.NewHandler(deps.Pantry)

	dedup := middleware.NewDeduplicator(cfg.DedupWindow)

	// API 路由組
	api := router.Group("/api/v1")
	api.Use(dedup.Middleware())
	{
		recommend := []gin.HandlerFunc{}
		if cfg.RateLimit.Enabled {
			recommend = append(recommend, middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
		}
		recommend = append(recommend, recipes.HandleRecommend)
		api.POST("/recommendations", recommend...)

		api.GET("/recipes/search", recipes.HandleSearch)
		api.POST("/cookbook", recipes.HandleAddToCookbook)

		pantryGroup := api.Group("/pantry")
		{
			pantryGroup.GET("/items", pantryItems.HandleList)
			pantryGroup.POST("/items", pantryItems.HandleAdd)
			pantryGroup.DELETE("/items/:id", pantryItems.HandleDelete)
			pantryGroup.GET("/expiring", pantryItems.HandleExpiring)
			pantryGroup.POST("/cook", pantryItems.HandleCook)
			pantryGroup.POST("/grocery-list", pantryItems.HandleGroceryList)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("dedup_window", cfg.DedupWindow),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}
