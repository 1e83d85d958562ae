package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 支援的模型呼叫形式
const (
	ShapeResponses   = "responses"
	ShapeChat        = "chat"
	ShapeCompletions = "completions"
)

// 向量提供者
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderLocal  = "local"
)

// 快取後端
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	OpenAI      OpenAIConfig    `mapstructure:"openai"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Corpus      CorpusConfig    `mapstructure:"corpus"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Recommend   RecommendConfig `mapstructure:"recommend"`
	Queue       QueueConfig     `mapstructure:"queue"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// OpenAIConfig OpenAI 相容 API 設定
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	ChatModel       string        `mapstructure:"chat_model"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	CallShapes      []string      `mapstructure:"call_shapes"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
}

// EmbeddingConfig 向量設定
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Dimensions int    `mapstructure:"dimensions"`
}

// CorpusConfig 食譜語料設定
type CorpusConfig struct {
	Path         string `mapstructure:"path"`
	IncludeSteps bool   `mapstructure:"include_steps"`
}

// DatabaseConfig 食材庫資料庫設定
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RecommendConfig 推薦流程設定
type RecommendConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	TopK               int `mapstructure:"top_k"`
	MinRecipes         int `mapstructure:"min_recipes"`
	MaxRecipes         int `mapstructure:"max_recipes"`
	ExpiringWithinDays int `mapstructure:"expiring_within_days"`
	WebTopK            int `mapstructure:"web_top_k"`
}

// QueueConfig 生成請求隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 可有可無
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindEnv(v, "openai.api_key", "OPENAI_API_KEY")
	bindEnv(v, "openai.base_url", "OPENAI_BASE_URL")
	bindEnv(v, "openai.chat_model", "OPENAI_MODEL")
	bindEnv(v, "openai.embedding_model", "OPENAI_EMBEDDING_MODEL")
	bindEnv(v, "openai.max_tokens", "MODEL_MAX_TOKENS")
	bindEnv(v, "embedding.provider", "EMBEDDING_PROVIDER")
	bindEnv(v, "corpus.path", "RECIPES_PATH")
	bindEnv(v, "database.path", "PANTRY_DB_PATH")
	bindEnv(v, "cache.enabled", "CACHE_ENABLED")
	bindEnv(v, "cache.backend", "CACHE_BACKEND")
	bindEnv(v, "cache.redis_addr", "REDIS_ADDR")
	bindEnv(v, "cache.redis_password", "REDIS_PASSWORD")
	bindEnv(v, "queue.workers", "QUEUE_WORKERS")
	bindEnv(v, "queue.max_size", "QUEUE_MAX_SIZE")
	bindEnv(v, "rate_limit.enabled", "RATE_LIMIT_ENABLED")
	bindEnv(v, "rate_limit.requests", "RATE_LIMIT_REQUESTS")
	bindEnv(v, "rate_limit.window", "RATE_LIMIT_WINDOW")
	bindEnv(v, "dedup_window", "DEDUP_WINDOW")
	bindEnv(v, "log_level", "LOG_LEVEL")
	bindEnv(v, "server.port", "PORT")

	// 設定設定檔名稱和路徑
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 讀取設定檔
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration",
		"openai_api_key:", MaskAPIKey(v.GetString("openai.api_key")),
		"chat_model:", v.GetString("openai.chat_model"),
		"embedding_provider:", v.GetString("embedding.provider"),
	)

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 環境變數給的是逗號分隔字串
	config.OpenAI.CallShapes = splitShapes(config.OpenAI.CallShapes)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func bindEnv(v *viper.Viper, key, env string) {
	// BindEnv 只有在參數為空時才會失敗
	_ = v.BindEnv(key, env)
}

func splitShapes(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "souschef")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// OpenAI 設定
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.completion_model", "gpt-3.5-turbo-instruct")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.call_shapes", []string{ShapeResponses, ShapeChat, ShapeCompletions})
	v.SetDefault("openai.timeout", "60s")
	v.SetDefault("openai.max_tokens", 2000)
	v.SetDefault("openai.temperature", 0.2)

	// 向量設定
	v.SetDefault("embedding.provider", EmbeddingProviderOpenAI)
	v.SetDefault("embedding.dimensions", 256)

	// 語料與資料庫
	v.SetDefault("corpus.path", "recipes/seed_recipes.json")
	v.SetDefault("corpus.include_steps", false)
	v.SetDefault("database.path", "data/pantry.db")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.max_size", 5000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// 推薦設定
	v.SetDefault("recommend.max_attempts", 3)
	v.SetDefault("recommend.top_k", 5)
	v.SetDefault("recommend.min_recipes", 3)
	v.SetDefault("recommend.max_recipes", 5)
	v.SetDefault("recommend.expiring_within_days", 2)
	v.SetDefault("recommend.web_top_k", 5)

	// 隊列設定
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_size", 100)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證模型設定
	if len(config.OpenAI.CallShapes) == 0 {
		return fmt.Errorf("at least one openai call shape is required")
	}
	for _, shape := range config.OpenAI.CallShapes {
		switch shape {
		case ShapeResponses, ShapeChat, ShapeCompletions:
		default:
			return fmt.Errorf("unknown openai call shape %q", shape)
		}
	}
	if config.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}

	switch config.Embedding.Provider {
	case EmbeddingProviderOpenAI:
	case EmbeddingProviderLocal:
		if config.Embedding.Dimensions <= 0 {
			return fmt.Errorf("invalid local embedding dimensions")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", config.Embedding.Provider)
	}

	if config.Corpus.Path == "" {
		return fmt.Errorf("corpus path is required")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case CacheBackendMemory:
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case CacheBackendRedis:
			if config.Cache.RedisAddr == "" {
				return fmt.Errorf("redis address is required for redis cache")
			}
		default:
			return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	// 驗證推薦設定
	r := config.Recommend
	if r.MaxAttempts < 1 {
		return fmt.Errorf("recommend max attempts must be >= 1")
	}
	if r.TopK < 1 || r.WebTopK < 1 {
		return fmt.Errorf("recommend top k must be >= 1")
	}
	if r.MinRecipes < 1 || r.MaxRecipes < r.MinRecipes {
		return fmt.Errorf("invalid recommend recipe range %d-%d", r.MinRecipes, r.MaxRecipes)
	}
	if r.ExpiringWithinDays < 0 {
		return fmt.Errorf("expiring window must not be negative")
	}

	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit settings")
	}

	return nil
}
