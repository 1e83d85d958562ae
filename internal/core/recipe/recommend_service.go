package recipe

import (
	"context"
	"fmt"
	"time"

	"souschef/internal/core/ai/provider"
	"souschef/internal/core/rag"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"
	"souschef/internal/pkg/metrics"

	"go.uber.org/zap"
)

// PantryReader 提供目前的食材清單
type PantryReader interface {
	ListPantry(ctx context.Context) ([]common.PantryItem, error)
}

// Options 推薦流程參數
type Options struct {
	MaxAttempts        int
	TopK               int
	MinRecipes         int
	MaxRecipes         int
	ExpiringWithinDays int
	WebTopK            int
	MaxTokens          int
	Temperature        float64
}

// DefaultOptions 預設參數
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        3,
		TopK:               rag.DefaultTopK,
		MinRecipes:         3,
		MaxRecipes:         5,
		ExpiringWithinDays: 2,
		WebTopK:            5,
	}
}

// OptionsFromConfig 由設定檔建立參數
func OptionsFromConfig(rc config.RecommendConfig, oc config.OpenAIConfig) Options {
	return Options{
		MaxAttempts:        rc.MaxAttempts,
		TopK:               rc.TopK,
		MinRecipes:         rc.MinRecipes,
		MaxRecipes:         rc.MaxRecipes,
		ExpiringWithinDays: rc.ExpiringWithinDays,
		WebTopK:            rc.WebTopK,
		MaxTokens:          oc.MaxTokens,
		Temperature:        oc.Temperature,
	}
}

// RecommendRequest 推薦請求
type RecommendRequest struct {
	// IncludeWeb 同時向網路來源取候選
	IncludeWeb bool
	// WebCandidates 呼叫端已取得的網路候選，直接併入
	WebCandidates []common.CandidateRecipe
}

// RecommendService 根據食材與候選食譜產生推薦
type RecommendService struct {
	pantry    PantryReader
	retriever rag.Retriever
	generator provider.Generator
	web       *WebSource
	opts      Options
	now       func() time.Time
}

// ServiceOption 推薦服務選項
type ServiceOption func(*RecommendService)

// WithClock 替換時間來源
func WithClock(now func() time.Time) ServiceOption {
	return func(s *RecommendService) { s.now = now }
}

// WithWebSource 啟用網路候選
func WithWebSource(web *WebSource) ServiceOption {
	return func(s *RecommendService) { s.web = web }
}

// NewRecommendService 創建推薦服務
func NewRecommendService(pantry PantryReader, retriever rag.Retriever, generator provider.Generator, opts Options, options ...ServiceOption) *RecommendService {
	def := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.MinRecipes <= 0 {
		opts.MinRecipes = def.MinRecipes
	}
	if opts.MaxRecipes < opts.MinRecipes {
		opts.MaxRecipes = max(def.MaxRecipes, opts.MinRecipes)
	}
	if opts.WebTopK <= 0 {
		opts.WebTopK = def.WebTopK
	}

	s := &RecommendService{
		pantry:    pantry,
		retriever: retriever,
		generator: generator,
		opts:      opts,
		now:       time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Candidates 取得候選池：本地索引結果後接網路候選，不去重
func (s *RecommendService) Candidates(ctx context.Context, names []string, req RecommendRequest) ([]common.CandidateRecipe, error) {
	local, err := s.retriever.QueryRecipesByIngredients(ctx, names, s.opts.TopK)
	if err != nil {
		return nil, err
	}

	pool := make([]common.CandidateRecipe, 0, len(local)+len(req.WebCandidates)+s.opts.WebTopK)
	pool = append(pool, local...)
	pool = append(pool, req.WebCandidates...)

	if req.IncludeWeb && s.web != nil {
		res := s.web.Fetch(ctx, names, s.opts.WebTopK)
		pool = append(pool, res.Candidates...)
	}
	return pool, nil
}

// Recommend 產生 min..max 道推薦食譜
func (s *RecommendService) Recommend(ctx context.Context, req RecommendRequest) (*common.RecommendationResult, error) {
	items, err := s.pantry.ListPantry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pantry: %w", err)
	}
	if len(items) == 0 {
		return &common.RecommendationResult{Recipes: []common.RecommendedRecipe{}}, nil
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	names = common.NormalizeNames(names)

	candidates, err := s.Candidates(ctx, names, req)
	if err != nil {
		return nil, err
	}

	snapshot := BuildSnapshot(items, common.DateOf(s.now()), s.opts.ExpiringWithinDays)
	system := buildSystemPrompt(s.opts.MinRecipes, s.opts.MaxRecipes)
	user, err := buildUserPrompt(snapshot, candidates)
	if err != nil {
		return nil, err
	}

	parsed, err := s.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}

	recipes := decodeRecipes(parsed)
	if len(recipes) > s.opts.MaxRecipes {
		recipes = recipes[:s.opts.MaxRecipes]
	}
	if len(recipes) < s.opts.MinRecipes {
		common.LogWarn("推薦數量少於下限",
			zap.Int("count", len(recipes)),
			zap.Int("min", s.opts.MinRecipes),
		)
	}

	recipes, report := Backfill(recipes, candidates)
	common.LogInfo("推薦完成",
		zap.Int("recipes", len(recipes)),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", report.Matched),
		zap.Any("repairs", report.Repairs),
	)
	return &common.RecommendationResult{Recipes: recipes}, nil
}

// generate 生成與修復迴圈，最多 MaxAttempts 次
func (s *RecommendService) generate(ctx context.Context, system, user string) (interface{}, error) {
	maxTries := s.opts.MaxAttempts
	reason := ""
	lastRaw := ""
	var lastErr error

	for attempt := 1; attempt <= maxTries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := user
		if attempt > 1 {
			prompt = buildRepairPrompt(user, lastRaw, reason)
		}

		resp, err := s.generator.Generate(ctx, &provider.Request{
			System:      system,
			User:        prompt,
			JSONMode:    true,
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			reason = fmt.Sprintf("generation call failed: %v", err)
			metrics.GenerationAttempts.WithLabelValues("transport_error").Inc()
			common.LogWarn("生成呼叫失敗", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		lastRaw = resp.Content
		v, err := common.ParseLooseJSON(resp.Content)
		if err != nil {
			lastErr = err
			reason = err.Error()
			metrics.GenerationAttempts.WithLabelValues("parse_error").Inc()
			common.LogWarn("模型輸出無法解析",
				zap.Int("attempt", attempt),
				zap.String("raw", common.Truncate(resp.Content, 500)),
			)
			continue
		}
		if err := validateRecommendation(v); err != nil {
			lastErr = err
			reason = err.Error()
			metrics.GenerationAttempts.WithLabelValues("invalid").Inc()
			common.LogWarn("模型輸出不符格式",
				zap.Int("attempt", attempt),
				zap.String("reason", reason),
			)
			continue
		}

		metrics.GenerationAttempts.WithLabelValues("ok").Inc()
		return v, nil
	}

	metrics.ContractViolations.Inc()
	return nil, &common.GenerationContractViolation{
		Attempts: maxTries,
		Reason:   reason,
		LastRaw:  lastRaw,
		Err:      lastErr,
	}
}
