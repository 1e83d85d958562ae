package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"souschef/internal/core/rag"
	recipeService "souschef/internal/core/recipe"
	"souschef/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 推薦模式
const (
	ModeLocal = "local"
	ModeWeb   = "web"
)

// Recommender 產生推薦
type Recommender interface {
	Recommend(ctx context.Context, req recipeService.RecommendRequest) (*common.RecommendationResult, error)
}

// CookbookWriter 新增食譜到語料
type CookbookWriter interface {
	Add(ctx context.Context, in common.SourcedRecipe) (common.CandidateRecipe, error)
}

// RecommendationRequest 推薦請求
type RecommendationRequest struct {
	Mode          string                 `json:"mode"`
	WebCandidates []common.SourcedRecipe `json:"web_candidates,omitempty"`
}

// SearchResponse 索引查詢結果
type SearchResponse struct {
	Ingredients []string                 `json:"ingredients"`
	TopK        int                      `json:"top_k"`
	Recipes     []common.CandidateRecipe `json:"recipes"`
}

// Handler 食譜處理程序
type Handler struct {
	recommender Recommender
	retriever   rag.Retriever
	cookbook    CookbookWriter
}

// NewHandler 創建新的食譜處理程序
func NewHandler(recommender Recommender, retriever rag.Retriever, cookbook CookbookWriter) *Handler {
	return &Handler{
		recommender: recommender,
		retriever:   retriever,
		cookbook:    cookbook,
	}
}

// HandleRecommend 依目前食材推薦 3-5 道食譜
func (h *Handler) HandleRecommend(c *gin.Context) {
	requestID := requestid.Get(c)

	var req RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.LogWarn("請求格式無效", zap.Error(err), zap.String("request_id", requestID))
		common.RespondInvalid(c, "invalid request format")
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = ModeLocal
	}
	if mode != ModeLocal && mode != ModeWeb {
		common.RespondInvalid(c, fmt.Sprintf("mode must be %q or %q", ModeLocal, ModeWeb))
		return
	}

	in := recipeService.RecommendRequest{IncludeWeb: mode == ModeWeb}
	for _, sr := range req.WebCandidates {
		if r := sr.Resolve(); r.Title != "" {
			in.WebCandidates = append(in.WebCandidates, r)
		}
	}

	common.LogInfo("開始處理推薦請求",
		zap.String("request_id", requestID),
		zap.String("mode", mode),
		zap.Int("web_candidates", len(in.WebCandidates)),
	)

	result, err := h.recommender.Recommend(c.Request.Context(), in)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSearch 依食材查詢相似食譜
func (h *Handler) HandleSearch(c *gin.Context) {
	names := common.NormalizeNames(parseIngredients(c))
	if len(names) == 0 {
		common.RespondInvalid(c, "ingredients query parameter is required")
		return
	}
	topK, ok := parseTopK(c, rag.DefaultTopK)
	if !ok {
		common.RespondInvalid(c, fmt.Sprintf("top_k must be an integer between 1 and %d", maxTopK))
		return
	}

	recipes, err := h.retriever.QueryRecipesByIngredients(c.Request.Context(), names, topK)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Ingredients: names, TopK: topK, Recipes: recipes})
}

// HandleAddToCookbook 新增食譜並重建索引
func (h *Handler) HandleAddToCookbook(c *gin.Context) {
	var in common.SourcedRecipe
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondInvalid(c, "invalid recipe format")
		return
	}

	saved, err := h.cookbook.Add(c.Request.Context(), in)
	if err != nil {
		if saved.ID == nil {
			common.RespondError(c, err)
			return
		}
		// 已寫入語料，只是索引未更新
		common.LogWarn("食譜已儲存但索引重建失敗",
			zap.Int("id", *saved.ID),
			zap.Error(err),
		)
		c.Header("X-Index-Rebuilt", "false")
		c.JSON(http.StatusCreated, saved)
		return
	}
	c.Header("X-Index-Rebuilt", "true")
	c.JSON(http.StatusCreated, saved)
}
