package pantry

import (
	"net/http"
	"strconv"

	"souschef/internal/core/pantry"
	"souschef/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CookRequest 烹調請求：直接給食材或給整道食譜
type CookRequest struct {
	Ingredients []common.Ingredient     `json:"ingredients"`
	Recipe      *common.CandidateRecipe `json:"recipe"`
}

// GroceryRequest 採買清單請求
type GroceryRequest struct {
	Recipes []common.CandidateRecipe `json:"recipes" binding:"required"`
}

// ItemsResponse 食材列表
type ItemsResponse struct {
	Items []pantry.Item `json:"items"`
}

// GroceryResponse 採買清單
type GroceryResponse struct {
	Items []pantry.GroceryLine `json:"items"`
}

// Handler 食材庫存處理程序
type Handler struct {
	svc *pantry.Service
}

// NewHandler 創建處理程序
func NewHandler(svc *pantry.Service) *Handler {
	return &Handler{svc: svc}
}

// HandleList 列出全部食材
func (h *Handler) HandleList(c *gin.Context) {
	items, err := h.svc.ListItems(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{Items: items})
}

// HandleAdd 新增食材
func (h *Handler) HandleAdd(c *gin.Context) {
	var in pantry.NewItem
	if err := c.ShouldBindJSON(&in); err != nil {
		common.LogWarn("請求格式無效", zap.Error(err))
		common.RespondInvalid(c, "invalid item format")
		return
	}

	item, err := h.svc.AddItem(c.Request.Context(), in)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// HandleDelete 刪除食材
func (h *Handler) HandleDelete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondInvalid(c, "invalid item id")
		return
	}
	if err := h.svc.DeleteItem(c.Request.Context(), uint(id)); err != nil {
		common.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleExpiring 過期與即將到期的食材
func (h *Handler) HandleExpiring(c *gin.Context) {
	report, err := h.svc.Expiring(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleCook 依食譜扣減庫存
func (h *Handler) HandleCook(c *gin.Context) {
	var req CookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondInvalid(c, "invalid cook request")
		return
	}
	ingredients := req.Ingredients
	if len(ingredients) == 0 && req.Recipe != nil {
		ingredients = req.Recipe.Ingredients
	}
	if len(ingredients) == 0 {
		common.RespondInvalid(c, "ingredients are required")
		return
	}

	report, err := h.svc.Cook(c.Request.Context(), ingredients)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleGroceryList 所選食譜的採買清單
func (h *Handler) HandleGroceryList(c *gin.Context) {
	var req GroceryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondInvalid(c, "recipes are required")
		return
	}

	lines, err := h.svc.GroceryList(c.Request.Context(), req.Recipes)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GroceryResponse{Items: lines})
}
