package rag

import (
	"context"
	"fmt"

	"souschef/internal/pkg/common"

	"go.uber.org/zap"
)

// Cookbook 把食譜加入語料並重建索引
type Cookbook struct {
	corpus Appender
	index  *Index
}

// NewCookbook 創建 Cookbook
func NewCookbook(corpus Appender, index *Index) *Cookbook {
	return &Cookbook{corpus: corpus, index: index}
}

// Add 追加食譜後整個重建索引。重建失敗時食譜已寫入，回傳食譜與錯誤
func (c *Cookbook) Add(ctx context.Context, in common.SourcedRecipe) (common.CandidateRecipe, error) {
	recipe := in.Resolve()
	if recipe.Title == "" {
		return common.CandidateRecipe{}, common.ErrInvalidRecipe
	}
	if recipe.Steps == nil {
		recipe.Steps = common.StrPtr("")
	}
	if recipe.Ingredients == nil {
		recipe.Ingredients = []common.Ingredient{}
	}
	if recipe.Tags == nil {
		recipe.Tags = []string{}
	}

	saved, err := c.corpus.Append(ctx, recipe)
	if err != nil {
		return common.CandidateRecipe{}, fmt.Errorf("append to cookbook: %w", err)
	}
	common.LogInfo("已加入食譜", zap.Int("id", *saved.ID), zap.String("title", saved.Title))

	if err := c.index.Build(ctx); err != nil {
		return saved, fmt.Errorf("recipe saved but index rebuild failed: %w", err)
	}
	return saved, nil
}
