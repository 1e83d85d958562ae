package rag

import (
	"context"

	"souschef/internal/pkg/common"
)

// DefaultTopK 預設取回筆數
const DefaultTopK = 5

// Retriever 依食材名稱取回候選食譜
type Retriever interface {
	QueryRecipesByIngredients(ctx context.Context, names []string, topK int) ([]common.CandidateRecipe, error)
}

// Service 包裝索引，查詢前確保索引已建立
type Service struct {
	index *Index
}

// NewService 創建檢索服務
func NewService(index *Index) *Service {
	return &Service{index: index}
}

// QueryRecipesByIngredients topK <= 0 時使用預設值
func (s *Service) QueryRecipesByIngredients(ctx context.Context, names []string, topK int) ([]common.CandidateRecipe, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if err := s.index.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return s.index.Query(ctx, names, topK)
}

// Index 底層索引
func (s *Service) Index() *Index {
	return s.index
}
