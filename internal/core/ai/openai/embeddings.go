package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"souschef/internal/pkg/common"

	"go.uber.org/zap"
)

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embedder 透過 /embeddings 取得向量
type Embedder struct {
	client *Client
}

// NewEmbedder 創建向量客戶端
func NewEmbedder(c *Client) *Embedder {
	return &Embedder{client: c}
}

// Model 向量模型名稱
func (e *Embedder) Model() string {
	return e.client.config.EmbeddingModel
}

// Embed 一次取得所有文字的向量，順序與輸入一致；任何失敗都整批失敗
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i, s := range texts {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	start := time.Now()
	var resp embeddingsResponse
	err := e.client.post(ctx, "/embeddings", embeddingsRequest{Model: e.Model(), Input: clean}, &resp)
	common.LogAICall("embeddings", e.Model(), time.Since(start), err)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &common.EmbeddingServiceError{Status: apiErr.Status, Err: err}
		}
		return nil, &common.EmbeddingServiceError{Err: err}
	}

	if len(resp.Data) != len(clean) {
		return nil, &common.EmbeddingServiceError{
			Err: fmt.Errorf("requested %d embeddings, got %d", len(clean), len(resp.Data)),
		}
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, &common.EmbeddingServiceError{Err: fmt.Errorf("invalid embedding index %d", d.Index)}
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}

	common.LogDebug("取得向量", zap.Int("count", len(out)), zap.String("model", e.Model()))
	return out, nil
}
