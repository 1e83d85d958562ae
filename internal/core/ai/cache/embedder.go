package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"souschef/internal/core/ai/embedding"
	"souschef/internal/pkg/common"

	"go.uber.org/zap"
)

// Embedder 以快取包裝 Embedder；未命中的文字合併成一次呼叫
type Embedder struct {
	inner embedding.Embedder
	store Store
}

// NewEmbedder 創建快取向量器；store 為 nil 時直接回傳 inner
func NewEmbedder(inner embedding.Embedder, store Store) embedding.Embedder {
	if store == nil {
		return inner
	}
	return &Embedder{inner: inner, store: store}
}

func (e *Embedder) Model() string {
	return e.inner.Model()
}

// Embed 快取錯誤只記錄不中斷；底層失敗時整批失敗
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		keys[i] = e.key(text)
		vec, ok, err := e.store.Get(ctx, keys[i])
		if err != nil {
			common.LogWarn("讀取向量快取失敗", zap.Error(err))
		}
		if ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, &common.EmbeddingServiceError{
			Err: fmt.Errorf("requested %d embeddings, got %d", len(missTexts), len(vecs)),
		}
	}

	for j, vec := range vecs {
		i := missIdx[j]
		out[i] = vec
		if err := e.store.Set(ctx, keys[i], vec); err != nil {
			common.LogWarn("寫入向量快取失敗", zap.Error(err))
		}
	}

	common.LogDebug("向量快取",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)),
	)
	return out, nil
}

// key 依模型與文字內容產生鍵
func (e *Embedder) key(text string) string {
	hash := sha256.Sum256([]byte(e.inner.Model() + "\x00" + text))
	return "emb:" + hex.EncodeToString(hash[:])
}
