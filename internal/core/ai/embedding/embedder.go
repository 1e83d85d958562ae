package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"souschef/internal/core/ai/openai"
	"souschef/internal/infrastructure/config"

	"github.com/cespare/xxhash/v2"
)

// Embedder 把文字轉成固定維度的向量，一個輸入對應一個向量，順序一致
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// New 依設定建立 Embedder
func New(cfg config.EmbeddingConfig, client *openai.Client) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		if client == nil {
			return nil, fmt.Errorf("openai embedder requires a client")
		}
		return openai.NewEmbedder(client), nil
	case config.EmbeddingProviderLocal:
		return NewLocal(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Local 以雜湊詞袋產生向量，不需網路
type Local struct {
	dims int
}

// NewLocal 創建本地向量器
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = 256
	}
	return &Local{dims: dims}
}

func (l *Local) Model() string {
	return fmt.Sprintf("local-hash-%d", l.dims)
}

// Embed 每個詞依雜湊值落到一個維度，正負號由雜湊另一位元決定
func (l *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = l.vector(text)
	}
	return out, nil
}

func (l *Local) vector(text string) []float32 {
	vec := make([]float32, l.dims)
	for _, tok := range tokenize(text) {
		h := xxhash.Sum64String(tok)
		idx := int(h % uint64(l.dims))
		if h&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// 常見的結構詞不計入
var stopwords = map[string]struct{}{
	"ingredients": {},
	"steps":       {},
	"and":         {},
	"the":         {},
	"with":        {},
	"of":          {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
