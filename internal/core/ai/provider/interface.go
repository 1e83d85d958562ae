package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"souschef/internal/pkg/common"

	"go.uber.org/zap"
)

// Message 表示與 AI 模型的對話消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 表示發送到 AI 提供者的請求
type Request struct {
	System      string
	User        string
	JSONMode    bool
	MaxTokens   int
	Temperature float64
}

// Messages 轉為 role 標記的消息列表
func (r *Request) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: r.User})
	return msgs
}

// Response 表示從 AI 提供者收到的響應
type Response struct {
	Content string
	Shape   string
	Model   string
	Usage   Usage
}

// Usage token 用量
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator 單一呼叫形式的生成器
type Generator interface {
	// Generate 生成 AI 響應，回傳模型原始文字
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name 呼叫形式名稱 (responses / chat / completions)
	Name() string
}

// GeneratorFunc 以函式實作 Generator，主要用於測試
type GeneratorFunc struct {
	ShapeName string
	Fn        func(ctx context.Context, req *Request) (*Response, error)
}

func (f GeneratorFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f.Fn(ctx, req)
}

func (f GeneratorFunc) Name() string {
	return f.ShapeName
}

// ErrNoGenerators 沒有可用的呼叫形式
var ErrNoGenerators = errors.New("no generators configured")

// Chain 依建構時決定的順序嘗試各呼叫形式，第一個成功者勝出
type Chain struct {
	generators []Generator
}

// NewChain 創建生成器鏈
func NewChain(generators ...Generator) *Chain {
	return &Chain{generators: generators}
}

// Name 以第一個呼叫形式命名
func (c *Chain) Name() string {
	if len(c.generators) == 0 {
		return "chain"
	}
	return "chain:" + c.generators[0].Name()
}

// Generators 回傳鏈內的生成器（依優先順序）
func (c *Chain) Generators() []Generator {
	return append([]Generator(nil), c.generators...)
}

// Generate 依序嘗試，全部失敗時回傳合併錯誤；context 取消時立即停止
func (c *Chain) Generate(ctx context.Context, req *Request) (*Response, error) {
	if len(c.generators) == 0 {
		return nil, ErrNoGenerators
	}

	var errs []error
	for _, g := range c.generators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := g.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		common.LogWarn("呼叫形式失敗，嘗試下一個",
			zap.String("shape", g.Name()),
			zap.Duration("耗時", time.Since(start)),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
	}
	return nil, errors.Join(errs...)
}
