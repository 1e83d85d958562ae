package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"souschef/internal/core/ai/provider"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"
	"souschef/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ErrQueueFull 隊列已滿，呼叫端應稍後再試
var ErrQueueFull = common.ErrServiceUnavailable.WithErr(errors.New("generation queue is full"))

// ErrClosed 隊列已關閉
var ErrClosed = errors.New("generation queue is closed")

// request 隊列請求
type request struct {
	ctx       context.Context
	generator provider.Generator
	req       *provider.Request
	result    chan result
}

// result 處理結果
type result struct {
	response *provider.Response
	err      error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 生成請求隊列：固定數量的 worker 依序呼叫模型
type Manager struct {
	queue     chan *request
	done      chan struct{}
	processed int64
	maxSize   int
	workers   int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager 創建隊列管理器並啟動 worker
func NewManager(cfg config.QueueConfig) *Manager {
	workers := max(cfg.Workers, 1)
	maxSize := max(cfg.MaxSize, 1)
	m := &Manager{
		queue:   make(chan *request, maxSize),
		done:    make(chan struct{}),
		maxSize: maxSize,
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	common.LogInfo("Generation queue started",
		zap.Int("workers", workers),
		zap.Int("max_queue_size", maxSize),
	)
	return m
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case r := <-m.queue:
			metrics.GenerationQueueLength.Set(float64(len(m.queue)))
			m.process(id, r)
		}
	}
}

func (m *Manager) process(id int, r *request) {
	// 等待期間呼叫端已放棄
	if err := r.ctx.Err(); err != nil {
		r.result <- result{err: err}
		return
	}
	resp, err := r.generator.Generate(r.ctx, r.req)
	atomic.AddInt64(&m.processed, 1)
	common.LogDebug("Generation request processed",
		zap.Int("worker", id),
		zap.String("shape", r.generator.Name()),
		zap.Bool("ok", err == nil),
	)
	r.result <- result{response: resp, err: err}
}

// Submit 將請求加入隊列並等待結果
func (m *Manager) Submit(ctx context.Context, g provider.Generator, req *provider.Request) (*provider.Response, error) {
	r := &request{
		ctx:       ctx,
		generator: g,
		req:       req,
		result:    make(chan result, 1),
	}

	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	// 不阻塞：滿了直接拒絕
	select {
	case m.queue <- r:
		metrics.GenerationQueueLength.Set(float64(len(m.queue)))
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		common.LogWarn("Generation queue is full",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return nil, ErrQueueFull
	}

	select {
	case res := <-r.result:
		return res.response, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

// Wrap 回傳經由隊列呼叫 g 的生成器
func (m *Manager) Wrap(g provider.Generator) provider.Generator {
	return &queued{manager: m, inner: g}
}

// WrapAll 依序包裝多個生成器
func (m *Manager) WrapAll(generators ...provider.Generator) []provider.Generator {
	out := make([]provider.Generator, 0, len(generators))
	for _, g := range generators {
		out = append(out, m.Wrap(g))
	}
	return out
}

// Status 獲取隊列狀態
func (m *Manager) Status() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Stats 健康檢查使用
func (m *Manager) Stats() map[string]interface{} {
	s := m.Status()
	return map[string]interface{}{
		"queue_length":    s.QueueLength,
		"processed_count": s.ProcessedCount,
		"max_queue_size":  s.MaxQueueSize,
		"workers":         s.Workers,
	}
}

// Close 停止 worker；等待中的呼叫回傳 ErrClosed
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}

type queued struct {
	manager *Manager
	inner   provider.Generator
}

func (q *queued) Name() string {
	return q.inner.Name()
}

func (q *queued) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return q.manager.Submit(ctx, q.inner, req)
}
