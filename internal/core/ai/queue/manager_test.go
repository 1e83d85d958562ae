package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"souschef/internal/core/ai/provider"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(content string) provider.Generator {
	return provider.GeneratorFunc{
		ShapeName: "chat",
		Fn: func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
			return &provider.Response{Content: content + ":" + req.User, Shape: "chat"}, nil
		},
	}
}

// blocking 直到 release 關閉才回應
type blocking struct {
	started chan struct{}
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func newBlocking() *blocking {
	return &blocking{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blocking) Name() string { return "blocking" }

func (b *blocking) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	b.started <- struct{}{}
	select {
	case <-b.release:
		return &provider.Response{Content: "done"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSubmitReturnsGeneratorResult(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 2, MaxSize: 4})
	defer m.Close()

	g := m.Wrap(echo("hi"))
	assert.Equal(t, "chat", g.Name())

	resp, err := g.Generate(context.Background(), &provider.Request{User: "there"})
	require.NoError(t, err)
	assert.Equal(t, "hi:there", resp.Content)
	assert.Equal(t, 1, m.Status().ProcessedCount)
}

func TestSubmitPropagatesErrors(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1})
	defer m.Close()

	boom := errors.New("upstream 500")
	g := m.Wrap(provider.GeneratorFunc{ShapeName: "responses", Fn: func(ctx context.Context, req *provider.Request) (*provider.Response, error) {
		return nil, boom
	}})

	_, err := g.Generate(context.Background(), &provider.Request{})
	assert.ErrorIs(t, err, boom)
}

func TestWorkersBoundConcurrency(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 2, MaxSize: 10})
	defer m.Close()

	b := newBlocking()
	g := m.Wrap(b)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Generate(context.Background(), &provider.Request{})
		}()
	}

	<-b.started
	<-b.started
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), b.active.Load())

	close(b.release)
	wg.Wait()
	assert.Equal(t, int32(2), b.peak.Load())
	assert.Equal(t, 5, m.Status().ProcessedCount)
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1})
	defer m.Close()

	b := newBlocking()
	g := m.Wrap(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 一個在處理、一個在排隊
	go func() { _, _ = g.Generate(ctx, &provider.Request{}) }()
	<-b.started
	go func() { _, _ = g.Generate(ctx, &provider.Request{}) }()
	require.Eventually(t, func() bool { return m.Status().QueueLength == 1 }, time.Second, 5*time.Millisecond)

	_, err := g.Generate(ctx, &provider.Request{})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, common.ErrCodeServiceDown, common.ToCustomError(err).Code)

	close(b.release)
}

func TestSubmitHonoursCancellation(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 2})
	defer m.Close()

	b := newBlocking()
	g := m.Wrap(b)
	go func() { _, _ = g.Generate(context.Background(), &provider.Request{}) }()
	<-b.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, &provider.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(b.release)
}

func TestClosedManagerRejects(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1})
	m.Close()
	m.Close()

	_, err := m.Submit(context.Background(), echo("x"), &provider.Request{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWrapAllKeepsOrder(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1})
	defer m.Close()

	wrapped := m.WrapAll(
		provider.GeneratorFunc{ShapeName: "responses"},
		provider.GeneratorFunc{ShapeName: "completions"},
	)
	require.Len(t, wrapped, 2)
	assert.Equal(t, "responses", wrapped[0].Name())
	assert.Equal(t, "completions", wrapped[1].Name())
	assert.Equal(t, 1, m.Stats()["workers"])
}
