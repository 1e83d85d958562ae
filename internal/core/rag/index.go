package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"souschef/internal/core/ai/embedding"
	"souschef/internal/pkg/common"
	"souschef/internal/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State 索引狀態
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateBuilding:
		return "BUILDING"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entry 索引項目：正規化向量 + 食譜資料
type Entry struct {
	Vector []float32
	Recipe common.CandidateRecipe
}

// snapshot 建好後不再修改，重建時整個替換
type snapshot struct {
	entries []Entry
	dims    int
	builtAt time.Time
}

// Index 記憶體內的食譜相似度索引
type Index struct {
	embedder     embedding.Embedder
	corpus       Corpus
	includeSteps bool

	mu    sync.RWMutex
	snap  *snapshot
	state State

	buildMu      sync.Mutex
	group        singleflight.Group
	buildTimeout time.Duration
}

// DefaultBuildTimeout EnsureReady 觸發的建立上限
const DefaultBuildTimeout = 2 * time.Minute

// Option 索引選項
type Option func(*Index)

// WithSteps 文件內容包含步驟
func WithSteps(include bool) Option {
	return func(ix *Index) {
		ix.includeSteps = include
	}
}

// WithBuildTimeout 設定 EnsureReady 觸發建立的上限
func WithBuildTimeout(d time.Duration) Option {
	return func(ix *Index) {
		if d > 0 {
			ix.buildTimeout = d
		}
	}
}

// NewIndex 創建索引，初始狀態為 EMPTY
func NewIndex(embedder embedding.Embedder, corpus Corpus, opts ...Option) *Index {
	ix := &Index{
		embedder:     embedder,
		corpus:       corpus,
		state:        StateEmpty,
		buildTimeout: DefaultBuildTimeout,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Document 食譜的索引文件：標題 + 食材名稱（可選步驟）
func Document(r common.CandidateRecipe, includeSteps bool) string {
	names := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		names = append(names, ing.Name)
	}
	doc := fmt.Sprintf("%s | ingredients: %s", r.Title, strings.Join(names, ", "))
	if includeSteps && !common.IsBlank(r.Steps) {
		doc += " | steps: " + strings.TrimSpace(*r.Steps)
	}
	return doc
}

// QueryDocument 查詢文件：正規化、去重後的食材名稱
func QueryDocument(names []string) string {
	return "ingredients: " + strings.Join(common.NormalizeNames(names), ", ")
}

// Build 載入整個語料並重建索引；失敗時保留先前的快照
func (ix *Index) Build(ctx context.Context) (err error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	start := time.Now()
	ix.mu.Lock()
	prev := ix.state
	ix.state = StateBuilding
	ix.mu.Unlock()

	defer func() {
		metrics.IndexBuilds.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			ix.mu.Lock()
			ix.state = prev
			ix.mu.Unlock()
			common.LogError("索引建立失敗", zap.Error(err))
		}
	}()

	recipes, err := ix.corpus.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	docs := make([]string, len(recipes))
	for i, r := range recipes {
		docs[i] = Document(r, ix.includeSteps)
	}

	var vectors [][]float32
	if len(docs) > 0 {
		vectors, err = ix.embedder.Embed(ctx, docs)
		if err != nil {
			return err
		}
		if len(vectors) != len(docs) {
			return &common.EmbeddingServiceError{
				Err: fmt.Errorf("requested %d embeddings, got %d", len(docs), len(vectors)),
			}
		}
	}

	snap := &snapshot{
		entries: make([]Entry, len(recipes)),
		builtAt: time.Now(),
	}
	for i, r := range recipes {
		snap.entries[i] = Entry{Vector: Normalize(vectors[i]), Recipe: r.Clone()}
		if i == 0 {
			snap.dims = len(vectors[i])
		}
	}

	ix.mu.Lock()
	ix.snap = snap
	ix.state = StateReady
	ix.mu.Unlock()

	elapsed := time.Since(start)
	metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	metrics.IndexEntries.Set(float64(len(snap.entries)))
	common.LogInfo("索引建立完成",
		zap.Int("recipes", len(snap.entries)),
		zap.Int("dims", snap.dims),
		zap.String("model", ix.embedder.Model()),
		zap.Duration("耗時", elapsed),
	)
	return nil
}

// EnsureReady 尚未建立時建立索引；並行呼叫只會建立一次
func (ix *Index) EnsureReady(ctx context.Context) error {
	if ix.ready() {
		return nil
	}
	// 建立與個別呼叫端的取消脫鉤；呼叫端只放棄等待
	ch := ix.group.DoChan("build", func() (interface{}, error) {
		if ix.ready() {
			return nil, nil
		}
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ix.buildTimeout)
		defer cancel()
		return nil, ix.Build(bctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ix *Index) ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snap != nil
}

type scored struct {
	pos   int
	score float64
}

// Query 依 cosine similarity 由高到低回傳前 topK 筆，同分依語料順序
func (ix *Index) Query(ctx context.Context, names []string, topK int) (results []common.CandidateRecipe, err error) {
	defer func() { metrics.IndexQueries.WithLabelValues(metrics.Result(err)).Inc() }()

	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()
	if snap == nil {
		return nil, common.ErrIndexNotReady
	}
	if topK <= 0 || len(snap.entries) == 0 {
		return []common.CandidateRecipe{}, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{QueryDocument(names)})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, &common.EmbeddingServiceError{Err: fmt.Errorf("requested 1 embedding, got %d", len(vecs))}
	}
	query := Normalize(vecs[0])
	if len(query) != snap.dims {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), snap.dims)
	}

	ranked := make([]scored, len(snap.entries))
	for i, e := range snap.entries {
		ranked[i] = scored{pos: i, score: Dot(query, e.Vector)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	results = make([]common.CandidateRecipe, topK)
	for i := 0; i < topK; i++ {
		results[i] = snap.entries[ranked[i].pos].Recipe.Clone()
	}
	return results, nil
}

// State 目前狀態；重建期間為 BUILDING，查詢仍使用舊快照
func (ix *Index) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// Len 索引內食譜數量
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return 0
	}
	return len(ix.snap.entries)
}

// BuiltAt 最近一次建立時間
func (ix *Index) BuiltAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return time.Time{}
	}
	return ix.snap.builtAt
}
