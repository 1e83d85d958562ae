package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"souschef/internal/core/rag"
	"souschef/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IndexStatus 相似度索引狀態
type IndexStatus interface {
	State() rag.State
	Len() int
	BuiltAt() time.Time
}

// StatsProvider 快取統計
type StatsProvider interface {
	Stats() map[string]interface{}
}

// Pinger 檢查外部依賴（資料庫）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Index     *IndexInfo             `json:"index,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
	Queue     map[string]interface{} `json:"queue,omitempty"`
}

// IndexInfo 索引資訊
type IndexInfo struct {
	State   string     `json:"state"`
	Entries int        `json:"entries"`
	BuiltAt *time.Time `json:"built_at"`
}

// Handler 健康檢查處理程序
type Handler struct {
	version string
	index   IndexStatus
	cache   StatsProvider
	queue   StatsProvider
	db      Pinger
}

// NewHandler 各依賴皆可為 nil
func NewHandler(version string, index IndexStatus, cache, queue StatsProvider, db Pinger) *Handler {
	return &Handler{version: version, index: index, cache: cache, queue: queue, db: db}
}

func (h *Handler) indexInfo() *IndexInfo {
	if h.index == nil {
		return nil
	}
	info := &IndexInfo{State: h.index.State().String(), Entries: h.index.Len()}
	if t := h.index.BuiltAt(); !t.IsZero() {
		info.BuiltAt = &t
	}
	return info
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Index: h.indexInfo(),
	}
	if h.cache != nil {
		response.Cache = h.cache.Stats()
	}
	if h.queue != nil {
		response.Queue = h.queue.Stats()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：資料庫可連線即就緒，索引於第一次查詢時建立
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			common.LogWarn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"reason": "database unavailable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"index":  h.indexInfo(),
	})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
