// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/milvus"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	redis  *redis.Client
	milvus *milvus.Client
	index  retrieval.SummaryIndex
	store  retrieval.DocumentStore
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(redisClient *redis.Client, milvusClient *milvus.Client, index retrieval.SummaryIndex, store retrieval.DocumentStore) *HealthHandler {
	return &HealthHandler{
		redis:  redisClient,
		milvus: milvusClient,
		index:  index,
		store:  store,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready 就绪检查接口。
// 就绪条件：文档存储快照已加载且摘要索引非空。
// @Summary 就绪检查
// @Description 检查服务是否可以接收流量
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"docstore": {Status: "unknown"},
		"index":    {Status: "unknown"},
		"milvus":   {Status: "unknown"},
		"redis":    {Status: "optional"},
	}

	ready := true

	// 文档存储（必需）
	if h == nil || h.store == nil || !h.store.Ready() {
		checks["docstore"].Status = "error"
		checks["docstore"].Error = "content snapshot not loaded"
		ready = false
	} else {
		checks["docstore"].Status = "ok"
	}

	// Milvus 连接（必需）
	if h == nil || h.milvus == nil {
		checks["milvus"].Status = "missing"
		checks["milvus"].Error = "milvus client not configured"
		ready = false
	} else {
		start := time.Now()
		err := h.milvus.HealthCheck(ctx)
		checks["milvus"].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks["milvus"].Status = "error"
			checks["milvus"].Error = err.Error()
			ready = false
		} else {
			checks["milvus"].Status = "ok"
		}
	}

	// 摘要索引非空（必需）
	if h == nil || h.index == nil {
		checks["index"].Status = "missing"
		ready = false
	} else if checks["milvus"].Status == "ok" {
		count, err := h.index.Count(ctx)
		if err != nil {
			checks["index"].Status = "error"
			checks["index"].Error = err.Error()
			ready = false
		} else if count == 0 {
			checks["index"].Status = "empty"
			ready = false
		} else {
			checks["index"].Status = "ok"
		}
	} else {
		checks["index"].Status = "unreachable"
		ready = false
	}

	// Redis（可选，故障只降级缓存与限流）
	if h != nil && h.redis != nil {
		start := time.Now()
		err := h.redis.HealthCheck(ctx)
		checks["redis"].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks["redis"].Status = "error"
			checks["redis"].Error = err.Error()
		} else {
			checks["redis"].Status = "ok"
		}
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, readinessResponse{Status: status, Checks: checks})
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "alive"})
}
