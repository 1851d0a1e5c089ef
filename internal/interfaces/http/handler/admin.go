// Package handler 提供 HTTP 请求处理器
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/docstore"
	"github.com/Rogan-afk/NutriNephra/internal/interfaces/http/dto"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
)

// AdminHandler 运维接口处理器
type AdminHandler struct {
	store       *docstore.Store
	snapshotDir string
}

// NewAdminHandler 创建运维接口处理器
func NewAdminHandler(store *docstore.Store, snapshotDir string) *AdminHandler {
	return &AdminHandler{store: store, snapshotDir: snapshotDir}
}

// Reload 重新加载内容快照
// @Summary 重载快照
// @Description 从快照目录重新加载内容单元并整体换入
// @Tags Admin
// @Produce json
// @Success 200 {object} dto.Response[dto.ReloadResponse]
// @Router /v1/admin/reload [post]
func (h *AdminHandler) Reload(c *gin.Context) {
	snap, err := docstore.LoadSnapshot(h.snapshotDir)
	if err != nil {
		logger.Error(c.Request.Context(), "snapshot reload failed", err, "dir", h.snapshotDir)
		dto.InternalError(c, "failed to reload content snapshot")
		return
	}

	h.store.Swap(snap.Units)
	logger.Info(c.Request.Context(), "content snapshot reloaded", "units", len(snap.Units))

	dto.Success(c, dto.ReloadResponse{
		Units:    h.store.Len(),
		LoadedAt: h.store.LoadedAt().Format(time.RFC3339),
	})
}
