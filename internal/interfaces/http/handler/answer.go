// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Rogan-afk/NutriNephra/internal/application/answer"
	"github.com/Rogan-afk/NutriNephra/internal/config"
	"github.com/Rogan-afk/NutriNephra/internal/interfaces/http/dto"
	apperrors "github.com/Rogan-afk/NutriNephra/pkg/errors"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
)

// AnswerHandler 问答处理器
type AnswerHandler struct {
	pipeline *answer.Pipeline
	cfg      *config.Config
}

// NewAnswerHandler 创建问答处理器
func NewAnswerHandler(pipeline *answer.Pipeline, cfg *config.Config) *AnswerHandler {
	return &AnswerHandler{pipeline: pipeline, cfg: cfg}
}

// Answer 问答接口
// @Summary 问答
// @Description 对查询执行守卫、检索、重排序与答案生成
// @Tags Answer
// @Accept json
// @Produce json
// @Param request body dto.AnswerRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.AnswerResponse]
// @Router /v1/answers [post]
func (h *AnswerHandler) Answer(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	mode := answer.Mode(strings.TrimSpace(req.Mode))
	if req.Mode == "" {
		mode = answer.ModeAnswerOnly
	}
	if !mode.Valid() {
		dto.BadRequest(c, "mode must be answer_only or agentic_with_sources")
		return
	}

	res, err := h.pipeline.Answer(c.Request.Context(), answer.Request{
		Query: req.Question,
		Mode:  mode,
		TopK:  req.TopK,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	citations := make([]dto.CitationDTO, 0, len(res.Citations))
	for _, cit := range res.Citations {
		citations = append(citations, dto.CitationDTO{
			ContentID: cit.ContentID,
			SourceRef: cit.SourceRef,
			Snippet:   cit.Snippet,
		})
	}

	dto.Success(c, dto.AnswerResponse{
		Answer:      res.Answer,
		Mode:        string(res.Mode),
		Citations:   citations,
		SafetyFlags: res.SafetyFlags,
		Partial:     res.Partial,
	})
}

// renderError 将流水线错误映射为 HTTP 响应
func (h *AnswerHandler) renderError(c *gin.Context, err error) {
	if !apperrors.IsAppError(err) {
		logger.Error(c.Request.Context(), "answer pipeline failed", err)
	}
	appErr := apperrors.AsAppError(err)
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}

// Meta 服务元信息接口
// @Summary 服务元信息
// @Description 返回标题、说明与示例查询
// @Tags Answer
// @Produce json
// @Success 200 {object} dto.Response[dto.MetaResponse]
// @Router /v1/meta [get]
func (h *AnswerHandler) Meta(c *gin.Context) {
	dto.Success(c, dto.MetaResponse{
		Title:       h.cfg.App.Title,
		Description: h.cfg.App.Description,
		Version:     h.cfg.App.Version,
		Modes: []string{
			string(answer.ModeAnswerOnly),
			string(answer.ModeAgenticWithSources),
		},
		SampleQueries: h.cfg.UI.SampleQueries,
	})
}
