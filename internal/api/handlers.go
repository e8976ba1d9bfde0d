// internal/api/handlers.go
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/digimarketingai/keyterms-server/internal/config"
	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
	"github.com/digimarketingai/keyterms-server/internal/services"
	"github.com/digimarketingai/keyterms-server/internal/utils"
)

// Handlers 处理API请求
type Handlers struct {
	Extractor *services.ExtractorService
	LLM       *services.LLMService
	Progress  *services.ProgressService
	Exporter  *services.ExportService
	Response  *ResponseHelper
	Logger    *utils.Logger
}

// NewHandlers 创建API处理器
func NewHandlers(extractor *services.ExtractorService, llm *services.LLMService,
	progress *services.ProgressService, exporter *services.ExportService) *Handlers {
	return &Handlers{
		Extractor: extractor,
		LLM:       llm,
		Progress:  progress,
		Exporter:  exporter,
		Response:  NewResponseHelper(),
		Logger:    utils.GetLogger(),
	}
}

// ---------------------------------------------------------------------------
// 提取

// extractRequest 同步提取请求，format 可选，指定时直接返回导出文件
type extractRequest struct {
	models.ExtractionRequest
	Format string `json:"format,omitempty"`
}

// HandleExtract 同步执行一次提取
func (h *Handlers) HandleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误: "+err.Error())
		return
	}

	record, err := h.Extractor.Extract(c.Request.Context(), req.ExtractionRequest, nil)
	if err != nil {
		h.Response.HandleServiceError(c, err)
		return
	}

	if req.Format != "" {
		export, err := h.Exporter.Export(record, req.Format)
		if err != nil {
			h.Response.HandleServiceError(c, err)
			return
		}
		h.Response.SendFile(c, export)
		return
	}

	h.Response.Success(c, record)
}

// asyncTaskResponse 异步任务受理响应
type asyncTaskResponse struct {
	TaskID string `json:"task_id"`
}

// HandleExtractAsync 提交异步提取任务，立即返回任务ID
// 进度可通过 GET /api/tasks/:id 轮询或 /ws/tasks/:id 订阅
func (h *Handlers) HandleExtractAsync(c *gin.Context) {
	var req models.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误: "+err.Error())
		return
	}

	taskID := uuid.NewString()

	// 任务生命周期不绑定HTTP请求，提交后客户端断开也继续执行
	ctx, cancel := context.WithCancel(context.Background())
	tracker := h.Progress.CreateTracker(taskID, cancel)

	go func() {
		defer cancel()

		record, err := h.Extractor.Extract(ctx, req, func(pct int, msg string) {
			tracker.UpdateProgress(pct, msg)
		})
		if err != nil {
			tracker.Fail(err)
			return
		}
		tracker.Complete(record, "提取完成")
	}()

	h.Response.Accepted(c, asyncTaskResponse{TaskID: taskID}, "任务已提交")
}

// taskStatusResponse 任务状态响应
type taskStatusResponse struct {
	TaskID   string                   `json:"task_id"`
	Progress int                      `json:"progress"`
	Message  string                   `json:"message"`
	Status   string                   `json:"status"`
	Result   *models.ExtractionRecord `json:"result,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// HandleGetTask 查询异步任务状态
func (h *Handlers) HandleGetTask(c *gin.Context) {
	tracker, exists := h.Progress.GetTracker(c.Param("id"))
	if !exists {
		h.Response.Error(c, http.StatusNotFound, "NOT_FOUND", "任务不存在")
		return
	}

	snapshot := tracker.Snapshot()
	resp := taskStatusResponse{
		TaskID:   tracker.TaskID,
		Progress: snapshot.Progress,
		Message:  snapshot.Message,
		Status:   snapshot.Status,
	}

	if snapshot.Status == services.TaskStatusCompleted {
		resp.Result = tracker.Result
	}
	if snapshot.Status == services.TaskStatusFailed && tracker.Err != nil {
		resp.Error = tracker.Err.Error()
	}

	h.Response.Success(c, resp)
}

// HandleCancelTask 取消运行中的异步任务
func (h *Handlers) HandleCancelTask(c *gin.Context) {
	tracker, exists := h.Progress.GetTracker(c.Param("id"))
	if !exists {
		h.Response.Error(c, http.StatusNotFound, "NOT_FOUND", "任务不存在")
		return
	}

	tracker.Cancel()
	h.Response.Success(c, tracker.Snapshot(), "任务已取消")
}

// ---------------------------------------------------------------------------
// 历史记录

// HandleListExtractions 列出全部提取记录
func (h *Handlers) HandleListExtractions(c *gin.Context) {
	records, err := h.Extractor.History().List()
	if err != nil {
		h.Response.HandleServiceError(c, err)
		return
	}

	h.Response.Success(c, records)
}

// HandleGetExtraction 按ID读取提取记录
func (h *Handlers) HandleGetExtraction(c *gin.Context) {
	record, err := h.Extractor.History().Get(c.Param("id"))
	if err != nil {
		h.Response.HandleServiceError(c, err)
		return
	}

	h.Response.Success(c, record)
}

// HandleDeleteExtraction 删除提取记录
func (h *Handlers) HandleDeleteExtraction(c *gin.Context) {
	if err := h.Extractor.History().Delete(c.Param("id")); err != nil {
		h.Response.HandleServiceError(c, err)
		return
	}

	h.Response.Success(c, nil, "记录已删除")
}

// HandleExportExtraction 按指定格式导出提取记录
// 格式通过 ?format=table|markdown|json|csv 指定，默认table
func (h *Handlers) HandleExportExtraction(c *gin.Context) {
	record, err := h.Extractor.History().Get(c.Param("id"))
	if err != nil {
		h.Response.HandleServiceError(c, err)
		return
	}

	export, err := h.Exporter.Export(record, c.Query("format"))
	if err != nil {
		h.Response.HandleServiceError(c, err)
		return
	}

	h.Response.SendFile(c, export)
}

// ---------------------------------------------------------------------------
// LLM管理

// HandleLLMStatus 查询LLM提供者状态
func (h *Handlers) HandleLLMStatus(c *gin.Context) {
	h.Response.Success(c, h.LLM.Status())
}

// HandleLLMModels 查询支持的模型列表
func (h *Handlers) HandleLLMModels(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"models": h.LLM.SupportedModels(c.Query("provider")),
	})
}

// llmConfigRequest 运行时LLM配置请求
type llmConfigRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config"`
}

// HandleUpdateLLMConfig 运行时更换提供者或补配密钥
// 密钥只保存在内存，不回显也不落盘
func (h *Handlers) HandleUpdateLLMConfig(c *gin.Context) {
	var req llmConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误: "+err.Error())
		return
	}

	if req.Config == nil {
		req.Config = map[string]string{}
	}

	if err := h.LLM.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.HandleServiceError(c, apperrors.NewUnavailableError("切换提供者失败: "+err.Error(), err))
		return
	}

	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.Logger.Warn("更新配置失败", map[string]interface{}{"error": err.Error()})
	}

	h.Extractor.ClearCache()
	h.Response.Success(c, h.LLM.Status(), "LLM配置已更新")
}

// ---------------------------------------------------------------------------
// 运维

// HandleHealth 健康检查
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"llm_ready": h.LLM.IsReady(),
	})
}

// HandleMetrics 运行指标
func (h *Handlers) HandleMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetMetricsCollector().GetMetrics())
}
