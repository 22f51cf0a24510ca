package handler

import (
	"errors"
	"net/http"
	"os"

	"lingo-fusion/app/config"
	"lingo-fusion/app/logger"
	"lingo-fusion/app/model"
	"lingo-fusion/app/service"
	"lingo-fusion/app/stage"
	"lingo-fusion/app/store"
	"lingo-fusion/app/utils/overlay"

	"github.com/gin-gonic/gin"
)

// JobHandler 任务查询相关接口，只读不修改任务状态
type JobHandler struct {
	cfg      *config.Config
	logger   *logger.Logger
	store    store.JobStore
	pipeline *service.PipelineService
}

// NewJobHandler 创建任务查询处理器
func NewJobHandler(cfg *config.Config, log *logger.Logger, jobStore store.JobStore, pipeline *service.PipelineService) *JobHandler {
	return &JobHandler{
		cfg:      cfg,
		logger:   log,
		store:    jobStore,
		pipeline: pipeline,
	}
}

// GetJob 查询单个任务
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			notFound(c, "任务不存在")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "查询任务失败")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs 查询全部任务，按创建时间倒序
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.store.List()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "查询任务列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// GetAudio 下载合成的语音文件。
// 任务不存在、未完成或未生成语音时返回 404
func (h *JobHandler) GetAudio(c *gin.Context) {
	job, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			notFound(c, "任务不存在")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "查询任务失败")
		return
	}

	if job.Status != model.JobStatusCompleted || !job.HasAudio() {
		notFound(c, "语音文件不存在")
		return
	}
	if _, err := os.Stat(job.AudioOutputPath); err != nil {
		notFound(c, "语音文件不存在")
		return
	}

	c.Header("Content-Type", "audio/wav")
	c.FileAttachment(job.AudioOutputPath, job.ID+".wav")
}

// GetPreview 生成图片任务的识别区域预览图（PNG）
func (h *JobHandler) GetPreview(c *gin.Context) {
	job, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			notFound(c, "任务不存在")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "查询任务失败")
		return
	}

	if job.ContentKind != model.ContentKindImage || job.SourcePath == "" {
		notFound(c, "该任务没有可预览的图片")
		return
	}

	data, err := overlay.Render(job.SourcePath, job.Regions)
	if err != nil {
		h.logger.Errorf("生成预览图失败: JobID=%s, %v", job.ID, err)
		errorResponse(c, http.StatusInternalServerError, "生成预览图失败")
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

// GetLanguages 返回支持的目标语言列表
func (h *JobHandler) GetLanguages(c *gin.Context) {
	languages := make([]gin.H, 0, len(h.cfg.Language.Supported))
	for _, code := range h.cfg.Language.Supported {
		languages = append(languages, gin.H{
			"code": code,
			"name": stage.LanguageName(code),
		})
	}
	c.JSON(http.StatusOK, gin.H{"languages": languages})
}

// GetQueueStatus 返回各状态的任务数量
func (h *JobHandler) GetQueueStatus(c *gin.Context) {
	status, err := h.pipeline.QueueStatus()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "查询队列状态失败")
		return
	}
	c.JSON(http.StatusOK, status)
}
