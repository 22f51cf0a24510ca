package handler

import (
	"errors"
	"io"
	"net/http"

	"lingo-fusion/app/logger"
	"lingo-fusion/app/service"
	"lingo-fusion/app/utils/mediakind"

	"github.com/gin-gonic/gin"
)

// UploadHandler 处理媒体文件上传
type UploadHandler struct {
	logger   *logger.Logger
	pipeline *service.PipelineService
	maxBytes int64
}

// NewUploadHandler 创建上传处理器
func NewUploadHandler(log *logger.Logger, pipeline *service.PipelineService, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		logger:   log,
		pipeline: pipeline,
		maxBytes: maxBytes,
	}
}

// Upload 接收 multipart 上传（file + target_lang），创建翻译任务。
// 校验失败不创建任务；成功时立即返回任务 ID，处理在后台进行
func (h *UploadHandler) Upload(c *gin.Context) {
	targetLang := c.PostForm("target_lang")
	if targetLang == "" {
		errorResponse(c, http.StatusBadRequest, "缺少 target_lang 参数")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "缺少上传文件")
		return
	}

	// 按声明大小先行拦截，避免把超大文件读进内存
	if fileHeader.Size > h.maxBytes {
		errorResponse(c, http.StatusRequestEntityTooLarge, "文件超过大小限制")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "读取上传文件失败")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "读取上传文件失败")
		return
	}

	job, err := h.pipeline.Submit(content, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), targetLang)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedLanguage):
			errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, mediakind.ErrUnsupportedType):
			errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrFileTooLarge), errors.Is(err, service.ErrTextTooLong):
			errorResponse(c, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.logger.Errorf("提交任务失败: %v", err)
			errorResponse(c, http.StatusInternalServerError, "创建任务失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "上传成功，已开始处理",
	})
}
