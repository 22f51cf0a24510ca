package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"lingo-fusion/app/config"
	"lingo-fusion/app/database"
	"lingo-fusion/app/logger"
	"lingo-fusion/app/model"
	"lingo-fusion/app/service"
	"lingo-fusion/app/stage"
	"lingo-fusion/app/store"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testRouter 构造带全部路由的测试服务
func testRouter(t *testing.T) (*gin.Engine, store.JobStore, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		Upload: config.UploadConfig{
			Dir:          filepath.Join(dir, "uploads"),
			MaxSizeMB:    1,
			MaxTextChars: 1000,
		},
		Audio: config.AudioConfig{OutputDir: filepath.Join(dir, "audio")},
		Pipeline: config.PipelineConfig{
			MaxConcurrent:      2,
			RecognitionTimeout: 10,
			OCRTimeout:         10,
			TranslationTimeout: 10,
			SynthesisTimeout:   10,
			ChunkMaxChars:      500,
			SentenceChunking:   true,
		},
		Language: config.LanguageConfig{Supported: []string{"ru", "en", "kk"}},
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}

	log := logger.New(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
	jobStore := store.NewGormJobStore(db, log)
	pipeline := service.NewPipelineService(cfg, log, jobStore,
		stage.NewStubExtractor(),
		stage.NewStubTranslator(cfg.Language.Supported),
		stage.NewStubSynthesizer(cfg.Pipeline.ChunkMaxChars, cfg.Pipeline.SentenceChunking),
	)
	t.Cleanup(pipeline.Stop)

	uploadHandler := NewUploadHandler(log, pipeline, cfg.MaxUploadBytes())
	jobHandler := NewJobHandler(cfg, log, jobStore, pipeline)

	router := gin.New()
	router.POST("/upload", uploadHandler.Upload)
	router.GET("/jobs", jobHandler.ListJobs)
	router.GET("/jobs/:id", jobHandler.GetJob)
	router.GET("/jobs/:id/audio", jobHandler.GetAudio)
	router.GET("/jobs/:id/preview", jobHandler.GetPreview)
	router.GET("/languages", jobHandler.GetLanguages)

	return router, jobStore, cfg
}

// multipartUpload 构造 multipart 上传请求
func multipartUpload(t *testing.T, filename, contentType, targetLang string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)

	if err := writer.WriteField("target_lang", targetLang); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// TestUploadOK 正常上传返回任务 ID 和排队状态
func TestUploadOK(t *testing.T) {
	router, jobStore, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "hello.txt", "text/plain", "ru", []byte("Hello")))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID == "" {
		t.Fatal("响应缺少 job_id")
	}
	if resp.Status != string(model.JobStatusQueued) && resp.Status != string(model.JobStatusProcessing) {
		t.Fatalf("status = %s", resp.Status)
	}

	if _, err := jobStore.Get(resp.JobID); err != nil {
		t.Fatalf("任务未入库: %v", err)
	}
}

// TestUploadBadLanguage 不支持的语言返回 400 且不创建任务
func TestUploadBadLanguage(t *testing.T) {
	router, jobStore, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "hello.txt", "text/plain", "fr", []byte("Hello")))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	jobs, _ := jobStore.List()
	if len(jobs) != 0 {
		t.Fatal("校验失败不应创建任务")
	}
}

// TestUploadUnknownKind 无法识别的文件类型返回 400
func TestUploadUnknownKind(t *testing.T) {
	router, jobStore, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "doc.pdf", "application/pdf", "ru", []byte("data")))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	jobs, _ := jobStore.List()
	if len(jobs) != 0 {
		t.Fatal("校验失败不应创建任务")
	}
}

// TestUploadTooLarge 超大文件返回 413
func TestUploadTooLarge(t *testing.T) {
	router, jobStore, cfg := testRouter(t)

	big := make([]byte, cfg.MaxUploadBytes()+1)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "big.mp3", "audio/mpeg", "ru", big))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
	jobs, _ := jobStore.List()
	if len(jobs) != 0 {
		t.Fatal("校验失败不应创建任务")
	}
}

// TestUploadMissingFields 缺少参数返回 400
func TestUploadMissingFields(t *testing.T) {
	router, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

// TestGetJobNotFound 未知任务返回 404
func TestGetJobNotFound(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/no-such-id", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

// TestGetAudioNotReady 任务未完成时语音返回 404
func TestGetAudioNotReady(t *testing.T) {
	router, jobStore, _ := testRouter(t)

	job, err := jobStore.Create("ru", model.ContentKindText)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID+"/audio", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

// TestGetAudioAfterCompletion 完成后可以下载语音
func TestGetAudioAfterCompletion(t *testing.T) {
	router, jobStore, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "hello.txt", "text/plain", "ru", []byte("Hello")))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	// 等待后台流水线完成
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobStore.Get(resp.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.IsTerminal() {
			if job.Status != model.JobStatusCompleted {
				t.Fatalf("status = %s, error = %s", job.Status, job.ErrorMessage)
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+resp.JobID+"/audio", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("audio status = %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("content-type = %s", w.Header().Get("Content-Type"))
	}
	if len(w.Body.Bytes()) < 44 {
		t.Fatal("语音内容为空")
	}
}

// TestGetPreviewImageJob 图片任务完成后可以获取识别区域预览图
func TestGetPreviewImageJob(t *testing.T) {
	router, jobStore, _ := testRouter(t)

	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "photo.png", "image/png", "en", buf.Bytes()))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	// 等待流水线完成，预览图带上识别区域
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobStore.Get(resp.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.IsTerminal() {
			if job.Status != model.JobStatusCompleted {
				t.Fatalf("status = %s, error = %s", job.Status, job.ErrorMessage)
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+resp.JobID+"/preview", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content-type = %s", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("响应不是 PNG 图片")
	}
}

// TestGetPreviewNonImage 非图片任务没有预览，返回 404
func TestGetPreviewNonImage(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "hello.txt", "text/plain", "ru", []byte("Hello")))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+resp.JobID+"/preview", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("preview status = %d", w.Code)
	}
}

// TestGetLanguages 返回支持的语言列表
func TestGetLanguages(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/languages", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Languages []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"languages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Languages) != 3 {
		t.Fatalf("languages = %+v", resp.Languages)
	}
}
