package server

import (
	"context"
	"net/http"

	"lingo-fusion/app/config"
	"lingo-fusion/app/database"
	"lingo-fusion/app/handler"
	"lingo-fusion/app/logger"
	"lingo-fusion/app/middleware"
	"lingo-fusion/app/service"
	"lingo-fusion/app/stage"
	"lingo-fusion/app/store"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config   *config.Config
	Logger   *logger.Logger
	gin      *gin.Engine
	http     *http.Server
	pipeline *service.PipelineService
	watch    *service.WatchService
	cleanup  *service.CleanupService
	store    store.JobStore
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	jobStore := store.NewGormJobStore(database.GetDB(), log)
	extractor, translator, synthesizer := buildStages(cfg)
	pipeline := service.NewPipelineService(cfg, log, jobStore, extractor, translator, synthesizer)

	watch, err := service.NewWatchService(cfg, log, pipeline)
	if err != nil {
		return nil, err
	}

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:   cfg,
		Logger:   log,
		pipeline: pipeline,
		watch:    watch,
		cleanup:  service.NewCleanupService(cfg, log, jobStore),
		store:    jobStore,
	}

	// 设置路由
	s.setupRoutes()

	return s, nil
}

// buildStages 按配置选择阶段适配器实现
func buildStages(cfg *config.Config) (stage.Extractor, stage.Translator, stage.Synthesizer) {
	if cfg.Stage.Mode == "remote" {
		return stage.NewRemoteExtractor(cfg.Stage.WhisperURL, cfg.Stage.OCRURL),
			stage.NewRemoteTranslator(cfg.Stage.TranslateURL, cfg.Language.Supported),
			stage.NewRemoteSynthesizer(cfg.Stage.TTSURL, cfg.Pipeline.ChunkMaxChars, cfg.Pipeline.SentenceChunking)
	}
	return stage.NewStubExtractor(),
		stage.NewStubTranslator(cfg.Language.Supported),
		stage.NewStubSynthesizer(cfg.Pipeline.ChunkMaxChars, cfg.Pipeline.SentenceChunking)
}

// Start 启动服务器及后台服务
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if err := s.pipeline.Start(); err != nil {
		return err
	}
	s.watch.Start()
	if err := s.cleanup.Start(); err != nil {
		return err
	}

	return s.http.ListenAndServe()
}

// Shutdown 优雅关闭服务器及后台服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.watch.Stop()
	s.cleanup.Stop()
	s.pipeline.Stop()

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	uploadHandler := handler.NewUploadHandler(s.Logger, s.pipeline, s.Config.MaxUploadBytes())
	jobHandler := handler.NewJobHandler(s.Config, s.Logger, s.store, s.pipeline)

	// 提交
	s.gin.POST("/upload", uploadHandler.Upload)

	// 查询
	jobs := s.gin.Group("/jobs")
	{
		jobs.GET("", jobHandler.ListJobs)
		jobs.GET("/:id", jobHandler.GetJob)
		jobs.GET("/:id/audio", jobHandler.GetAudio)
		jobs.GET("/:id/preview", jobHandler.GetPreview)
	}

	// 辅助接口
	s.gin.GET("/languages", jobHandler.GetLanguages)
	s.gin.GET("/queue/status", jobHandler.GetQueueStatus)
}
