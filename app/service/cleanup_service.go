package service

import (
	"os"
	"time"

	"lingo-fusion/app/config"
	"lingo-fusion/app/logger"
	"lingo-fusion/app/store"

	"github.com/robfig/cron/v3"
)

// CleanupService 定期清理过期的终态任务及其上传文件和语音产物
type CleanupService struct {
	cfg   *config.Config
	log   *logger.Logger
	store store.JobStore
	cron  *cron.Cron
}

// NewCleanupService 创建清理服务，未启用时返回 nil
func NewCleanupService(cfg *config.Config, log *logger.Logger, jobStore store.JobStore) *CleanupService {
	if !cfg.Cleanup.Enabled {
		return nil
	}
	return &CleanupService{
		cfg:   cfg,
		log:   log,
		store: jobStore,
		cron:  cron.New(),
	}
}

// Start 按配置的 cron 表达式启动定期清理
func (s *CleanupService) Start() error {
	if s == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.Cleanup.Schedule, s.Cleanup); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("清理服务已启动: 计划=%s, 保留天数=%d", s.cfg.Cleanup.Schedule, s.cfg.Cleanup.RetentionDays)
	return nil
}

// Stop 停止清理服务
func (s *CleanupService) Stop() {
	if s == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Cleanup 执行一次清理（也可手动触发）
func (s *CleanupService) Cleanup() {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.Cleanup.RetentionDays)

	purged, err := s.store.PurgeBefore(cutoff)
	if err != nil {
		s.log.Errorf("清理过期任务失败: %v", err)
		return
	}
	if len(purged) == 0 {
		return
	}

	// 连同上传文件和语音产物一起删除
	for _, job := range purged {
		if job.SourcePath != "" {
			if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
				s.log.Warnf("删除上传文件失败: %s, %v", job.SourcePath, err)
			}
		}
		if job.AudioOutputPath != "" {
			if err := os.Remove(job.AudioOutputPath); err != nil && !os.IsNotExist(err) {
				s.log.Warnf("删除语音文件失败: %s, %v", job.AudioOutputPath, err)
			}
		}
	}

	s.log.Infof("清理了 %d 个过期任务（超过 %d 天）", len(purged), s.cfg.Cleanup.RetentionDays)
}
