package service

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lingo-fusion/app/config"
	"lingo-fusion/app/logger"

	"github.com/fsnotify/fsnotify"
)

// WatchService 监控投递目录，自动把新文件提交为翻译任务
type WatchService struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *PipelineService
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
}

// NewWatchService 创建目录监控服务，未启用时返回 nil
func NewWatchService(cfg *config.Config, log *logger.Logger, pipeline *PipelineService) (*WatchService, error) {
	if !cfg.Watch.Enabled {
		return nil, nil
	}

	if err := os.MkdirAll(cfg.Watch.Dir, 0755); err != nil {
		return nil, fmt.Errorf("创建监控目录失败: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}
	if err := watcher.Add(cfg.Watch.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("添加监控目录失败: %w", err)
	}

	return &WatchService{
		cfg:      cfg,
		log:      log,
		pipeline: pipeline,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start 启动目录监控
func (s *WatchService) Start() {
	if s == nil {
		return
	}
	go s.run()
	s.log.Infof("目录监控已启动: %s, 默认目标语言: %s", s.cfg.Watch.Dir, s.cfg.Watch.DefaultLang)
}

// Stop 停止目录监控
func (s *WatchService) Stop() {
	if s == nil {
		return
	}
	close(s.stopCh)
	s.watcher.Close()
}

// run 事件循环
func (s *WatchService) run() {
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				s.handleNewFile(event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Errorf("文件监控出错: %v", err)
		}
	}
}

// handleNewFile 把新出现的文件提交为翻译任务
func (s *WatchService) handleNewFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	// 忽略隐藏文件和写入中的临时文件
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part") {
		return
	}

	// 等待写入完成：文件大小稳定后再读取
	if !s.waitForStable(path) {
		s.log.Warnf("文件迟迟未写完，跳过: %s", path)
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		s.log.Errorf("读取投递文件失败: %s, %v", path, err)
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	job, err := s.pipeline.Submit(content, name, mimeType, s.cfg.Watch.DefaultLang)
	if err != nil {
		s.log.Errorf("投递文件提交失败: %s, %v", path, err)
		return
	}

	s.log.Infof("投递文件已提交为任务: %s -> JobID=%s", name, job.ID)

	// 提交成功后移走原文件，避免重复提交
	if err := os.Remove(path); err != nil {
		s.log.Warnf("删除投递文件失败: %s, %v", path, err)
	}
}

// waitForStable 轮询文件大小直到两次一致，最多等 10 秒
func (s *WatchService) waitForStable(path string) bool {
	var lastSize int64 = -1
	for i := 0; i < 20; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()

		select {
		case <-s.stopCh:
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return false
}
