package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"lingo-fusion/app/config"
	"lingo-fusion/app/logger"
	"lingo-fusion/app/model"
	"lingo-fusion/app/stage"
	"lingo-fusion/app/store"
	"lingo-fusion/app/utils/mediakind"
)

// ErrUnsupportedLanguage 目标语言不在支持列表中（提交时校验）
var ErrUnsupportedLanguage = errors.New("不支持的目标语言")

// ErrFileTooLarge 上传文件超过大小限制
var ErrFileTooLarge = errors.New("文件超过大小限制")

// ErrTextTooLong 纯文本内容超过字符数限制
var ErrTextTooLong = errors.New("文本内容超过字符数限制")

// PipelineService 翻译流水线服务。
// 负责接收提交、调度后台处理（提取 -> 翻译 -> 合成）并维护任务状态机
type PipelineService struct {
	cfg         *config.Config
	log         *logger.Logger
	store       store.JobStore
	extractor   stage.Extractor
	translator  stage.Translator
	synthesizer stage.Synthesizer

	workers chan struct{} // 控制并发流水线数量的信号量
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPipelineService 创建流水线服务
func NewPipelineService(
	cfg *config.Config,
	log *logger.Logger,
	jobStore store.JobStore,
	extractor stage.Extractor,
	translator stage.Translator,
	synthesizer stage.Synthesizer,
) *PipelineService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PipelineService{
		cfg:         cfg,
		log:         log,
		store:       jobStore,
		extractor:   extractor,
		translator:  translator,
		synthesizer: synthesizer,
		workers:     make(chan struct{}, cfg.Pipeline.MaxConcurrent),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start 启动流水线服务。
// 把上次进程退出时卡在处理中的任务重置为排队状态并重新调度
func (s *PipelineService) Start() error {
	requeued, err := s.store.RequeueStuck()
	if err != nil {
		return fmt.Errorf("恢复未完成任务失败: %w", err)
	}
	if len(requeued) > 0 {
		s.log.Infof("重新调度 %d 个中断的任务", len(requeued))
	}

	// 排队中的任务（含刚重置的）全部重新进入调度
	jobs, err := s.store.List()
	if err != nil {
		return fmt.Errorf("读取任务列表失败: %w", err)
	}
	for i := range jobs {
		if jobs[i].Status == model.JobStatusQueued {
			s.dispatch(jobs[i].ID)
		}
	}

	s.log.Infof("流水线服务已启动，最大并发数: %d", s.cfg.Pipeline.MaxConcurrent)
	return nil
}

// Stop 停止流水线服务，等待在途任务退出
func (s *PipelineService) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("流水线服务已停止")
}

// Submit 校验并接收一次提交，创建任务后立即返回，处理在后台进行。
// 校验失败不会留下任何任务记录和文件
func (s *PipelineService) Submit(content []byte, filename, mimeType, targetLang string) (*model.TranslationJob, error) {
	// 目标语言必须在支持列表中，不通过则不做任何存储操作
	if !s.cfg.IsLanguageSupported(targetLang) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, targetLang)
	}

	if int64(len(content)) > s.cfg.MaxUploadBytes() {
		return nil, fmt.Errorf("%w: 最大 %dMB", ErrFileTooLarge, s.cfg.Upload.MaxSizeMB)
	}

	kind, err := mediakind.Infer(mimeType, filename)
	if err != nil {
		return nil, err
	}

	// 纯文本额外限制字符数，避免超长文本拖垮翻译阶段
	if kind == model.ContentKindText {
		if utf8.RuneCount(content) > s.cfg.Upload.MaxTextChars {
			return nil, fmt.Errorf("%w: 最大 %d 字符", ErrTextTooLong, s.cfg.Upload.MaxTextChars)
		}
	}

	job, err := s.store.Create(targetLang, kind)
	if err != nil {
		return nil, err
	}

	// 上传文件以任务 ID 为前缀存储，同名文件也不会冲突
	sourcePath := filepath.Join(s.cfg.Upload.Dir, job.ID+"_"+filepath.Base(filename))
	if err := os.MkdirAll(s.cfg.Upload.Dir, 0755); err != nil {
		s.failSubmission(job.ID, err)
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	if err := os.WriteFile(sourcePath, content, 0644); err != nil {
		s.failSubmission(job.ID, err)
		return nil, fmt.Errorf("保存上传文件失败: %w", err)
	}

	if _, err := s.store.Update(job.ID, map[string]interface{}{"source_path": sourcePath}); err != nil {
		s.failSubmission(job.ID, err)
		return nil, err
	}
	job.SourcePath = sourcePath

	s.dispatch(job.ID)
	return job, nil
}

// failSubmission 提交过程中的存储故障直接终结任务，不让它停留在排队状态
func (s *PipelineService) failSubmission(jobID string, cause error) {
	if err := s.store.SetFailed(jobID, "保存上传内容失败: "+cause.Error()); err != nil {
		s.log.Errorf("标记任务失败时出错: JobID=%s, %v", jobID, err)
	}
}

// dispatch 调度一个任务进入后台流水线，不阻塞调用方。
// 并发槽位满时任务保持排队状态，等槽位释放后继续
func (s *PipelineService) dispatch(jobID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case s.workers <- struct{}{}:
			defer func() { <-s.workers }()
		case <-s.ctx.Done():
			return
		}

		s.process(jobID)
	}()
}

// process 执行一个任务的完整流水线。
// 任何阶段错误或 panic 都会收敛为失败态，绝不让任务停留在处理中
func (s *PipelineService) process(jobID string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("流水线发生 panic: JobID=%s, %v", jobID, r)
			s.markFailed(jobID, fmt.Sprintf("内部错误: %v", r))
		}
	}()

	job, err := s.store.Get(jobID)
	if err != nil {
		s.log.Errorf("读取任务失败: JobID=%s, %v", jobID, err)
		return
	}

	if err := s.store.SetStatus(jobID, model.JobStatusProcessing); err != nil {
		s.log.Errorf("任务进入处理状态失败: JobID=%s, %v", jobID, err)
		return
	}

	s.log.Infof("开始处理任务: JobID=%s, ContentKind=%s, TargetLang=%s", jobID, job.ContentKind, job.TargetLang)
	startTime := time.Now()

	// 阶段一：提取文本
	result, err := s.runExtract(job)
	if err != nil {
		if s.interruptedByShutdown(err) {
			s.log.Infof("服务正在关闭，任务等待下次启动恢复: JobID=%s", jobID)
			return
		}
		s.markFailed(jobID, "文本提取失败: "+stageErrorMessage(err))
		return
	}
	if _, err := s.store.Update(jobID, map[string]interface{}{
		"source_text": result.Text,
		"segments":    result.Segments,
		"regions":     result.Regions,
	}); err != nil {
		s.markFailed(jobID, "保存提取结果失败: "+err.Error())
		return
	}

	// 阶段二：翻译
	translated, err := s.runTranslate(result.Text, job.TargetLang)
	if err != nil {
		if s.interruptedByShutdown(err) {
			s.log.Infof("服务正在关闭，任务等待下次启动恢复: JobID=%s", jobID)
			return
		}
		s.markFailed(jobID, "翻译失败: "+stageErrorMessage(err))
		return
	}
	if _, err := s.store.Update(jobID, map[string]interface{}{"translated_text": translated}); err != nil {
		s.markFailed(jobID, "保存译文失败: "+err.Error())
		return
	}

	// 阶段三：语音合成（尽力而为，失败不影响任务完成）
	audioPath := filepath.Join(s.cfg.Audio.OutputDir, jobID+".wav")
	if err := s.runSynthesize(translated, job.TargetLang, audioPath); err != nil {
		if s.interruptedByShutdown(err) {
			s.log.Infof("服务正在关闭，任务等待下次启动恢复: JobID=%s", jobID)
			return
		}
		if errors.Is(err, stage.ErrEmptyText) {
			s.log.Infof("译文为空，跳过语音合成: JobID=%s", jobID)
		} else {
			s.log.Warnf("语音合成失败，任务继续: JobID=%s, %v", jobID, err)
		}
	} else {
		if _, err := s.store.Update(jobID, map[string]interface{}{"audio_output_path": audioPath}); err != nil {
			s.log.Errorf("保存语音路径失败: JobID=%s, %v", jobID, err)
		}
	}

	if err := s.store.SetStatus(jobID, model.JobStatusCompleted); err != nil {
		s.log.Errorf("任务进入完成状态失败: JobID=%s, %v", jobID, err)
		return
	}

	s.log.Infof("任务完成: JobID=%s, 耗时: %v", jobID, time.Since(startTime))
}

// runExtract 带超时执行提取阶段
func (s *PipelineService) runExtract(job *model.TranslationJob) (*stage.ExtractResult, error) {
	var timeout int
	switch job.ContentKind {
	case model.ContentKindImage:
		timeout = s.cfg.Pipeline.OCRTimeout
	default:
		timeout = s.cfg.Pipeline.RecognitionTimeout
	}

	ctx, cancel := context.WithTimeout(s.ctx, config.StageTimeout(timeout))
	defer cancel()

	return s.extractor.Extract(ctx, job.ContentKind, job.SourcePath)
}

// runTranslate 带超时执行翻译阶段
func (s *PipelineService) runTranslate(text, targetLang string) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, config.StageTimeout(s.cfg.Pipeline.TranslationTimeout))
	defer cancel()

	return s.translator.Translate(ctx, text, targetLang)
}

// runSynthesize 带超时执行语音合成阶段
func (s *PipelineService) runSynthesize(text, targetLang, outputPath string) error {
	ctx, cancel := context.WithTimeout(s.ctx, config.StageTimeout(s.cfg.Pipeline.SynthesisTimeout))
	defer cancel()

	return s.synthesizer.Synthesize(ctx, text, targetLang, outputPath)
}

// interruptedByShutdown 判断阶段错误是否由服务关闭引起。
// 关闭导致的取消不算任务失败，任务保持处理中，下次启动时重新调度
func (s *PipelineService) interruptedByShutdown(err error) bool {
	return errors.Is(err, context.Canceled) && s.ctx.Err() != nil
}

// markFailed 把任务收敛到失败态
func (s *PipelineService) markFailed(jobID string, message string) {
	if err := s.store.SetFailed(jobID, message); err != nil {
		s.log.Errorf("标记任务失败时出错: JobID=%s, %v", jobID, err)
		return
	}
	s.log.Warnf("任务失败: JobID=%s, 原因: %s", jobID, message)
}

// stageErrorMessage 把阶段错误转换为可读信息，超时和取消单独标注
func stageErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "阶段执行超时"
	}
	if errors.Is(err, context.Canceled) {
		return "任务被取消"
	}
	return err.Error()
}

// QueueStatus 按状态统计任务数量
func (s *PipelineService) QueueStatus() (map[model.JobStatus]int64, error) {
	return s.store.CountByStatus()
}
