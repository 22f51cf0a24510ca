package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"lingo-fusion/app/logger"
	"lingo-fusion/app/model"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// ErrJobNotFound 任务不存在
var ErrJobNotFound = errors.New("任务不存在")

// ErrInvalidTransition 非法的状态转移（终态不可回退）
var ErrInvalidTransition = errors.New("非法的任务状态转移")

// JobStore 任务存储接口，流水线和查询接口共用
type JobStore interface {
	// Create 创建新任务，初始状态为排队中
	Create(targetLang string, kind model.ContentKind) (*model.TranslationJob, error)
	// Get 按 ID 查询任务
	Get(id string) (*model.TranslationJob, error)
	// Update 原子更新任务的部分字段并刷新 updated_at
	Update(id string, fields map[string]interface{}) (*model.TranslationJob, error)
	// SetStatus 校验状态机后更新任务状态
	SetStatus(id string, status model.JobStatus) error
	// SetFailed 将任务置为失败态并记录错误信息
	SetFailed(id string, message string) error
	// List 返回全部任务快照，按创建时间倒序
	List() ([]model.TranslationJob, error)
	// CountByStatus 按状态统计任务数量
	CountByStatus() (map[model.JobStatus]int64, error)
	// RequeueStuck 将处理中的任务重置为排队状态（进程重启恢复用）
	RequeueStuck() ([]model.TranslationJob, error)
	// PurgeBefore 删除指定时间之前进入终态的任务，返回被删除的任务
	PurgeBefore(cutoff time.Time) ([]model.TranslationJob, error)
}

// GormJobStore 基于 gorm 的持久化任务存储
type GormJobStore struct {
	db    *gorm.DB
	log   *logger.Logger
	cache *cache.Cache // 终态任务读缓存，减少轮询压力
	mu    sync.RWMutex // 协调读缓存回填和清理删除，防止已清理的任务被重新写入缓存
}

// NewGormJobStore 创建持久化任务存储
func NewGormJobStore(db *gorm.DB, log *logger.Logger) *GormJobStore {
	return &GormJobStore{
		db:    db,
		log:   log,
		cache: cache.New(10*time.Minute, 30*time.Minute),
	}
}

// Create 创建新任务
func (s *GormJobStore) Create(targetLang string, kind model.ContentKind) (*model.TranslationJob, error) {
	job := model.NewTranslationJob(targetLang, kind)
	if err := s.db.Create(job).Error; err != nil {
		s.log.Errorf("创建任务失败: %v", err)
		return nil, fmt.Errorf("写入任务记录失败: %w", err)
	}
	s.log.Infof("任务已创建: JobID=%s, ContentKind=%s, TargetLang=%s", job.ID, kind, targetLang)
	return job, nil
}

// Get 按 ID 查询任务
func (s *GormJobStore) Get(id string) (*model.TranslationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 终态任务不再变化，可以直接走缓存
	if cached, ok := s.cache.Get(id); ok {
		job := cached.(model.TranslationJob)
		return &job, nil
	}

	var job model.TranslationJob
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if job.Status.IsTerminal() {
		s.cache.Set(id, job, cache.DefaultExpiration)
	}
	return &job, nil
}

// Update 原子更新任务的部分字段
func (s *GormJobStore) Update(id string, fields map[string]interface{}) (*model.TranslationJob, error) {
	var job model.TranslationJob
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if err := applyFields(&job, fields); err != nil {
			return err
		}
		// 整行回写，片段和区域走 JSON 序列化
		return tx.Save(&job).Error
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(id)
	return &job, nil
}

// applyFields 把部分字段更新应用到任务结构上
func applyFields(job *model.TranslationJob, fields map[string]interface{}) error {
	for key, value := range fields {
		switch key {
		case "source_path":
			job.SourcePath = value.(string)
		case "source_text":
			job.SourceText = value.(string)
		case "translated_text":
			job.TranslatedText = value.(string)
		case "audio_output_path":
			job.AudioOutputPath = value.(string)
		case "error_message":
			job.ErrorMessage = value.(string)
		case "segments":
			if value == nil {
				job.Segments = nil
			} else {
				job.Segments = value.([]model.Segment)
			}
		case "regions":
			if value == nil {
				job.Regions = nil
			} else {
				job.Regions = value.([]model.TextRegion)
			}
		default:
			return fmt.Errorf("不支持更新的字段: %s", key)
		}
	}
	return nil
}

// SetStatus 校验状态机后更新任务状态
func (s *GormJobStore) SetStatus(id string, status model.JobStatus) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var job model.TranslationJob
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if !job.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, status)
		}
		return tx.Model(&job).Update("status", status).Error
	})
	if err != nil {
		return err
	}

	s.cache.Delete(id)
	return nil
}

// SetFailed 将任务置为失败态并记录错误信息
func (s *GormJobStore) SetFailed(id string, message string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var job model.TranslationJob
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if !job.Status.CanTransitionTo(model.JobStatusFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, model.JobStatusFailed)
		}
		return tx.Model(&job).Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": message,
		}).Error
	})
	if err != nil {
		return err
	}

	s.cache.Delete(id)
	return nil
}

// List 返回全部任务快照，按创建时间倒序
func (s *GormJobStore) List() ([]model.TranslationJob, error) {
	var jobs []model.TranslationJob
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByStatus 按状态统计任务数量
func (s *GormJobStore) CountByStatus() (map[model.JobStatus]int64, error) {
	result := make(map[model.JobStatus]int64)
	for _, status := range []model.JobStatus{
		model.JobStatusQueued, model.JobStatusProcessing,
		model.JobStatusCompleted, model.JobStatusFailed,
	} {
		var count int64
		if err := s.db.Model(&model.TranslationJob{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, nil
}

// RequeueStuck 将处理中的任务重置为排队状态
// 服务重启后处理中的任务已无执行者，重置后由流水线重新调度
func (s *GormJobStore) RequeueStuck() ([]model.TranslationJob, error) {
	var stuck []model.TranslationJob
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", model.JobStatusProcessing).Find(&stuck).Error; err != nil {
			return err
		}
		if len(stuck) == 0 {
			return nil
		}
		return tx.Model(&model.TranslationJob{}).
			Where("status = ?", model.JobStatusProcessing).
			Update("status", model.JobStatusQueued).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range stuck {
		stuck[i].Status = model.JobStatusQueued
	}
	return stuck, nil
}

// PurgeBefore 删除指定时间之前进入终态的任务。
// 持有写锁，保证并发的 Get 不会把刚删除的任务重新写回缓存
func (s *GormJobStore) PurgeBefore(cutoff time.Time) ([]model.TranslationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []model.TranslationJob
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status IN (?) AND updated_at < ?",
			[]model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}, cutoff).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		return tx.Where("status IN (?) AND updated_at < ?",
			[]model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}, cutoff).
			Delete(&model.TranslationJob{}).Error
	})
	if err != nil {
		return nil, err
	}
	for _, job := range expired {
		s.cache.Delete(job.ID)
	}
	return expired, nil
}
