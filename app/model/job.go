package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"     // 排队中
	JobStatusProcessing JobStatus = "processing" // 处理中
	JobStatusCompleted  JobStatus = "completed"  // 已完成
	JobStatusFailed     JobStatus = "failed"     // 失败
)

// IsTerminal 判断是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo 校验状态机转移是否合法
// queued -> processing -> completed/failed，终态不可回退
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// ContentKind 上传内容类型
type ContentKind string

const (
	ContentKindAudio ContentKind = "audio"
	ContentKindVideo ContentKind = "video"
	ContentKindImage ContentKind = "image"
	ContentKindText  ContentKind = "text"
)

// Segment 带时间戳的识别文本片段（音频/视频）
type Segment struct {
	Start float64 `json:"start"` // 起始时间（秒）
	End   float64 `json:"end"`   // 结束时间（秒）
	Text  string  `json:"text"`
}

// TextRegion 图片中识别出的文本区域（OCR）
type TextRegion struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 识别置信度 0~1
}

// TranslationJob 翻译任务模型
type TranslationJob struct {
	ID              string       `json:"job_id" gorm:"primaryKey;size:36"`
	Status          JobStatus    `json:"status" gorm:"size:20;default:queued;index"`
	ContentKind     ContentKind  `json:"content_kind" gorm:"size:10"`
	TargetLang      string       `json:"target_lang" gorm:"size:10"`
	SourcePath      string       `json:"-" gorm:"type:text"` // 原始上传文件路径，不对外暴露
	SourceText      string       `json:"source_text" gorm:"type:text"`
	TranslatedText  string       `json:"translated_text" gorm:"type:text"`
	Segments        []Segment    `json:"segments" gorm:"serializer:json"`
	Regions         []TextRegion `json:"regions" gorm:"serializer:json"`
	AudioOutputPath string       `json:"audio_output_path,omitempty" gorm:"type:text"`
	ErrorMessage    string       `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName 指定表名
func (TranslationJob) TableName() string {
	return "translation_jobs"
}

// NewTranslationJob 创建新的翻译任务（初始为排队状态）
func NewTranslationJob(targetLang string, kind ContentKind) *TranslationJob {
	return &TranslationJob{
		ID:          uuid.NewString(),
		Status:      JobStatusQueued,
		ContentKind: kind,
		TargetLang:  targetLang,
	}
}

// HasAudio 判断是否生成了语音文件
func (j *TranslationJob) HasAudio() bool {
	return j.AudioOutputPath != ""
}
