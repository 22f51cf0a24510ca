package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Language LanguageConfig `mapstructure:"languages"`
	Stage    StageConfig    `mapstructure:"stage"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type UploadConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxSizeMB    int64  `mapstructure:"max_size_mb"`
	MaxTextChars int    `mapstructure:"max_text_chars"` // 纯文本字符数上限
}

type AudioConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

type PipelineConfig struct {
	MaxConcurrent      int  `mapstructure:"max_concurrent"`
	RecognitionTimeout int  `mapstructure:"recognition_timeout"` // 语音识别超时（秒）
	OCRTimeout         int  `mapstructure:"ocr_timeout"`
	TranslationTimeout int  `mapstructure:"translation_timeout"`
	SynthesisTimeout   int  `mapstructure:"synthesis_timeout"`
	ChunkMaxChars      int  `mapstructure:"chunk_max_chars"`
	SentenceChunking   bool `mapstructure:"sentence_chunking"` // 是否按句子边界切分
}

type LanguageConfig struct {
	Supported []string `mapstructure:"supported"`
}

type StageConfig struct {
	Mode         string `mapstructure:"mode"` // stub 或 remote
	WhisperURL   string `mapstructure:"whisper_url"`
	OCRURL       string `mapstructure:"ocr_url"`
	TranslateURL string `mapstructure:"translate_url"`
	TTSURL       string `mapstructure:"tts_url"`
}

type WatchConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"`
	DefaultLang string `mapstructure:"default_lang"`
}

type CleanupConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Schedule      string `mapstructure:"schedule"`       // cron 表达式
	RetentionDays int    `mapstructure:"retention_days"` // 终态任务保留天数
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("database.path", "data/lingo-fusion.db")

	// 上传默认配置
	viper.SetDefault("upload.dir", "data/uploads")
	viper.SetDefault("upload.max_size_mb", 500)
	viper.SetDefault("upload.max_text_chars", 100000)

	viper.SetDefault("audio.output_dir", "data/audio_output")

	// 流水线默认配置
	viper.SetDefault("pipeline.max_concurrent", 4)
	viper.SetDefault("pipeline.recognition_timeout", 3600)
	viper.SetDefault("pipeline.ocr_timeout", 600)
	viper.SetDefault("pipeline.translation_timeout", 600)
	viper.SetDefault("pipeline.synthesis_timeout", 600)
	viper.SetDefault("pipeline.chunk_max_chars", 500)
	viper.SetDefault("pipeline.sentence_chunking", true)

	viper.SetDefault("languages.supported", []string{"ru", "en", "kk"})

	// 阶段适配器默认使用本地模拟实现
	viper.SetDefault("stage.mode", "stub")

	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.default_lang", "en")

	viper.SetDefault("cleanup.enabled", true)
	viper.SetDefault("cleanup.schedule", "0 3 * * *")
	viper.SetDefault("cleanup.retention_days", 7)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("上传大小限制必须大于 0")
	}
	if len(config.Language.Supported) == 0 {
		return fmt.Errorf("支持的目标语言列表不能为空")
	}
	if config.Stage.Mode != "stub" && config.Stage.Mode != "remote" {
		return fmt.Errorf("无效的阶段适配器模式: %s", config.Stage.Mode)
	}
	if config.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("流水线并发数必须大于 0")
	}
	if config.Watch.Enabled && config.Watch.Dir == "" {
		return fmt.Errorf("文件监控已启用但未设置监控目录")
	}
	return nil
}

// IsLanguageSupported 判断目标语言是否在支持列表中
func (c *Config) IsLanguageSupported(lang string) bool {
	for _, l := range c.Language.Supported {
		if l == lang {
			return true
		}
	}
	return false
}

// MaxUploadBytes 上传大小限制（字节）
func (c *Config) MaxUploadBytes() int64 {
	return c.Upload.MaxSizeMB * 1024 * 1024
}

// StageTimeout 将秒数转换为超时时长
func StageTimeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
