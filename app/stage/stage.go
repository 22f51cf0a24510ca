// Package stage 定义流水线三个阶段的适配器接口：
// 文本提取（语音识别 / OCR / 纯文本读取）、翻译、语音合成。
// 每个接口都有本地模拟实现和远程服务实现，由配置选择。
package stage

import (
	"context"
	"errors"

	"lingo-fusion/app/model"
)

// ErrEmptyText 输入文本为空，语音合成跳过（不视为阶段失败）
var ErrEmptyText = errors.New("输入文本为空")

// ErrUnsupportedLanguage 目标语言不在支持列表中
var ErrUnsupportedLanguage = errors.New("不支持的目标语言")

// ExtractResult 提取阶段的输出
type ExtractResult struct {
	Text     string             // 提取出的完整文本
	Segments []model.Segment    // 音频/视频的时间戳片段
	Regions  []model.TextRegion // 图片的文本区域
}

// Extractor 按内容类型从源文件中提取文本
type Extractor interface {
	Extract(ctx context.Context, kind model.ContentKind, sourcePath string) (*ExtractResult, error)
}

// Translator 将文本翻译到目标语言。空输入返回空输出，不视为错误
type Translator interface {
	Translate(ctx context.Context, text string, targetLang string) (string, error)
}

// Synthesizer 将文本合成为语音并写入 outputPath。
// 空文本返回 ErrEmptyText 作为跳过信号
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, targetLang string, outputPath string) error
}

// NLLB 语言代码映射
var nllbLangCodes = map[string]string{
	"ru": "rus_Cyrl",
	"en": "eng_Latn",
	"kk": "kaz_Cyrl",
}

// 语言名称映射
var languageNames = map[string]string{
	"ru": "Russian",
	"en": "English",
	"kk": "Kazakh",
}

// LanguageName 返回语言代码对应的名称，未知代码原样返回
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
