package stage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"lingo-fusion/app/model"

	"github.com/disintegration/imaging"
)

// StubExtractor 本地模拟提取器，无需模型即可运行整条流水线
type StubExtractor struct{}

// NewStubExtractor 创建模拟提取器
func NewStubExtractor() *StubExtractor {
	return &StubExtractor{}
}

// Extract 按内容类型返回确定性的模拟结果
func (e *StubExtractor) Extract(ctx context.Context, kind model.ContentKind, sourcePath string) (*ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case model.ContentKindAudio, model.ContentKindVideo:
		// 源文件必须可读，哪怕结果是模拟的
		if _, err := os.Stat(sourcePath); err != nil {
			return nil, fmt.Errorf("读取媒体文件失败: %w", err)
		}
		return &ExtractResult{
			Text: "This is a sample transcription of the media file.",
			Segments: []model.Segment{
				{Start: 0.0, End: 5.0, Text: "This is a sample"},
				{Start: 5.0, End: 10.0, Text: "transcription of the media file."},
			},
		}, nil

	case model.ContentKindImage:
		// 解码图片获取真实尺寸，把模拟区域放在图片范围内
		img, err := imaging.Open(sourcePath)
		if err != nil {
			return nil, fmt.Errorf("解码图片失败: %w", err)
		}
		bounds := img.Bounds()
		w := float64(bounds.Dx())
		h := float64(bounds.Dy())
		return &ExtractResult{
			Text: "Extracted text from image sample",
			Regions: []model.TextRegion{
				{X: w * 0.1, Y: h * 0.1, Width: w * 0.5, Height: h * 0.1, Text: "Extracted text", Confidence: 0.98},
				{X: w * 0.1, Y: h * 0.25, Width: w * 0.4, Height: h * 0.1, Text: "from image sample", Confidence: 0.97},
			},
		}, nil

	case model.ContentKindText:
		text, err := ReadTextFile(sourcePath)
		if err != nil {
			return nil, err
		}
		return &ExtractResult{Text: text}, nil

	default:
		return nil, fmt.Errorf("不支持的内容类型: %s", kind)
	}
}

// StubTranslator 本地模拟翻译器，在文本前加目标语言标记
type StubTranslator struct {
	supported map[string]bool
}

// NewStubTranslator 创建模拟翻译器
func NewStubTranslator(supportedLangs []string) *StubTranslator {
	supported := make(map[string]bool, len(supportedLangs))
	for _, lang := range supportedLangs {
		supported[lang] = true
	}
	return &StubTranslator{supported: supported}
}

// Translate 返回带语言标记的模拟译文，空输入返回空输出
func (t *StubTranslator) Translate(ctx context.Context, text string, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !t.supported[targetLang] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, targetLang)
	}
	if text == "" {
		return "", nil
	}

	tags := map[string]string{"ru": "RUS", "en": "ENG", "kk": "KAZ"}
	tag, ok := tags[targetLang]
	if !ok {
		tag = "UNK"
	}
	return fmt.Sprintf("[%s] %s", tag, text), nil
}

// StubSynthesizer 本地模拟语音合成器，按文本块生成静音 WAV
type StubSynthesizer struct {
	chunkMaxChars    int
	sentenceChunking bool
}

// NewStubSynthesizer 创建模拟合成器
func NewStubSynthesizer(chunkMaxChars int, sentenceChunking bool) *StubSynthesizer {
	return &StubSynthesizer{
		chunkMaxChars:    chunkMaxChars,
		sentenceChunking: sentenceChunking,
	}
}

// Synthesize 每个文本块生成 1 秒静音，按块顺序拼接写入 outputPath
func (s *StubSynthesizer) Synthesize(ctx context.Context, text string, targetLang string, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunks := SplitText(text, s.chunkMaxChars, s.sentenceChunking)
	if len(chunks) == 0 {
		return ErrEmptyText
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("创建语音输出目录失败: %w", err)
	}

	const sampleRate = 22050
	samplesPerChunk := sampleRate // 每块 1 秒
	pcm := make([]byte, len(chunks)*samplesPerChunk*2)

	data, err := buildWAV(pcm, sampleRate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("写入语音文件失败: %w", err)
	}
	return nil
}

// buildWAV 构造 16 位单声道 PCM 的 WAV 文件内容
func buildWAV(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer

	// RIFF 头
	buf.WriteString("RIFF")
	if err := binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm))); err != nil {
		return nil, err
	}
	buf.WriteString("WAVE")

	// fmt 块
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))            // 块大小
	binary.Write(&buf, binary.LittleEndian, uint16(1))             // PCM 格式
	binary.Write(&buf, binary.LittleEndian, uint16(1))             // 单声道
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))    // 采样率
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))  // 字节率
	binary.Write(&buf, binary.LittleEndian, uint16(2))             // 块对齐
	binary.Write(&buf, binary.LittleEndian, uint16(16))            // 位深

	// data 块
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
