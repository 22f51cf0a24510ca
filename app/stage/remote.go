package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lingo-fusion/app/model"

	"resty.dev/v3"
)

// RemoteExtractor 调用远程识别服务（Whisper / OCR）提取文本
type RemoteExtractor struct {
	whisperClient *resty.Client
	ocrClient     *resty.Client
}

// NewRemoteExtractor 创建远程提取器
func NewRemoteExtractor(whisperURL, ocrURL string) *RemoteExtractor {
	return &RemoteExtractor{
		whisperClient: resty.New().SetBaseURL(whisperURL),
		ocrClient:     resty.New().SetBaseURL(ocrURL),
	}
}

// transcribeResponse 语音识别服务的响应
type transcribeResponse struct {
	Text     string          `json:"text"`
	Segments []model.Segment `json:"segments"`
}

// ocrResponse OCR 服务的响应
type ocrResponse struct {
	Text    string             `json:"text"`
	Regions []model.TextRegion `json:"regions"`
}

// Extract 按内容类型调用对应的远程服务
func (e *RemoteExtractor) Extract(ctx context.Context, kind model.ContentKind, sourcePath string) (*ExtractResult, error) {
	switch kind {
	case model.ContentKindAudio, model.ContentKindVideo:
		return e.transcribe(ctx, sourcePath)
	case model.ContentKindImage:
		return e.recognize(ctx, sourcePath)
	case model.ContentKindText:
		// 纯文本不需要远程服务
		text, err := ReadTextFile(sourcePath)
		if err != nil {
			return nil, err
		}
		return &ExtractResult{Text: text}, nil
	default:
		return nil, fmt.Errorf("不支持的内容类型: %s", kind)
	}
}

// transcribe 调用语音识别服务
func (e *RemoteExtractor) transcribe(ctx context.Context, sourcePath string) (*ExtractResult, error) {
	var result transcribeResponse

	resp, err := e.whisperClient.R().
		SetContext(ctx).
		SetFile("file", sourcePath).
		SetResult(&result).
		Post("/asr")
	if err != nil {
		return nil, fmt.Errorf("请求语音识别服务失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("语音识别失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}

	return &ExtractResult{Text: result.Text, Segments: result.Segments}, nil
}

// recognize 调用 OCR 服务
func (e *RemoteExtractor) recognize(ctx context.Context, sourcePath string) (*ExtractResult, error) {
	var result ocrResponse

	resp, err := e.ocrClient.R().
		SetContext(ctx).
		SetFile("file", sourcePath).
		SetResult(&result).
		Post("/ocr")
	if err != nil {
		return nil, fmt.Errorf("请求 OCR 服务失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("OCR 识别失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}

	return &ExtractResult{Text: result.Text, Regions: result.Regions}, nil
}

// RemoteTranslator 调用远程 NLLB 翻译服务
type RemoteTranslator struct {
	client    *resty.Client
	supported map[string]bool
}

// NewRemoteTranslator 创建远程翻译器
func NewRemoteTranslator(translateURL string, supportedLangs []string) *RemoteTranslator {
	supported := make(map[string]bool, len(supportedLangs))
	for _, lang := range supportedLangs {
		supported[lang] = true
	}
	return &RemoteTranslator{
		client:    resty.New().SetBaseURL(translateURL),
		supported: supported,
	}
}

// translateResponse 翻译服务的响应
type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate 调用翻译服务，空输入直接返回空输出
func (t *RemoteTranslator) Translate(ctx context.Context, text string, targetLang string) (string, error) {
	if !t.supported[targetLang] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, targetLang)
	}
	if text == "" {
		return "", nil
	}

	langCode, ok := nllbLangCodes[targetLang]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, targetLang)
	}

	var result translateResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"text":        text,
			"target_lang": langCode,
		}).
		SetResult(&result).
		Post("/translate")
	if err != nil {
		return "", fmt.Errorf("请求翻译服务失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("翻译失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}

	return result.TranslatedText, nil
}

// RemoteSynthesizer 调用远程 TTS 服务合成语音。
// 长文本在适配器内部分块请求，按块顺序拼接音频，保证完整覆盖输入文本
type RemoteSynthesizer struct {
	client           *resty.Client
	chunkMaxChars    int
	sentenceChunking bool
}

// NewRemoteSynthesizer 创建远程合成器
func NewRemoteSynthesizer(ttsURL string, chunkMaxChars int, sentenceChunking bool) *RemoteSynthesizer {
	return &RemoteSynthesizer{
		client:           resty.New().SetBaseURL(ttsURL),
		chunkMaxChars:    chunkMaxChars,
		sentenceChunking: sentenceChunking,
	}
}

// Synthesize 分块请求 TTS 服务并顺序写入 outputPath
func (s *RemoteSynthesizer) Synthesize(ctx context.Context, text string, targetLang string, outputPath string) error {
	chunks := SplitText(text, s.chunkMaxChars, s.sentenceChunking)
	if len(chunks) == 0 {
		return ErrEmptyText
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("创建语音输出目录失败: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建语音文件失败: %w", err)
	}
	defer out.Close()

	for i, chunk := range chunks {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(map[string]string{
				"text": chunk,
				"lang": targetLang,
			}).
			Post("/synthesize")
		if err != nil {
			return fmt.Errorf("请求 TTS 服务失败（第 %d 块）: %w", i+1, err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("语音合成失败（第 %d 块），状态码: %d", i+1, resp.StatusCode())
		}
		if _, err := out.Write(resp.Bytes()); err != nil {
			return fmt.Errorf("写入语音文件失败: %w", err)
		}
	}

	return nil
}
