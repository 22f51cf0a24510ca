// Package mediakind 根据 MIME 类型和文件扩展名推断上传内容的类型。
// 无法识别的类型显式拒绝，不会静默按文本处理。
package mediakind

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"lingo-fusion/app/model"
)

// ErrUnsupportedType 无法识别的内容类型
var ErrUnsupportedType = errors.New("不支持的文件类型")

// 常见媒体扩展名，浏览器上传 octet-stream 时按扩展名兜底
var extensionKinds = map[string]model.ContentKind{
	".mp3":  model.ContentKindAudio,
	".wav":  model.ContentKindAudio,
	".m4a":  model.ContentKindAudio,
	".flac": model.ContentKindAudio,
	".ogg":  model.ContentKindAudio,
	".mp4":  model.ContentKindVideo,
	".avi":  model.ContentKindVideo,
	".mov":  model.ContentKindVideo,
	".mkv":  model.ContentKindVideo,
	".webm": model.ContentKindVideo,
	".jpg":  model.ContentKindImage,
	".jpeg": model.ContentKindImage,
	".png":  model.ContentKindImage,
	".bmp":  model.ContentKindImage,
	".gif":  model.ContentKindImage,
	".txt":  model.ContentKindText,
	".md":   model.ContentKindText,
	".srt":  model.ContentKindText,
}

// Infer 根据声明的 MIME 类型和文件名推断内容类型。
// MIME 为 application/octet-stream 时回退到扩展名判断，仍无法识别则返回错误
func Infer(mimeType string, filename string) (model.ContentKind, error) {
	mimeType = normalize(mimeType)

	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return model.ContentKindAudio, nil
	case strings.HasPrefix(mimeType, "video/"):
		return model.ContentKindVideo, nil
	case strings.HasPrefix(mimeType, "image/"):
		return model.ContentKindImage, nil
	case strings.HasPrefix(mimeType, "text/"):
		return model.ContentKindText, nil
	}

	// octet-stream 或空 MIME 按扩展名兜底
	if mimeType == "" || mimeType == "application/octet-stream" {
		if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(filename))]; ok {
			return kind, nil
		}
	}

	return "", ErrUnsupportedType
}

// normalize 去掉 MIME 参数部分并统一为小写
func normalize(mimeType string) string {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return parsed
}
