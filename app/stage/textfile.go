package stage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadTextFile 读取纯文本文件并解码为 UTF-8。
// 根据 BOM 识别 UTF-16 编码，无 BOM 时按 UTF-8 处理。
func ReadTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取文本文件失败: %w", err)
	}

	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		// UTF-16 带 BOM，交给 transform 解码
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
		if err != nil {
			return "", fmt.Errorf("解码 UTF-16 文本失败: %w", err)
		}
		data = decoded
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		// 去掉 UTF-8 BOM
		data = data[3:]
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("文本文件不是有效的 UTF-8 编码")
	}

	return strings.TrimSpace(string(data)), nil
}
