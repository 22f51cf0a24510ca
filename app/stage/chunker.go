package stage

import (
	"strings"
	"unicode/utf8"
)

// SplitText 将长文本切分为不超过 maxChars 个字符的块，供语音合成分段请求。
// 长度一律按字符数（rune）统计，多字节文本不会因字节数虚高被切碎。
// sentenceMode 为真时尽量在句子边界（". "）切分；
// 单句超长或关闭句子模式时按字符数硬切。
// 切分结果拼接后必须覆盖完整输入，无缺失、无重复。
func SplitText(text string, maxChars int, sentenceMode bool) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	if !sentenceMode {
		return hardSplit(text, maxChars)
	}

	sentences := strings.SplitAfter(text, ". ")
	var chunks []string
	var current strings.Builder
	currentChars := 0

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		chars := utf8.RuneCountInString(sentence)
		// 单句超长时退化为硬切
		if chars > maxChars {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
				currentChars = 0
			}
			chunks = append(chunks, hardSplit(sentence, maxChars)...)
			continue
		}
		if currentChars+chars > maxChars && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentChars = 0
		}
		current.WriteString(sentence)
		currentChars += chars
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// hardSplit 按字符数硬切，注意不能把多字节字符切断
func hardSplit(text string, maxChars int) []string {
	var chunks []string
	runes := []rune(text)
	for start := 0; start < len(runes); {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
	}
	return chunks
}
