package stage

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestSplitTextShort 短文本不切分
func TestSplitTextShort(t *testing.T) {
	chunks := SplitText("Hello world.", 500, true)
	if len(chunks) != 1 || chunks[0] != "Hello world." {
		t.Fatalf("chunks = %v", chunks)
	}
}

// TestSplitTextEmpty 空文本返回空结果
func TestSplitTextEmpty(t *testing.T) {
	if chunks := SplitText("   ", 500, true); chunks != nil {
		t.Fatalf("空文本应返回 nil, got %v", chunks)
	}
}

// TestSplitTextSentenceBoundary 句子模式下在句号边界切分
func TestSplitTextSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here."
	chunks := SplitText(text, 45, true)
	if len(chunks) < 2 {
		t.Fatalf("应切分为多块, got %v", chunks)
	}
	for _, chunk := range chunks {
		if len(chunk) > 45 {
			t.Errorf("块超过限制: %q (%d 字符)", chunk, len(chunk))
		}
	}
	// 拼接后必须覆盖完整文本，无缺失无重复
	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, strings.TrimSuffix(word, ".")) {
			t.Errorf("切分结果缺失内容: %q", word)
		}
	}
	if strings.Count(joined, "First") != 1 || strings.Count(joined, "Second") != 1 {
		t.Error("切分结果存在重复内容")
	}
}

// TestSplitTextLongSentence 单句超长时退化为硬切
func TestSplitTextLongSentence(t *testing.T) {
	text := strings.Repeat("a", 1200)
	chunks := SplitText(text, 500, true)
	if len(chunks) != 3 {
		t.Fatalf("期望 3 块, got %d", len(chunks))
	}
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total != 1200 {
		t.Fatalf("硬切结果总长 = %d, 期望 1200", total)
	}
}

// TestSplitTextHardMode 关闭句子模式时按字符数硬切
func TestSplitTextHardMode(t *testing.T) {
	text := "First sentence here. Second sentence here."
	chunks := SplitText(text, 10, false)
	for _, chunk := range chunks {
		if len([]rune(chunk)) > 10 {
			t.Errorf("块超过限制: %q", chunk)
		}
	}
}

// TestSplitTextCyrillicSentences 句子模式按字符数而不是字节数统计，
// 多字节句子不会因字节数虚高被提前拆开
func TestSplitTextCyrillicSentences(t *testing.T) {
	// 每句约 20 个字符（约 36 字节），限制 45 个字符时前两句应合并为一块
	sentence := "Привет дорогой мир. "
	text := strings.TrimSpace(sentence + sentence + sentence)
	chunks := SplitText(text, 45, true)

	if len(chunks) != 2 {
		t.Fatalf("期望 2 块（前两句合并）, got %d: %v", len(chunks), chunks)
	}
	if strings.Count(chunks[0], ".") != 2 {
		t.Fatalf("第一块应包含两个完整句子: %q", chunks[0])
	}
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 45 {
			t.Errorf("块超过字符数限制: %q", chunk)
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("句子边界被破坏: %q", chunk)
		}
	}
}

// TestSplitTextMultibyte 多字节字符不被切断
func TestSplitTextMultibyte(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("привет ", 100))
	chunks := SplitText(text, 50, false)
	if len(chunks) < 2 {
		t.Fatalf("应切分为多块, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Fatalf("块不是有效的 UTF-8: %q", chunk)
		}
	}
}
