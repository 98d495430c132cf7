// internal/genai/clean.go
package genai

import (
	"encoding/json"
	"strings"
	"unicode"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
)

// 统一替换上游文本输出中常见的噪声与Markdown标记
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	" ", " ",
)

// CleanJSONText 去除上游文本输出前后的非JSON内容
// 模型经常把JSON包在代码围栏里，或在前后追加说明文字
func CleanJSONText(s string) string {
	if s == "" {
		return s
	}

	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '⁠':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	isArray := s[0] == '['

	// 括号计数匹配，截断结束符之后的尾随文字
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	return s
}

// ParseJSONText 清理并解析上游文本输出
// 解析失败返回 malformed_response 错误，调用方在最窄的作用域内降级为默认值，
// 绝不因此中止同级任务
func ParseJSONText(text string, target interface{}) error {
	cleaned := CleanJSONText(text)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return apperrors.NewMalformedResponseError("解析上游JSON输出失败", err)
	}
	return nil
}
