// internal/genai/clean_test.go
package genai

import (
	"testing"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
)

func TestCleanJSONText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "代码围栏包裹",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "前后说明文字",
			input: "好的，以下是结果：\n{\"a\": 1}\n希望对你有帮助。",
			want:  `{"a": 1}`,
		},
		{
			name:  "顶层数组",
			input: "results: [1, 2, 3] done",
			want:  "[1, 2, 3]",
		},
		{
			name:  "字符串内的括号不参与计数",
			input: `{"text": "含有}括号"} trailing`,
			want:  `{"text": "含有}括号"}`,
		},
		{
			name:  "转义引号",
			input: `{"text": "he said \"hi\""} extra`,
			want:  `{"text": "he said \"hi\""}`,
		},
		{
			name:  "BOM与零宽字符被剔除",
			input: "\uFEFF{\"a\": \u200b1}",
			want:  `{"a": 1}`,
		},
		{
			name:  "纯文本原样返回",
			input: "no json here",
			want:  "no json here",
		},
		{
			name:  "空输入",
			input: "",
			want:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanJSONText(tc.input); got != tc.want {
				t.Errorf("CleanJSONText(%q) = %q, 期望 %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseJSONText(t *testing.T) {
	var result struct {
		Name string `json:"name"`
	}
	if err := ParseJSONText("```json\n{\"name\": \"test\"}\n```", &result); err != nil {
		t.Fatalf("ParseJSONText失败: %v", err)
	}
	if result.Name != "test" {
		t.Errorf("Name = %q", result.Name)
	}
}

func TestParseJSONText_Malformed(t *testing.T) {
	var target map[string]interface{}
	err := ParseJSONText("{broken json", &target)
	if err == nil {
		t.Fatal("损坏的JSON应返回错误")
	}
	if !apperrors.IsMalformedResponse(err) {
		t.Errorf("应返回malformed_response类型错误, 实际: %v", err)
	}
}
