// internal/genai/document_test.go
package genai

import (
	"encoding/json"
	"testing"
)

func docFromJSON(t *testing.T, raw string) Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("解析测试JSON失败: %v", err)
	}
	return doc
}

func TestExtractResultURL_KnownShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "嵌套data.video_url",
			raw:  `{"data":{"video_url":"https://cdn.example.com/a.mp4"}}`,
			want: "https://cdn.example.com/a.mp4",
		},
		{
			name: "顶层video_url",
			raw:  `{"video_url":"https://cdn.example.com/b.mp4"}`,
			want: "https://cdn.example.com/b.mp4",
		},
		{
			name: "result包裹",
			raw:  `{"result":{"video_url":"https://cdn.example.com/c.mp4"}}`,
			want: "https://cdn.example.com/c.mp4",
		},
		{
			name: "output包裹",
			raw:  `{"output":{"url":"https://cdn.example.com/d.mp4"}}`,
			want: "https://cdn.example.com/d.mp4",
		},
		{
			name: "任务结果视频数组",
			raw:  `{"data":{"task_result":{"videos":[{"url":"https://cdn.example.com/e.mp4"}]}}}`,
			want: "https://cdn.example.com/e.mp4",
		},
		{
			name: "顶层url",
			raw:  `{"url":"https://cdn.example.com/f.mp4"}`,
			want: "https://cdn.example.com/f.mp4",
		},
		{
			name: "没有已知字段",
			raw:  `{"data":{"something":"else"}}`,
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractResultURL(docFromJSON(t, tc.raw))
			if got != tc.want {
				t.Errorf("ExtractResultURL = %q, 期望 %q", got, tc.want)
			}
		})
	}
}

func TestExtractResultURL_ExtractorOrder(t *testing.T) {
	// 多个形态同时出现时取链中靠前的提取器
	doc := docFromJSON(t, `{"data":{"video_url":"https://a.mp4"},"url":"https://b.mp4"}`)
	if got := ExtractResultURL(doc); got != "https://a.mp4" {
		t.Errorf("应优先使用data.video_url, 实际得到 %q", got)
	}
}

func TestExtractStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"data":{"status":"processing"}}`, "processing"},
		{`{"status":"succeed"}`, "succeed"},
		{`{"task_status":"running"}`, "running"},
		{`{"state":"queued"}`, "queued"},
		{`{"other":"x"}`, ""},
	}

	for _, tc := range cases {
		if got := ExtractStatus(docFromJSON(t, tc.raw)); got != tc.want {
			t.Errorf("ExtractStatus(%s) = %q, 期望 %q", tc.raw, got, tc.want)
		}
	}
}

func TestExtractError(t *testing.T) {
	doc := docFromJSON(t, `{"data":{"task_status_msg":"内容审核未通过"}}`)
	if got := ExtractError(doc); got == "" {
		t.Error("应能从data.task_status_msg提取错误消息")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status string
		want   TaskState
	}{
		{"completed", StateDone},
		{"success", StateDone},
		{"succeeded", StateDone},
		{"SUCCEED", StateDone},
		{" Completed ", StateDone},
		{"failed", StateFailed},
		{"error", StateFailed},
		{"pending", StateRunning},
		{"processing", StateRunning},
		{"", StateRunning},
		{"weird_new_token", StateRunning},
	}

	for _, tc := range cases {
		if got := ClassifyStatus(tc.status); got != tc.want {
			t.Errorf("ClassifyStatus(%q) = %v, 期望 %v", tc.status, got, tc.want)
		}
	}
}

func TestDocumentLookup(t *testing.T) {
	doc := docFromJSON(t, `{"a":{"b":{"c":"deep"}}}`)

	if got := doc.LookupString("a", "b", "c"); got != "deep" {
		t.Errorf("LookupString = %q", got)
	}
	if got := doc.LookupString("a", "missing", "c"); got != "" {
		t.Errorf("缺失路径应返回空串, 实际 %q", got)
	}
	if got := doc.LookupString("a", "b"); got != "" {
		t.Errorf("非字符串节点应返回空串, 实际 %q", got)
	}
}
