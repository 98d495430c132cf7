// internal/models/script_test.go
package models

import "testing"

func TestCoerceID(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"字符串原样", "scene-1", "scene-1"},
		{"JSON整数", float64(1), "1"},
		{"整数值浮点", float64(3.0), "3"},
		{"非整数浮点", float64(1.5), "1.5"},
		{"int", 7, "7"},
		{"int64", int64(42), "42"},
		{"nil", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoerceID(tc.in); got != tc.want {
				t.Errorf("CoerceID(%v) = %q, 期望 %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAppendVariation(t *testing.T) {
	c := &Character{ID: "char-1", Name: "李雷"}

	c.AppendVariation("/api/assets/ns/images/v1.png")
	c.AppendVariation("/api/assets/ns/images/v2.png")
	// 重复追加同一引用不产生新条目
	c.AppendVariation("/api/assets/ns/images/v2.png")

	if len(c.Variations) != 2 {
		t.Fatalf("变体数 = %d, 期望 2", len(c.Variations))
	}
	// 只追加，已有条目顺序不变
	if c.Variations[0] != "/api/assets/ns/images/v1.png" {
		t.Errorf("首个变体被改写: %q", c.Variations[0])
	}
}

func TestFindCharacter(t *testing.T) {
	script := &ScriptData{
		Characters: []Character{
			{ID: "char-1", Name: "李雷"},
			{ID: "char-2", Name: "韩梅梅"},
		},
	}

	if c := script.FindCharacter("char-2"); c == nil || c.Name != "韩梅梅" {
		t.Errorf("FindCharacter结果错误: %+v", c)
	}
	if c := script.FindCharacter("absent"); c != nil {
		t.Errorf("缺失角色应返回nil: %+v", c)
	}
}
