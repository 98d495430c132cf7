// internal/models/script.go
package models

import (
	"fmt"
	"strconv"
	"time"
)

// ScriptData 解析后的剧本数据，每次解析创建一次，ID在解析时分配且不可变
type ScriptData struct {
	Title           string           `json:"title"`
	Genre           string           `json:"genre"`
	Logline         string           `json:"logline"`
	Language        string           `json:"language"`
	TargetDuration  int              `json:"target_duration,omitempty"` // 目标时长（秒）
	Characters      []Character      `json:"characters"`
	Scenes          []Scene          `json:"scenes"`
	StoryParagraphs []StoryParagraph `json:"story_paragraphs"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Character 剧本角色，Variations只允许追加
type Character struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	Appearance  string   `json:"appearance,omitempty"`
	Description string   `json:"description,omitempty"`
	Variations  []string `json:"variations,omitempty"`
}

// AppendVariation 追加角色形象变体（只增不改）
func (c *Character) AppendVariation(variation string) {
	if variation == "" {
		return
	}
	for _, v := range c.Variations {
		if v == variation {
			return
		}
	}
	c.Variations = append(c.Variations, variation)
}

// Scene 剧本场景
type Scene struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Location    string `json:"location,omitempty"`
	TimeOfDay   string `json:"time_of_day,omitempty"`
	Description string `json:"description,omitempty"`
	Atmosphere  string `json:"atmosphere,omitempty"`
}

// StoryParagraph 故事段落，通过SceneRef关联到场景
type StoryParagraph struct {
	Index    int    `json:"index"`
	SceneRef string `json:"scene_ref"`
	Text     string `json:"text"`
}

// CoerceID 把上游返回的任意ID值规整为字符串
// 上游模型可能返回数字ID（1、1.0）或字符串ID（"1"），统一后才能比较
func CoerceID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		// JSON数字默认解析为float64，整数值不带小数输出
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}

// FindCharacter 按ID查找角色
func (s *ScriptData) FindCharacter(id string) *Character {
	for i := range s.Characters {
		if s.Characters[i].ID == id {
			return &s.Characters[i]
		}
	}
	return nil
}
