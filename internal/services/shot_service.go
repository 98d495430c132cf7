// internal/services/shot_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Corphon/StoryReelMCP/internal/genai"
	"github.com/Corphon/StoryReelMCP/internal/models"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

const (
	// 逐场景串行处理的间隔，避免触发上游限流
	defaultSceneDelay = 1500 * time.Millisecond

	// 单场景最多保留的分镜数量
	maxShotsPerScene = 6

	// 传给文本模型的场景正文截断长度
	maxSceneTextLength = 2000
)

// TextCompleter 分镜拆解所需的文本生成能力
type TextCompleter interface {
	CompleteText(ctx context.Context, req genai.TextRequest) (string, error)
}

// ShotService 剧本分镜拆解服务
type ShotService struct {
	completer  TextCompleter
	progress   *ProgressService
	sceneDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewShotService 创建分镜拆解服务
func NewShotService(completer TextCompleter, progress *ProgressService) *ShotService {
	return &ShotService{
		completer:  completer,
		progress:   progress,
		sceneDelay: defaultSceneDelay,
		sleep:      sleepWithContext,
	}
}

// SetCompleter 替换文本生成能力，配置热更新时由配置服务调用
func (s *ShotService) SetCompleter(completer TextCompleter) {
	s.completer = completer
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rawShot 文本模型返回的未加工分镜
type rawShot struct {
	SceneID          interface{} `json:"sceneId"`
	ActionSummary    string      `json:"action_summary"`
	Dialogue         string      `json:"dialogue"`
	CameraMovement   string      `json:"camera_movement"`
	ShotSize         string      `json:"shot_size"`
	Characters       []interface{} `json:"characters"`
	StartFramePrompt string      `json:"start_frame_prompt"`
	EndFramePrompt   string      `json:"end_frame_prompt"`
}

// GenerateShots 将剧本逐场景拆解为全局编号的分镜列表
// 单场景失败不会中断整体流程，失败场景产出空列表
func (s *ShotService) GenerateShots(ctx context.Context, taskID string, script *models.ScriptData) ([]models.Shot, *models.ShotRunReport, error) {
	if script == nil || len(script.Scenes) == 0 {
		return nil, nil, fmt.Errorf("剧本中没有可拆解的场景")
	}
	if s.completer == nil {
		return nil, nil, fmt.Errorf("未配置生成供应商")
	}

	logger := utils.GetLogger()
	report := &models.ShotRunReport{TotalScenes: len(script.Scenes)}
	perScene := make([][]rawShot, 0, len(script.Scenes))
	sceneIDs := make([]string, 0, len(script.Scenes))

	for i, scene := range script.Scenes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if i > 0 && s.sceneDelay > 0 {
			if err := s.sleep(ctx, s.sceneDelay); err != nil {
				return nil, nil, err
			}
		}

		s.updateProgress(taskID, i, len(script.Scenes),
			fmt.Sprintf("正在拆解场景 %d/%d", i+1, len(script.Scenes)))

		shots, err := s.generateSceneShots(ctx, script, scene)
		if err != nil {
			logger.Warn("场景分镜拆解失败，跳过该场景", map[string]interface{}{
				"scene_id": scene.ID,
				"error":    err.Error(),
			})
			report.SceneFailed++
			perScene = append(perScene, nil)
			sceneIDs = append(sceneIDs, scene.ID)
			continue
		}

		report.SceneSucceed++
		perScene = append(perScene, shots)
		sceneIDs = append(sceneIDs, scene.ID)
	}

	result := s.assembleShots(perScene, sceneIDs)
	report.TotalShots = len(result)
	return result, report, nil
}

// generateSceneShots 拆解单个场景
func (s *ShotService) generateSceneShots(ctx context.Context, script *models.ScriptData, scene models.Scene) ([]rawShot, error) {
	sceneText := s.sceneText(script, scene)
	if strings.TrimSpace(sceneText) == "" {
		// 没有任何可拆解的文本，空场景不是错误
		return nil, nil
	}
	prompt := s.buildScenePrompt(script, scene, sceneText)

	text, err := s.completer.CompleteText(ctx, genai.TextRequest{
		Prompt:         prompt,
		SystemPrompt:   "你是一名专业的分镜师，只输出JSON。",
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, err
	}

	shots, err := parseShotList(text)
	if err != nil {
		return nil, err
	}
	if len(shots) > maxShotsPerScene {
		shots = shots[:maxShotsPerScene]
	}
	return shots, nil
}

// sceneText 汇总归属该场景的故事段落，无匹配段落时退回场景描述
func (s *ShotService) sceneText(script *models.ScriptData, scene models.Scene) string {
	var parts []string
	want := normalizeSceneRef(scene.ID)
	for _, p := range script.StoryParagraphs {
		if normalizeSceneRef(p.SceneRef) == want {
			parts = append(parts, p.Text)
		}
	}

	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		text = scene.Description
	}
	if len(text) > maxSceneTextLength {
		// 在rune边界截断，避免把多字节字符切成半个
		cut := maxSceneTextLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// normalizeSceneRef 规整场景引用，兼容数字型与带空白的ID
func normalizeSceneRef(v interface{}) string {
	return strings.TrimSpace(models.CoerceID(v))
}

func (s *ShotService) buildScenePrompt(script *models.ScriptData, scene models.Scene, sceneText string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("剧本标题: %s\n类型: %s\n", script.Title, script.Genre))
	sb.WriteString(fmt.Sprintf("当前场景(%s): %s\n地点: %s\n", scene.ID, scene.Title, scene.Location))
	if sceneText != "" {
		sb.WriteString("场景正文:\n" + sceneText + "\n")
	}
	if len(script.Characters) > 0 {
		names := make([]string, 0, len(script.Characters))
		for _, c := range script.Characters {
			names = append(names, fmt.Sprintf("%s(%s)", c.Name, c.ID))
		}
		sb.WriteString("可用角色: " + strings.Join(names, ", ") + "\n")
	}
	sb.WriteString(fmt.Sprintf(`
请将该场景拆解为最多%d个分镜，返回JSON:
{
  "shots": [
    {
      "sceneId": "场景ID",
      "action_summary": "动作概要",
      "dialogue": "台词，无则为空",
      "camera_movement": "运镜方式",
      "shot_size": "景别",
      "characters": ["角色ID"],
      "start_frame_prompt": "首帧画面描述",
      "end_frame_prompt": "尾帧画面描述"
    }
  ]
}`, maxShotsPerScene))
	return sb.String()
}

// parseShotList 解析模型输出，兼容顶层数组与shots包裹两种形态
func parseShotList(text string) ([]rawShot, error) {
	cleaned := genai.CleanJSONText(text)

	var wrapped struct {
		Shots []rawShot `json:"shots"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && wrapped.Shots != nil {
		return wrapped.Shots, nil
	}

	var list []rawShot
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return list, nil
	}

	return nil, fmt.Errorf("无法解析分镜JSON: %s", truncateForLog(cleaned))
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// assembleShots 跨场景重编号，分镜ID与关键帧ID全局唯一且连续
// 模型声称的sceneId不可信，以产出该分镜的场景为准
func (s *ShotService) assembleShots(perScene [][]rawShot, sceneIDs []string) []models.Shot {
	var result []models.Shot
	index := 0
	for i, shots := range perScene {
		for _, raw := range shots {
			index++
			shot := models.Shot{
				ID:             fmt.Sprintf("shot-%d", index),
				SceneID:        sceneIDs[i],
				ActionSummary:  raw.ActionSummary,
				Dialogue:       raw.Dialogue,
				CameraMovement: raw.CameraMovement,
				ShotSize:       raw.ShotSize,
				Characters:     coerceCharacterIDs(raw.Characters),
				Keyframes: []models.Keyframe{
					{
						ID:           fmt.Sprintf("kf-%d-start", index),
						Type:         models.KeyframeStart,
						VisualPrompt: raw.StartFramePrompt,
						Status:       models.KeyframePending,
					},
					{
						ID:           fmt.Sprintf("kf-%d-end", index),
						Type:         models.KeyframeEnd,
						VisualPrompt: raw.EndFramePrompt,
						Status:       models.KeyframePending,
					},
				},
			}
			result = append(result, shot)
		}
	}
	return result
}

func coerceCharacterIDs(values []interface{}) []string {
	if len(values) == 0 {
		return nil
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id := models.CoerceID(v); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *ShotService) updateProgress(taskID string, done, total int, message string) {
	if s.progress == nil || taskID == "" {
		return
	}
	tracker, ok := s.progress.GetTracker(taskID)
	if !ok {
		return
	}
	percent := 0
	if total > 0 {
		percent = done * 100 / total
	}
	tracker.UpdateProgress(percent, message)
}
