// internal/genai/poll.go
package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
	"github.com/Corphon/StoryReelMCP/internal/utils"
)

const (
	// DefaultPollInterval 固定轮询间隔
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxPolls 轮询次数上限，约20分钟
	DefaultMaxPolls = 240
	// 连续无法识别的状态token达到该阈值后记录告警（轮询继续，保持兼容）
	unknownStatusWarnThreshold = 12
)

// SleepFunc 可注入的休眠函数
type SleepFunc func(ctx context.Context, d time.Duration) error

// PollOptions 视频任务轮询配置
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       SleepFunc
}

func (o *PollOptions) fill() {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxPolls
	}
	if o.Sleep == nil {
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
}

// AwaitVideoTask 轮询视频任务直到完成、失败或超出次数上限
// 完成时通过提取器链取结果URL；次数耗尽返回独立的timeout错误，
// 绝不与上游失败混为一谈，调用方据此区分"立即重试"与"稍后再查"
func AwaitVideoTask(ctx context.Context, p Provider, taskID string, opts PollOptions) (string, error) {
	opts.fill()
	logger := utils.GetLogger()

	unknownStreak := 0

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		// 轮询之间协作式响应取消
		if err := ctx.Err(); err != nil {
			return "", err
		}

		doc, err := p.PollVideoTask(ctx, taskID)
		if err != nil {
			// 单次查询失败按仍在运行处理，等下一轮；上游抖动不应终结整个任务
			logger.Warn("轮询视频任务失败", map[string]interface{}{
				"task_id": taskID,
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
		} else {
			status := ExtractStatus(doc)

			switch ClassifyStatus(status) {
			case StateDone:
				url := ExtractResultURL(doc)
				if url == "" {
					return "", apperrors.NewMalformedResponseError(
						fmt.Sprintf("任务 %s 已完成但所有已知字段中都找不到结果URL", taskID), nil)
				}
				return url, nil

			case StateFailed:
				msg := ExtractError(doc)
				if msg == "" {
					msg = "上游报告任务失败"
				}
				return "", apperrors.NewPermanentUpstreamError(
					fmt.Sprintf("视频任务 %s 失败: %s", taskID, msg), 0, nil)

			case StateRunning:
				// 无法识别的token可能意味着上游schema漂移，达到阈值后告警但继续轮询
				if status != "" && !isKnownRunningToken(status) {
					unknownStreak++
					if unknownStreak == unknownStatusWarnThreshold {
						logger.Warn("连续收到无法识别的任务状态，可能存在上游schema漂移", map[string]interface{}{
							"task_id": taskID,
							"status":  status,
							"streak":  unknownStreak,
						})
					}
				} else {
					unknownStreak = 0
				}
			}
		}

		// 最后一次查询后直接返回超时，不再白等一个间隔
		if attempt+1 < opts.MaxAttempts {
			if err := opts.Sleep(ctx, opts.Interval); err != nil {
				return "", err
			}
		}
	}

	return "", apperrors.NewTimeoutError(
		fmt.Sprintf("视频任务 %s 轮询 %d 次后仍未完成", taskID, opts.MaxAttempts))
}

// 已知表示"仍在运行"的状态token，用于区分真正的未知token
var runningTokens = map[string]bool{
	"pending": true, "processing": true, "queued": true,
	"running": true, "in_progress": true, "submitted": true,
}

func isKnownRunningToken(status string) bool {
	return runningTokens[strings.ToLower(strings.TrimSpace(status))]
}
