// internal/retry/retry.go
package retry

import (
	"context"
	"time"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// SleepFunc 可注入的休眠函数，测试时替换为记录调用的假实现
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options 重试器配置
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       SleepFunc
}

// Option 配置函数
type Option func(*Options)

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// WithBaseDelay 设置基础退避时长
func WithBaseDelay(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.BaseDelay = d
		}
	}
}

// WithSleep 注入休眠实现
func WithSleep(fn SleepFunc) Option {
	return func(o *Options) {
		if fn != nil {
			o.Sleep = fn
		}
	}
}

// sleepWithContext 默认休眠实现，尊重context取消
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

// Do 对任意上游调用施加指数退避重试
// 只有携带限流信号的错误（网络边界处标记为 transient_upstream）才会重试，
// 第attempt次失败后休眠 baseDelay * 2^attempt；其他错误立即上抛。
// 尝试次数耗尽时返回最后一次的错误。
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	options := Options{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Sleep:       sleepWithContext,
	}
	for _, opt := range opts {
		opt(&options)
	}

	var zero T
	var lastErr error

	for attempt := 0; attempt < options.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		// 非限流错误不重试
		if !apperrors.IsTransientUpstream(err) {
			return zero, err
		}

		lastErr = err

		// 还有剩余尝试次数才退避等待
		if attempt < options.MaxAttempts-1 {
			delay := options.BaseDelay * (1 << attempt)
			if sleepErr := options.Sleep(ctx, delay); sleepErr != nil {
				return zero, sleepErr
			}
		}
	}

	return zero, lastErr
}
