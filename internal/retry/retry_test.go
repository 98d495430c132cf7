// internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Corphon/StoryReelMCP/internal/errors"
)

// fakeClock 记录每次休眠时长，不真正等待
type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func TestDo_RateLimitThenSuccess(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	result, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", apperrors.NewTransientUpstreamError("上游限流", 429, nil)
		}
		return "ok", nil
	}, WithSleep(clock.Sleep))

	if err != nil {
		t.Fatalf("期望成功，得到错误: %v", err)
	}
	if result != "ok" {
		t.Fatalf("期望结果 ok，得到 %q", result)
	}
	if calls != 3 {
		t.Fatalf("期望调用3次，实际 %d 次", calls)
	}

	// 退避序列必须是 baseDelay, 2*baseDelay
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("期望休眠 %d 次，实际 %d 次: %v", len(want), len(clock.sleeps), clock.sleeps)
	}
	for i, d := range want {
		if clock.sleeps[i] != d {
			t.Errorf("第%d次休眠期望 %v，实际 %v", i+1, d, clock.sleeps[i])
		}
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	permanent := apperrors.NewPermanentUpstreamError("上游服务错误", 500, nil)

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	}, WithSleep(clock.Sleep))

	if !errors.Is(err, permanent) {
		t.Fatalf("期望原样返回永久错误，得到: %v", err)
	}
	if calls != 1 {
		t.Fatalf("永久错误不应重试，实际调用 %d 次", calls)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("永久错误不应触发退避，实际休眠 %v", clock.sleeps)
	}
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	_, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", apperrors.NewTransientUpstreamError("上游限流", 429, nil)
	}, WithSleep(clock.Sleep), WithMaxAttempts(3))

	if err == nil {
		t.Fatal("尝试耗尽应返回错误")
	}
	if !apperrors.IsTransientUpstream(err) {
		t.Fatalf("应返回最后一次的限流错误，得到: %v", err)
	}
	if calls != 3 {
		t.Fatalf("期望调用3次，实际 %d 次", calls)
	}
	// 最后一次失败后不再休眠
	if len(clock.sleeps) != 2 {
		t.Fatalf("期望休眠2次，实际 %d 次", len(clock.sleeps))
	}
}

func TestDo_CustomBaseDelay(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	_, _ = Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", apperrors.NewTransientUpstreamError("上游限流", 429, nil)
	}, WithSleep(clock.Sleep), WithBaseDelay(100*time.Millisecond))

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	for i, d := range want {
		if clock.sleeps[i] != d {
			t.Errorf("第%d次休眠期望 %v，实际 %v", i+1, d, clock.sleeps[i])
		}
	}
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())

	_, err := Do(ctx, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", apperrors.NewTransientUpstreamError("上游限流", 429, nil)
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望context取消错误，得到: %v", err)
	}
	if calls != 1 {
		t.Fatalf("取消后不应继续重试，实际调用 %d 次", calls)
	}
}
