package registrar

import (
	"math"
	"time"

	"github.com/ceyewan/registrar/xerrors"
)

// JitterFraction 退避延迟的随机抖动幅度（±20%）
const JitterFraction = 0.2

// RetryPolicy 注册流的重试策略
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NewRetryPolicy 校验并创建重试策略，参数不合法时返回 ErrConfiguration
func NewRetryPolicy(maxAttempts int, initialDelay, maxDelay time.Duration, multiplier float64) (RetryPolicy, error) {
	p := RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Multiplier:   multiplier,
	}
	switch {
	case maxAttempts < 1:
		return RetryPolicy{}, xerrors.Markf(ErrConfiguration, "max attempts %d must be >= 1", maxAttempts)
	case initialDelay <= 0:
		return RetryPolicy{}, xerrors.Markf(ErrConfiguration, "initial delay %s must be > 0", initialDelay)
	case maxDelay < initialDelay:
		return RetryPolicy{}, xerrors.Markf(ErrConfiguration, "max delay %s must be >= initial delay %s", maxDelay, initialDelay)
	case !(multiplier > 1.0):
		return RetryPolicy{}, xerrors.Markf(ErrConfiguration, "multiplier %v must be > 1.0", multiplier)
	}
	return p, nil
}

// Delay 计算第 attempt 次失败后的等待时间（attempt 从 1 开始）。
// 基准值为 InitialDelay*Multiplier^(attempt-1)，不超过 MaxDelay；
// r 取 [0,1)，映射为 ±JitterFraction 的抖动。
// 函数本身无状态，周期内的单调性由调用方保证。
func (p RetryPolicy) Delay(attempt int, r float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if base > float64(p.MaxDelay) || math.IsInf(base, 0) || math.IsNaN(base) {
		base = float64(p.MaxDelay)
	}
	r = math.Min(math.Max(r, 0), 1)
	jitter := 1 + JitterFraction*(2*r-1)
	return time.Duration(base * jitter)
}

// MaxJitteredDelay 抖动后可能出现的最大延迟
func (p RetryPolicy) MaxJitteredDelay() time.Duration {
	return time.Duration(float64(p.MaxDelay) * (1 + JitterFraction))
}
