package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/pkg/ratelimit"
)

var (
	_ domain.Processor = (*CreditCardProcessor)(nil)
	_ domain.Processor = (*BankTransferProcessor)(nil)
	_ domain.Processor = (*DigitalWalletProcessor)(nil)
	_ domain.Processor = (*RateLimitedProcessor)(nil)
	_ domain.Processor = (*BreakerProcessor)(nil)
)

type clocked interface {
	Now() time.Time
}

// clockOf 被包装处理器的时钟，未暴露时使用系统时钟
func clockOf(p domain.Processor) func() time.Time {
	if c, ok := p.(clocked); ok {
		return c.Now
	}
	return time.Now
}

// RateLimitedProcessor 在处理前按处理器维度限流
type RateLimitedProcessor struct {
	domain.Processor
	limiter ratelimit.RateLimiter
	limit   ratelimit.Limit
	now     func() time.Time
}

// WithRateLimit 为处理器增加限流，超限返回 RATE_LIMITED
func WithRateLimit(p domain.Processor, limiter ratelimit.RateLimiter, limit ratelimit.Limit) *RateLimitedProcessor {
	return &RateLimitedProcessor{Processor: p, limiter: limiter, limit: limit, now: clockOf(p)}
}

func (r *RateLimitedProcessor) Now() time.Time { return r.now() }

func (r *RateLimitedProcessor) Process(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	res, err := r.limiter.Allow(ctx, "processor:"+r.Name(), r.limit)
	// 限流器故障时放行
	if err == nil && !res.Allowed {
		return domain.NewFailed(domain.CodeRateLimited,
			fmt.Sprintf("%s is rate limited, retry after %s", r.Name(), res.RetryAfter), method, amount, r.now())
	}
	return r.Processor.Process(ctx, method, amount)
}

// BreakerSettings 熔断参数
type BreakerSettings struct {
	// 连续失败多少次后熔断
	FailureThreshold uint32
	// 熔断后多久进入半开
	OpenTimeout time.Duration
	// 半开状态允许通过的请求数
	HalfOpenRequests uint32
	// 关闭状态下计数清零周期，0 表示不清零
	Interval time.Duration
	// 状态变化回调
	OnStateChange func(name string, from, to gobreaker.State)
}

var errTransientFailure = errors.New("transient processor failure")

// BreakerProcessor 外部网络类故障连续出现时熔断，熔断期间返回 TEMPORARY_FAILURE
type BreakerProcessor struct {
	domain.Processor
	cb  *gobreaker.CircuitBreaker
	now func() time.Time
}

// WithCircuitBreaker 为处理器增加熔断
func WithCircuitBreaker(p domain.Processor, s BreakerSettings) *BreakerProcessor {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return &BreakerProcessor{
		Processor: p,
		now:       clockOf(p),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: s.HalfOpenRequests,
			Interval:    s.Interval,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: s.OnStateChange,
		}),
	}
}

func (b *BreakerProcessor) Now() time.Time { return b.now() }

// State 当前熔断状态
func (b *BreakerProcessor) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerProcessor) Process(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	out, err := b.cb.Execute(func() (interface{}, error) {
		res := domain.CanonicalResult(b.Processor.Process(ctx, method, amount))
		if f, ok := res.(domain.Failed); ok && tripsBreaker(f.ErrorCode) {
			return res, errTransientFailure
		}
		return res, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewFailed(domain.CodeTemporaryFailure,
			fmt.Sprintf("%s is temporarily unavailable: %v", b.Name(), err), method, amount, b.now())
	}
	res, ok := out.(domain.Result)
	if !ok || res == nil {
		return domain.NewFailed(domain.CodeProcessingError,
			fmt.Sprintf("%s returned no result", b.Name()), method, amount, b.now())
	}
	return res
}

func tripsBreaker(code domain.ErrorCode) bool {
	switch code {
	case domain.CodeNetworkError, domain.CodeBankNetworkError, domain.CodeWalletServiceError, domain.CodeTimeout:
		return true
	default:
		return false
	}
}
