package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

var (
	errRetryableFailure    = errors.New("retryable payment failure")
	errNonRetryableFailure = errors.New("non-retryable payment failure")
)

// resultBackOff 下一次等待时间取自上一次失败结果的建议延迟
type resultBackOff struct {
	next time.Duration
}

func (b *resultBackOff) NextBackOff() time.Duration { return b.next }

func (b *resultBackOff) Reset() { b.next = 0 }

// RetryingService 对可重试的失败按错误码建议的延迟重新提交
type RetryingService struct {
	svc         *PaymentService
	maxAttempts uint
	scale       float64
	logger      *slog.Logger
}

// NewRetryingService maxAttempts 含首次调用；scale 缩放建议延迟，测试中可取极小值
func NewRetryingService(svc *PaymentService, maxAttempts int, scale float64) *RetryingService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if scale < 0 {
		scale = 0
	}
	return &RetryingService{
		svc:         svc,
		maxAttempts: uint(maxAttempts),
		scale:       scale,
		logger:      svc.logger.With("component", "retrying_service"),
	}
}

// ProcessPayment 返回最后一次尝试的结果
// 成功、待定、取消以及不可重试的失败都立即返回
func (r *RetryingService) ProcessPayment(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	bo := &resultBackOff{}
	var last domain.Result
	attempt := 0

	operation := func() (domain.Result, error) {
		attempt++
		last = r.svc.ProcessPayment(ctx, method, amount)
		failed, ok := last.(domain.Failed)
		if !ok {
			return last, nil
		}
		if !failed.IsRetryable() {
			return last, backoff.Permanent(errNonRetryableFailure)
		}
		bo.next = time.Duration(float64(failed.RetryDelay()) * r.scale)
		return last, errRetryableFailure
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			r.logger.InfoContext(ctx, "retrying payment", "attempt", attempt, "wait", wait)
		}),
	)
	if errors.Is(err, errRetryableFailure) && attempt > 1 {
		r.logger.WarnContext(ctx, "payment still failing after retries", "attempts", attempt, "summary", domain.Describe(last))
	}
	return last
}

// ProcessBatchPayments 与 PaymentService 相同的并发批处理，每笔独立重试
func (r *RetryingService) ProcessBatchPayments(ctx context.Context, requests []PaymentRequest) []domain.Result {
	return r.svc.processBatch(ctx, requests, r.ProcessPayment)
}
