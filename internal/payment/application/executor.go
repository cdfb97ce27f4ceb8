package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

// clocked 暴露时钟的处理器
type clocked interface {
	Now() time.Time
}

// ExecutePayment 所有处理器共用的执行模板：
// 校验失败返回 VALIDATION_ERROR 且不调用 Process；Process 中的 panic 转换为 PROCESSING_ERROR；
// 结果写入日志后原样返回。时间戳取自处理器的时钟
func ExecutePayment(ctx context.Context, p domain.Processor, method domain.PaymentMethod, amount decimal.Decimal, logger *slog.Logger) domain.Result {
	now := time.Now
	if c, ok := p.(clocked); ok {
		now = c.Now
	}
	return executePayment(ctx, p, method, amount, logger, now)
}

func executePayment(ctx context.Context, p domain.Processor, method domain.PaymentMethod, amount decimal.Decimal,
	logger *slog.Logger, now func() time.Time) (result domain.Result) {
	method = domain.Canonical(method)
	if !p.Validate(method) {
		result = domain.NewFailed(domain.CodeValidationError,
			fmt.Sprintf("payment method rejected by %s", p.Name()), method, amount, now())
		logTransaction(ctx, logger, p, result)
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result = domain.NewFailed(domain.CodeProcessingError, fmt.Sprint(r), method, amount, now())
			logger.ErrorContext(ctx, "processor panicked", "processor", p.Name(), "panic", r)
		} else if result = domain.CanonicalResult(result); result == nil {
			result = domain.NewFailed(domain.CodeProcessingError,
				fmt.Sprintf("%s returned no result", p.Name()), method, amount, now())
		}
		logTransaction(ctx, logger, p, result)
	}()

	return p.Process(ctx, method, amount)
}

func logTransaction(ctx context.Context, logger *slog.Logger, p domain.Processor, result domain.Result) {
	logger.DebugContext(ctx, "processor transaction",
		"processor", p.Name(),
		"outcome", result.Outcome(),
		"summary", domain.Describe(result),
	)
}
