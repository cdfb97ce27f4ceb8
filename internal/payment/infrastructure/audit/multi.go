package audit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/pkg/logger"
)

// Multi 按顺序把每次调用转发给所有审计者
// 单个审计者 panic 只记录日志，后续审计者照常收到事件
type Multi []domain.Auditable

// NewMulti 忽略 nil
func NewMulti(auditors ...domain.Auditable) Multi {
	m := make(Multi, 0, len(auditors))
	for _, a := range auditors {
		if a != nil {
			m = append(m, a)
		}
	}
	return m
}

func (m Multi) AuditPaymentAttempt(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) {
	for _, a := range m {
		guard(ctx, a, "attempt", func() { a.AuditPaymentAttempt(ctx, method, amount) })
	}
}

func (m Multi) AuditPaymentResult(ctx context.Context, result domain.Result) {
	for _, a := range m {
		guard(ctx, a, "result", func() { a.AuditPaymentResult(ctx, result) })
	}
}

func (m Multi) AuditSecurityEvent(ctx context.Context, event string, details map[string]any) {
	for _, a := range m {
		guard(ctx, a, "security", func() { a.AuditSecurityEvent(ctx, event, details) })
	}
}

func guard(ctx context.Context, a domain.Auditable, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "auditor panicked",
				"auditor", fmt.Sprintf("%T", a), "stage", stage, "panic", r)
		}
	}()
	fn()
}
