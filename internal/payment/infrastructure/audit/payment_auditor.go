// Package audit 审计观察者实现：日志、合规台账、指标与事件流
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

var (
	_ domain.Auditable = (*PaymentAuditor)(nil)
	_ domain.Auditable = (*ComplianceAuditor)(nil)
	_ domain.Auditable = (*MetricsAuditor)(nil)
	_ domain.Auditable = (*KafkaAuditor)(nil)
	_ domain.Auditable = Multi{}
)

// PaymentAuditor 无状态，每次调用输出一条结构化日志
type PaymentAuditor struct {
	logger *slog.Logger
}

// NewPaymentAuditor 创建日志审计
func NewPaymentAuditor(logger *slog.Logger) *PaymentAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentAuditor{logger: logger.With("component", "payment_auditor")}
}

func (a *PaymentAuditor) AuditPaymentAttempt(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) {
	a.logger.InfoContext(ctx, "payment attempt",
		"method_id", methodID(method),
		"method_type", methodKind(method),
		"amount", amount.StringFixed(2),
	)
}

func (a *PaymentAuditor) AuditPaymentResult(ctx context.Context, result domain.Result) {
	switch r := domain.CanonicalResult(result).(type) {
	case domain.Success:
		a.logger.InfoContext(ctx, "payment success",
			"transaction_id", r.TransactionID,
			"method_id", methodID(r.Method),
			"amount", r.Amount.StringFixed(2),
			"fee", r.Fee.StringFixed(2),
			"total", r.Total.StringFixed(2),
		)
	case domain.Failed:
		a.logger.WarnContext(ctx, "payment failure",
			"method_id", methodID(r.Method),
			"error_code", r.ErrorCode,
			"error_message", r.ErrorMessage,
			"retryable", r.IsRetryable(),
			"amount", r.Amount.StringFixed(2),
		)
	case domain.Pending:
		a.logger.InfoContext(ctx, "payment pending",
			"transaction_id", r.TransactionID,
			"method_id", methodID(r.Method),
			"amount", r.Amount.StringFixed(2),
			"estimated_completion", r.EstimatedCompletion,
			"status_url", r.StatusCheckURL,
		)
	case domain.Cancelled:
		a.logger.InfoContext(ctx, "payment cancelled",
			"method_id", methodID(r.Method),
			"reason", r.Reason,
			"amount", r.Amount.StringFixed(2),
		)
	default:
		a.logger.ErrorContext(ctx, "unknown payment result", "type", fmt.Sprintf("%T", result))
	}
}

func (a *PaymentAuditor) AuditSecurityEvent(ctx context.Context, event string, details map[string]any) {
	a.logger.WarnContext(ctx, "security event", "event", event, "details", details)
}

func methodID(method domain.PaymentMethod) string {
	method = domain.Canonical(method)
	if method == nil {
		return ""
	}
	return method.MethodID()
}

func methodKind(method domain.PaymentMethod) domain.MethodKind {
	method = domain.Canonical(method)
	if method == nil {
		return ""
	}
	return method.Kind()
}

// family 指标标签，未知方式记为 unknown
func family(method domain.PaymentMethod) string {
	if f, ok := domain.Family(method); ok {
		return f
	}
	return "unknown"
}
