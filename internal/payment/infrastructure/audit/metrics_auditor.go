package audit

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/pkg/metrics"
)

// MetricsAuditor 把审计调用转换为 Prometheus 指标
type MetricsAuditor struct {
	m *metrics.Metrics
}

func NewMetricsAuditor(m *metrics.Metrics) *MetricsAuditor {
	return &MetricsAuditor{m: m}
}

func (a *MetricsAuditor) AuditPaymentAttempt(_ context.Context, method domain.PaymentMethod, _ decimal.Decimal) {
	a.m.RecordAttempt(family(method))
}

func (a *MetricsAuditor) AuditPaymentResult(_ context.Context, result domain.Result) {
	fam := family(domain.ResultMethod(result))
	switch r := domain.CanonicalResult(result).(type) {
	case domain.Success:
		a.m.RecordResult(fam, string(r.Outcome()), "")
		a.m.RecordSuccess(fam, r.Amount.InexactFloat64(), r.Fee.InexactFloat64())
	case domain.Failed:
		a.m.RecordResult(fam, string(r.Outcome()), string(r.ErrorCode))
	case domain.Pending:
		a.m.RecordResult(fam, string(r.Outcome()), "")
	case domain.Cancelled:
		a.m.RecordResult(fam, string(r.Outcome()), "")
	}
}

func (a *MetricsAuditor) AuditSecurityEvent(_ context.Context, event string, _ map[string]any) {
	if !domain.IsKnownSecurityEvent(event) {
		event = metrics.OtherSecurityEvent
	}
	a.m.RecordSecurityEvent(event)
}
