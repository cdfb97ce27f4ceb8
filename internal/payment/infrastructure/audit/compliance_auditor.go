package audit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

// DefaultLargeTransactionThreshold 超过该金额标记 LARGE_TRANSACTION
var DefaultLargeTransactionThreshold = decimal.NewFromInt(10_000)

// InternationalHeuristic 判断支付方式是否可能为境外支付
type InternationalHeuristic func(domain.PaymentMethod) bool

// AmexHeuristic AMEX 卡视为潜在境外支付（简化规则）
func AmexHeuristic(method domain.PaymentMethod) bool {
	card, ok := domain.Canonical(method).(domain.CreditCard)
	return ok && card.Brand == domain.BrandAmex
}

// ComplianceOption ComplianceAuditor 选项
type ComplianceOption func(*ComplianceAuditor)

// WithLargeThreshold 修改大额交易阈值
func WithLargeThreshold(threshold decimal.Decimal) ComplianceOption {
	return func(a *ComplianceAuditor) {
		if threshold.IsPositive() {
			a.largeThreshold = threshold
		}
	}
}

// WithInternationalHeuristic 替换境外判断规则，nil 表示关闭
func WithInternationalHeuristic(h InternationalHeuristic) ComplianceOption {
	return func(a *ComplianceAuditor) { a.international = h }
}

// WithFlagObserver 每产生一个标记回调一次，通常用于指标
func WithFlagObserver(fn func(domain.ComplianceFlag)) ComplianceOption {
	return func(a *ComplianceAuditor) { a.onFlag = fn }
}

// WithComplianceClock 替换事件时间来源
func WithComplianceClock(now func() time.Time) ComplianceOption {
	return func(a *ComplianceAuditor) {
		if now != nil {
			a.now = now
		}
	}
}

// ComplianceAuditor 合规审计，维护只追加的事件台账
type ComplianceAuditor struct {
	mu     sync.Mutex
	events []domain.ComplianceEvent

	largeThreshold decimal.Decimal
	international  InternationalHeuristic
	onFlag         func(domain.ComplianceFlag)
	now            func() time.Time
}

// NewComplianceAuditor 默认阈值 $10,000，默认启用 AMEX 规则
func NewComplianceAuditor(opts ...ComplianceOption) *ComplianceAuditor {
	a := &ComplianceAuditor{
		largeThreshold: DefaultLargeTransactionThreshold,
		international:  AmexHeuristic,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ComplianceAuditor) AuditPaymentAttempt(_ context.Context, method domain.PaymentMethod, amount decimal.Decimal) {
	a.append(domain.EventPaymentAttempt, method, amount, a.flags(method, amount), nil)
}

func (a *ComplianceAuditor) AuditPaymentResult(_ context.Context, result domain.Result) {
	result = domain.CanonicalResult(result)
	method := domain.ResultMethod(result)
	amount := domain.ResultAmount(result)
	flags := a.flags(method, amount)

	var (
		eventType domain.ComplianceEventType
		details   map[string]any
	)
	switch r := result.(type) {
	case domain.Success:
		eventType = domain.EventPaymentSuccess
		details = map[string]any{"transaction_id": r.TransactionID, "fee": r.Fee.StringFixed(2)}
	case domain.Pending:
		eventType = domain.EventPaymentSuccess
		details = map[string]any{"transaction_id": r.TransactionID, "status": string(domain.OutcomePending)}
	case domain.Failed:
		eventType = domain.EventPaymentFailure
		details = map[string]any{"error_code": string(r.ErrorCode)}
		if r.ErrorCode == domain.CodeFraudDetected {
			flags = append(flags, domain.FlagFraudAttempt)
		}
	case domain.Cancelled:
		eventType = domain.EventPaymentFailure
		details = map[string]any{"status": string(domain.OutcomeCancelled), "reason": r.Reason}
	default:
		return
	}
	a.append(eventType, method, amount, flags, details)
}

func (a *ComplianceAuditor) AuditSecurityEvent(_ context.Context, event string, details map[string]any) {
	merged := make(map[string]any, len(details)+1)
	for k, v := range details {
		merged[k] = v
	}
	merged["event"] = event
	a.append(domain.EventSecurity, nil, decimal.Zero, []domain.ComplianceFlag{domain.FlagSecurityIncident}, merged)
}

func (a *ComplianceAuditor) flags(method domain.PaymentMethod, amount decimal.Decimal) []domain.ComplianceFlag {
	var flags []domain.ComplianceFlag
	if amount.GreaterThan(a.largeThreshold) {
		flags = append(flags, domain.FlagLargeTransaction)
	}
	if a.international != nil && method != nil && a.international(method) {
		flags = append(flags, domain.FlagPotentialInternational)
	}
	return flags
}

func (a *ComplianceAuditor) append(t domain.ComplianceEventType, method domain.PaymentMethod, amount decimal.Decimal,
	flags []domain.ComplianceFlag, details map[string]any) {
	event := domain.ComplianceEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Amount:     amount,
		Flags:      flags,
		MethodType: methodKind(method),
		Details:    details,
		Timestamp:  a.now(),
	}

	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()

	if a.onFlag != nil {
		for _, f := range flags {
			a.onFlag(f)
		}
	}
}

// Events 台账快照
func (a *ComplianceAuditor) Events() []domain.ComplianceEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.events)
}

// ComplianceReport 合规报告
// 一笔交易的尝试与结果都可能带标记，FlaggedTransactions 按交易计，FlaggedEvents 按台账条目计
type ComplianceReport struct {
	GeneratedAt         time.Time                `json:"generated_at"`
	TotalTransactions   int                      `json:"total_transactions"`
	FlaggedTransactions int                      `json:"flagged_transactions"`
	FlaggedEvents       int                      `json:"flagged_events"`
	TotalAmount         decimal.Decimal          `json:"total_amount"`
	Flagged             []domain.ComplianceEvent `json:"flagged"`
}

// Report 基于台账快照生成报告，不修改台账
// 交易数、被标记交易数与总金额只统计 PAYMENT_ATTEMPT 事件
func (a *ComplianceAuditor) Report() ComplianceReport {
	events := a.Events()
	report := ComplianceReport{
		GeneratedAt: a.now(),
		TotalAmount: decimal.Zero,
		Flagged:     []domain.ComplianceEvent{},
	}
	for _, e := range events {
		if e.Type == domain.EventPaymentAttempt {
			report.TotalTransactions++
			report.TotalAmount = report.TotalAmount.Add(e.Amount)
			if e.Flagged() {
				report.FlaggedTransactions++
			}
		}
		if e.Flagged() {
			report.FlaggedEvents++
			report.Flagged = append(report.Flagged, e)
		}
	}
	return report
}

// GenerateComplianceReport 文本格式的合规报告
func (a *ComplianceAuditor) GenerateComplianceReport() string {
	return a.Report().String()
}

func (r ComplianceReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compliance Report (%s)\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total transactions: %d\n", r.TotalTransactions)
	fmt.Fprintf(&b, "Flagged transactions: %d\n", r.FlaggedTransactions)
	fmt.Fprintf(&b, "Flagged events: %d\n", r.FlaggedEvents)
	fmt.Fprintf(&b, "Total amount: $%s\n", r.TotalAmount.StringFixed(2))
	if len(r.Flagged) == 0 {
		b.WriteString("No flagged events\n")
		return b.String()
	}
	b.WriteString("Flagged events:\n")
	for _, e := range r.Flagged {
		flags := make([]string, len(e.Flags))
		for i, f := range e.Flags {
			flags[i] = string(f)
		}
		fmt.Fprintf(&b, "  - [%s] %s $%s %s flags=%s\n",
			e.Timestamp.UTC().Format(time.RFC3339), e.Type, e.Amount.StringFixed(2), e.MethodType, strings.Join(flags, ","))
	}
	return b.String()
}
