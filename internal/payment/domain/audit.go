package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Auditable 审计观察者
// 实现只能产生副作用，不得影响控制流或返回的 Result
type Auditable interface {
	AuditPaymentAttempt(ctx context.Context, method PaymentMethod, amount decimal.Decimal)
	AuditPaymentResult(ctx context.Context, result Result)
	AuditSecurityEvent(ctx context.Context, event string, details map[string]any)
}

// 已知的安全事件名，指标只以这些名字作为标签
const (
	SecurityEventBatchRejected      = "BATCH_REJECTED"
	SecurityEventLoginFailed        = "LOGIN_FAILED"
	SecurityEventCardTesting        = "CARD_TESTING_DETECTED"
	SecurityEventSuspiciousActivity = "SUSPICIOUS_ACTIVITY"
)

// IsKnownSecurityEvent 是否为已知的安全事件名
func IsKnownSecurityEvent(event string) bool {
	switch event {
	case SecurityEventBatchRejected, SecurityEventLoginFailed, SecurityEventCardTesting, SecurityEventSuspiciousActivity:
		return true
	default:
		return false
	}
}

// ComplianceEventType 合规事件类型
type ComplianceEventType string

const (
	EventPaymentAttempt ComplianceEventType = "PAYMENT_ATTEMPT"
	EventPaymentSuccess ComplianceEventType = "PAYMENT_SUCCESS"
	EventPaymentFailure ComplianceEventType = "PAYMENT_FAILURE"
	EventSecurity       ComplianceEventType = "SECURITY_EVENT"
)

// ComplianceFlag 合规标记
type ComplianceFlag string

const (
	FlagLargeTransaction       ComplianceFlag = "LARGE_TRANSACTION"
	FlagPotentialInternational ComplianceFlag = "POTENTIAL_INTERNATIONAL"
	FlagFraudAttempt           ComplianceFlag = "FRAUD_ATTEMPT"
	FlagSecurityIncident       ComplianceFlag = "SECURITY_INCIDENT"
)

// ComplianceEvent 合规台账条目，只追加不删除
type ComplianceEvent struct {
	ID         string              `json:"id"`
	Type       ComplianceEventType `json:"type"`
	Amount     decimal.Decimal     `json:"amount"`
	Flags      []ComplianceFlag    `json:"flags"`
	MethodType MethodKind          `json:"method_type,omitempty"`
	Details    map[string]any      `json:"details,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Flagged 是否带有任一合规标记
func (e ComplianceEvent) Flagged() bool {
	return len(e.Flags) > 0
}

// HasFlag 是否带有指定标记
func (e ComplianceEvent) HasFlag(flag ComplianceFlag) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
