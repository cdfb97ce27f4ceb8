package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome 支付结果类别
type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeFailed    Outcome = "FAILED"
	OutcomePending   Outcome = "PENDING"
	OutcomeCancelled Outcome = "CANCELLED"
)

// Result 一次支付处理的最终结果（封闭的变体集合）
// 每次 ProcessPayment 调用恰好产生一个 Result，创建后不再修改
type Result interface {
	Outcome() Outcome
	isResult()
}

// Success 支付成功
type Success struct {
	TransactionID string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Total         decimal.Decimal
	Method        PaymentMethod
	Timestamp     time.Time
}

// NewSuccess 构造成功结果，Total 恒等于 Amount + Fee，负手续费按零处理
func NewSuccess(txID string, amount, fee decimal.Decimal, method PaymentMethod, at time.Time) Success {
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	return Success{
		TransactionID: txID,
		Amount:        amount,
		Fee:           fee,
		Total:         amount.Add(fee),
		Method:        method,
		Timestamp:     at,
	}
}

func (Success) Outcome() Outcome { return OutcomeSuccess }
func (Success) isResult()        {}

func (s Success) FormattedAmount() string { return formatMoney(s.Amount) }
func (s Success) FormattedFee() string    { return formatMoney(s.Fee) }
func (s Success) FormattedTotal() string  { return formatMoney(s.Total) }
func (s Success) TimestampMillis() int64  { return s.Timestamp.UnixMilli() }

// Failed 支付失败，Method 可能为 nil
type Failed struct {
	ErrorCode    ErrorCode
	ErrorMessage string
	Method       PaymentMethod
	Amount       decimal.Decimal
	Timestamp    time.Time
}

// NewFailed 构造失败结果
func NewFailed(code ErrorCode, msg string, method PaymentMethod, amount decimal.Decimal, at time.Time) Failed {
	return Failed{ErrorCode: code, ErrorMessage: msg, Method: method, Amount: amount, Timestamp: at}
}

func (Failed) Outcome() Outcome { return OutcomeFailed }
func (Failed) isResult()        {}

// IsRetryable 由错误码决定，与调用位置无关
func (f Failed) IsRetryable() bool { return f.ErrorCode.IsRetryable() }

// RetryDelay 建议的退避时间
func (f Failed) RetryDelay() time.Duration {
	_, d := RetryPolicyFor(f.ErrorCode)
	return d
}

func (f Failed) TimestampMillis() int64 { return f.Timestamp.UnixMilli() }

// Pending 已受理、等待异步完成
type Pending struct {
	TransactionID       string
	Amount              decimal.Decimal
	Method              PaymentMethod
	EstimatedCompletion time.Duration
	StatusCheckURL      string
}

func (Pending) Outcome() Outcome { return OutcomePending }
func (Pending) isResult()        {}

func (p Pending) EstimatedCompletionMillis() int64 { return p.EstimatedCompletion.Milliseconds() }

// Cancelled 支付被取消，Method 可能为 nil
type Cancelled struct {
	Reason    string
	Method    PaymentMethod
	Amount    decimal.Decimal
	Timestamp time.Time
}

func (Cancelled) Outcome() Outcome { return OutcomeCancelled }
func (Cancelled) isResult()        {}

func (c Cancelled) TimestampMillis() int64 { return c.Timestamp.UnixMilli() }

// CanonicalResult 把指向结果变体的指针解引用为值，nil 指针视为 nil
// 结果中携带的支付方式同样统一为值
func CanonicalResult(r Result) Result {
	switch v := r.(type) {
	case *Success:
		if v == nil {
			return nil
		}
		return CanonicalResult(*v)
	case *Failed:
		if v == nil {
			return nil
		}
		return CanonicalResult(*v)
	case *Pending:
		if v == nil {
			return nil
		}
		return CanonicalResult(*v)
	case *Cancelled:
		if v == nil {
			return nil
		}
		return CanonicalResult(*v)
	case Success:
		v.Method = Canonical(v.Method)
		return v
	case Failed:
		v.Method = Canonical(v.Method)
		return v
	case Pending:
		v.Method = Canonical(v.Method)
		return v
	case Cancelled:
		v.Method = Canonical(v.Method)
		return v
	default:
		return r
	}
}

// Describe 单行摘要
func Describe(r Result) string {
	switch v := CanonicalResult(r).(type) {
	case Success:
		return fmt.Sprintf("SUCCESS %s amount=%s fee=%s total=%s", v.TransactionID, v.FormattedAmount(), v.FormattedFee(), v.FormattedTotal())
	case Failed:
		return fmt.Sprintf("FAILED %s: %s (retryable=%t)", v.ErrorCode, v.ErrorMessage, v.IsRetryable())
	case Pending:
		return fmt.Sprintf("PENDING %s amount=%s eta=%s status=%s", v.TransactionID, formatMoney(v.Amount), v.EstimatedCompletion, v.StatusCheckURL)
	case Cancelled:
		return fmt.Sprintf("CANCELLED amount=%s: %s", formatMoney(v.Amount), v.Reason)
	default:
		return fmt.Sprintf("unknown result %T", r)
	}
}

// ResultAmount 结果携带的金额
func ResultAmount(r Result) decimal.Decimal {
	switch v := CanonicalResult(r).(type) {
	case Success:
		return v.Amount
	case Failed:
		return v.Amount
	case Pending:
		return v.Amount
	case Cancelled:
		return v.Amount
	default:
		return decimal.Zero
	}
}

// ResultMethod 结果关联的支付方式，可能为 nil
func ResultMethod(r Result) PaymentMethod {
	switch v := CanonicalResult(r).(type) {
	case Success:
		return v.Method
	case Failed:
		return v.Method
	case Pending:
		return v.Method
	case Cancelled:
		return v.Method
	default:
		return nil
	}
}

func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
