// Package processor 各支付方式族的处理器实现
package processor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

// Option 处理器选项
type Option func(*base)

// WithLatency 设置模拟延迟，0 表示不等待
func WithLatency(d time.Duration) Option {
	return func(b *base) { b.latency = d }
}

// WithFailureInjector 替换故障注入策略
func WithFailureInjector(f FailureInjector) Option {
	return func(b *base) {
		if f != nil {
			b.failure = f
		}
	}
}

// WithFailureRate 以给定概率注入故障
func WithFailureRate(probability float64, seed uint64) Option {
	return WithFailureInjector(Chance(probability, seed))
}

// WithIDGenerator 替换交易号生成器
func WithIDGenerator(g IDGenerator) Option {
	return func(b *base) {
		if g != nil {
			b.ids = g
		}
	}
}

// WithFeeSchedule 覆盖默认费率表
func WithFeeSchedule(s domain.FeeSchedule) Option {
	return func(b *base) { b.fee = s }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// base 三个处理器共享的费率、延迟、故障注入与交易号逻辑
type base struct {
	name    string
	prefix  string
	methods []string
	fee     domain.FeeSchedule
	latency time.Duration
	failure FailureInjector
	ids     IDGenerator
	now     func() time.Time
}

func newBase(name, prefix string, methods []string, fee domain.FeeSchedule, latency time.Duration, failureRate float64, opts []Option) base {
	b := base{
		name:    name,
		prefix:  prefix,
		methods: methods,
		fee:     fee,
		latency: latency,
		failure: Chance(failureRate, 0),
		ids:     defaultIDs,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Name() string { return b.name }

// Now 处理器时钟，装饰器沿用该时钟
func (b *base) Now() time.Time { return b.now() }

func (b *base) SupportedMethods() []string { return slices.Clone(b.methods) }

func (b *base) FeeRate() decimal.Decimal { return b.fee.BaseRate }

func (b *base) CalculateFee(amount decimal.Decimal) decimal.Decimal {
	return b.fee.Calculate(amount)
}

func (b *base) CalculateTotal(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(b.CalculateFee(amount))
}

func (b *base) GenerateTransactionID(domain.PaymentMethod) string {
	return b.prefix + "-" + b.ids.NextID()
}

// Validate 停用的方式直接拒绝，其余按变体检查
func (b *base) Validate(method domain.PaymentMethod) bool {
	method = domain.Canonical(method)
	if method == nil || !method.IsActive() {
		return false
	}
	switch m := method.(type) {
	case domain.CreditCard:
		return !m.IsExpired(b.now())
	case domain.BankAccount:
		return m.HasSufficientFunds()
	case domain.DigitalWallet:
		return !m.Balance.IsNegative()
	default:
		return false
	}
}

// simulateLatency 等待模拟延迟，期间响应 ctx 的取消与超时
func (b *base) simulateLatency(ctx context.Context) error {
	if b.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *base) interrupted(err error, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return b.failed(domain.CodeTimeout, fmt.Sprintf("%s timed out waiting for the network", b.name), method, amount)
	}
	return domain.Cancelled{
		Reason:    "payment request cancelled by caller",
		Method:    method,
		Amount:    amount,
		Timestamp: b.now(),
	}
}

func (b *base) failed(code domain.ErrorCode, msg string, method domain.PaymentMethod, amount decimal.Decimal) domain.Failed {
	return domain.NewFailed(code, msg, method, amount, b.now())
}

func (b *base) unsupported(method domain.PaymentMethod, amount decimal.Decimal) domain.Failed {
	return b.failed(domain.CodeUnsupportedMethod, fmt.Sprintf("%s cannot process %T", b.name, method), method, amount)
}

func (b *base) success(method domain.PaymentMethod, amount decimal.Decimal) domain.Success {
	return domain.NewSuccess(b.GenerateTransactionID(method), amount, b.CalculateFee(amount), method, b.now())
}

func dollars(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
