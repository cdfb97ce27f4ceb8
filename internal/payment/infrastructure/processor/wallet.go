package processor

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

const (
	DigitalWalletProcessorName = "DigitalWalletProcessor"
	walletLatency              = 200 * time.Millisecond
	walletFailureRate          = 0.03
)

// DefaultWalletLimits 各钱包单笔限额
var DefaultWalletLimits = map[domain.WalletType]decimal.Decimal{
	domain.WalletPayPal:    dollars(2_500),
	domain.WalletApplePay:  dollars(10_000),
	domain.WalletGooglePay: dollars(5_000),
	domain.WalletVenmo:     dollars(1_000),
}

// DigitalWalletProcessor 电子钱包处理器，费率 3%
type DigitalWalletProcessor struct {
	base
	limits map[domain.WalletType]decimal.Decimal
}

// NewDigitalWalletProcessor 创建钱包处理器，limits 为 nil 时使用默认限额
func NewDigitalWalletProcessor(limits map[domain.WalletType]decimal.Decimal, opts ...Option) *DigitalWalletProcessor {
	merged := maps.Clone(DefaultWalletLimits)
	maps.Copy(merged, limits)
	return &DigitalWalletProcessor{
		base: newBase(DigitalWalletProcessorName, "DW",
			[]string{string(domain.WalletPayPal), string(domain.WalletApplePay), string(domain.WalletGooglePay), string(domain.WalletVenmo)},
			domain.FeeSchedule{BaseRate: decimal.RequireFromString("0.03")}, walletLatency, walletFailureRate, opts),
		limits: merged,
	}
}

// LimitFor 钱包单笔限额，未知钱包类型没有上限
func (p *DigitalWalletProcessor) LimitFor(t domain.WalletType) (decimal.Decimal, bool) {
	limit, ok := p.limits[t]
	return limit, ok
}

// Process 余额不足 -> 超出钱包限额 -> 钱包服务故障 -> 成功
func (p *DigitalWalletProcessor) Process(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	wallet, ok := domain.Canonical(method).(domain.DigitalWallet)
	if !ok {
		return p.unsupported(method, amount)
	}
	if wallet.Balance.LessThan(amount) {
		return p.failed(domain.CodeInsufficientWalletBalance,
			fmt.Sprintf("%s balance %s is below %s", wallet.DisplayName(), wallet.Balance.StringFixed(2), amount.StringFixed(2)), wallet, amount)
	}

	if err := p.simulateLatency(ctx); err != nil {
		return p.interrupted(err, wallet, amount)
	}

	if limit, ok := p.LimitFor(wallet.WalletType); ok && amount.GreaterThan(limit) {
		return p.failed(domain.CodeWalletLimitExceeded,
			fmt.Sprintf("amount %s exceeds %s limit %s", amount.StringFixed(2), wallet.WalletType, limit.StringFixed(2)), wallet, amount)
	}
	if p.failure.ShouldFail() {
		return p.failed(domain.CodeWalletServiceError, "wallet provider unavailable", wallet, amount)
	}
	return p.success(wallet, amount)
}
