package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

const (
	CreditCardProcessorName = "CreditCardProcessor"
	creditCardLatency       = 100 * time.Millisecond
	creditCardFailureRate   = 0.05
)

// CreditCardFees 2.9%，单笔手续费限制在 [$0.30, $50.00]
var CreditCardFees = domain.FeeSchedule{
	BaseRate: decimal.RequireFromString("0.029"),
	MinFee:   decimal.RequireFromString("0.30"),
	MaxFee:   dollars(50),
}

// CreditCardLimit 单笔信用卡交易上限
var CreditCardLimit = dollars(10_000)

// CreditCardProcessor 信用卡处理器
type CreditCardProcessor struct {
	base
	limit decimal.Decimal
}

// NewCreditCardProcessor 创建信用卡处理器
func NewCreditCardProcessor(opts ...Option) *CreditCardProcessor {
	return &CreditCardProcessor{
		base: newBase(CreditCardProcessorName, "CC",
			[]string{string(domain.BrandVisa), string(domain.BrandMastercard), string(domain.BrandAmex), string(domain.BrandDiscover)},
			CreditCardFees, creditCardLatency, creditCardFailureRate, opts),
		limit: CreditCardLimit,
	}
}

// Process 过期 -> 超限 -> 网络故障 -> 成功
func (p *CreditCardProcessor) Process(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	card, ok := domain.Canonical(method).(domain.CreditCard)
	if !ok {
		return p.unsupported(method, amount)
	}
	if card.IsExpired(p.now()) {
		return p.failed(domain.CodeCardExpired,
			fmt.Sprintf("card %s expired %02d/%d", card.MaskedNumber(), card.ExpiryMonth, card.ExpiryYear), card, amount)
	}

	if err := p.simulateLatency(ctx); err != nil {
		return p.interrupted(err, card, amount)
	}

	if amount.GreaterThan(p.limit) {
		return p.failed(domain.CodeAmountExceedsLimit,
			fmt.Sprintf("amount %s exceeds card limit %s", amount.StringFixed(2), p.limit.StringFixed(2)), card, amount)
	}
	if p.failure.ShouldFail() {
		return p.failed(domain.CodeNetworkError, "card network unavailable", card, amount)
	}
	return p.success(card, amount)
}
