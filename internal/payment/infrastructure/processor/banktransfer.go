package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

const (
	BankTransferProcessorName = "BankTransferProcessor"
	bankTransferLatency       = 500 * time.Millisecond
	bankTransferFailureRate   = 0.02

	// DefaultSettlementETA 大额转账的预计到账时间
	DefaultSettlementETA = 24 * time.Hour
	// DefaultStatusURLBase 大额转账状态查询地址前缀
	DefaultStatusURLBase = "https://payments.example.com/api/transfers/status"
)

// DefaultPendingThreshold 超过该金额的转账进入 Pending
var DefaultPendingThreshold = dollars(5_000)

// BankTransferProcessor 银行转账处理器，不收手续费
type BankTransferProcessor struct {
	base
	pendingThreshold decimal.Decimal
	settlementETA    time.Duration
	statusURLBase    string
}

// BankOption 银行转账专有选项
type BankOption func(*BankTransferProcessor)

// WithPendingThreshold 修改进入 Pending 的金额阈值
func WithPendingThreshold(threshold decimal.Decimal) BankOption {
	return func(p *BankTransferProcessor) { p.pendingThreshold = threshold }
}

// WithStatusURLBase 修改状态查询地址前缀
func WithStatusURLBase(base string) BankOption {
	return func(p *BankTransferProcessor) {
		if base != "" {
			p.statusURLBase = strings.TrimRight(base, "/")
		}
	}
}

// NewBankTransferProcessor 创建银行转账处理器
func NewBankTransferProcessor(bankOpts []BankOption, opts ...Option) *BankTransferProcessor {
	p := &BankTransferProcessor{
		base: newBase(BankTransferProcessorName, "BT",
			[]string{string(domain.AccountChecking), string(domain.AccountSavings), string(domain.AccountBusiness)},
			domain.FeeSchedule{BaseRate: decimal.Zero}, bankTransferLatency, bankTransferFailureRate, opts),
		pendingThreshold: DefaultPendingThreshold,
		settlementETA:    DefaultSettlementETA,
		statusURLBase:    DefaultStatusURLBase,
	}
	for _, opt := range bankOpts {
		opt(p)
	}
	return p
}

// Process 余额不足 -> 大额挂起 -> 银行网络故障 -> 成功
func (p *BankTransferProcessor) Process(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	account, ok := domain.Canonical(method).(domain.BankAccount)
	if !ok {
		return p.unsupported(method, amount)
	}
	if !account.HasSufficientFunds() || amount.GreaterThan(account.Balance) {
		return p.failed(domain.CodeInsufficientFunds,
			fmt.Sprintf("account %s has insufficient funds", account.MaskedAccountNumber()), account, amount)
	}

	if err := p.simulateLatency(ctx); err != nil {
		return p.interrupted(err, account, amount)
	}

	if amount.GreaterThan(p.pendingThreshold) {
		txID := p.GenerateTransactionID(account)
		return domain.Pending{
			TransactionID:       txID,
			Amount:              amount,
			Method:              account,
			EstimatedCompletion: p.settlementETA,
			StatusCheckURL:      p.statusURLBase + "/" + txID,
		}
	}
	if p.failure.ShouldFail() {
		return p.failed(domain.CodeBankNetworkError, "bank network unavailable", account, amount)
	}
	return p.success(account, amount)
}
