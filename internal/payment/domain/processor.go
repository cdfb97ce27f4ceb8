package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Processor 支付处理器，每个支付方式族一个实现
type Processor interface {
	// Name 处理器名称（常量）
	Name() string
	// SupportedMethods 能力声明，仅供展示，不参与路由
	SupportedMethods() []string
	// FeeRate 基础费率
	FeeRate() decimal.Decimal
	// CalculateFee 计算手续费，实现可以在费率之外增加上下限
	CalculateFee(amount decimal.Decimal) decimal.Decimal
	// CalculateTotal amount + CalculateFee(amount)
	CalculateTotal(amount decimal.Decimal) decimal.Decimal
	// Validate 停用的支付方式一律返回 false
	Validate(method PaymentMethod) bool
	// GenerateTransactionID 生成带族前缀的交易号
	GenerateTransactionID(method PaymentMethod) string
	// Process 执行具体的支付，可能阻塞于模拟延迟
	Process(ctx context.Context, method PaymentMethod, amount decimal.Decimal) Result
}

// FeeSchedule 费率表：基础费率加可选的上下限
type FeeSchedule struct {
	BaseRate decimal.Decimal
	MinFee   decimal.Decimal
	MaxFee   decimal.Decimal
}

// Calculate 按费率计算手续费并截断到上下限，结果保留两位小数
func (s FeeSchedule) Calculate(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(s.BaseRate)
	if s.MinFee.IsPositive() && fee.LessThan(s.MinFee) {
		fee = s.MinFee
	}
	if s.MaxFee.IsPositive() && fee.GreaterThan(s.MaxFee) {
		fee = s.MaxFee
	}
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	return fee.Round(2)
}
