// 包 application 支付引擎的用例编排：校验、路由、执行、审计
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/audit"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoProcessors = errors.New("at least one payment processor must be registered")
	ErrNilProcessor = errors.New("payment processor must not be nil")
)

// DefaultBatchConcurrency 批量处理的默认并发度
const DefaultBatchConcurrency = 8

// PaymentRequest 一条支付指令
type PaymentRequest struct {
	Method domain.PaymentMethod
	Amount decimal.Decimal
}

// ProcessorInfo 处理器元数据
type ProcessorInfo struct {
	Family           string   `json:"family"`
	Name             string   `json:"name"`
	FeeRate          string   `json:"fee_rate"`
	SupportedMethods []string `json:"supported_methods"`
}

// ProcessorStats 处理器概览
type ProcessorStats struct {
	TotalProcessors  int             `json:"total_processors"`
	SupportedMethods int             `json:"supported_methods"`
	Processors       []ProcessorInfo `json:"processors"`
}

// ServiceOption PaymentService 选项
type ServiceOption func(*PaymentService)

// WithClock 替换校验所用的时钟
func WithClock(now func() time.Time) ServiceOption {
	return func(s *PaymentService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBatchConcurrency 批量处理的并发上限
func WithBatchConcurrency(n int) ServiceOption {
	return func(s *PaymentService) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// PaymentService 支付编排服务
// 审计行为完全委托给注入的 Auditable，服务本身不增加任何审计逻辑
type PaymentService struct {
	processors map[string]domain.Processor
	auditor    domain.Auditable
	logger     *slog.Logger
	now        func() time.Time
	batchLimit int
}

// NewPaymentService 创建支付服务
// processors 以处理器族键（domain.FamilyCreditCard 等）索引；auditor 为 nil 时使用日志审计
func NewPaymentService(processors map[string]domain.Processor, auditor domain.Auditable, logger *slog.Logger, opts ...ServiceOption) (*PaymentService, error) {
	if len(processors) == 0 {
		return nil, ErrNoProcessors
	}
	registry := make(map[string]domain.Processor, len(processors))
	for family, p := range processors {
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilProcessor, family)
		}
		registry[family] = p
	}
	if logger == nil {
		logger = slog.Default()
	}
	if auditor == nil {
		auditor = audit.NewPaymentAuditor(logger)
	}

	s := &PaymentService{
		processors: registry,
		auditor:    auditor,
		logger:     logger.With("service", "payment_application"),
		now:        time.Now,
		batchLimit: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProcessPayment 处理一笔支付，任何情况下都返回结果而不是 panic
// 用例流程：
// 1. 指向变体的指针统一为值，审计本次尝试
// 2. 校验金额、启用状态与变体前置条件
// 3. 按支付方式变体选择处理器
// 4. 通过执行模板调用处理器
// 5. 审计结果（所有返回路径）
func (s *PaymentService) ProcessPayment(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) (result domain.Result) {
	method = domain.Canonical(method)
	s.safeAudit(ctx, "attempt", func() { s.auditor.AuditPaymentAttempt(ctx, method, amount) })

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "payment processing panicked", "panic", r)
			result = domain.NewFailed(domain.CodeProcessingError, fmt.Sprint(r), method, amount, s.now())
		}
		result = domain.CanonicalResult(result)
		s.safeAudit(ctx, "result", func() { s.auditor.AuditPaymentResult(ctx, result) })
	}()

	if failure, ok := s.validate(method, amount); !ok {
		return failure
	}

	processor, ok := s.selectProcessor(method)
	if !ok {
		return domain.NewFailed(domain.CodeNoProcessor,
			fmt.Sprintf("no processor registered for %s", method.Kind()), method, amount, s.now())
	}

	s.logger.DebugContext(ctx, "routing payment", "method_id", method.MethodID(), "processor", processor.Name())
	return executePayment(ctx, processor, method, amount, s.logger, s.now)
}

// ProcessBatchPayments 并发处理多笔支付，输出顺序与输入一致，单笔失败不影响其他请求
func (s *PaymentService) ProcessBatchPayments(ctx context.Context, requests []PaymentRequest) []domain.Result {
	return s.processBatch(ctx, requests, s.ProcessPayment)
}

func (s *PaymentService) processBatch(ctx context.Context, requests []PaymentRequest,
	process func(context.Context, domain.PaymentMethod, decimal.Decimal) domain.Result) []domain.Result {
	results := make([]domain.Result, len(requests))

	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, req := range requests {
		g.Go(func() error {
			results[i] = process(ctx, req.Method, req.Amount)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// SupportedPaymentMethods 所有处理器能力声明的并集
func (s *PaymentService) SupportedPaymentMethods() []string {
	seen := make(map[string]struct{})
	for _, p := range s.processors {
		for _, m := range p.SupportedMethods() {
			seen[m] = struct{}{}
		}
	}
	methods := make([]string, 0, len(seen))
	for m := range seen {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// ProcessorStats 处理器数量与元数据
func (s *PaymentService) ProcessorStats() ProcessorStats {
	families := make([]string, 0, len(s.processors))
	for family := range s.processors {
		families = append(families, family)
	}
	slices.Sort(families)

	stats := ProcessorStats{
		TotalProcessors:  len(families),
		SupportedMethods: len(s.SupportedPaymentMethods()),
		Processors:       make([]ProcessorInfo, 0, len(families)),
	}
	for _, family := range families {
		p := s.processors[family]
		stats.Processors = append(stats.Processors, ProcessorInfo{
			Family:           family,
			Name:             p.Name(),
			FeeRate:          p.FeeRate().String(),
			SupportedMethods: p.SupportedMethods(),
		})
	}
	return stats
}

// AuditSecurityEvent 转发安全事件
func (s *PaymentService) AuditSecurityEvent(ctx context.Context, event string, details map[string]any) {
	s.safeAudit(ctx, "security", func() { s.auditor.AuditSecurityEvent(ctx, event, details) })
}

func (s *PaymentService) validate(method domain.PaymentMethod, amount decimal.Decimal) (domain.Failed, bool) {
	if !amount.IsPositive() {
		return domain.NewFailed(domain.CodeInvalidAmount,
			fmt.Sprintf("amount must be greater than zero, got %s", amount.String()), method, amount, s.now()), false
	}
	if method == nil {
		return domain.NewFailed(domain.CodeValidationError, "payment method is required", nil, amount, s.now()), false
	}
	if !method.IsActive() {
		return domain.NewFailed(domain.CodeInactiveMethod,
			fmt.Sprintf("payment method %s is inactive", method.MethodID()), method, amount, s.now()), false
	}

	switch m := method.(type) {
	case domain.CreditCard:
		if m.IsExpired(s.now()) {
			return domain.NewFailed(domain.CodeCardExpired,
				fmt.Sprintf("card %s has expired", m.MaskedNumber()), m, amount, s.now()), false
		}
	case domain.BankAccount:
		if !m.HasSufficientFunds() || amount.GreaterThan(m.Balance) {
			return domain.NewFailed(domain.CodeInsufficientFunds,
				fmt.Sprintf("account %s has insufficient funds", m.MaskedAccountNumber()), m, amount, s.now()), false
		}
	case domain.DigitalWallet:
		if m.Balance.LessThan(amount) {
			return domain.NewFailed(domain.CodeInsufficientWalletBalance,
				fmt.Sprintf("%s has insufficient balance", m.DisplayName()), m, amount, s.now()), false
		}
	}
	return domain.Failed{}, true
}

// selectProcessor 按变体结构匹配，与金额无关
func (s *PaymentService) selectProcessor(method domain.PaymentMethod) (domain.Processor, bool) {
	family, ok := domain.Family(method)
	if !ok {
		return nil, false
	}
	p, ok := s.processors[family]
	return p, ok
}

func (s *PaymentService) safeAudit(ctx context.Context, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "auditor panicked", "stage", stage, "panic", r)
		}
	}()
	fn()
}
