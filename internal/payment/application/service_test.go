package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/audit"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/processor"
)

// --- Fakes ---

type recordingAuditor struct {
	mu       sync.Mutex
	attempts []decimal.Decimal
	results  []domain.Result
	security []string
}

func (a *recordingAuditor) AuditPaymentAttempt(_ context.Context, _ domain.PaymentMethod, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, amount)
}

func (a *recordingAuditor) AuditPaymentResult(_ context.Context, result domain.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
}

func (a *recordingAuditor) AuditSecurityEvent(_ context.Context, event string, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.security = append(a.security, event)
}

type panickingAuditor struct{}

func (panickingAuditor) AuditPaymentAttempt(context.Context, domain.PaymentMethod, decimal.Decimal) {
	panic("attempt audit exploded")
}
func (panickingAuditor) AuditPaymentResult(context.Context, domain.Result) {
	panic("result audit exploded")
}
func (panickingAuditor) AuditSecurityEvent(context.Context, string, map[string]any) {
	panic("security audit exploded")
}

type fakeProcessor struct {
	name    string
	methods []string
	invalid bool
	calls   atomic.Int32
	process func(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result
}

func (f *fakeProcessor) Name() string                                     { return f.name }
func (f *fakeProcessor) SupportedMethods() []string                       { return f.methods }
func (f *fakeProcessor) FeeRate() decimal.Decimal                         { return decimal.Zero }
func (f *fakeProcessor) CalculateFee(decimal.Decimal) decimal.Decimal     { return decimal.Zero }
func (f *fakeProcessor) CalculateTotal(a decimal.Decimal) decimal.Decimal { return a }
func (f *fakeProcessor) Validate(domain.PaymentMethod) bool               { return !f.invalid }
func (f *fakeProcessor) GenerateTransactionID(domain.PaymentMethod) string {
	return "FK-" + f.name
}

func (f *fakeProcessor) Process(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
	f.calls.Add(1)
	if f.process == nil {
		return domain.NewSuccess(f.GenerateTransactionID(method), amount, decimal.Zero, method, time.Now())
	}
	return f.process(ctx, method, amount)
}

// --- Setup ---

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func realProcessors() map[string]domain.Processor {
	opts := []processor.Option{
		processor.WithLatency(0),
		processor.WithFailureInjector(processor.Never()),
		processor.WithClock(func() time.Time { return testNow }),
	}
	return map[string]domain.Processor{
		domain.FamilyCreditCard:    processor.NewCreditCardProcessor(opts...),
		domain.FamilyBankTransfer:  processor.NewBankTransferProcessor(nil, opts...),
		domain.FamilyDigitalWallet: processor.NewDigitalWalletProcessor(nil, opts...),
	}
}

func setupService(t *testing.T, processors map[string]domain.Processor, opts ...ServiceOption) (*PaymentService, *recordingAuditor) {
	t.Helper()
	auditor := &recordingAuditor{}
	opts = append([]ServiceOption{WithClock(func() time.Time { return testNow })}, opts...)
	svc, err := NewPaymentService(processors, auditor, discardLogger(), opts...)
	require.NoError(t, err)
	return svc, auditor
}

func card(t *testing.T, active bool, month, year int, brand domain.CardBrand) domain.CreditCard {
	t.Helper()
	c, err := domain.NewCreditCard("card-1", active, "4242424242424242", month, year, brand, "Jane Doe")
	require.NoError(t, err)
	return c
}

func account(t *testing.T, balance string) domain.BankAccount {
	t.Helper()
	a, err := domain.NewBankAccount("acct-1", true, "000123456789", "110000000", domain.AccountChecking, "Example Bank", money(balance))
	require.NoError(t, err)
	return a
}

func wallet(t *testing.T, wt domain.WalletType, balance string) domain.DigitalWallet {
	t.Helper()
	w, err := domain.NewDigitalWallet("wallet-1", true, wt, "jane@example.com", money(balance), "")
	require.NoError(t, err)
	return w
}

func requireFailed(t *testing.T, result domain.Result, code domain.ErrorCode) domain.Failed {
	t.Helper()
	failed, ok := result.(domain.Failed)
	require.True(t, ok, "expected FAILED %s, got %s", code, domain.Describe(result))
	require.Equal(t, code, failed.ErrorCode)
	return failed
}

// --- Construction ---

func TestNewPaymentService_RejectsInvalidRegistry(t *testing.T) {
	_, err := NewPaymentService(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoProcessors)

	_, err = NewPaymentService(map[string]domain.Processor{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoProcessors)

	_, err = NewPaymentService(map[string]domain.Processor{domain.FamilyCreditCard: nil}, nil, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
}

func TestNewPaymentService_DefaultsToLoggingAuditor(t *testing.T) {
	svc, err := NewPaymentService(realProcessors(), nil, discardLogger())
	require.NoError(t, err)

	result := svc.ProcessPayment(context.Background(), card(t, true, 12, 2099, domain.BrandVisa), money("10.00"))
	assert.IsType(t, domain.Success{}, result)
}

// --- ProcessPayment ---

func TestProcessPayment_Success(t *testing.T) {
	svc, auditor := setupService(t, realProcessors())

	result := svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money("250.00"))

	success, ok := result.(domain.Success)
	require.True(t, ok)
	assert.True(t, success.Total.Equal(success.Amount.Add(success.Fee)))
	assert.True(t, success.Fee.Equal(money("7.25")))

	require.Len(t, auditor.attempts, 1)
	require.Len(t, auditor.results, 1)
	assert.Equal(t, result, auditor.results[0])
}

func TestProcessPayment_InvalidAmount(t *testing.T) {
	svc, auditor := setupService(t, realProcessors())

	for _, amount := range []string{"0", "-5.00"} {
		result := svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money(amount))
		f := requireFailed(t, result, domain.CodeInvalidAmount)
		assert.False(t, f.IsRetryable())
	}
	assert.Len(t, auditor.results, 2)
}

func TestProcessPayment_NilMethod(t *testing.T) {
	svc, auditor := setupService(t, realProcessors())

	result := svc.ProcessPayment(context.Background(), nil, money("10.00"))

	requireFailed(t, result, domain.CodeValidationError)
	assert.Len(t, auditor.results, 1)
}

func TestProcessPayment_InactiveTakesPrecedence(t *testing.T) {
	fake := &fakeProcessor{name: "card"}
	svc, auditor := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake})

	expiredAndInactive := card(t, false, 1, 2020, domain.BrandVisa)
	result := svc.ProcessPayment(context.Background(), expiredAndInactive, money("10.00"))

	requireFailed(t, result, domain.CodeInactiveMethod)
	assert.Zero(t, fake.calls.Load())
	require.Len(t, auditor.attempts, 1)
	require.Len(t, auditor.results, 1)
}

func TestProcessPayment_VariantPreChecks(t *testing.T) {
	svc, _ := setupService(t, realProcessors())
	ctx := context.Background()

	requireFailed(t, svc.ProcessPayment(ctx, card(t, true, 5, 2025, domain.BrandVisa), money("10.00")), domain.CodeCardExpired)
	requireFailed(t, svc.ProcessPayment(ctx, account(t, "0"), money("10.00")), domain.CodeInsufficientFunds)
	requireFailed(t, svc.ProcessPayment(ctx, account(t, "50.00"), money("50.01")), domain.CodeInsufficientFunds)
	requireFailed(t, svc.ProcessPayment(ctx, wallet(t, domain.WalletPayPal, "5.00"), money("10.00")), domain.CodeInsufficientWalletBalance)

	// 有效期当月仍可使用
	assert.IsType(t, domain.Success{}, svc.ProcessPayment(ctx, card(t, true, 6, 2025, domain.BrandVisa), money("10.00")))
}

func TestProcessPayment_Scenarios(t *testing.T) {
	svc, _ := setupService(t, realProcessors())
	ctx := context.Background()

	b := svc.ProcessPayment(ctx, account(t, "5000.00"), money("1500.00"))
	success, ok := b.(domain.Success)
	require.True(t, ok)
	assert.True(t, success.Fee.IsZero())

	c := svc.ProcessPayment(ctx, account(t, "10000.00"), money("6000.00"))
	pending, ok := c.(domain.Pending)
	require.True(t, ok)
	assert.Equal(t, int64(86_400_000), pending.EstimatedCompletionMillis())

	e := svc.ProcessPayment(ctx, wallet(t, domain.WalletVenmo, "5000.00"), money("1500.00"))
	requireFailed(t, e, domain.CodeWalletLimitExceeded)
}

func TestProcessPayment_NoProcessor(t *testing.T) {
	svc, auditor := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: &fakeProcessor{name: "card"}})

	result := svc.ProcessPayment(context.Background(), wallet(t, domain.WalletPayPal, "100.00"), money("10.00"))

	requireFailed(t, result, domain.CodeNoProcessor)
	assert.Len(t, auditor.results, 1)
}

func TestProcessPayment_RoutingIgnoresAmount(t *testing.T) {
	svc, _ := setupService(t, realProcessors())
	ctx := context.Background()

	for _, amount := range []string{"0.01", "99.99", "4999.99", "9999.99"} {
		result := svc.ProcessPayment(ctx, card(t, true, 12, 2030, domain.BrandVisa), money(amount))
		success, ok := result.(domain.Success)
		require.True(t, ok, domain.Describe(result))
		assert.True(t, strings.HasPrefix(success.TransactionID, "CC-"))
	}
	for _, amount := range []string{"1.00", "4999.99", "6000.00"} {
		result := svc.ProcessPayment(ctx, account(t, "100000.00"), money(amount))
		switch r := result.(type) {
		case domain.Success:
			assert.True(t, strings.HasPrefix(r.TransactionID, "BT-"))
		case domain.Pending:
			assert.True(t, strings.HasPrefix(r.TransactionID, "BT-"))
		default:
			t.Fatalf("unexpected result %s", domain.Describe(result))
		}
	}
}

func TestProcessPayment_ProcessorPanicBecomesProcessingError(t *testing.T) {
	fake := &fakeProcessor{name: "card", process: func(context.Context, domain.PaymentMethod, decimal.Decimal) domain.Result {
		panic("gateway exploded")
	}}
	svc, auditor := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake})

	var result domain.Result
	require.NotPanics(t, func() {
		result = svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money("10.00"))
	})

	f := requireFailed(t, result, domain.CodeProcessingError)
	assert.Contains(t, f.ErrorMessage, "gateway exploded")
	require.Len(t, auditor.results, 1)
	assert.Equal(t, result, auditor.results[0])
}

func TestProcessPayment_NilResultBecomesProcessingError(t *testing.T) {
	fake := &fakeProcessor{name: "card", process: func(context.Context, domain.PaymentMethod, decimal.Decimal) domain.Result {
		return nil
	}}
	svc, _ := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake})

	result := svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money("10.00"))

	requireFailed(t, result, domain.CodeProcessingError)
}

func TestProcessPayment_ProcessorValidationRejects(t *testing.T) {
	fake := &fakeProcessor{name: "card", invalid: true}
	svc, _ := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake})

	result := svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money("10.00"))

	requireFailed(t, result, domain.CodeValidationError)
	assert.Zero(t, fake.calls.Load())
}

func TestProcessPayment_AuditorPanicDoesNotEscape(t *testing.T) {
	svc, err := NewPaymentService(realProcessors(), panickingAuditor{}, discardLogger())
	require.NoError(t, err)

	require.NotPanics(t, func() {
		result := svc.ProcessPayment(context.Background(), card(t, true, 12, 2099, domain.BrandVisa), money("10.00"))
		assert.IsType(t, domain.Success{}, result)
		svc.AuditSecurityEvent(context.Background(), "LOGIN_FAILED", nil)
	})
}

func TestProcessPayment_DeadlineYieldsTimeout(t *testing.T) {
	procs := map[string]domain.Processor{
		domain.FamilyCreditCard: processor.NewCreditCardProcessor(
			processor.WithLatency(time.Second), processor.WithFailureInjector(processor.Never())),
	}
	svc, auditor := setupService(t, procs)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := svc.ProcessPayment(ctx, card(t, true, 12, 2099, domain.BrandVisa), money("10.00"))

	f := requireFailed(t, result, domain.CodeTimeout)
	assert.True(t, f.IsRetryable())
	assert.Len(t, auditor.results, 1)
}

// --- Batch ---

func TestProcessBatchPayments_PreservesOrder(t *testing.T) {
	fake := &fakeProcessor{name: "card", process: func(_ context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
		// 金额越小等待越久，完成顺序与输入顺序相反
		time.Sleep(time.Duration(100-amount.IntPart()) * time.Millisecond)
		return domain.NewSuccess("FK", amount, decimal.Zero, method, time.Now())
	}}
	svc, auditor := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake})

	c := card(t, true, 12, 2030, domain.BrandVisa)
	requests := make([]PaymentRequest, 0, 5)
	for i := range 5 {
		requests = append(requests, PaymentRequest{Method: c, Amount: decimal.NewFromInt(int64(10 + i*20))})
	}

	results := svc.ProcessBatchPayments(context.Background(), requests)

	require.Len(t, results, len(requests))
	for i, r := range results {
		assert.True(t, domain.ResultAmount(r).Equal(requests[i].Amount), "index %d", i)
	}
	assert.Len(t, auditor.results, len(requests))
}

func TestProcessBatchPayments_RunsConcurrently(t *testing.T) {
	const n = 4
	var (
		arrived atomic.Int32
		release = make(chan struct{})
		once    sync.Once
	)
	fake := &fakeProcessor{name: "card", process: func(_ context.Context, method domain.PaymentMethod, amount decimal.Decimal) domain.Result {
		if arrived.Add(1) == n {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
			return domain.NewSuccess("FK", amount, decimal.Zero, method, time.Now())
		case <-time.After(2 * time.Second):
			return domain.NewFailed(domain.CodeTimeout, "requests were serialized", method, amount, time.Now())
		}
	}}
	svc, _ := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake}, WithBatchConcurrency(n))

	c := card(t, true, 12, 2030, domain.BrandVisa)
	requests := make([]PaymentRequest, n)
	for i := range requests {
		requests[i] = PaymentRequest{Method: c, Amount: money("1.00")}
	}

	for _, r := range svc.ProcessBatchPayments(context.Background(), requests) {
		assert.IsType(t, domain.Success{}, r)
	}
}

func TestProcessBatchPayments_IsolatesFailures(t *testing.T) {
	svc, _ := setupService(t, realProcessors())
	ctx := context.Background()

	results := svc.ProcessBatchPayments(ctx, []PaymentRequest{
		{Method: card(t, true, 12, 2030, domain.BrandVisa), Amount: money("10.00")},
		{Method: nil, Amount: money("10.00")},
		{Method: wallet(t, domain.WalletVenmo, "5000.00"), Amount: money("1500.00")},
		{Method: account(t, "100.00"), Amount: money("0")},
	})

	require.Len(t, results, 4)
	assert.IsType(t, domain.Success{}, results[0])
	requireFailed(t, results[1], domain.CodeValidationError)
	requireFailed(t, results[2], domain.CodeWalletLimitExceeded)
	requireFailed(t, results[3], domain.CodeInvalidAmount)
	assert.Empty(t, svc.ProcessBatchPayments(ctx, nil))
}

// --- Metadata ---

func TestSupportedPaymentMethods(t *testing.T) {
	svc, _ := setupService(t, map[string]domain.Processor{
		"a": &fakeProcessor{name: "a", methods: []string{"VISA", "AMEX"}},
		"b": &fakeProcessor{name: "b", methods: []string{"AMEX", "CHECKING"}},
	})

	assert.Equal(t, []string{"AMEX", "CHECKING", "VISA"}, svc.SupportedPaymentMethods())
}

func TestProcessorStats(t *testing.T) {
	svc, _ := setupService(t, realProcessors())

	stats := svc.ProcessorStats()

	assert.Equal(t, 3, stats.TotalProcessors)
	assert.Equal(t, 11, stats.SupportedMethods)
	require.Len(t, stats.Processors, 3)
	assert.Equal(t, domain.FamilyBankTransfer, stats.Processors[0].Family)
	assert.Equal(t, processor.BankTransferProcessorName, stats.Processors[0].Name)
	assert.Equal(t, domain.FamilyCreditCard, stats.Processors[1].Family)
	assert.Equal(t, "0.029", stats.Processors[1].FeeRate)
	assert.Equal(t, domain.FamilyDigitalWallet, stats.Processors[2].Family)
}

func TestAuditSecurityEvent_Forwarded(t *testing.T) {
	svc, auditor := setupService(t, realProcessors())

	svc.AuditSecurityEvent(context.Background(), "CARD_TESTING_DETECTED", map[string]any{"ip": "203.0.113.7"})

	assert.Equal(t, []string{"CARD_TESTING_DETECTED"}, auditor.security)
}

func TestExecutePayment_DirectExpiredCardIsValidationError(t *testing.T) {
	p := processor.NewCreditCardProcessor(processor.WithLatency(0), processor.WithFailureInjector(processor.Never()))

	result := ExecutePayment(context.Background(), p, card(t, true, 1, 2020, domain.BrandVisa), money("10.00"), discardLogger())

	requireFailed(t, result, domain.CodeValidationError)
}

func TestExecutePayment_WrongVariantIsUnsupported(t *testing.T) {
	p := processor.NewCreditCardProcessor(processor.WithLatency(0), processor.WithFailureInjector(processor.Never()))

	result := ExecutePayment(context.Background(), p, wallet(t, domain.WalletPayPal, "100.00"), money("10.00"), discardLogger())

	requireFailed(t, result, domain.CodeUnsupportedMethod)
}

var errSentinel = errors.New("sentinel")

func TestExecutePayment_PanicWithError(t *testing.T) {
	fake := &fakeProcessor{name: "card", process: func(context.Context, domain.PaymentMethod, decimal.Decimal) domain.Result {
		panic(errSentinel)
	}}

	result := ExecutePayment(context.Background(), fake, card(t, true, 12, 2030, domain.BrandVisa), money("1.00"), discardLogger())

	f := requireFailed(t, result, domain.CodeProcessingError)
	assert.Equal(t, "sentinel", f.ErrorMessage)
}

// --- Variant pointers, clocks and audit wiring ---

func TestProcessPayment_VariantPointersBehaveLikeValues(t *testing.T) {
	svc, auditor := setupService(t, realProcessors())
	ctx := context.Background()
	valid := card(t, true, 12, 2030, domain.BrandVisa)
	expired := card(t, true, 1, 2024, domain.BrandVisa)
	acct := account(t, "500.00")

	success, ok := svc.ProcessPayment(ctx, &valid, money("250.00")).(domain.Success)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(success.TransactionID, "CC-"))
	assert.Equal(t, "$257.25", success.FormattedTotal())
	assert.Equal(t, valid, success.Method)

	requireFailed(t, svc.ProcessPayment(ctx, &expired, money("10.00")), domain.CodeCardExpired)
	requireFailed(t, svc.ProcessPayment(ctx, &acct, money("600.00")), domain.CodeInsufficientFunds)
	requireFailed(t, svc.ProcessPayment(ctx, (*domain.DigitalWallet)(nil), money("1.00")), domain.CodeValidationError)

	require.Len(t, auditor.results, 4)
	assert.IsType(t, domain.Success{}, auditor.results[0])
}

func TestProcessPayment_FailuresUseServiceClock(t *testing.T) {
	fake := &fakeProcessor{name: "card", process: func(context.Context, domain.PaymentMethod, decimal.Decimal) domain.Result {
		panic("boom")
	}}
	svc, _ := setupService(t, map[string]domain.Processor{domain.FamilyCreditCard: fake})

	f := requireFailed(t, svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money("1.00")), domain.CodeProcessingError)
	assert.Equal(t, testNow, f.Timestamp)

	fake.process = func(context.Context, domain.PaymentMethod, decimal.Decimal) domain.Result { return nil }
	f = requireFailed(t, svc.ProcessPayment(context.Background(), card(t, true, 12, 2030, domain.BrandVisa), money("1.00")), domain.CodeProcessingError)
	assert.Equal(t, testNow, f.Timestamp)
}

func TestExecutePayment_UsesProcessorClock(t *testing.T) {
	p := processor.NewCreditCardProcessor(processor.WithLatency(0), processor.WithFailureInjector(processor.Never()),
		processor.WithClock(func() time.Time { return testNow }))

	result := ExecutePayment(context.Background(), p, card(t, true, 1, 2020, domain.BrandVisa), money("10.00"), discardLogger())

	f := requireFailed(t, result, domain.CodeValidationError)
	assert.Equal(t, testNow, f.Timestamp)
}

func TestProcessPayment_PanickingAuditorDoesNotStarveCompliance(t *testing.T) {
	comp := audit.NewComplianceAuditor()
	svc, err := NewPaymentService(realProcessors(), audit.NewMulti(panickingAuditor{}, comp), discardLogger(),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	result := svc.ProcessPayment(context.Background(), account(t, "50000.00"), money("15000.00"))

	assert.IsType(t, domain.Pending{}, result)
	events := comp.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPaymentAttempt, events[0].Type)
	assert.Equal(t, domain.EventPaymentSuccess, events[1].Type)

	report := comp.Report()
	assert.Equal(t, 1, report.TotalTransactions)
	assert.Equal(t, 1, report.FlaggedTransactions)
}

type slowPublisher struct {
	delay time.Duration
	sent  atomic.Int32
}

func (p *slowPublisher) SendMessage(context.Context, string, string, any) error {
	time.Sleep(p.delay)
	p.sent.Add(1)
	return nil
}

func TestProcessPayment_SlowAuditPublisherDoesNotConsumeDeadline(t *testing.T) {
	pub := &slowPublisher{delay: 300 * time.Millisecond}
	kafka := audit.NewKafkaAuditor(pub, "payments.audit", discardLogger())
	procs := map[string]domain.Processor{
		domain.FamilyCreditCard: processor.NewCreditCardProcessor(
			processor.WithLatency(50*time.Millisecond),
			processor.WithFailureInjector(processor.Never()),
			processor.WithClock(func() time.Time { return testNow })),
	}
	svc, err := NewPaymentService(procs, kafka, discardLogger(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	result := svc.ProcessPayment(ctx, card(t, true, 12, 2030, domain.BrandVisa), money("250.00"))

	success, ok := result.(domain.Success)
	require.True(t, ok, domain.Describe(result))
	assert.Equal(t, "$257.25", success.FormattedTotal())

	require.NoError(t, kafka.Close())
	assert.Equal(t, int32(2), pub.sent.Load())
}
