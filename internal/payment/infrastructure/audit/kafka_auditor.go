package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/payments/internal/payment/domain"
)

// Publisher 消息发布端，由 mq.KafkaProducer 实现
type Publisher interface {
	SendMessage(ctx context.Context, topic, key string, value any) error
}

// Record 发布到审计主题的消息体
type Record struct {
	ID            string         `json:"id"`
	Stage         string         `json:"stage"`
	MethodID      string         `json:"method_id,omitempty"`
	MethodType    string         `json:"method_type,omitempty"`
	Amount        string         `json:"amount,omitempty"`
	Outcome       string         `json:"outcome,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	Message       string         `json:"message,omitempty"`
	Event         string         `json:"event,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

const (
	StageAttempt  = "attempt"
	StageResult   = "result"
	StageSecurity = "security"
)

const (
	DefaultAuditQueueSize      = 1024
	DefaultAuditPublishTimeout = 5 * time.Second
)

// KafkaOption KafkaAuditor 选项
type KafkaOption func(*KafkaAuditor)

// WithQueueSize 待发布记录的缓冲长度
func WithQueueSize(n int) KafkaOption {
	return func(a *KafkaAuditor) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithPublishTimeout 单条记录的发布超时
func WithPublishTimeout(d time.Duration) KafkaOption {
	return func(a *KafkaAuditor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

type queuedRecord struct {
	ctx context.Context
	rec Record
}

// KafkaAuditor 把审计记录写入消息主题
// 记录先进入缓冲队列，由后台协程发布，审计调用不等待 broker；发布失败只记日志
type KafkaAuditor struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
	now       func() time.Time
	queueSize int
	timeout   time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan queuedRecord
	done    chan struct{}
	dropped atomic.Int64
}

// NewKafkaAuditor 创建审计者并启动发布协程，使用完毕后调用 Close
func NewKafkaAuditor(publisher Publisher, topic string, logger *slog.Logger, opts ...KafkaOption) *KafkaAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &KafkaAuditor{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With("component", "kafka_auditor"),
		now:       time.Now,
		queueSize: DefaultAuditQueueSize,
		timeout:   DefaultAuditPublishTimeout,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan queuedRecord, a.queueSize)
	go a.run()
	return a
}

func (a *KafkaAuditor) AuditPaymentAttempt(ctx context.Context, method domain.PaymentMethod, amount decimal.Decimal) {
	a.enqueue(ctx, Record{
		Stage:      StageAttempt,
		MethodID:   methodID(method),
		MethodType: string(methodKind(method)),
		Amount:     amount.StringFixed(2),
	})
}

func (a *KafkaAuditor) AuditPaymentResult(ctx context.Context, result domain.Result) {
	result = domain.CanonicalResult(result)
	method := domain.ResultMethod(result)
	rec := Record{
		Stage:      StageResult,
		MethodID:   methodID(method),
		MethodType: string(methodKind(method)),
		Amount:     domain.ResultAmount(result).StringFixed(2),
		Message:    domain.Describe(result),
	}
	switch r := result.(type) {
	case domain.Success:
		rec.Outcome = string(r.Outcome())
		rec.TransactionID = r.TransactionID
	case domain.Pending:
		rec.Outcome = string(r.Outcome())
		rec.TransactionID = r.TransactionID
	case domain.Failed:
		rec.Outcome = string(r.Outcome())
		rec.ErrorCode = string(r.ErrorCode)
	case domain.Cancelled:
		rec.Outcome = string(r.Outcome())
	}
	a.enqueue(ctx, rec)
}

func (a *KafkaAuditor) AuditSecurityEvent(ctx context.Context, event string, details map[string]any) {
	a.enqueue(ctx, Record{Stage: StageSecurity, Event: event, Details: details})
}

// Dropped 因队列已满或已关闭而未发布的记录数
func (a *KafkaAuditor) Dropped() int64 {
	return a.dropped.Load()
}

// Close 停止接收新记录，等待队列中的记录发布完毕
func (a *KafkaAuditor) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *KafkaAuditor) enqueue(ctx context.Context, rec Record) {
	rec.ID = uuid.NewString()
	rec.Timestamp = a.now()

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(ctx, rec, "auditor closed")
		return
	}
	select {
	case a.queue <- queuedRecord{ctx: ctx, rec: rec}:
	default:
		a.drop(ctx, rec, "queue full")
	}
}

func (a *KafkaAuditor) drop(ctx context.Context, rec Record, reason string) {
	a.dropped.Add(1)
	a.logger.ErrorContext(ctx, "audit record dropped",
		"topic", a.topic, "stage", rec.Stage, "id", rec.ID, "reason", reason)
}

func (a *KafkaAuditor) run() {
	defer close(a.done)
	for q := range a.queue {
		a.publish(q.ctx, q.rec)
	}
}

// publish 沿用请求 ctx 中的值，但不受其取消与截止时间影响
func (a *KafkaAuditor) publish(parent context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
	defer cancel()

	key := rec.MethodID
	if key == "" {
		key = rec.ID
	}
	if err := a.publisher.SendMessage(ctx, a.topic, key, rec); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish audit record",
			"topic", a.topic, "stage", rec.Stage, "key", key, "error", err)
	}
}
