// Package metrics 支付流量的 Prometheus 指标
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payments"

// OtherSecurityEvent 未知安全事件统一使用的标签值
const OtherSecurityEvent = "other"

// Metrics 指标集合
type Metrics struct {
	// 按方式族统计的支付尝试
	AttemptsTotal *prometheus.CounterVec
	// 按结果类别与错误码统计
	ResultsTotal *prometheus.CounterVec
	// 成功支付的金额分布（美元）
	AmountDollars *prometheus.HistogramVec
	// 成功支付收取的手续费累计（美元）
	FeesDollars *prometheus.CounterVec
	// 合规标记次数
	ComplianceFlagsTotal *prometheus.CounterVec
	// 安全事件次数
	SecurityEventsTotal *prometheus.CounterVec
}

// New 创建指标实例，subsystem 通常为服务名
func New(subsystem string) *Metrics {
	return &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_total",
			Help:      "Total payment attempts by method family",
		}, []string{"family"}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "results_total",
			Help:      "Total payment results by outcome and error code",
		}, []string{"family", "outcome", "code"}),
		AmountDollars: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "amount_dollars",
			Help:      "Amount of successful payments in dollars",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 2500, 5000, 10000, 50000},
		}, []string{"family"}),
		FeesDollars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fees_dollars_total",
			Help:      "Fees collected on successful payments in dollars",
		}, []string{"family"}),
		ComplianceFlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "compliance_flags_total",
			Help:      "Compliance flags raised by type",
		}, []string{"flag"}),
		SecurityEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "security_events_total",
			Help:      "Security events reported by name",
		}, []string{"event"}),
	}
}

// Register 注册到给定的 Registerer，重复注册视为成功
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AttemptsTotal,
		m.ResultsTotal,
		m.AmountDollars,
		m.FeesDollars,
		m.ComplianceFlagsTotal,
		m.SecurityEventsTotal,
	}
}

// RecordAttempt 记录一次支付尝试
func (m *Metrics) RecordAttempt(family string) {
	m.AttemptsTotal.WithLabelValues(family).Inc()
}

// RecordResult 记录一次支付结果，code 为空表示非失败结果
func (m *Metrics) RecordResult(family, outcome, code string) {
	m.ResultsTotal.WithLabelValues(family, outcome, code).Inc()
}

// RecordSuccess 记录成功支付的金额与手续费
func (m *Metrics) RecordSuccess(family string, amount, fee float64) {
	m.AmountDollars.WithLabelValues(family).Observe(amount)
	m.FeesDollars.WithLabelValues(family).Add(fee)
}

// RecordComplianceFlag 记录合规标记
func (m *Metrics) RecordComplianceFlag(flag string) {
	m.ComplianceFlagsTotal.WithLabelValues(flag).Inc()
}

// RecordSecurityEvent 记录安全事件，event 须来自有限集合，未知事件传 OtherSecurityEvent
func (m *Metrics) RecordSecurityEvent(event string) {
	m.SecurityEventsTotal.WithLabelValues(event).Inc()
}
