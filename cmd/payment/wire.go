package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/audit"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/processor"
	"github.com/wyfcoding/payments/pkg/config"
	"github.com/wyfcoding/payments/pkg/metrics"
	"github.com/wyfcoding/payments/pkg/ratelimit"
)

func newRateLimiter(ctx context.Context, cfg *config.Config) (ratelimit.RateLimiter, func() error, error) {
	if cfg.RateLimit.Backend != "redis" {
		return ratelimit.NewMemoryRateLimiter(), func() error { return nil }, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	return ratelimit.NewRedisRateLimiter(rdb), rdb.Close, nil
}

func processorOptions(pc config.ProcessorConfig, ids processor.IDGenerator) []processor.Option {
	return []processor.Option{
		processor.WithLatency(pc.Latency),
		processor.WithFailureRate(pc.FailureRate, pc.Seed),
		processor.WithIDGenerator(ids),
		processor.WithFeeSchedule(domain.FeeSchedule{
			BaseRate: decimal.NewFromFloat(pc.FeeRate),
			MinFee:   decimal.NewFromFloat(pc.MinFee),
			MaxFee:   decimal.NewFromFloat(pc.MaxFee),
		}),
	}
}

// walletLimits 配置键大小写不敏感，未知钱包类型忽略
func walletLimits(limits map[string]float64, logger *slog.Logger) map[domain.WalletType]decimal.Decimal {
	out := make(map[domain.WalletType]decimal.Decimal, len(limits))
	for key, limit := range limits {
		wt, ok := domain.ParseWalletType(key)
		if !ok {
			logger.Warn("ignoring limit for unknown wallet type", "wallet_type", key)
			continue
		}
		out[wt] = decimal.NewFromFloat(limit)
	}
	return out
}

// buildProcessors 按配置创建处理器，并按需套上熔断与限流
func buildProcessors(cfg *config.Config, ids processor.IDGenerator, limiter ratelimit.RateLimiter, logger *slog.Logger) map[string]domain.Processor {
	pc := cfg.Processors
	procs := make(map[string]domain.Processor, 3)

	if pc.CreditCard.Enabled {
		procs[domain.FamilyCreditCard] = processor.NewCreditCardProcessor(processorOptions(pc.CreditCard, ids)...)
	}
	if pc.BankTransfer.Enabled {
		procs[domain.FamilyBankTransfer] = processor.NewBankTransferProcessor([]processor.BankOption{
			processor.WithPendingThreshold(decimal.NewFromFloat(cfg.Bank.PendingThreshold)),
			processor.WithStatusURLBase(cfg.Bank.StatusURLBase),
		}, processorOptions(pc.BankTransfer, ids)...)
	}
	if pc.DigitalWallet.Enabled {
		procs[domain.FamilyDigitalWallet] = processor.NewDigitalWalletProcessor(
			walletLimits(cfg.Wallet.Limits, logger), processorOptions(pc.DigitalWallet, ids)...)
	}

	for family, p := range procs {
		if cfg.Breaker.Enabled {
			p = processor.WithCircuitBreaker(p, processor.BreakerSettings{
				FailureThreshold: cfg.Breaker.FailureThreshold,
				OpenTimeout:      cfg.Breaker.OpenTimeout,
				HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
				Interval:         cfg.Breaker.Interval,
				OnStateChange: func(name string, from, to gobreaker.State) {
					logger.Warn("circuit breaker state changed", "processor", name, "from", from.String(), "to", to.String())
				},
			})
		}
		if cfg.RateLimit.Enabled {
			p = processor.WithRateLimit(p, limiter, ratelimit.Limit{
				Rate:   cfg.RateLimit.Rate,
				Period: cfg.RateLimit.Period,
				Burst:  cfg.RateLimit.Burst,
			})
		}
		procs[family] = p
	}
	return procs
}

func complianceOptions(cfg *config.Config, m *metrics.Metrics) []audit.ComplianceOption {
	opts := []audit.ComplianceOption{
		audit.WithLargeThreshold(decimal.NewFromFloat(cfg.Compliance.LargeThreshold)),
	}
	if !cfg.Compliance.AmexHeuristic {
		opts = append(opts, audit.WithInternationalHeuristic(nil))
	}
	if m != nil {
		opts = append(opts, audit.WithFlagObserver(func(f domain.ComplianceFlag) {
			m.RecordComplianceFlag(string(f))
		}))
	}
	return opts
}
