package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/payments/internal/payment/application"
	"github.com/wyfcoding/payments/internal/payment/domain"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/audit"
	"github.com/wyfcoding/payments/internal/payment/infrastructure/processor"
	"github.com/wyfcoding/payments/pkg/config"
	"github.com/wyfcoding/payments/pkg/logger"
	"github.com/wyfcoding/payments/pkg/metrics"
	"github.com/wyfcoding/payments/pkg/middleware"
	"github.com/wyfcoding/payments/pkg/mq"
	"github.com/wyfcoding/payments/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath, batchPath string
	flag.StringVar(&configPath, "config", "configs/payment/config.toml", "path to config file")
	flag.StringVar(&batchPath, "batch", "", "JSON file of payment requests to process at startup")
	flag.Parse()

	// 1. 配置
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. 日志
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	log := logger.Get().With("service", cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(reg); err != nil {
		panic(fmt.Sprintf("register metrics failed: %v", err))
	}

	// 4. 基础设施
	ids, err := processor.NewSnowflakeIDGenerator(cfg.Snowflake.NodeID)
	if err != nil {
		panic(err)
	}
	limiter, closeLimiter, err := newRateLimiter(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("init rate limiter failed: %v", err))
	}
	defer closeLimiter()

	compliance := audit.NewComplianceAuditor(complianceOptions(cfg, m)...)
	auditors := []domain.Auditable{audit.NewPaymentAuditor(log), compliance}
	if cfg.Metrics.Enabled {
		auditors = append(auditors, audit.NewMetricsAuditor(m))
	}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:           cfg.Kafka.Brokers,
			MaxRetries:        cfg.Kafka.MaxRetries,
			RetryBackoff:      cfg.Kafka.RetryBackoff,
			EnableCompression: true,
		})
		if err != nil {
			panic(fmt.Sprintf("init kafka producer failed: %v", err))
		}
		defer producer.Close()
		kafkaAuditor := audit.NewKafkaAuditor(producer, cfg.Kafka.AuditTopic, log)
		// 先于 producer 关闭，刷出队列中的审计记录
		defer kafkaAuditor.Close()
		auditors = append(auditors, kafkaAuditor)
	}

	// 5. 应用服务
	svc, err := application.NewPaymentService(
		buildProcessors(cfg, ids, limiter, log),
		audit.NewMulti(auditors...),
		log,
		application.WithBatchConcurrency(cfg.Batch.Concurrency),
	)
	if err != nil {
		panic(fmt.Sprintf("init payment service failed: %v", err))
	}
	retrying := application.NewRetryingService(svc, cfg.Batch.MaxAttempts, cfg.Batch.RetryScale)

	// 6. 启动服务
	g, gctx := errgroup.WithContext(ctx)

	if batchPath != "" {
		g.Go(func() error {
			defer func() {
				if !cfg.HTTP.Enabled {
					stop()
				}
			}()
			return runBatch(gctx, cfg, batchPath, svc, retrying, compliance, log)
		})
	}

	if cfg.HTTP.Enabled {
		server := &http.Server{
			Addr:         cfg.HTTP.Addr(),
			Handler:      newRouter(cfg, reg, limiter, svc, compliance),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		g.Go(func() error {
			log.Info("HTTP server starting", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		// 7. 优雅关闭
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("payment service exited with error", "error", err)
		os.Exit(1)
	}
}

func runBatch(ctx context.Context, cfg *config.Config, path string, svc *application.PaymentService,
	retrying *application.RetryingService, compliance *audit.ComplianceAuditor, log *slog.Logger) error {
	ctx = logger.WithRequestID(ctx, "batch-"+uuid.NewString())
	if cfg.Batch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Batch.Timeout)
		defer cancel()
	}

	requests, err := loadBatch(path)
	if err != nil {
		svc.AuditSecurityEvent(ctx, domain.SecurityEventBatchRejected, map[string]any{"path": path, "error": err.Error()})
		return err
	}

	done := logger.LogDuration(ctx, "batch processed", "requests", len(requests))
	results := retrying.ProcessBatchPayments(ctx, requests)
	done()

	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%3d  %s\n", i+1, domain.Describe(r))
	}
	fmt.Fprintln(os.Stdout)
	fmt.Fprint(os.Stdout, compliance.GenerateComplianceReport())

	log.InfoContext(ctx, "supported payment methods", "methods", svc.SupportedPaymentMethods())
	return nil
}

func newRouter(cfg *config.Config, reg *prometheus.Registry, limiter ratelimit.RateLimiter,
	svc *application.PaymentService, compliance *audit.ComplianceAuditor) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(), middleware.Logging())

	sys := r.Group("/sys")
	if cfg.RateLimit.Enabled && limiter != nil {
		sys.Use(middleware.RateLimit(limiter, ratelimit.Limit{
			Rate:   cfg.RateLimit.Rate,
			Period: cfg.RateLimit.Period,
			Burst:  cfg.RateLimit.Burst,
		}))
	}
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
		sys.GET("/processors", func(c *gin.Context) { c.JSON(http.StatusOK, svc.ProcessorStats()) })
		sys.GET("/methods", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"methods": svc.SupportedPaymentMethods()})
		})
		sys.GET("/compliance", func(c *gin.Context) {
			if c.Query("format") == "text" {
				c.String(http.StatusOK, compliance.GenerateComplianceReport())
				return
			}
			c.JSON(http.StatusOK, compliance.Report())
		})
	}
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}
	return r
}
