// Package config TOML 配置加载、APP_ 前缀环境变量覆盖与 schema 校验
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/wyfcoding/payments/pkg/logger"
)

// Config 支付引擎配置
type Config struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Version     string `mapstructure:"version"`
	// dev, staging, prod
	Environment string `mapstructure:"environment" validate:"omitempty,oneof=dev staging prod"`

	HTTP       HTTPConfig       `mapstructure:"http"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logger     logger.Config    `mapstructure:"logger"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Processors ProcessorsConfig `mapstructure:"processors"`
	Bank       BankConfig       `mapstructure:"bank"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
}

// HTTPConfig 运维端点（健康检查、指标、合规报告）
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 监听地址
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"startswith=/"`
}

// KafkaConfig 审计事件流
type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
	MaxRetries int      `mapstructure:"max_retries" validate:"min=0"`
	// 毫秒
	RetryBackoff int `mapstructure:"retry_backoff" validate:"min=0"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// RateLimitConfig 处理器维度限流
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// memory 或 redis
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	Rate    int           `mapstructure:"rate" validate:"min=1"`
	Period  time.Duration `mapstructure:"period" validate:"gt=0"`
	Burst   int           `mapstructure:"burst" validate:"min=1"`
}

// BreakerConfig 处理器熔断
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" validate:"min=1"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
	Interval         time.Duration `mapstructure:"interval"`
}

type ProcessorsConfig struct {
	CreditCard    ProcessorConfig `mapstructure:"credit_card"`
	BankTransfer  ProcessorConfig `mapstructure:"bank_transfer"`
	DigitalWallet ProcessorConfig `mapstructure:"digital_wallet"`
}

// ProcessorConfig 单个处理器的费率、延迟与故障注入
type ProcessorConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	FeeRate     float64       `mapstructure:"fee_rate" validate:"gte=0,lt=1"`
	MinFee      float64       `mapstructure:"min_fee" validate:"gte=0"`
	MaxFee      float64       `mapstructure:"max_fee" validate:"gte=0"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	Latency     time.Duration `mapstructure:"latency" validate:"gte=0"`
	// 0 表示随机种子
	Seed uint64 `mapstructure:"seed"`
}

type BankConfig struct {
	PendingThreshold float64 `mapstructure:"pending_threshold" validate:"gt=0"`
	StatusURLBase    string  `mapstructure:"status_url_base" validate:"required,url"`
}

// WalletConfig 钱包单笔限额，键为钱包类型（大小写不敏感）
type WalletConfig struct {
	Limits map[string]float64 `mapstructure:"limits"`
}

type ComplianceConfig struct {
	LargeThreshold float64 `mapstructure:"large_threshold" validate:"gt=0"`
	AmexHeuristic  bool    `mapstructure:"amex_heuristic"`
}

// BatchConfig 批量处理与重试
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1"`
	// 含首次调用，1 表示不重试
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`
	// 错误码建议延迟的缩放系数
	RetryScale float64       `mapstructure:"retry_scale" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type SnowflakeConfig struct {
	NodeID int64 `mapstructure:"node_id" validate:"min=0,max=1023"`
}

var validate = validator.New()

// Load 从 TOML 文件加载配置，文件必须存在
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

// LoadWithDefaults 文件不存在时只使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 结构体标签校验之外，再检查字段之间的依赖
func (c *Config) Validate() error {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.AuditTopic == "" {
			return errors.New("kafka.audit_topic is required when kafka is enabled")
		}
	}
	if c.RateLimit.Enabled && c.RateLimit.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis rate limit backend")
	}

	procs := map[string]ProcessorConfig{
		"credit_card":    c.Processors.CreditCard,
		"bank_transfer":  c.Processors.BankTransfer,
		"digital_wallet": c.Processors.DigitalWallet,
	}
	enabled := 0
	for name, p := range procs {
		if p.MaxFee > 0 && p.MinFee > p.MaxFee {
			return fmt.Errorf("processors.%s: min_fee %.2f exceeds max_fee %.2f", name, p.MinFee, p.MaxFee)
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("at least one processor must be enabled")
	}

	for wallet, limit := range c.Wallet.Limits {
		if limit <= 0 {
			return fmt.Errorf("wallet.limits.%s must be positive", wallet)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "payment")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "5s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/payment.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "payments.audit")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.rate", 100)
	v.SetDefault("ratelimit.period", "1s")
	v.SetDefault("ratelimit.burst", 100)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("breaker.half_open_requests", 1)
	v.SetDefault("breaker.interval", "60s")

	v.SetDefault("processors.credit_card.enabled", true)
	v.SetDefault("processors.credit_card.fee_rate", 0.029)
	v.SetDefault("processors.credit_card.min_fee", 0.30)
	v.SetDefault("processors.credit_card.max_fee", 50.0)
	v.SetDefault("processors.credit_card.failure_rate", 0.05)
	v.SetDefault("processors.credit_card.latency", "100ms")

	v.SetDefault("processors.bank_transfer.enabled", true)
	v.SetDefault("processors.bank_transfer.fee_rate", 0.0)
	v.SetDefault("processors.bank_transfer.failure_rate", 0.02)
	v.SetDefault("processors.bank_transfer.latency", "500ms")

	v.SetDefault("processors.digital_wallet.enabled", true)
	v.SetDefault("processors.digital_wallet.fee_rate", 0.03)
	v.SetDefault("processors.digital_wallet.failure_rate", 0.03)
	v.SetDefault("processors.digital_wallet.latency", "200ms")

	v.SetDefault("bank.pending_threshold", 5000.0)
	v.SetDefault("bank.status_url_base", "https://payments.example.com/api/transfers/status")

	v.SetDefault("compliance.large_threshold", 10000.0)
	v.SetDefault("compliance.amex_heuristic", true)

	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.max_attempts", 1)
	v.SetDefault("batch.retry_scale", 1.0)
	v.SetDefault("batch.timeout", "30s")

	v.SetDefault("snowflake.node_id", 1)
}
