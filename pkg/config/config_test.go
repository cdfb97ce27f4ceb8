package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "payment", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, time.Second, cfg.RateLimit.Period)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenTimeout)
	assert.InDelta(t, 0.029, cfg.Processors.CreditCard.FeeRate, 1e-9)
	assert.InDelta(t, 0.30, cfg.Processors.CreditCard.MinFee, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.Processors.BankTransfer.Latency)
	assert.InDelta(t, 5000, cfg.Bank.PendingThreshold, 1e-9)
	assert.True(t, cfg.Compliance.AmexHeuristic)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 1, cfg.Batch.MaxAttempts)
	assert.Equal(t, int64(1), cfg.Snowflake.NodeID)
}

func TestLoad_RequiresFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
service_name = "payment-test"
environment = "staging"

[http]
port = 9090

[processors.credit_card]
enabled = true
fee_rate = 0.025
latency = "5ms"
seed = 42

[wallet.limits]
VENMO = 500.0

[batch]
concurrency = 2
max_attempts = 3
retry_scale = 0.01
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "payment-test", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.InDelta(t, 0.025, cfg.Processors.CreditCard.FeeRate, 1e-9)
	assert.Equal(t, 5*time.Millisecond, cfg.Processors.CreditCard.Latency)
	assert.Equal(t, uint64(42), cfg.Processors.CreditCard.Seed)
	// 未覆盖的键保留默认值
	assert.InDelta(t, 50.0, cfg.Processors.CreditCard.MaxFee, 1e-9)
	assert.Equal(t, 2, cfg.Batch.Concurrency)
	assert.Equal(t, 3, cfg.Batch.MaxAttempts)
	assert.InDelta(t, 500.0, cfg.Wallet.Limits["venmo"], 1e-9)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_BATCH_CONCURRENCY", "3")
	t.Setenv("APP_HTTP_PORT", "9191")

	cfg, err := LoadWithDefaults("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.Equal(t, 9191, cfg.HTTP.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"unknown environment": `environment = "qa"`,
		"kafka without brokers": `
[kafka]
enabled = true
`,
		"redis backend without addr": `
[redis]
addr = ""

[ratelimit]
enabled = true
backend = "redis"
`,
		"unknown ratelimit backend": `
[ratelimit]
backend = "etcd"
`,
		"min fee above max fee": `
[processors.credit_card]
min_fee = 60.0
max_fee = 50.0
`,
		"all processors disabled": `
[processors.credit_card]
enabled = false
[processors.bank_transfer]
enabled = false
[processors.digital_wallet]
enabled = false
`,
		"non-positive wallet limit": `
[wallet.limits]
paypal = 0.0
`,
		"failure rate above one": `
[processors.digital_wallet]
failure_rate = 1.5
`,
		"snowflake node out of range": `
[snowflake]
node_id = 2048
`,
		"zero batch concurrency": `
[batch]
concurrency = 0
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := LoadWithDefaults(writeConfig(t, "service_name = "))
	assert.Error(t, err)
}
