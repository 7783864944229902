package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/entitlements/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "HTTP_LISTEN_ADDR", "METRICS_LISTEN_ADDR", "LOG_LEVEL", "SERVICE_NAME",
		"STORE", "TEMPORAL_ADDRESS", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
		"TIER_CATALOG_PATH", "DEFAULT_CURRENCY", "TRIAL_DAYS", "TRIAL_QUOTA",
		"PAYMENT_CONFIRMATION_TIMEOUT", "ROUNDING_MODE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, ":9090", cfg.MetricsListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "", cfg.TemporalAddress)
	assert.False(t, cfg.TemporalEnabled())
	assert.Equal(t, "default", cfg.TemporalNamespace)
	assert.Equal(t, "entitlements", cfg.TemporalTaskQueue)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
	assert.Equal(t, 7, cfg.TrialDays)
	assert.Equal(t, 1, cfg.TrialQuota)
	assert.Equal(t, 30*time.Minute, cfg.PaymentConfirmationTimeout)
	assert.Equal(t, model.RoundHalfUp, cfg.RoundingMode)
}

func TestLoad_AllEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://core:5432/entitlements")
	t.Setenv("HTTP_LISTEN_ADDR", ":7071")
	t.Setenv("METRICS_LISTEN_ADDR", ":7072")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE", "memory")
	t.Setenv("TEMPORAL_ADDRESS", "temporal.example.com:7233")
	t.Setenv("TEMPORAL_TASK_QUEUE", "billing")
	t.Setenv("TIER_CATALOG_PATH", "/etc/tiers.yaml")
	t.Setenv("DEFAULT_CURRENCY", "EUR")
	t.Setenv("TRIAL_DAYS", "14")
	t.Setenv("TRIAL_QUOTA", "3")
	t.Setenv("PAYMENT_CONFIRMATION_TIMEOUT", "2h")
	t.Setenv("ROUNDING_MODE", "half_even")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://core:5432/entitlements", cfg.DatabaseURL)
	assert.Equal(t, ":7071", cfg.HTTPListenAddr)
	assert.Equal(t, ":7072", cfg.MetricsListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Store)
	assert.True(t, cfg.TemporalEnabled())
	assert.Equal(t, "billing", cfg.TemporalTaskQueue)
	assert.Equal(t, "/etc/tiers.yaml", cfg.TierCatalogPath)
	assert.Equal(t, "eur", cfg.DefaultCurrency)
	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, 3, cfg.TrialQuota)
	assert.Equal(t, 2*time.Hour, cfg.PaymentConfirmationTimeout)
	assert.Equal(t, model.RoundHalfEven, cfg.RoundingMode)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"TRIAL_DAYS", "seven", "TRIAL_DAYS"},
		{"TRIAL_QUOTA", "x", "TRIAL_QUOTA"},
		{"PAYMENT_CONFIRMATION_TIMEOUT", "soon", "PAYMENT_CONFIRMATION_TIMEOUT"},
		{"ROUNDING_MODE", "bankers", "ROUNDING_MODE"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func validConfig() *Config {
	return &Config{
		DatabaseURL:                "postgres://localhost/db",
		HTTPListenAddr:             ":8090",
		MetricsListenAddr:          ":9090",
		Store:                      "postgres",
		TemporalAddress:            "localhost:7233",
		TrialDays:                  7,
		TrialQuota:                 1,
		PaymentConfirmationTimeout: time.Minute,
		RoundingMode:               model.RoundHalfUp,
	}
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate("engine-api"))
	assert.NoError(t, cfg.Validate("worker"))
}

func TestValidate_EngineAPI_MissingFields(t *testing.T) {
	cfg := &Config{Store: "postgres"}
	err := cfg.Validate("engine-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "HTTP_LISTEN_ADDR")
}

func TestValidate_EngineAPI_MemoryStoreNeedsNoDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.Store = "memory"
	assert.NoError(t, cfg.Validate("engine-api"))
}

func TestValidate_Worker_MissingFields(t *testing.T) {
	cfg := &Config{Store: "postgres"}
	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "TEMPORAL_ADDRESS")
	assert.Contains(t, err.Error(), "METRICS_LISTEN_ADDR")
}

func TestValidate_Worker_MemoryStore(t *testing.T) {
	cfg := validConfig()
	cfg.Store = "memory"
	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE=postgres")
}

func TestValidate_UnknownStore(t *testing.T) {
	cfg := validConfig()
	cfg.Store = "redis"
	err := cfg.Validate("engine-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE must be")
}

func TestValidate_TLS_MismatchedCertKey(t *testing.T) {
	cfg := validConfig()
	cfg.TemporalTLSCert = "/path/to/cert.pem"
	err := cfg.Validate("engine-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set")
}

func TestValidate_NonPositiveTrial(t *testing.T) {
	cfg := validConfig()
	cfg.TrialQuota = 0
	err := cfg.Validate("engine-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRIAL_QUOTA")
}

func TestValidate_UnknownComponent(t *testing.T) {
	err := validConfig().Validate("node-agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component")
}
