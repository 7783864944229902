package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/entitlements/internal/model"
)

type Config struct {
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string

	// Store selects the persistence backend: "postgres" or "memory".
	Store string

	// TemporalAddress enables payment orchestration through Temporal when set.
	TemporalAddress       string
	TemporalNamespace     string
	TemporalTaskQueue     string
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	TierCatalogPath            string
	DefaultCurrency            string
	TrialDays                  int
	TrialQuota                 int
	PaymentConfirmationTimeout time.Duration
	RoundingMode               model.RoundingMode
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:     getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		Store:                 getEnv("STORE", "postgres"),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", ""),
		TemporalNamespace:     getEnv("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue:     getEnv("TEMPORAL_TASK_QUEUE", "entitlements"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		TierCatalogPath:       getEnv("TIER_CATALOG_PATH", ""),
		DefaultCurrency:       strings.ToLower(getEnv("DEFAULT_CURRENCY", "usd")),
	}

	var err error
	if cfg.TrialDays, err = getEnvInt("TRIAL_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.TrialQuota, err = getEnvInt("TRIAL_QUOTA", 1); err != nil {
		return nil, err
	}
	if cfg.PaymentConfirmationTimeout, err = getEnvDuration("PAYMENT_CONFIRMATION_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RoundingMode, err = model.ParseRoundingMode(getEnv("ROUNDING_MODE", "")); err != nil {
		return nil, fmt.Errorf("ROUNDING_MODE: %w", err)
	}

	return cfg, nil
}

// TemporalEnabled reports whether plan change payments are orchestrated by Temporal.
func (c *Config) TemporalEnabled() bool {
	return c.TemporalAddress != ""
}

// Validate checks that the fields required by component are set.
func (c *Config) Validate(component string) error {
	var missing []string

	switch component {
	case "engine-api":
		if c.Store != "memory" && c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
	case "worker":
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.TemporalAddress == "" {
			missing = append(missing, "TEMPORAL_ADDRESS")
		}
		if c.MetricsListenAddr == "" {
			missing = append(missing, "METRICS_LISTEN_ADDR")
		}
	default:
		return fmt.Errorf("unknown component %q", component)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config for %s: %s", component, strings.Join(missing, ", "))
	}

	if c.Store != "postgres" && c.Store != "memory" {
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	if c.Store == "memory" && component == "worker" {
		return fmt.Errorf("worker requires STORE=postgres")
	}
	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set")
	}
	if c.TrialDays <= 0 {
		return fmt.Errorf("TRIAL_DAYS must be positive")
	}
	if c.TrialQuota <= 0 {
		return fmt.Errorf("TRIAL_QUOTA must be positive")
	}
	if c.PaymentConfirmationTimeout <= 0 {
		return fmt.Errorf("PAYMENT_CONFIRMATION_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
