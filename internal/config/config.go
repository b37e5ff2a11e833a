package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Infection rate provider configuration.
	RtProviderURL     string
	RtProviderEnabled bool
	RtProviderTimeout time.Duration
	RtCacheSize       int
	RtCacheTTL        time.Duration

	// FilterConfigPath points at the YAML manual filter rules. Empty disables filtering.
	FilterConfigPath string

	// DatabaseURL enables the PostgreSQL latest-snapshot store when set.
	DatabaseURL string

	Metrics domain.Config
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	rtTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("RT_PROVIDER_TIMEOUT", "5s"))
	if err != nil || rtTimeout <= 0 {
		return nil, errors.New("invalid RT_PROVIDER_TIMEOUT")
	}

	rtCacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("RT_CACHE_TTL", "6h"))
	if err != nil || rtCacheTTL <= 0 {
		return nil, errors.New("invalid RT_CACHE_TTL")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	metrics, err := loadMetrics()
	if err != nil {
		return nil, err
	}

	rtURL := os.Getenv("RT_PROVIDER_URL")
	rtEnabled := rtURL != ""
	if v := os.Getenv("RT_PROVIDER_ENABLED"); v != "" {
		rtEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-region-timeseries"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "region-metrics"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "region-metrics-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		RtProviderURL:     rtURL,
		RtProviderEnabled: rtEnabled,
		RtProviderTimeout: rtTimeout,
		RtCacheSize:       parsePositiveInt("RT_CACHE_SIZE", 1000),
		RtCacheTTL:        rtCacheTTL,

		FilterConfigPath: os.Getenv("FILTER_CONFIG_PATH"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Metrics:          metrics,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.RtProviderEnabled && cfg.RtProviderURL == "" {
		return nil, errors.New("RT_PROVIDER_ENABLED is true but RT_PROVIDER_URL is not set")
	}

	return cfg, nil
}

// loadMetrics overlays the METRICS_* knobs on the default calculation parameters.
func loadMetrics() (domain.Config, error) {
	m := domain.DefaultConfig()

	ints := []struct {
		key string
		dst *int
	}{
		{"METRICS_SMOOTHING_WINDOW", &m.SmoothingWindow},
		{"METRICS_STALL_THRESHOLD_DAYS", &m.StallThresholdDays},
		{"METRICS_MAX_LOOKBACK_DAYS", &m.MaxLookbackDays},
		{"METRICS_RT_TRUNCATION_DAYS", &m.InfectionRateTruncationDays},
	}
	for _, v := range ints {
		s := os.Getenv(v.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.Config{}, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dst = n
	}

	if s := os.Getenv("METRICS_TRACERS_PER_CASE"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Config{}, fmt.Errorf("invalid METRICS_TRACERS_PER_CASE: %w", err)
		}
		m.TracersPerCase = f
	}

	if err := m.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid metrics config: %w", err)
	}
	return m, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
