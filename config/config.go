package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Churnflow ChurnflowConfig `yaml:"churnflow"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Reader    ReaderConfig    `yaml:"reader"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Writer    WriterConfig    `yaml:"writer"`
	Source    SourceConfig    `yaml:"source"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
}

type ChurnflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	ChannelSize bool `yaml:"channel_size"`
	Prometheus  bool `yaml:"prometheus"`
}

type ChannelsConfig struct {
	SampleBuffer     int `yaml:"sample_buffer"`
	AssessmentBuffer int `yaml:"assessment_buffer"`
	SnapshotBuffer   int `yaml:"snapshot_buffer"`
	ProposalBuffer   int `yaml:"proposal_buffer"`
}

type ReaderConfig struct {
	MaxWorkers int             `yaml:"max_workers"`
	Timeout    time.Duration   `yaml:"timeout"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Retry      RetryConfig     `yaml:"retry"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type ScorerConfig struct {
	MaxWorkers   int           `yaml:"max_workers"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	ScanWindow   time.Duration `yaml:"scan_window"`
}

type WriterConfig struct {
	MaxWorkers   int                `yaml:"max_workers"`
	Buffer       BufferConfig       `yaml:"buffer"`
	Partitioning PartitioningConfig `yaml:"partitioning"`
	Formats      FormatsConfig      `yaml:"formats"`
}

type BufferConfig struct {
	MaxSize               int           `yaml:"max_size"`
	ProposalFlushInterval time.Duration `yaml:"proposal_flush_interval"`
}

type PartitioningConfig struct {
	TimeFormat     string   `yaml:"time_format"`
	AdditionalKeys []string `yaml:"additional_keys"`
}

type FormatsConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
	PageSize    int    `yaml:"page_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type SourceConfig struct {
	CRM       CRMSourceConfig       `yaml:"crm"`
	Stream    StreamSourceConfig    `yaml:"stream"`
	Synthetic SyntheticSourceConfig `yaml:"synthetic"`
}

// CRMSourceConfig drives the polling reader that pages through the customer
// base during a scheduled population scan.
type CRMSourceConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	URL            string               `yaml:"url"`
	Segments       []string             `yaml:"segments"`
	PageSize       int                  `yaml:"page_size"`
	ScanIntervalMs int                  `yaml:"scan_interval_ms"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

// StreamSourceConfig drives the websocket reader that consumes customer
// activity events pushed by the CRM in between scheduled scans.
type StreamSourceConfig struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url"`
	ReadBufferBytes   int    `yaml:"read_buffer_bytes"`
	ReadMessageBuffer int    `yaml:"read_message_buffer"`
}

// SyntheticSourceConfig drives the seeded cohort generator used for demo
// runs and load tests when no live customer source is available.
type SyntheticSourceConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Customers  int     `yaml:"customers"`
	Seed       int64   `yaml:"seed"`
	ChurnRate  float64 `yaml:"churn_rate"`
	IntervalMs int     `yaml:"interval_ms"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

// EngineConfig carries every constant the scoring and pricing engine uses.
// The engine holds no hidden globals: all weights, transform constants,
// thresholds and clamp bands arrive through this structure.
type EngineConfig struct {
	Version  string             `yaml:"version"`
	Weights  map[string]float64 `yaml:"weights"`
	Logistic LogisticConfig     `yaml:"logistic"`
	Tiers    TierThresholds     `yaml:"tiers"`
	Defaults SampleDefaults     `yaml:"defaults"`
	Pricing  PricingConfig      `yaml:"pricing"`
}

// LogisticConfig holds the fixed scale and bias of the probability
// transform. Both values are part of the engine's output contract and must
// not drift between deployments without product-owner sign-off.
type LogisticConfig struct {
	Scale float64 `yaml:"scale"`
	Bias  float64 `yaml:"bias"`
}

type TierThresholds struct {
	HighPercent   int `yaml:"high_percent"`
	MediumPercent int `yaml:"medium_percent"`
}

// SampleDefaults are substituted for absent fields of a feature sample.
type SampleDefaults struct {
	UsageChangePercent  float64 `yaml:"usage_change_percent"`
	DaysSinceLastLogin  int     `yaml:"days_since_last_login"`
	PaymentFailureCount int     `yaml:"payment_failure_count"`
	SupportTicketCount  int     `yaml:"support_ticket_count"`
	NPSScore            int     `yaml:"nps_score"`
	ContractAgeMonths   int     `yaml:"contract_age_months"`
}

type PricingConfig struct {
	Alpha            float64          `yaml:"alpha"`
	Beta             float64          `yaml:"beta"`
	Gamma            float64          `yaml:"gamma"`
	DemandSaturation float64          `yaml:"demand_saturation"`
	Tiers            []PlanTierConfig `yaml:"tiers"`
}

// PlanTierConfig fixes the elasticity constant and the clamp band of one
// subscription tier. The adjustment formula itself is keyed by tier ID
// inside the engine.
type PlanTierConfig struct {
	ID         string  `yaml:"id"`
	Elasticity float64 `yaml:"elasticity"`
	ClampMin   float64 `yaml:"clamp_min"`
	ClampMax   float64 `yaml:"clamp_max"`
}

// Required keys of the engine weight table.
const (
	FeatureWeightUsageChange     = "usage_change"
	FeatureWeightPaymentFailures = "payment_failures"
	FeatureWeightSupportTickets  = "support_tickets"
	FeatureWeightNPSScore        = "nps_score"
	FeatureWeightDaysSinceLogin  = "days_since_login"
	FeatureWeightContractAge     = "contract_age"
)

// Known subscription tier identifiers, in proposal order.
const (
	PlanTierBasic    = "basic"
	PlanTierStandard = "standard"
	PlanTierPremium  = "premium"
)

// DefaultEngineConfig returns the externally derived model constants. The
// weights come from the production churn model's feature importances and the
// pricing constants from the demand/elasticity study; neither is fitted
// here.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Version: "1",
		Weights: map[string]float64{
			FeatureWeightUsageChange:     0.173,
			FeatureWeightPaymentFailures: 0.160,
			FeatureWeightSupportTickets:  0.107,
			FeatureWeightNPSScore:        0.091,
			FeatureWeightDaysSinceLogin:  0.089,
			FeatureWeightContractAge:     0.083,
		},
		Logistic: LogisticConfig{Scale: 10, Bias: 3},
		Tiers:    TierThresholds{HighPercent: 60, MediumPercent: 30},
		Defaults: SampleDefaults{
			UsageChangePercent:  0,
			DaysSinceLastLogin:  5,
			PaymentFailureCount: 0,
			SupportTicketCount:  0,
			NPSScore:            7,
			ContractAgeMonths:   12,
		},
		Pricing: PricingConfig{
			Alpha:            0.15,
			Beta:             0.10,
			Gamma:            0.20,
			DemandSaturation: 100,
			Tiers: []PlanTierConfig{
				{ID: PlanTierBasic, Elasticity: -1.8, ClampMin: 0.70, ClampMax: 1.10},
				{ID: PlanTierStandard, Elasticity: -1.0, ClampMin: 0.95, ClampMax: 1.05},
				{ID: PlanTierPremium, Elasticity: -0.3, ClampMin: 0.90, ClampMax: 1.20},
			},
		},
	}
}

// Default configuration file locations, with environment specific overrides
// selected through APP_ENV.
const (
	defaultConfigPath = "config/config.yml"
	defaultPlansPath  = "config/plans.yml"
)

var configEnvPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

var plansEnvPaths = map[string]string{
	environmentProduction: "config/plans.production.yml",
	environmentStaging:    "config/plans.staging.yml",
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, configEnvPaths)

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			ChannelSize: true,
			Prometheus:  true,
		},
		Engine: DefaultEngineConfig(),
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Churnflow.Name == "" {
		return fmt.Errorf("churnflow.name is required")
	}

	if cfg.Churnflow.Version == "" {
		return fmt.Errorf("churnflow.version is required")
	}

	if cfg.Channels.SampleBuffer <= 0 {
		return fmt.Errorf("channels.sample_buffer must be greater than 0")
	}

	if cfg.Reader.MaxWorkers <= 0 {
		return fmt.Errorf("reader.max_workers must be greater than 0")
	}

	if cfg.Scorer.MaxWorkers <= 0 {
		return fmt.Errorf("scorer.max_workers must be greater than 0")
	}
	if cfg.Scorer.BatchSize <= 0 {
		return fmt.Errorf("scorer.batch_size must be greater than 0")
	}
	if cfg.Scorer.BatchTimeout <= 0 {
		return fmt.Errorf("scorer.batch_timeout must be greater than 0")
	}
	if cfg.Scorer.ScanWindow <= 0 {
		return fmt.Errorf("scorer.scan_window must be greater than 0")
	}

	if cfg.Engine.Logistic.Scale == 0 {
		return fmt.Errorf("engine.logistic.scale must be non-zero")
	}
	if cfg.Engine.Tiers.HighPercent <= cfg.Engine.Tiers.MediumPercent {
		return fmt.Errorf("engine.tiers.high_percent must be greater than medium_percent")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when kafka is enabled")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
