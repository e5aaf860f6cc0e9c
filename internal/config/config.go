package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
}

// DatabaseConfig configures the record store source.
type DatabaseConfig struct {
	DSN            string        `yaml:"dsn" envconfig:"DSN" validate:"required"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// OutputConfig configures where result tables are written.
type OutputConfig struct {
	Dir      string `yaml:"dir" envconfig:"DIR" validate:"required"`
	Workbook bool   `yaml:"workbook" envconfig:"WORKBOOK"`
}

// AnalyticsConfig carries the versioned analytics parameters.
type AnalyticsConfig struct {
	// RFMRuleVersion selects the segment rule table. The rfm package owns
	// the tables; unknown versions fail at pipeline construction.
	RFMRuleVersion string `yaml:"rfm_rule_version" envconfig:"RFM_RULE_VERSION" validate:"required"`
	// ScoreBuckets is the ordinal scale for R/F/M scores (quintiles by
	// default).
	ScoreBuckets int `yaml:"score_buckets" envconfig:"SCORE_BUCKETS" validate:"gte=2,lte=10"`
	// CohortHorizonMonths truncates the retention matrix view.
	CohortHorizonMonths int `yaml:"cohort_horizon_months" envconfig:"COHORT_HORIZON_MONTHS" validate:"gte=1,lte=36"`
	// MinSellerOrders excludes low-volume sellers from risk tiering.
	MinSellerOrders int `yaml:"min_seller_orders" envconfig:"MIN_SELLER_ORDERS" validate:"gte=1"`
	// ModerateLateRate and HighRiskLateRate are the risk tier thresholds on
	// a seller's late-delivery rate.
	ModerateLateRate float64 `yaml:"moderate_late_rate" envconfig:"MODERATE_LATE_RATE" validate:"gt=0,lt=1"`
	HighRiskLateRate float64 `yaml:"high_risk_late_rate" envconfig:"HIGH_RISK_LATE_RATE" validate:"gt=0,lt=1"`
	// Composite carries the seller composite score weights.
	Composite CompositeWeights `yaml:"composite" envconfig:"COMPOSITE"`
}

// CompositeWeights weights the normalized seller components into the
// composite score. The weights must sum to 1.
type CompositeWeights struct {
	Revenue  float64 `yaml:"revenue" envconfig:"REVENUE" validate:"gte=0,lte=1"`
	Review   float64 `yaml:"review" envconfig:"REVIEW" validate:"gte=0,lte=1"`
	Delivery float64 `yaml:"delivery" envconfig:"DELIVERY" validate:"gte=0,lte=1"`
}

// IsValid reports whether the weights sum to 1 within floating point
// tolerance.
func (w CompositeWeights) IsValid() bool {
	return math.Abs(w.Revenue+w.Review+w.Delivery-1.0) < 0.01
}

// Load builds the configuration in precedence order: code defaults, then
// the optional config file, then ECOM_* environment variables. Each layer
// only overrides the values it explicitly sets.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := findConfigFile(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("ECOM", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks struct tags and the cross-field invariants the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if !c.Analytics.Composite.IsValid() {
		return fmt.Errorf("composite weights must sum to 1, got %.2f",
			c.Analytics.Composite.Revenue+c.Analytics.Composite.Review+c.Analytics.Composite.Delivery)
	}

	if c.Analytics.ModerateLateRate >= c.Analytics.HighRiskLateRate {
		return fmt.Errorf("moderate late rate %.2f must be below high risk late rate %.2f",
			c.Analytics.ModerateLateRate, c.Analytics.HighRiskLateRate)
	}

	return nil
}

// loadFromFile overlays YAML file values onto cfg. Keys absent from the
// file leave the existing values untouched.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns the first config file found in the common
// locations, or empty when configuration is env-only.
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the built-in defaults: the base layer of Load, also used
// directly by tests and by callers that construct the engine
// programmatically.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:            "analytics:analytics@tcp(localhost:3306)/ecommerce?parseTime=true",
			ConnectTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Output: OutputConfig{
			Dir:      "reports",
			Workbook: true,
		},
		Analytics: DefaultAnalytics(),
	}
}

// DefaultAnalytics returns the v1 analytics parameters.
func DefaultAnalytics() AnalyticsConfig {
	return AnalyticsConfig{
		RFMRuleVersion:      "v1",
		ScoreBuckets:        5,
		CohortHorizonMonths: 12,
		MinSellerOrders:     10,
		ModerateLateRate:    0.10,
		HighRiskLateRate:    0.20,
		Composite: CompositeWeights{
			Revenue:  0.30,
			Review:   0.40,
			Delivery: 0.30,
		},
	}
}
