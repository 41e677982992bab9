// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Rules    RulesConfig    `mapstructure:"rules"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	MetricsAddress  string `mapstructure:"metrics_address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// NotifyConfig holds settings for outbound homeowner/contractor notices.
type NotifyConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
	HomeownerEmail  string `mapstructure:"homeowner_email"`
	OverdueScanSecs int    `mapstructure:"overdue_scan_secs"`
}

// ArchiveConfig controls the golden-thread archiver.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// --- Business Rules ---

// RulesConfig is the rules table of the workflow engine: phase metadata,
// safety thresholds and every pricing constant. Loaded once at process start
// and treated as immutable for the process lifetime.
type RulesConfig struct {
	Phases       map[string]PhaseRule `mapstructure:"phases"`
	Weather      WeatherRule          `mapstructure:"weather"`
	Pricing      PricingRule          `mapstructure:"pricing"`
	Payments     []PaymentStageRule   `mapstructure:"payment_stages"`
	Checklist    []ChecklistRule      `mapstructure:"checklist"`
	Audit        AuditRule            `mapstructure:"audit"`
	Verification VerificationRule     `mapstructure:"verification"`
	CoolingOff   CoolingOffRule       `mapstructure:"cooling_off"`
}

type PhaseRule struct {
	Label       string `mapstructure:"label"`
	Description string `mapstructure:"description"`
}

// WeatherRule holds the three independent safety ceilings/floors. Any single
// violation suspends work.
type WeatherRule struct {
	WindGustMPH    float64 `mapstructure:"wind_gust_mph"`
	PrecipMMPerHr  float64 `mapstructure:"precip_mm_hr"`
	TempCelsiusMin float64 `mapstructure:"temp_celsius_min"`
}

type PricingRule struct {
	BaseRatePerSqm     float64                  `mapstructure:"base_rate_per_sqm"`
	HeightThresholdM   float64                  `mapstructure:"height_threshold_m"`
	HeightFactor       float64                  `mapstructure:"height_factor"`
	PitchThresholdDeg  float64                  `mapstructure:"pitch_threshold_deg"`
	PitchFactor        float64                  `mapstructure:"pitch_factor"`
	WindZoneFactor     float64                  `mapstructure:"wind_zone_factor"`
	HighExposureZones  []string                 `mapstructure:"high_exposure_zones"`
	LabourShare        float64                  `mapstructure:"labour_share"`
	SkipHireFee        float64                  `mapstructure:"skip_hire_fee"`
	PavementLicenceFee float64                  `mapstructure:"pavement_licence_fee"`
	ScaffoldTiers      []ScaffoldTierRule       `mapstructure:"scaffold_tiers"`
	SpecialtyRepairs   map[string]SpecialtyRule `mapstructure:"specialty_repairs"`
	BaseDurationDays   int                      `mapstructure:"base_duration_days"`
	ContingencyRatio   float64                  `mapstructure:"contingency_ratio"`
}

// ScaffoldTierRule prices scaffolding by building height. Tiers are evaluated
// in order; MaxHeightM == 0 means "no upper bound".
type ScaffoldTierRule struct {
	MaxHeightM float64 `mapstructure:"max_height_m"`
	Cost       float64 `mapstructure:"cost"`
}

// SpecialtyRule prices one selectable specialty repair item: the quantity is
// derived from roof area (one unit per AreaPerUnit square metres, rounded up).
type SpecialtyRule struct {
	Label       string  `mapstructure:"label"`
	UnitRate    float64 `mapstructure:"unit_rate"`
	AreaPerUnit float64 `mapstructure:"area_per_unit"`
}

type PaymentStageRule struct {
	ID      string `mapstructure:"id"`
	Label   string `mapstructure:"label"`
	Percent int    `mapstructure:"percent"`
}

type ChecklistRule struct {
	ID    string `mapstructure:"id"`
	Label string `mapstructure:"label"`
}

type AuditRule struct {
	MandatoryCategories []string `mapstructure:"mandatory_categories"`
	OverdueHours        int      `mapstructure:"overdue_hours"`
}

// VerificationRule lists the competent-person scheme prefixes recognised at
// onboarding. A match yields "pending", never "verified".
type VerificationRule struct {
	RegistryPrefixes []string `mapstructure:"registry_prefixes"`
}

type CoolingOffRule struct {
	Days int `mapstructure:"days"`
}
