// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. config.production.yaml
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one. Multiple
// candidates so tests running from nested packages still pick it up.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders inside string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "rooftrust-engine"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":9090"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15
	}
	if cfg.Database.Postgres.Host == "" {
		cfg.Database.Postgres.Host = "localhost"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "golden-thread"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Notify.OverdueScanSecs == 0 {
		cfg.Notify.OverdueScanSecs = 300
	}

	applyRuleDefaults(&cfg.Rules)
}

// applyRuleDefaults fills in every business-rule constant not supplied by the
// config file. The defaults are the authoritative values; the YAML exists so
// operations can tune them without a rebuild.
func applyRuleDefaults(r *RulesConfig) {
	if r.Phases == nil {
		r.Phases = map[string]PhaseRule{
			"onboarding": {Label: "Trust & Onboarding", Description: "Contractor registration and scheme verification"},
			"survey":     {Label: "Digital Survey & Quote", Description: "Survey capture, wind-uplift lookup and quoting"},
			"tracking":   {Label: "Live Project Tracking", Description: "Daily logs, payments and handover"},
		}
	}
	if r.Weather.WindGustMPH == 0 {
		r.Weather.WindGustMPH = 40
	}
	if r.Weather.PrecipMMPerHr == 0 {
		r.Weather.PrecipMMPerHr = 5
	}
	if r.Weather.TempCelsiusMin == 0 {
		r.Weather.TempCelsiusMin = 2
	}

	p := &r.Pricing
	if p.BaseRatePerSqm == 0 {
		p.BaseRatePerSqm = 120
	}
	if p.HeightThresholdM == 0 {
		p.HeightThresholdM = 5
	}
	if p.HeightFactor == 0 {
		p.HeightFactor = 1.2
	}
	if p.PitchThresholdDeg == 0 {
		p.PitchThresholdDeg = 35
	}
	if p.PitchFactor == 0 {
		p.PitchFactor = 1.15
	}
	if p.WindZoneFactor == 0 {
		p.WindZoneFactor = 1.15
	}
	if len(p.HighExposureZones) == 0 {
		p.HighExposureZones = []string{"Zone 3", "Zone 4", "Zone 5"}
	}
	if p.LabourShare == 0 {
		p.LabourShare = 0.65
	}
	if p.SkipHireFee == 0 {
		p.SkipHireFee = 320
	}
	if p.PavementLicenceFee == 0 {
		p.PavementLicenceFee = 180
	}
	if len(p.ScaffoldTiers) == 0 {
		p.ScaffoldTiers = []ScaffoldTierRule{
			{MaxHeightM: 5, Cost: 850},
			{MaxHeightM: 8, Cost: 1400},
			{MaxHeightM: 0, Cost: 2200},
		}
	}
	if len(p.SpecialtyRepairs) == 0 {
		p.SpecialtyRepairs = map[string]SpecialtyRule{
			"chimney_repointing": {Label: "Chimney repointing", UnitRate: 48, AreaPerUnit: 25},
			"ridge_rebedding":    {Label: "Ridge rebedding", UnitRate: 35, AreaPerUnit: 20},
			"valley_replacement": {Label: "Valley replacement", UnitRate: 95, AreaPerUnit: 40},
			"lead_flashing":      {Label: "Lead flashing renewal", UnitRate: 60, AreaPerUnit: 30},
		}
	}
	if p.BaseDurationDays == 0 {
		p.BaseDurationDays = 5
	}
	if p.ContingencyRatio == 0 {
		p.ContingencyRatio = 0.25
	}

	if len(r.Payments) == 0 {
		r.Payments = []PaymentStageRule{
			{ID: "deposit", Label: "30% Deposit (Escrow)", Percent: 30},
			{ID: "mid", Label: "40% Interim Payment", Percent: 40},
			{ID: "final", Label: "30% Final Balance", Percent: 30},
		}
	}
	if len(r.Checklist) == 0 {
		r.Checklist = []ChecklistRule{
			{ID: "c1", Label: "Site cleared of debris"},
			{ID: "c2", Label: "Gutters checked and functional"},
			{ID: "c3", Label: "All tiles properly fixed (BS 5534)"},
			{ID: "c4", Label: "Photographic evidence verified"},
		}
	}
	if len(r.Audit.MandatoryCategories) == 0 {
		r.Audit.MandatoryCategories = []string{"Insulation_Check", "Structural_Fixing"}
	}
	if r.Audit.OverdueHours == 0 {
		r.Audit.OverdueHours = 48
	}
	if len(r.Verification.RegistryPrefixes) == 0 {
		r.Verification.RegistryPrefixes = []string{"NFRC-", "CR-"}
	}
	if r.CoolingOff.Days == 0 {
		r.CoolingOff.Days = 14
	}
}

// DefaultRules returns the built-in rules table; tests and in-memory setups
// use it directly.
func DefaultRules() RulesConfig {
	var r RulesConfig
	applyRuleDefaults(&r)
	return r
}

func validateConfig(cfg *Config) error {
	total := 0
	for _, s := range cfg.Rules.Payments {
		if s.Percent <= 0 {
			return fmt.Errorf("payment stage %q has non-positive percent", s.ID)
		}
		total += s.Percent
	}
	if total != 100 {
		return fmt.Errorf("payment stage percentages sum to %d, want 100", total)
	}
	if len(cfg.Rules.Checklist) == 0 {
		return fmt.Errorf("completion checklist must not be empty")
	}
	if cfg.Rules.Pricing.LabourShare <= 0 || cfg.Rules.Pricing.LabourShare >= 1 {
		return fmt.Errorf("labour share %v out of range (0,1)", cfg.Rules.Pricing.LabourShare)
	}
	return nil
}
