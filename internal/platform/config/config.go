// Package config assembles runtime configuration from the environment plus an
// optional YAML file. Environment variables locate infrastructure; the file
// tunes audit behavior (field map and rule thresholds). Missing file sections
// keep their defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"veedor/internal/domain"
	"veedor/internal/normalizer"
	"veedor/internal/rules"
)

// Config carries everything the auditor binary needs to start.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// StorageRoot is the filesystem evidence directory. Used when PostgresDSN
	// is empty.
	StorageRoot string

	// PostgresDSN selects Postgres persistence when non-empty.
	PostgresDSN string

	// RedisAddr enables chain-tip export when non-empty.
	RedisAddr string

	// KafkaBrokers enables alert/report publishing when non-empty.
	KafkaBrokers []string
	AlertTopic   string
	ReportTopic  string

	// OpsAddr serves /healthz and /metrics.
	OpsAddr string

	// RulesFile points at the optional YAML behavior file.
	RulesFile string

	// Workers caps concurrent per-source audits.
	Workers int

	FieldMap normalizer.FieldMap
	Rules    rules.Config
}

// fileConfig is the YAML file's shape. Both sections are optional.
type fileConfig struct {
	FieldMap *normalizer.FieldMap `yaml:"field_map"`
	Rules    *rules.Config        `yaml:"rules"`
}

// FromEnv reads configuration from the environment, loads the behavior file
// when VEEDOR_RULES_FILE is set, and validates the result. Any problem is a
// *domain.ConfigurationError so the binary can fail fast with exit code 64.
func FromEnv() (Config, error) {
	cfg := Config{
		LogLevel:    envOr("VEEDOR_LOG_LEVEL", "info"),
		StorageRoot: envOr("VEEDOR_STORAGE_ROOT", "./evidence"),
		PostgresDSN: os.Getenv("VEEDOR_POSTGRES_DSN"),
		RedisAddr:   os.Getenv("VEEDOR_REDIS_ADDR"),
		AlertTopic:  envOr("VEEDOR_KAFKA_ALERT_TOPIC", ""),
		ReportTopic: envOr("VEEDOR_KAFKA_REPORT_TOPIC", ""),
		OpsAddr:     envOr("VEEDOR_OPS_ADDR", ":9090"),
		RulesFile:   os.Getenv("VEEDOR_RULES_FILE"),
		Workers:     4,
		FieldMap:    normalizer.DefaultFieldMap(),
		Rules:       rules.DefaultConfig(),
	}

	if brokers := os.Getenv("VEEDOR_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	if raw := os.Getenv("VEEDOR_WORKERS"); raw != "" {
		workers, err := strconv.Atoi(raw)
		if err != nil || workers < 1 {
			return Config{}, &domain.ConfigurationError{
				Field:  "VEEDOR_WORKERS",
				Detail: fmt.Sprintf("must be a positive integer, got %q", raw),
			}
		}
		cfg.Workers = workers
	}

	if cfg.RulesFile != "" {
		if err := cfg.loadFile(cfg.RulesFile); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays the YAML behavior file onto the defaults field by field:
// keys present in the file replace their default values, absent keys keep
// them. Unmarshalling into pointers at the defaults makes yaml leave
// unmentioned fields alone.
func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &domain.ConfigurationError{
			Field:  "VEEDOR_RULES_FILE",
			Detail: fmt.Sprintf("read %s: %v", path, err),
		}
	}
	var file fileConfig
	file.FieldMap = &c.FieldMap
	file.Rules = &c.Rules
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return &domain.ConfigurationError{
			Field:  "VEEDOR_RULES_FILE",
			Detail: fmt.Sprintf("parse %s: %v", path, err),
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.PostgresDSN == "" && c.StorageRoot == "" {
		return &domain.ConfigurationError{
			Field:  "VEEDOR_STORAGE_ROOT",
			Detail: "either a storage root or a postgres DSN must be set",
		}
	}
	if len(c.KafkaBrokers) > 0 {
		if c.AlertTopic == "" && c.ReportTopic == "" {
			return &domain.ConfigurationError{
				Field:  "VEEDOR_KAFKA_BROKERS",
				Detail: "brokers set but neither alert nor report topic configured",
			}
		}
	}
	if c.Rules.AtypicalVariation.Enabled && c.Rules.AtypicalVariation.ZScoreThreshold <= 0 {
		return &domain.ConfigurationError{
			Field:  "rules.atypical_variation.zscore_threshold",
			Detail: "must be positive when the rule is enabled",
		}
	}
	if c.Rules.AtypicalVariation.Enabled && c.Rules.AtypicalVariation.MinHistory < 2 {
		return &domain.ConfigurationError{
			Field:  "rules.atypical_variation.min_history",
			Detail: "must be at least 2 when the rule is enabled; a standard deviation needs two deltas",
		}
	}
	if c.Rules.ArithmeticConsistency.Tolerance < 0 {
		return &domain.ConfigurationError{
			Field:  "rules.arithmetic_consistency.tolerance",
			Detail: "must not be negative",
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
