package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level pfinance.yaml configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Balance    BalanceConfig    `yaml:"balance"`
	Categories CategoriesConfig `yaml:"categories"`
}

// DatabaseConfig locates the SQLite ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port           string `yaml:"port"`
	MaxUploadBytes int    `yaml:"max_upload_bytes"`
}

// LogConfig sets the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `yaml:"level"`
}

// IngestConfig tunes document extraction.
type IngestConfig struct {
	MinPDFBytes int     `yaml:"min_pdf_bytes"`
	ColumnGap   float64 `yaml:"column_gap"`
}

// BalanceConfig holds the reconciliation alert bands as fractions of the
// base balance.
type BalanceConfig struct {
	MediumThreshold float64 `yaml:"medium_threshold"`
	HighThreshold   float64 `yaml:"high_threshold"`
}

// CategoriesConfig names the fallback category and the categories and rules
// written by "pfinance init".
type CategoriesConfig struct {
	Fallback string         `yaml:"fallback"`
	Seed     []SeedCategory `yaml:"seed,omitempty"`
}

// SeedCategory is a category with its initial rules.
type SeedCategory struct {
	Name  string     `yaml:"name"`
	Rules []SeedRule `yaml:"rules,omitempty"`
}

// SeedRule is one initial rule.
type SeedRule struct {
	Pattern   string `yaml:"pattern"`
	MatchType string `yaml:"match_type"`
	Priority  int    `yaml:"priority"`
}

// Environment overrides.
const (
	EnvDBPath   = "PFINANCE_DB_PATH"
	EnvPort     = "PFINANCE_PORT"
	EnvLogLevel = "PFINANCE_LOG_LEVEL"
)

// Load reads a pfinance.yaml file from disk. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	cfg.Categories.Seed = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Categories.Seed) == 0 {
		cfg.Categories.Seed = DefaultSeed()
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv loads envFile (if present) into the process environment and then
// overrides cfg from PFINANCE_* variables.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	cfg.Database.Path = getEnv(EnvDBPath, cfg.Database.Path)
	cfg.Server.Port = getEnv(EnvPort, cfg.Server.Port)
	cfg.Log.Level = getEnv(EnvLogLevel, cfg.Log.Level)
	if v := os.Getenv("PFINANCE_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PFINANCE_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.Server.MaxUploadBytes = n
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Default returns a Config with sensible defaults for a new ledger.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "pfinance.db",
		},
		Server: ServerConfig{
			Port:           "8080",
			MaxUploadBytes: 20 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			MinPDFBytes: 1024,
			ColumnGap:   50,
		},
		Balance: BalanceConfig{
			MediumThreshold: 0.01,
			HighThreshold:   0.05,
		},
		Categories: CategoriesConfig{
			Fallback: "Other",
			Seed:     DefaultSeed(),
		},
	}
}

// DefaultSeed is the starter category set for Italian statements.
func DefaultSeed() []SeedCategory {
	contains := func(prio int, patterns ...string) []SeedRule {
		rules := make([]SeedRule, len(patterns))
		for i, p := range patterns {
			rules[i] = SeedRule{Pattern: p, MatchType: "contains", Priority: prio}
		}
		return rules
	}
	return []SeedCategory{
		{Name: "Salary", Rules: contains(10, "stipendio", "emolumenti", "pensione")},
		{Name: "Groceries", Rules: contains(20, "coop", "conad", "esselunga", "carrefour", "lidl", "eurospin", "supermercato")},
		{Name: "Dining", Rules: contains(30, "ristorante", "pizzeria", "trattoria", "bar ")},
		{Name: "Transport", Rules: contains(20, "telepass", "autostrade", "trenitalia", "italo", "carburante", "q8")},
		{Name: "Utilities", Rules: contains(20, "enel", "a2a", "hera", "iren", "fastweb", "vodafone", "iliad", "tim ")},
		{Name: "Shopping", Rules: contains(30, "amazon", "zalando", "ikea")},
		{Name: "Subscriptions", Rules: contains(20, "netflix", "spotify", "disney")},
		{Name: "Cash", Rules: []SeedRule{{Pattern: "prelievo", MatchType: "startsWith", Priority: 15}}},
		{Name: "Fees", Rules: append(contains(15, "commissioni", "imposta di bollo"),
			SeedRule{Pattern: "canone", MatchType: "startsWith", Priority: 15})},
		{Name: "Transfers", Rules: []SeedRule{
			{Pattern: "bonifico", MatchType: "startsWith", Priority: 50},
			{Pattern: "postagiro", MatchType: "startsWith", Priority: 50},
		}},
		{Name: "Other"},
	}
}
