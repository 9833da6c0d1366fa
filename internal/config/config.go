package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvStoragePath overrides data_dir when set, matching the historical
// deployment knob.
const EnvStoragePath = "MEMORY_STORAGE_PATH"

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int64  `yaml:"cache_size"`
}

// HalfLifeConfig holds per-category decay half-lives in hours.
type HalfLifeConfig struct {
	Episodic   float64 `yaml:"episodic"`
	Semantic   float64 `yaml:"semantic"`
	Procedural float64 `yaml:"procedural"`
}

// Config contains runtime configuration for decay-mcp.
type Config struct {
	ServerName            string          `yaml:"server_name"`
	DataDir               string          `yaml:"data_dir"`
	DBPath                string          `yaml:"db_path"`
	JournalPath           string          `yaml:"journal_path"`
	LogLevel              string          `yaml:"log_level"`
	Embedding             EmbeddingConfig `yaml:"embedding"`
	RecallK               int             `yaml:"recall_k"`
	MinStrength           float64         `yaml:"min_strength"`
	BoostCoefficient      float64         `yaml:"boost_coefficient"`
	HalfLifeHours         HalfLifeConfig  `yaml:"half_life_hours"`
	VerifyMatchLimit      int             `yaml:"verify_match_limit"`
	ReportIntervalSeconds int             `yaml:"report_interval_seconds"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName: "decay-mcp",
		DataDir:    filepath.Join(userHomeDir(), ".decay-mcp"),
		LogLevel:   "info",
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 384,
			CacheSize:  4096,
		},
		RecallK:          5,
		MinStrength:      0.15,
		BoostCoefficient: 0.15,
		HalfLifeHours: HalfLifeConfig{
			Episodic:   24 * 7,
			Semantic:   24 * 30,
			Procedural: 24 * 365,
		},
		VerifyMatchLimit:      10,
		ReportIntervalSeconds: 300,
	}
}

// Load loads config from disk; if path does not exist, default config is
// returned. The MEMORY_STORAGE_PATH environment variable, when set,
// overrides data_dir from either source.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if env := strings.TrimSpace(os.Getenv(EnvStoragePath)); env != "" {
		cfg.DataDir = env
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration sanity. Violations are fatal at startup.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	switch c.Embedding.Provider {
	case "hash", "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q (expected hash, ollama or openai)", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be > 0")
	}
	if c.Embedding.CacheSize < 0 {
		return errors.New("embedding cache_size must be >= 0")
	}
	if c.RecallK <= 0 {
		return errors.New("recall_k must be > 0")
	}
	if c.MinStrength <= 0 || c.MinStrength >= 1 {
		return errors.New("min_strength must be within (0, 1)")
	}
	if c.BoostCoefficient < 0 {
		return errors.New("boost_coefficient must be >= 0")
	}
	if c.HalfLifeHours.Episodic <= 0 || c.HalfLifeHours.Semantic <= 0 || c.HalfLifeHours.Procedural <= 0 {
		return errors.New("half_life_hours values must be > 0")
	}
	if c.VerifyMatchLimit <= 0 {
		return errors.New("verify_match_limit must be > 0")
	}
	if c.ReportIntervalSeconds <= 0 {
		return errors.New("report_interval_seconds must be > 0")
	}
	return nil
}

// EnsurePaths expands and resolves storage paths and creates the data
// directory if absent.
func (c *Config) EnsurePaths() error {
	c.DataDir = ExpandPath(c.DataDir)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "memories.db")
	}
	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(c.DataDir, "permanent_journal.jsonl")
	}
	c.DBPath = ExpandPath(c.DBPath)
	c.JournalPath = ExpandPath(c.JournalPath)

	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
