package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. FINGERPRINT_DATA_DIR.
const EnvPrefix = "FINGERPRINT"

// DefaultCORSOrigins are the local development origins allowed by default.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost",
}

// Global configuration structure.
type Global struct {
	DataDir     string   `mapstructure:"data_dir" yaml:"data_dir"`
	ListenAddr  string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// Analysis defaults
	DefaultMethod    string  `mapstructure:"default_method" yaml:"default_method"`
	DefaultRadius    float64 `mapstructure:"default_radius" yaml:"default_radius"`
	NeighborStrategy string  `mapstructure:"neighbor_strategy" yaml:"neighbor_strategy"`
	Workers          int     `mapstructure:"workers" yaml:"workers"`

	// t-SNE
	TSNEPerplexity    float64 `mapstructure:"tsne_perplexity" yaml:"tsne_perplexity"`
	TSNEIterations    int     `mapstructure:"tsne_iterations" yaml:"tsne_iterations"`
	TSNELearningRate  float64 `mapstructure:"tsne_learning_rate" yaml:"tsne_learning_rate"`
	TSNEDeterministic bool    `mapstructure:"tsne_deterministic" yaml:"tsne_deterministic"`
	TSNESeed          int64   `mapstructure:"tsne_seed" yaml:"tsne_seed"`

	// Remote projection oracle
	OracleURL string `mapstructure:"oracle_url" yaml:"oracle_url"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Server rate limiting; 0 rps disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// Dir returns ~/.fingerprint.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".fingerprint"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.fingerprint/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("listen_addr", "127.0.0.1:8000")
	v.SetDefault("cors_origins", DefaultCORSOrigins)
	v.SetDefault("default_method", "pca")
	v.SetDefault("default_radius", 0.1)
	v.SetDefault("neighbor_strategy", "grid")
	v.SetDefault("workers", 0)
	v.SetDefault("tsne_perplexity", 30.0)
	v.SetDefault("tsne_iterations", 250)
	v.SetDefault("tsne_learning_rate", 0.0)
	v.SetDefault("tsne_deterministic", true)
	v.SetDefault("tsne_seed", 42)
	v.SetDefault("oracle_url", "")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("rate_limit_burst", 20)
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
