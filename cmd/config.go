package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/fingerprint-cli/internal/config"
	"github.com/KaramelBytes/fingerprint-cli/internal/engine"
	"github.com/KaramelBytes/fingerprint-cli/internal/logging"
	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Fingerprint configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings()
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "data_dir: %s\n", cfg.DataDir)
		fmt.Fprintf(w, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(w, "cors_origins: %s\n", strings.Join(cfg.CORSOrigins, ","))
		fmt.Fprintf(w, "default_method: %s\n", cfg.DefaultMethod)
		fmt.Fprintf(w, "default_radius: %g\n", cfg.DefaultRadius)
		fmt.Fprintf(w, "neighbor_strategy: %s\n", cfg.NeighborStrategy)
		fmt.Fprintf(w, "workers: %d\n", cfg.Workers)
		fmt.Fprintf(w, "tsne_perplexity: %g\n", cfg.TSNEPerplexity)
		fmt.Fprintf(w, "tsne_iterations: %d\n", cfg.TSNEIterations)
		fmt.Fprintf(w, "tsne_learning_rate: %g\n", cfg.TSNELearningRate)
		fmt.Fprintf(w, "tsne_deterministic: %t\n", cfg.TSNEDeterministic)
		fmt.Fprintf(w, "tsne_seed: %d\n", cfg.TSNESeed)
		if cfg.OracleURL != "" {
			fmt.Fprintf(w, "oracle_url: %s\n", cfg.OracleURL)
		}
		fmt.Fprintf(w, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(w, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(w, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(w, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(w, "log_format: %s\n", cfg.LogFormat)
		if cfg.RateLimitRPS > 0 {
			fmt.Fprintf(w, "rate_limit_rps: %g\n", cfg.RateLimitRPS)
			fmt.Fprintf(w, "rate_limit_burst: %d\n", cfg.RateLimitBurst)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		if err := setKey(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func(lo int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < lo {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	atof := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid float for %s: %v", key, val)
		}
		return f, nil
	}
	var err error
	switch key {
	case "data_dir":
		c.DataDir = val
	case "listen_addr":
		c.ListenAddr = val
	case "cors_origins":
		c.CORSOrigins = nil
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	case "default_method":
		if _, err := projection.New(val, projection.DefaultConfig()); err != nil {
			return fmt.Errorf("invalid default_method: %s (use %s)", val, strings.Join(projection.Methods(), " or "))
		}
		c.DefaultMethod = val
	case "default_radius":
		c.DefaultRadius, err = atof()
	case "neighbor_strategy":
		s, serr := engine.StrategyByName(strings.ToLower(val))
		if serr != nil {
			return serr
		}
		c.NeighborStrategy = s.Name()
	case "workers":
		c.Workers, err = atoi(0)
	case "tsne_perplexity":
		c.TSNEPerplexity, err = atof()
	case "tsne_iterations":
		c.TSNEIterations, err = atoi(1)
	case "tsne_learning_rate":
		c.TSNELearningRate, err = atof()
	case "tsne_deterministic":
		b, berr := strconv.ParseBool(val)
		if berr != nil {
			return fmt.Errorf("invalid bool for tsne_deterministic: %v", val)
		}
		c.TSNEDeterministic = b
	case "tsne_seed":
		s, serr := strconv.ParseInt(val, 10, 64)
		if serr != nil {
			return fmt.Errorf("invalid int for tsne_seed: %v", val)
		}
		c.TSNESeed = s
	case "oracle_url":
		c.OracleURL = val
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi(1)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi(1)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi(0)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi(0)
	case "log_level":
		if _, lerr := logging.ParseLevel(val); lerr != nil {
			return lerr
		}
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		switch strings.ToLower(val) {
		case "text", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	case "rate_limit_rps":
		c.RateLimitRPS, err = atof()
	case "rate_limit_burst":
		c.RateLimitBurst, err = atoi(1)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
