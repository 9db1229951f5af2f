package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/fingerprint-cli/internal/config"
	"github.com/KaramelBytes/fingerprint-cli/internal/dataset"
	"github.com/KaramelBytes/fingerprint-cli/internal/engine"
	"github.com/KaramelBytes/fingerprint-cli/internal/logging"
	"github.com/KaramelBytes/fingerprint-cli/internal/metrics"
	"github.com/KaramelBytes/fingerprint-cli/internal/pipeline"
	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagDataDir   string
	flagLogFormat string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// Process logger, built from cfg in loadConfig.
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Fingerprint: find the locally informative features of every projected point",
	Long: `Fingerprint projects a tabular dataset to 2-D (PCA or t-SNE) and ranks, for every
point, the features that vary most among its projection neighbors relative to how
much they vary across the whole dataset. Results are available from the CLI or over
HTTP with "fingerprint serve".`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.fingerprint/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding .csv/.tsv datasets (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "projection oracle HTTP timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v, using info\n", err)
	}
	if debug {
		level = slog.LevelDebug
	}
	l, err := logging.New(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v, using text\n", err)
		l, _ = logging.New(os.Stderr, level, "text")
	}
	logger = l
}

// settings returns the loaded config, loading it on first use.
func settings() (*cfgpkg.Global, error) {
	if cfg == nil {
		loadConfig()
	}
	if cfg == nil {
		return nil, fmt.Errorf("no configuration available")
	}
	return cfg, nil
}

func projectionConfig(c *cfgpkg.Global) projection.Config {
	return projection.Config{
		Perplexity:    c.TSNEPerplexity,
		Iterations:    c.TSNEIterations,
		LearningRate:  c.TSNELearningRate,
		Deterministic: c.TSNEDeterministic,
		Seed:          c.TSNESeed,
		OracleURL:     c.OracleURL,
		HTTPTimeout:   time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:      c.RetryMaxAttempts,
		BaseDelay:     time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
	}
}

// newPipeline wires the dataset store, projectors and engine from config.
func newPipeline(c *cfgpkg.Global, obs metrics.Observer) (*pipeline.Pipeline, *dataset.Store, error) {
	strategy, err := engine.StrategyByName(c.NeighborStrategy)
	if err != nil {
		return nil, nil, err
	}
	store := dataset.NewStore(c.DataDir)
	pcfg := projectionConfig(c)
	p := pipeline.New(pipeline.Options{
		Loader: store,
		Projectors: func(method string) (projection.Projector, error) {
			return projection.New(method, pcfg)
		},
		Engine:   engine.Options{Strategy: strategy, Workers: c.Workers},
		Logger:   logger,
		Observer: obs,
	})
	return p, store, nil
}
