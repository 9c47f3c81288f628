package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/version"
)

var (
	// configPath is the CLI --config flag value.
	configPath string
	// logLevel and logFormat override the configured logging settings.
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sn111",
	Short: "sn111 - Google Maps review miner",
	Long: `sn111 mines Google Maps reviews with a latency budget: a freshness-aware
cache over SQLite, a bounded browser session pool for live collection, and a
response optimizer that dedupes, ranks, and fits review volume to the request
deadline. The serve command exposes the miner over HTTP; the other commands
drive single operations from the terminal.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("sn111 version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: ./sn111.yaml, then ~/.sn111/sn111.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default: from config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format: human, json (default: from config)")
}

// loadConfig reads the configuration honoring the --config flag, then
// applies the logging flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the effective config.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.Level(cfg.Logging.Level),
		Output: logOutput(cfg.Logging),
	})
}

// logOutput resolves the configured log destination. Anything other than
// stderr/stdout is a file path, rotated per maxSize/maxBackups. The file
// stays open for the life of the process.
func logOutput(cfg config.LoggingConfig) io.Writer {
	switch cfg.Output {
	case "", "stderr":
		return nil
	case "stdout":
		return os.Stdout
	}
	rf, err := logging.OpenRotatingFile(cfg.Output, logging.ParseSize(cfg.MaxSize), cfg.MaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file %s: %v, logging to stderr\n", cfg.Output, err)
		return nil
	}
	return rf
}

// printJSON outputs data as formatted JSON.
func printJSON(data interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
