package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h2econ/h2opt/internal/config"
	"github.com/h2econ/h2opt/internal/logging"
)

var (
	logLevel string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "h2opt",
	Short: "Hydrogen production cost optimization",
	Long: `h2opt searches techno-economic hydrogen plant models for the
parameter values that minimize the levelized cost of hydrogen, using
differential evolution against a discounted cash flow evaluator.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.NewLogger(&logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}
