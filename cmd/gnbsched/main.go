package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/gnb_scheduler/internal/config"
	"github.com/friendsincode/gnb_scheduler/internal/logging"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "gnbsched",
	Short:        "gNB MAC slot scheduler",
	Long:         "gnbsched runs the per-slot MAC scheduler of a 5G base station: random access, resource grids and data grants for every configured cell.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err = logging.New(logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		InstanceID:  cfg.InstanceID,
	})
	return err
}
