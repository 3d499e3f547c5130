// Command ensemble builds ensemble archives from plain-text measurements and
// prints their statistics with jackknife and bootstrap errors.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dataset "github.com/luhtfiimanal/go-ensemble-archive"
	"github.com/luhtfiimanal/go-ensemble-archive/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ensemble",
	Short: "Store Monte Carlo ensembles and estimate their errors",
	Long: `ensemble keeps one measurement per zip entry and computes means with
jackknife or bootstrap errors over binned data.

Scalar measurements are imported from text files with one value per line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logger, err = cfg.NewLogger(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ensemble.yaml", "path to the YAML configuration")

	rootCmd.AddCommand(importCmd, infoCmd, getCmd, statsCmd, jackknifeCmd, bootstrapCmd)
}

// loadArchive opens an archive with the options from the configuration.
func loadArchive(path string, extra ...dataset.Option) (*dataset.DataSet, error) {
	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}
	return dataset.Load(path, append(opts, extra...)...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
