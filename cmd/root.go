// Package cmd is the rendercore command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rendercore/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "rendercore",
	Short:         "Render HTML and CSS pages to images",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		log, err := config.NewLogger(loaded.Logger, zapcore.Lock(os.Stderr))
		if err != nil {
			return err
		}
		cfg, logger = loaded, log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "rendercore:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./rendercore.yaml)")
	rootCmd.AddCommand(newRenderCmd(), newConfigCmd())
}
