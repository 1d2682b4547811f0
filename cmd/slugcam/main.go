package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/calvinmclean/slugcam/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "slugcam",
	Short: "Pan a camera over the garden and report slugs to Home Assistant",
	Long: `slugcam captures an image, classifies it with a TensorFlow Serving model and stores it.
When a slug is found, the image is uploaded to Home Assistant over FTP and a webhook is
triggered. Between captures a stepper motor sweeps the camera back and forth.

Settings are read from the file given by --config and can be overridden with SLUGCAM_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}

		// each command validates the sections it needs
		cfg, err = config.Read(configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	sweepCmd.Flags().BoolVar(&sweepLeft, "left", false, "Sweep left instead of right")
	sweepCmd.Flags().IntVar(&sweepCount, "count", 1, "Number of sweeps")
	sweepCmd.Flags().Int32Var(&sweepSteps, "steps", 0, "Move this many steps instead of full sweeps. Negative is left")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
