package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/calvinmclean/slugcam"
	"github.com/calvinmclean/slugcam/camera"
	"github.com/calvinmclean/slugcam/config"
	"github.com/calvinmclean/slugcam/controller"
	"github.com/calvinmclean/slugcam/detector"
	"github.com/calvinmclean/slugcam/inference"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	sweepLeft  bool
	sweepCount int
	sweepSteps int32
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := validateConfig(cfg.Validate())
		if err != nil {
			return err
		}

		d, err := detector.NewFromConfig(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		return d.Run(cmd.Context())
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture, classify and report a single image without moving the camera",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		err = validateConfig(cfg.Validate())
		if err != nil {
			return err
		}

		d, err := detector.NewFromConfig(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, d.Close())
		}()

		c, err := d.Step(cmd.Context())
		if err != nil {
			return err
		}
		printCapture(c)
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Classify an image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := validateConfig(cfg.ValidateFor(config.SectionInference))
		if err != nil {
			return err
		}

		client, err := inference.NewClient(cfg.Inference, logger.Named("inference"))
		if err != nil {
			return err
		}

		img, err := camera.NewFileCamera(args[0], 0, cfg.Camera.Width, cfg.Camera.Height).Capture(cmd.Context())
		if err != nil {
			return err
		}

		p, err := client.Predict(cmd.Context(), img)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (score=%.4f logit=%.4f)\n", args[0], p.Label, p.Score, p.Logit)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Move the pan stepper",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		err = validateConfig(cfg.ValidateFor(config.SectionStepper))
		if err != nil {
			return err
		}

		c, err := controller.NewFromConfig(cfg.Stepper, logger.Named("controller"))
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, c.Release())
		}()

		if sweepSteps != 0 {
			return c.Move(cmd.Context(), sweepSteps)
		}

		direction := slugcam.DirectionRight
		if sweepLeft {
			direction = slugcam.DirectionLeft
		}

		for i := range sweepCount {
			logger.Info("sweeping", zap.Stringer("direction", direction), zap.Int("sweep", i+1))
			err = c.Turn(cmd.Context(), direction)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List USB serial ports for the stepper firmware",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := controller.GetSerialPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cfg
		if out.Upload.Password != "" {
			out.Upload.Password = "********"
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		err := enc.Encode(out)
		if err != nil {
			return fmt.Errorf("error encoding config: %w", err)
		}
		return enc.Close()
	},
}

func validateConfig(err error) error {
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func printCapture(c slugcam.Capture) {
	fmt.Printf("%s: %s (score=%.4f uploaded=%t)\n", c.Path, c.Label, c.Score, c.Uploaded)
}
