package controller

import (
	"context"
	"fmt"

	"github.com/calvinmclean/slugcam"
	"github.com/calvinmclean/slugcam/config"
	"go.uber.org/zap"
)

// Controller controls the pan mechanism. It sweeps the camera a fixed number of steps at a
// time and reverses direction after a number of sweeps so that it pans back and forth over the
// same area without winding up the camera cable
type Controller struct {
	stepper  Stepper
	sweepCfg SweepConfig

	direction slugcam.Direction
	// sweeps counts every completed sweep. The direction changes whenever it reaches a multiple
	// of SweepsPerDirection
	sweeps int

	logger *zap.Logger
}

// New creates a Controller that starts sweeping right
func New(stepper Stepper, sweepCfg SweepConfig, logger *zap.Logger) *Controller {
	return &Controller{
		stepper:   stepper,
		sweepCfg:  sweepCfg,
		direction: slugcam.DirectionRight,
		logger:    logger,
	}
}

// NewFromConfig opens the Stepper selected by cfg.Driver
func NewFromConfig(cfg config.StepperConfig, logger *zap.Logger) (*Controller, error) {
	stepper, err := NewStepper(cfg, logger)
	if err != nil {
		return nil, err
	}

	return New(stepper, SweepConfig{
		StepsPerSweep:      cfg.StepsPerSweep,
		SweepsPerDirection: cfg.SweepsPerDirection,
	}, logger), nil
}

// NewStepper creates the Stepper for the configured driver
func NewStepper(cfg config.StepperConfig, logger *zap.Logger) (Stepper, error) {
	switch cfg.Driver {
	case "gpio":
		mode, ok := ParseStepMode(cfg.StepMode)
		if !ok {
			return nil, fmt.Errorf("invalid step mode: %q", cfg.StepMode)
		}
		s, err := OpenGPIOStepper(cfg.Pins, mode, cfg.StepDelay, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating stepper: %w", err)
		}
		return s, nil
	case "serial":
		s, err := OpenSerialStepper(cfg.SerialPort, cfg.BaudRate, cfg.ReadTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating stepper: %w", err)
		}
		return s, nil
	case "none":
		return NoopStepper(), nil
	default:
		return nil, fmt.Errorf("unknown stepper driver: %q", cfg.Driver)
	}
}

// Sweep moves one sweep in the current direction and reverses the direction after every
// SweepsPerDirection sweeps
func (c *Controller) Sweep(ctx context.Context) error {
	err := c.Turn(ctx, c.direction)
	if err != nil {
		return err
	}

	c.sweeps++
	if c.sweepCfg.SweepsPerDirection > 0 && c.sweeps%c.sweepCfg.SweepsPerDirection == 0 {
		c.direction = c.direction.Reverse()
		c.logger.Debug("reversing direction", zap.Stringer("direction", c.direction), zap.Int("sweeps", c.sweeps))
	}
	return nil
}

// Turn moves one sweep in the given direction without counting it
func (c *Controller) Turn(ctx context.Context, d slugcam.Direction) error {
	steps := d.Sign() * c.sweepCfg.StepsPerSweep

	c.logger.Debug("turning", zap.Stringer("direction", d), zap.Int32("steps", steps))

	err := c.stepper.Move(ctx, steps)
	if err != nil {
		return fmt.Errorf("error turning %s: %w", d, err)
	}
	return nil
}

// Move moves the stepper directly. This is useful for lining up the camera by hand
func (c *Controller) Move(ctx context.Context, steps int32) error {
	return c.stepper.Move(ctx, steps)
}

// Direction is the direction of the next Sweep
func (c *Controller) Direction() slugcam.Direction {
	return c.direction
}

// Sweeps is the number of completed sweeps
func (c *Controller) Sweeps() int {
	return c.sweeps
}

// Release turns off the motor
func (c *Controller) Release() error {
	err := c.stepper.Release()
	if err != nil {
		return fmt.Errorf("error releasing stepper: %w", err)
	}
	return nil
}
