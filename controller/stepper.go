package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Stepper moves the pan motor. Positive steps turn right and negative steps turn left
type Stepper interface {
	Move(ctx context.Context, steps int32) error
	// Release de-energizes the coils and frees the hardware
	Release() error
}

// Pin is the part of gpio.PinIO needed to drive one coil
type Pin interface {
	Out(l gpio.Level) error
	Halt() error
	String() string
}

var (
	// 8-step half-step sequence for coils A1, A2, B1, B2
	halfStepSequence = [8][4]gpio.Level{
		{gpio.High, gpio.Low, gpio.Low, gpio.High},
		{gpio.High, gpio.Low, gpio.Low, gpio.Low},
		{gpio.High, gpio.High, gpio.Low, gpio.Low},
		{gpio.Low, gpio.High, gpio.Low, gpio.Low},
		{gpio.Low, gpio.High, gpio.High, gpio.Low},
		{gpio.Low, gpio.Low, gpio.High, gpio.Low},
		{gpio.Low, gpio.Low, gpio.High, gpio.High},
		{gpio.Low, gpio.Low, gpio.Low, gpio.High},
	}

	// 4-step sequence
	fullStepSequence = [4][4]gpio.Level{
		{gpio.High, gpio.Low, gpio.Low, gpio.Low},
		{gpio.Low, gpio.High, gpio.Low, gpio.Low},
		{gpio.Low, gpio.Low, gpio.High, gpio.Low},
		{gpio.Low, gpio.Low, gpio.Low, gpio.High},
	}
)

// GPIOStepper drives a unipolar stepper through a ULN2003 board connected to four GPIO pins
type GPIOStepper struct {
	pins        [4]Pin
	stepMode    StepMode
	currentStep int
	stepDelay   time.Duration

	sleep  func(time.Duration)
	logger *zap.Logger
}

// OpenGPIOStepper initializes the host drivers and looks up the pins by name (GPIO17, or the
// header position like P1_11)
func OpenGPIOStepper(pinNames []string, stepMode StepMode, stepDelay time.Duration, logger *zap.Logger) (*GPIOStepper, error) {
	if len(pinNames) != 4 {
		return nil, fmt.Errorf("expected 4 pins, got %d", len(pinNames))
	}

	_, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("error initializing GPIO host: %w", err)
	}

	var pins [4]Pin
	for i, name := range pinNames {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown GPIO pin: %q", name)
		}
		pins[i] = p
	}

	return NewGPIOStepper(pins, stepMode, stepDelay, logger)
}

// NewGPIOStepper sets up the pins as outputs and pulls them low
func NewGPIOStepper(pins [4]Pin, stepMode StepMode, stepDelay time.Duration, logger *zap.Logger) (*GPIOStepper, error) {
	if stepMode != StepModeFull && stepMode != StepModeHalf {
		return nil, errors.New("invalid StepMode")
	}

	if stepDelay == 0 {
		stepDelay = defaultStepDelay
	}

	s := &GPIOStepper{
		pins:        pins,
		stepMode:    stepMode,
		stepDelay:   stepDelay,
		currentStep: 0,
		sleep:       time.Sleep,
		logger:      logger,
	}

	err := s.allLow()
	if err != nil {
		return nil, fmt.Errorf("error initializing pins: %w", err)
	}

	logger.Debug("configured stepper pins",
		zap.Stringers("pins", pins[:]),
		zap.Stringer("step_mode", stepMode),
		zap.Duration("step_delay", stepDelay),
	)

	return s, nil
}

func (s *GPIOStepper) sequenceLen() int {
	if s.stepMode == StepModeHalf {
		return len(halfStepSequence)
	}
	return len(fullStepSequence)
}

func (s *GPIOStepper) applyStep() error {
	var sequence [4]gpio.Level
	switch s.stepMode {
	default:
		fallthrough
	case StepModeFull:
		sequence = fullStepSequence[s.currentStep]
	case StepModeHalf:
		sequence = halfStepSequence[s.currentStep]
	}

	for i := range 4 {
		err := s.pins[i].Out(sequence[i])
		if err != nil {
			return fmt.Errorf("error setting pin %s: %w", s.pins[i], err)
		}
	}
	return nil
}

// StepForward advances one phase of the sequence
func (s *GPIOStepper) StepForward() error {
	s.currentStep = (s.currentStep + 1) % s.sequenceLen()
	err := s.applyStep()
	s.sleep(s.stepDelay)
	return err
}

// StepBackward goes back one phase of the sequence
func (s *GPIOStepper) StepBackward() error {
	sequenceLen := s.sequenceLen()
	s.currentStep = (s.currentStep - 1 + sequenceLen) % sequenceLen
	err := s.applyStep()
	s.sleep(s.stepDelay)
	return err
}

// Move steps the motor. The sequence position is kept between moves so the rotor never skips
func (s *GPIOStepper) Move(ctx context.Context, steps int32) error {
	f := s.StepForward
	if steps < 0 {
		f = s.StepBackward
		steps = -steps
	}

	for range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// Release pulls all pins low so the coils don't heat up while idle and then releases them
func (s *GPIOStepper) Release() error {
	err := s.allLow()
	for _, p := range s.pins {
		err = errors.Join(err, p.Halt())
	}
	return err
}

func (s *GPIOStepper) allLow() error {
	var err error
	for _, p := range s.pins {
		err = errors.Join(err, p.Out(gpio.Low))
	}
	return err
}

type noopStepper struct{}

var _ Stepper = noopStepper{}

// NoopStepper is used when the camera is mounted without the pan mechanism
func NoopStepper() Stepper {
	return noopStepper{}
}

// Move implements Stepper.
func (noopStepper) Move(context.Context, int32) error {
	return nil
}

// Release implements Stepper.
func (noopStepper) Release() error {
	return nil
}
