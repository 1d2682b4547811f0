//go:build tinygo

package device

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/easystepper"
)

// Device drives the pan stepper and keeps track of how far it has moved since power-on
type Device struct {
	stepper *easystepper.Device

	// position is the net number of steps moved. Right is positive
	position int32

	verbose bool
}

// New configures the stepper pins and turns the coils off
func New(cfg StepperConfig) (Device, error) {
	mode := easystepper.ModeFour
	if cfg.HalfStep {
		mode = easystepper.ModeEight
	}

	stepper, err := easystepper.New(easystepper.DeviceConfig{
		Pin1: cfg.Pins[0], Pin2: cfg.Pins[1], Pin3: cfg.Pins[2], Pin4: cfg.Pins[3],
		StepCount: cfg.StepCount,
		RPM:       cfg.RPM,
		Mode:      mode,
	})
	if err != nil {
		return Device{}, errors.New("error creating stepper: " + err.Error())
	}
	stepper.Configure()
	stepper.Off()

	return Device{stepper: stepper}, nil
}

// Move moves the stepper by the specified number of steps. Negative is left
func (d *Device) Move(steps int32) {
	if d.verbose {
		println("Move", steps)
	}
	d.stepper.Move(steps)
	d.position += steps
}

// Off pulls all coil pins low so the motor doesn't draw current while the camera is idle
func (d *Device) Off() {
	if d.verbose {
		println("Off")
	}
	d.stepper.Off()
}

// Debug prints out the position
func (d *Device) Debug() {
	println("position:", d.position)
}

// Verbose sets the Device to Verbose mode and increases logging
func (d *Device) Verbose() {
	d.verbose = true
	println("Set Verbose Mode")
}

func (d *Device) ReadByte() (byte, error) {
	return machine.Serial.ReadByte()
}
