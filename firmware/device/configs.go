//go:build tinygo

package device

import "machine"

// StepperConfig has the pins of the ULN2003 board and the motor's gearing
type StepperConfig struct {
	Pins [4]machine.Pin
	// StepCount is the number of steps in one revolution of the output shaft
	StepCount uint
	RPM       uint
	// HalfStep uses the 8-step coil sequence which doubles StepCount and runs smoother
	HalfStep bool
}
