package controller

import "time"

const defaultStepDelay = 2000 * time.Microsecond

// StepMode selects the coil sequence
type StepMode int

const (
	StepModeFull StepMode = iota
	StepModeHalf
)

// ParseStepMode reads "full" or "half"
func ParseStepMode(s string) (StepMode, bool) {
	switch s {
	case "full":
		return StepModeFull, true
	case "half", "":
		return StepModeHalf, true
	default:
		return StepModeFull, false
	}
}

func (m StepMode) String() string {
	if m == StepModeHalf {
		return "half"
	}
	return "full"
}

// SweepConfig has the values that describe one pass of the pan mechanism
type SweepConfig struct {
	// StepsPerSweep is how many (half) steps one sweep moves. 4096 half steps are a full
	// revolution of a 28BYJ-48, so 341 is about 30°
	StepsPerSweep int32
	// SweepsPerDirection is how many sweeps happen before the direction is reversed
	SweepsPerDirection int
}
