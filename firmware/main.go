//go:build tinygo

package main

import (
	"machine"

	"github.com/calvinmclean/slugcam/firmware/commands"
	"github.com/calvinmclean/slugcam/firmware/device"
)

func main() {
	stepperCfg := device.StepperConfig{
		Pins: [4]machine.Pin{machine.GP16, machine.GP17, machine.GP18, machine.GP19},
		// 28BYJ-48 with the 1:64 gearbox in half-step mode
		StepCount: 4096,
		// about 5ms per step, which the 28BYJ-48 handles reliably at 5V
		RPM:      3,
		HalfStep: true,
	}

	d, err := device.New(stepperCfg)
	if err != nil {
		panic(err)
	}

	commands.Run(&d)
}
