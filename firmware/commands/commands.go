//go:build tinygo

package commands

import "errors"

type Command struct {
	Flag        byte
	InputSize   uint
	Run         func(Controller, []byte) error
	Description string
}

// Controller is used to control a device
type Controller interface {
	Move(int32)
	Off()
	Debug()
	Verbose()

	// I/O
	ReadByte() (byte, error)
}

var (
	RightCommand = &Command{
		Flag:      'R',
		InputSize: 4,
		Run: func(c Controller, input []byte) error {
			steps, err := parseSteps(input)
			if err != nil {
				return err
			}
			c.Move(steps)
			return nil
		},
		Description: "Turn right. Input: 4-digit step count, like 0341.",
	}
	LeftCommand = &Command{
		Flag:      'L',
		InputSize: 4,
		Run: func(c Controller, input []byte) error {
			steps, err := parseSteps(input)
			if err != nil {
				return err
			}
			c.Move(-steps)
			return nil
		},
		Description: "Turn left. Input: 4-digit step count, like 0341.",
	}
	OffCommand = &Command{
		Flag:      'X',
		InputSize: 0,
		Run: func(c Controller, _ []byte) error {
			c.Off()
			return nil
		},
		Description: "Turn off the motor coils.",
	}
	DebugCommand = &Command{
		Flag:      'D',
		InputSize: 0,
		Run: func(c Controller, _ []byte) error {
			c.Debug()
			return nil
		},
		Description: "Print the current position.",
	}
	VerboseCommand = &Command{
		Flag:      'V',
		InputSize: 0,
		Run: func(c Controller, _ []byte) error {
			c.Verbose()
			return nil
		},
		Description: "Enable verbose output.",
	}
	HelpCommand = &Command{
		Flag:        'H',
		InputSize:   0,
		Description: "Show all available commands and their descriptions.",
		Run: func(c Controller, _ []byte) error {
			println("Available Commands:")
			for _, cmd := range commands {
				println(string(cmd.Flag) + ": " + cmd.Description)
			}
			return nil
		},
	}
)

// parseSteps reads fixed-width ASCII digits
func parseSteps(input []byte) (int32, error) {
	var steps int32
	for _, b := range input {
		if b < '0' || b > '9' {
			return 0, errors.New("invalid input: " + string(input))
		}
		steps = steps*10 + int32(b-'0')
	}
	return steps, nil
}

var commands = []*Command{
	RightCommand,
	LeftCommand,
	OffCommand,
	DebugCommand,
	VerboseCommand,
}

// Run reads commands from the serial port forever. Every command is answered with "ok" or
// "error: <reason>" so the host knows when a move has finished
func Run(c Controller) {
	cmdMap := map[byte]*Command{
		HelpCommand.Flag: HelpCommand,
	}

	for _, cmd := range commands {
		cmdMap[cmd.Flag] = cmd
	}

	for {
		cmdIn, err := c.ReadByte()
		if err != nil {
			continue
		}

		cmd, ok := cmdMap[cmdIn]
		if !ok {
			continue
		}

		in := make([]byte, cmd.InputSize)
		for i := 0; i < int(cmd.InputSize); {
			b, err := c.ReadByte()
			if err != nil {
				continue
			}

			in[i] = b
			i++
		}

		err = cmd.Run(c, in)
		if err != nil {
			println("error:", err.Error())
			continue
		}
		println("ok")
	}
}
