package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// SerialPortNone is shown next to the detected ports for running without the serial stepper
	SerialPortNone = "None"

	// maxSerialSteps is the largest move that fits in one command
	maxSerialSteps = 9999

	serialPollInterval   = 100 * time.Millisecond
	defaultSerialTimeout = 30 * time.Second
)

// ErrNoUSBSerial is returned when no USB serial devices are connected
var ErrNoUSBSerial = errors.New("no USB serial ports found")

// GetSerialPorts lists connected USB serial devices that could be the stepper firmware
func GetSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}

	var result []string
	for _, p := range ports {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "usb") || strings.Contains(lower, "acm") {
			result = append(result, p)
		}
	}

	if len(result) == 0 {
		return nil, ErrNoUSBSerial
	}
	return result, nil
}

// SerialStepper hands the step sequence to a microcontroller running the firmware package.
// Commands are a flag byte followed by a fixed-size input:
//
//	R0341  turn right 341 steps
//	L0341  turn left 341 steps
//	X      pull all pins low
//
// The firmware answers every command with a line of "ok" or "error: <reason>"
type SerialStepper struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	logger  *zap.Logger
}

// OpenSerialStepper opens the serial port of the firmware
func OpenSerialStepper(portName string, baudRate int, timeout time.Duration, logger *zap.Logger) (*SerialStepper, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("error opening serial port: %w", err)
	}

	err = port.SetReadTimeout(serialPollInterval)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("error setting read timeout: %w", err)
	}

	logger.Debug("opened serial stepper", zap.String("port", portName), zap.Int("baud_rate", baudRate))

	return NewSerialStepper(port, timeout, logger), nil
}

// NewSerialStepper uses an already open port. Reads on port must return periodically even when
// there is no data so that timeouts can be detected
func NewSerialStepper(port io.ReadWriteCloser, timeout time.Duration, logger *zap.Logger) *SerialStepper {
	if timeout <= 0 {
		timeout = defaultSerialTimeout
	}
	return &SerialStepper{port: port, timeout: timeout, logger: logger}
}

// Move sends the move in chunks that fit the command and waits for each to finish
func (s *SerialStepper) Move(ctx context.Context, steps int32) error {
	flag := byte('R')
	if steps < 0 {
		flag = 'L'
		steps = -steps
	}

	for steps > 0 {
		n := min(steps, maxSerialSteps)
		err := s.command(ctx, fmt.Sprintf("%c%04d", flag, n))
		if err != nil {
			return err
		}
		steps -= n
	}
	return nil
}

// Release turns the coils off and closes the port
func (s *SerialStepper) Release() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.command(ctx, "X")
	return errors.Join(err, s.port.Close())
}

func (s *SerialStepper) command(ctx context.Context, cmd string) error {
	_, err := io.WriteString(s.port, cmd+"\n")
	if err != nil {
		return fmt.Errorf("error writing command %q: %w", cmd, err)
	}

	deadline := time.Now().Add(s.timeout)
	for {
		line, err := s.readLine(ctx, deadline)
		if err != nil {
			return fmt.Errorf("error waiting for response to %q: %w", cmd, err)
		}

		switch {
		case line == "ok":
			return nil
		case strings.HasPrefix(line, "error:"):
			return fmt.Errorf("firmware rejected %q: %s", cmd, strings.TrimSpace(strings.TrimPrefix(line, "error:")))
		case line != "":
			s.logger.Debug("firmware output", zap.String("line", line))
		}
	}
}

// readLine reads a byte at a time so nothing after the newline is consumed
func (s *SerialStepper) readLine(ctx context.Context, deadline time.Time) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", errors.New("timed out")
		}

		n, err := s.port.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if n == 0 {
			continue
		}

		switch buf[0] {
		case '\n':
			return strings.TrimSpace(sb.String()), nil
		case 0:
		default:
			sb.WriteByte(buf[0])
		}
	}
}
