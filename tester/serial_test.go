package main_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

// These tests talk to a board running the firmware package. They are skipped unless
// SLUGCAM_SERIAL_PORT is set, for example SLUGCAM_SERIAL_PORT=/dev/ttyACM0
func serialPort(t *testing.T) string {
	t.Helper()
	port := os.Getenv("SLUGCAM_SERIAL_PORT")
	if port == "" {
		t.Skip("SLUGCAM_SERIAL_PORT is not set")
	}
	return port
}

func sendSerial(t *testing.T, in string, expectedLen int, wait time.Duration) string {
	t.Helper()
	mode := &serial.Mode{
		BaudRate: 115200,
	}

	port, err := serial.Open(serialPort(t), mode)
	if err != nil {
		t.Errorf("unexpected error opening serial connection: %v", err)
		return ""
	}
	defer port.Close()

	_, err = port.Write([]byte(in))
	if err != nil {
		t.Errorf("unexpected error writing serial: %v", err)
		return ""
	}

	buf := make([]byte, expectedLen)
	total := 0
	port.SetReadTimeout(100 * time.Millisecond)
	deadline := time.Now().Add(wait)
	for total < expectedLen && time.Now().Before(deadline) {
		n, err := port.Read(buf[total:])
		if err != nil {
			t.Errorf("unexpected error reading serial: %v", err)
			return ""
		}
		total += n
	}
	return string(buf[:total])
}

func TestSerial(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
		wait     time.Duration
	}{
		{
			"Off",
			"X",
			"ok\n",
			time.Second,
		},
		{
			// 100 steps at 3 RPM takes about half a second
			"RightAndBack",
			"R0100L0100",
			"ok\nok\n",
			3 * time.Second,
		},
		{
			"InvalidSteps",
			"R01x0X",
			"error: invalid input: 01x0\nok\n",
			time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := strings.ReplaceAll(tt.expected, "\n", "\r\n")
			out := sendSerial(t, tt.in, len(expected), tt.wait)
			clean := strings.Trim(out, "\x00")
			if clean != expected {
				t.Errorf("expected=%q, got=%q", expected, clean)
			}
		})
	}
}
