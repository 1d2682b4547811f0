package controller

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePort replies to every command line with the next scripted response
type fakePort struct {
	mtx       sync.Mutex
	written   bytes.Buffer
	responses []string
	pending   bytes.Buffer
	closed    bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.written.Write(b)
	for range bytes.Count(b, []byte("\n")) {
		if len(p.responses) == 0 {
			break
		}
		p.pending.WriteString(p.responses[0])
		p.responses = p.responses[1:]
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.pending.Len() == 0 {
		// behave like a serial port hitting its read timeout
		return 0, nil
	}
	return p.pending.Read(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) commands() []string {
	return strings.Fields(p.written.String())
}

func TestSerialStepperMove(t *testing.T) {
	port := &fakePort{responses: []string{"ok\r\n", "moving\r\nok\r\n"}}
	s := NewSerialStepper(port, time.Second, zap.NewNop())

	require.NoError(t, s.Move(context.Background(), 341))
	require.NoError(t, s.Move(context.Background(), -341))

	assert.Equal(t, []string{"R0341", "L0341"}, port.commands())
}

func TestSerialStepperMoveChunks(t *testing.T) {
	port := &fakePort{responses: []string{"ok\n", "ok\n", "ok\n"}}
	s := NewSerialStepper(port, time.Second, zap.NewNop())

	require.NoError(t, s.Move(context.Background(), -20001))
	assert.Equal(t, []string{"L9999", "L9999", "L0003"}, port.commands())

	require.NoError(t, s.Move(context.Background(), 0))
	assert.Len(t, port.commands(), 3)
}

func TestSerialStepperFirmwareError(t *testing.T) {
	port := &fakePort{responses: []string{"error: invalid input\r\n"}}
	s := NewSerialStepper(port, time.Second, zap.NewNop())

	err := s.Move(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, `firmware rejected "R0010": invalid input`, err.Error())
}

func TestSerialStepperTimeout(t *testing.T) {
	port := &fakePort{}
	s := NewSerialStepper(port, 50*time.Millisecond, zap.NewNop())

	err := s.Move(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSerialStepperCanceled(t *testing.T) {
	port := &fakePort{}
	s := NewSerialStepper(port, time.Minute, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Move(ctx, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerialStepperRelease(t *testing.T) {
	port := &fakePort{responses: []string{"ok\n"}}
	s := NewSerialStepper(port, time.Second, zap.NewNop())

	require.NoError(t, s.Release())
	assert.Equal(t, []string{"X"}, port.commands())
	assert.True(t, port.closed)
}

func TestSerialStepperWriteError(t *testing.T) {
	s := NewSerialStepper(struct {
		io.Reader
		io.Writer
		io.Closer
	}{
		strings.NewReader(""),
		errWriter{},
		io.NopCloser(nil),
	}, time.Second, zap.NewNop())

	err := s.Move(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error writing command")
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}
