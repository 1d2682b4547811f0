package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/calvinmclean/slugcam/config"
	"go.uber.org/zap"
)

// Camera captures a single still image
type Camera interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// runFunc executes a command and returns its stdout
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("%w (stderr: %s)", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// CommandCamera runs a capture tool for every image and decodes the JPEG from its stdout
type CommandCamera struct {
	command  string
	device   string
	width    int
	height   int
	rotation int
	timeout  time.Duration

	run    runFunc
	logger *zap.Logger
}

// New creates the Camera selected by cfg.Command and waits for the sensor to settle
func New(ctx context.Context, cfg config.CameraConfig, logger *zap.Logger) (Camera, error) {
	if cfg.Command == "file" {
		return NewFileCamera(cfg.File, cfg.Rotation, cfg.Width, cfg.Height), nil
	}

	c := NewCommandCamera(cfg, logger)
	err := c.Open(ctx, cfg.Warmup)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewCommandCamera creates a CommandCamera. Open should be called before the first real capture
func NewCommandCamera(cfg config.CameraConfig, logger *zap.Logger) *CommandCamera {
	return &CommandCamera{
		command:  cfg.Command,
		device:   cfg.Device,
		width:    cfg.Width,
		height:   cfg.Height,
		rotation: cfg.Rotation,
		timeout:  cfg.Timeout,
		run:      execRun,
		logger:   logger,
	}
}

// Open takes a throwaway picture and then waits for warmup so exposure and white balance settle
func (c *CommandCamera) Open(ctx context.Context, warmup time.Duration) error {
	_, err := c.captureJPEG(ctx)
	if err != nil {
		return fmt.Errorf("error opening camera: %w", err)
	}

	c.logger.Debug("camera warming up", zap.String("command", c.command), zap.Duration("warmup", warmup))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(warmup):
	}
	return nil
}

// Capture takes one picture and returns it rotated and scaled to the configured size
func (c *CommandCamera) Capture(ctx context.Context) (image.Image, error) {
	data, err := c.captureJPEG(ctx)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	return Process(img, c.rotation, c.width, c.height), nil
}

// Close implements Camera. Every capture is its own process so there is nothing to release
func (c *CommandCamera) Close() error {
	return nil
}

func (c *CommandCamera) captureJPEG(ctx context.Context) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args, err := c.args()
	if err != nil {
		return nil, err
	}

	data, err := c.run(ctx, c.command, args...)
	if err != nil {
		return nil, fmt.Errorf("error capturing image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("error capturing image: no data")
	}
	return data, nil
}

// args builds the command line. The sensor is asked for the pre-rotation shape so that Process
// only has to scale by a small amount
func (c *CommandCamera) args() ([]string, error) {
	w, h := c.width, c.height
	if quarterTurn(c.rotation) {
		w, h = h, w
	}

	switch c.command {
	case "rpicam-still", "libcamera-still":
		return []string{
			"--nopreview",
			"--immediate",
			"--width", strconv.Itoa(w),
			"--height", strconv.Itoa(h),
			"--encoding", "jpg",
			"--output", "-",
		}, nil
	case "ffmpeg":
		return []string{
			"-loglevel", "error",
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", w, h),
			"-i", c.device,
			"-vframes", "1",
			"-f", "image2",
			"-c:v", "mjpeg",
			"-",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported capture command: %q", c.command)
	}
}

// FileCamera returns the same image file on every capture. It is used for testing a
// deployment without camera hardware
type FileCamera struct {
	path     string
	rotation int
	width    int
	height   int
}

func NewFileCamera(path string, rotation, width, height int) *FileCamera {
	return &FileCamera{path: path, rotation: rotation, width: width, height: height}
}

// Capture reads and decodes the file
func (c *FileCamera) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	return Process(img, c.rotation, c.width, c.height), nil
}

func (c *FileCamera) Close() error {
	return nil
}
