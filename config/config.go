package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "SLUGCAM_"

// Config has all settings for the detection loop
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Inference InferenceConfig `yaml:"inference"`
	Storage   StorageConfig   `yaml:"storage"`
	Upload    UploadConfig    `yaml:"upload"`
	Notify    NotifyConfig    `yaml:"notify"`
	Stepper   StepperConfig   `yaml:"stepper"`
	Loop      LoopConfig      `yaml:"loop"`
}

// CameraConfig selects the capture backend and the shape of the image that the model expects
type CameraConfig struct {
	// Command is one of rpicam-still, libcamera-still, ffmpeg or file
	Command string `yaml:"command"`
	Device  string `yaml:"device"`
	// File is read on every capture when Command is "file"
	File string `yaml:"file"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Rotation is clockwise degrees, a multiple of 90
	Rotation int `yaml:"rotation"`

	Warmup  time.Duration `yaml:"warmup"`
	Timeout time.Duration `yaml:"timeout"`
}

// InferenceConfig points at the TensorFlow Serving instance
type InferenceConfig struct {
	URL       string        `yaml:"url"`
	Model     string        `yaml:"model"`
	Threshold float64       `yaml:"threshold"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StorageConfig is where images are kept locally for debugging and re-training
type StorageConfig struct {
	Dir         string `yaml:"dir"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// UploadConfig is the FTP add-on of the Home Assistant instance. Uploading is disabled when Host is empty
type UploadConfig struct {
	Host     string        `yaml:"host"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Dirs     []string      `yaml:"dirs"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotifyConfig is the webhook that triggers the Home Assistant automation. It is disabled when WebhookURL is empty
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StepperConfig has values for the pan motor and how far it moves
type StepperConfig struct {
	// Driver is one of gpio, serial or none
	Driver string `yaml:"driver"`

	Pins []string `yaml:"pins"`
	// StepMode is half or full
	StepMode  string        `yaml:"step_mode"`
	StepDelay time.Duration `yaml:"step_delay"`

	SerialPort  string        `yaml:"serial_port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`

	StepsPerSweep      int32 `yaml:"steps_per_sweep"`
	SweepsPerDirection int   `yaml:"sweeps_per_direction"`
}

// LoopConfig controls pacing of the main loop
type LoopConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the settings for the reference hardware: 28BYJ-48 stepper on
// BCM pins 2, 3, 4 and 17 turning 30° per sweep, with a 192x192 camera mounted upside-down
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Command:  "rpicam-still",
			Device:   "/dev/video0",
			Width:    192,
			Height:   192,
			Rotation: 270,
			Warmup:   2 * time.Second,
			Timeout:  10 * time.Second,
		},
		Inference: InferenceConfig{
			Model:     "slug_detector",
			Threshold: 0.5,
			Timeout:   20 * time.Second,
		},
		Storage: StorageConfig{
			Dir:         "/home/pi/Pictures/slug_detector",
			JPEGQuality: 75,
		},
		Upload: UploadConfig{
			Dirs:    []string{"config", "www"},
			Timeout: 30 * time.Second,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
		Stepper: StepperConfig{
			Driver:             "gpio",
			Pins:               []string{"GPIO2", "GPIO3", "GPIO4", "GPIO17"},
			StepMode:           "half",
			StepDelay:          5 * time.Millisecond,
			BaudRate:           115200,
			ReadTimeout:        30 * time.Second,
			StepsPerSweep:      4096 / 12,
			SweepsPerDirection: 3,
		},
		Loop: LoopConfig{
			Interval: time.Second,
		},
	}
}

// Section names a part of the Config so that commands can validate only what they use
type Section int

const (
	SectionCamera Section = iota
	SectionInference
	SectionStorage
	SectionStepper
)

var allSections = []Section{SectionCamera, SectionInference, SectionStorage, SectionStepper}

// Read reads the YAML file at path on top of the defaults and then applies environment overrides.
// An empty path only uses defaults and environment. The result is not validated
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}

		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	err := cfg.applyEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load is Read followed by Validate
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv uses defaults and environment variables only
func LoadFromEnv() (Config, error) {
	return Load("")
}

// Validate checks that all required values are set and in range
func (c Config) Validate() error {
	return c.ValidateFor(allSections...)
}

// ValidateFor checks only the given sections. Upload, notify and loop settings have no required values
func (c Config) ValidateFor(sections ...Section) error {
	var errs []error
	for _, s := range sections {
		switch s {
		case SectionCamera:
			errs = append(errs, c.validateCamera()...)
		case SectionInference:
			errs = append(errs, c.validateInference()...)
		case SectionStorage:
			errs = append(errs, c.validateStorage()...)
		case SectionStepper:
			errs = append(errs, c.validateStepper()...)
		}
	}
	return errors.Join(errs...)
}

func (c Config) validateCamera() []error {
	var errs []error

	switch c.Camera.Command {
	case "rpicam-still", "libcamera-still", "ffmpeg":
	case "file":
		if c.Camera.File == "" {
			errs = append(errs, errors.New("camera.file is required for the file camera"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown camera.command %q", c.Camera.Command))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid camera size %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.Rotation%90 != 0 {
		errs = append(errs, fmt.Errorf("camera.rotation must be a multiple of 90: %d", c.Camera.Rotation))
	}
	return errs
}

func (c Config) validateInference() []error {
	var errs []error
	if c.Inference.URL == "" {
		errs = append(errs, errors.New("inference.url is required"))
	}
	if c.Inference.Model == "" {
		errs = append(errs, errors.New("inference.model is required"))
	}
	if c.Inference.Threshold <= 0 || c.Inference.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("inference.threshold must be between 0 and 1: %v", c.Inference.Threshold))
	}
	return errs
}

func (c Config) validateStorage() []error {
	var errs []error
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("storage.jpeg_quality must be 1-100: %d", c.Storage.JPEGQuality))
	}
	return errs
}

func (c Config) validateStepper() []error {
	var errs []error
	switch c.Stepper.Driver {
	case "gpio":
		if len(c.Stepper.Pins) != 4 {
			errs = append(errs, fmt.Errorf("stepper.pins needs exactly 4 pins, got %d", len(c.Stepper.Pins)))
		}
		if c.Stepper.StepMode != "half" && c.Stepper.StepMode != "full" {
			errs = append(errs, fmt.Errorf("unknown stepper.step_mode %q", c.Stepper.StepMode))
		}
	case "serial":
		if c.Stepper.SerialPort == "" {
			errs = append(errs, errors.New("stepper.serial_port is required for the serial driver"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown stepper.driver %q", c.Stepper.Driver))
	}
	if c.Stepper.StepsPerSweep <= 0 || c.Stepper.StepsPerSweep > 9999 {
		errs = append(errs, fmt.Errorf("stepper.steps_per_sweep must be 1-9999: %d", c.Stepper.StepsPerSweep))
	}
	if c.Stepper.SweepsPerDirection <= 0 {
		errs = append(errs, fmt.Errorf("stepper.sweeps_per_direction must be positive: %d", c.Stepper.SweepsPerDirection))
	}
	return errs
}

// UploadEnabled is true when an FTP host is configured
func (c Config) UploadEnabled() bool {
	return c.Upload.Host != ""
}

// NotifyEnabled is true when a webhook is configured
func (c Config) NotifyEnabled() bool {
	return c.Notify.WebhookURL != ""
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides values from SLUGCAM_* environment variables. Every setting can be overridden.
// The upload section uses the FTP_ prefix and notify uses WEBHOOK_, for example SLUGCAM_FTP_DIRS=config,www
// and SLUGCAM_WEBHOOK_TIMEOUT=5s. Lists are comma-separated
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"CAMERA_COMMAND":      &c.Camera.Command,
		"CAMERA_DEVICE":       &c.Camera.Device,
		"CAMERA_FILE":         &c.Camera.File,
		"INFERENCE_URL":       &c.Inference.URL,
		"INFERENCE_MODEL":     &c.Inference.Model,
		"STORAGE_DIR":         &c.Storage.Dir,
		"FTP_HOST":            &c.Upload.Host,
		"FTP_USER":            &c.Upload.User,
		"FTP_PASSWORD":        &c.Upload.Password,
		"WEBHOOK_URL":         &c.Notify.WebhookURL,
		"STEPPER_DRIVER":      &c.Stepper.Driver,
		"STEPPER_STEP_MODE":   &c.Stepper.StepMode,
		"STEPPER_SERIAL_PORT": &c.Stepper.SerialPort,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "STEPPER_PINS"); ok {
		c.Stepper.Pins = splitList(v)
	}
	if v, ok := lookup(envPrefix + "FTP_DIRS"); ok {
		c.Upload.Dirs = splitList(v)
	}

	ints := map[string]*int{
		"CAMERA_WIDTH":                 &c.Camera.Width,
		"CAMERA_HEIGHT":                &c.Camera.Height,
		"CAMERA_ROTATION":              &c.Camera.Rotation,
		"STORAGE_JPEG_QUALITY":         &c.Storage.JPEGQuality,
		"STEPPER_BAUD_RATE":            &c.Stepper.BaudRate,
		"STEPPER_SWEEPS_PER_DIRECTION": &c.Stepper.SweepsPerDirection,
	}
	for key, dst := range ints {
		if v, ok := lookup(envPrefix + key); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = i
		}
	}

	if v, ok := lookup(envPrefix + "STEPPER_STEPS_PER_SWEEP"); ok {
		i, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %sSTEPPER_STEPS_PER_SWEEP: %w", envPrefix, err)
		}
		c.Stepper.StepsPerSweep = int32(i)
	}

	if v, ok := lookup(envPrefix + "INFERENCE_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sINFERENCE_THRESHOLD: %w", envPrefix, err)
		}
		c.Inference.Threshold = f
	}

	durations := map[string]*time.Duration{
		"CAMERA_WARMUP":        &c.Camera.Warmup,
		"CAMERA_TIMEOUT":       &c.Camera.Timeout,
		"INFERENCE_TIMEOUT":    &c.Inference.Timeout,
		"FTP_TIMEOUT":          &c.Upload.Timeout,
		"WEBHOOK_TIMEOUT":      &c.Notify.Timeout,
		"STEPPER_STEP_DELAY":   &c.Stepper.StepDelay,
		"STEPPER_READ_TIMEOUT": &c.Stepper.ReadTimeout,
		"LOOP_INTERVAL":        &c.Loop.Interval,
	}
	for key, dst := range durations {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}

	return nil
}

func splitList(s string) []string {
	var result []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
