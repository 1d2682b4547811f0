package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/calvinmclean/slugcam"
	"github.com/calvinmclean/slugcam/camera"
	"github.com/calvinmclean/slugcam/config"
	"github.com/calvinmclean/slugcam/controller"
	"github.com/calvinmclean/slugcam/inference"
	"github.com/calvinmclean/slugcam/notify"
	"github.com/calvinmclean/slugcam/storage"
	"github.com/calvinmclean/slugcam/upload"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classifier scores an image
type Classifier interface {
	Predict(ctx context.Context, img image.Image) (inference.Prediction, error)
}

// Pan moves the camera between captures
type Pan interface {
	Sweep(ctx context.Context) error
	Release() error
}

// Detector runs the capture loop. Upload and notification are optional and are skipped when
// their component is nil
type Detector struct {
	camera     camera.Camera
	classifier Classifier
	store      *storage.Store
	uploader   upload.Uploader
	notifier   notify.Notifier
	pan        Pan

	interval time.Duration

	now   func() time.Time
	newID func() string

	logger *zap.Logger
}

func New(cam camera.Camera, classifier Classifier, store *storage.Store, pan Pan, interval time.Duration, logger *zap.Logger) *Detector {
	return &Detector{
		camera:     cam,
		classifier: classifier,
		store:      store,
		pan:        pan,
		interval:   interval,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger,
	}
}

// WithUploader enables uploading positive captures
func (d *Detector) WithUploader(u upload.Uploader) *Detector {
	d.uploader = u
	return d
}

// WithNotifier enables the webhook for positive captures
func (d *Detector) WithNotifier(n notify.Notifier) *Detector {
	d.notifier = n
	return d
}

// NewFromConfig opens the camera and stepper and creates the clients for every enabled
// component. The returned Detector owns the camera and stepper
func NewFromConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Detector, error) {
	classifier, err := inference.NewClient(cfg.Inference, logger.Named("inference"))
	if err != nil {
		return nil, fmt.Errorf("error creating inference client: %w", err)
	}

	pan, err := controller.NewFromConfig(cfg.Stepper, logger.Named("controller"))
	if err != nil {
		return nil, fmt.Errorf("error creating controller: %w", err)
	}

	cam, err := camera.New(ctx, cfg.Camera, logger.Named("camera"))
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("error opening camera: %w", err),
			pan.Release(),
		)
	}

	d := New(
		cam,
		classifier,
		storage.New(cfg.Storage.Dir, cfg.Storage.JPEGQuality),
		pan,
		cfg.Loop.Interval,
		logger,
	)

	if cfg.UploadEnabled() {
		d.WithUploader(upload.NewFTPUploader(cfg.Upload, logger.Named("upload")))
	} else {
		logger.Info("upload is disabled")
	}

	if cfg.NotifyEnabled() {
		d.WithNotifier(notify.NewWebhook(cfg.Notify, logger.Named("notify")))
	} else {
		logger.Info("notification is disabled")
	}

	return d, nil
}

// Step captures and classifies one image, saves it, and reports it to the hub when the target
// was detected
func (d *Detector) Step(ctx context.Context) (slugcam.Capture, error) {
	now := d.now()

	img, err := d.camera.Capture(ctx)
	if err != nil {
		return slugcam.Capture{}, fmt.Errorf("error capturing image: %w", err)
	}

	prediction, err := d.classifier.Predict(ctx, img)
	if err != nil {
		return slugcam.Capture{}, fmt.Errorf("error classifying image: %w", err)
	}

	filename, path, err := d.store.Save(prediction.Label, img, now)
	if err != nil {
		return slugcam.Capture{}, fmt.Errorf("error saving image: %w", err)
	}

	c := slugcam.Capture{
		ID:       d.newID(),
		Time:     now,
		Filename: filename,
		Path:     path,
		Score:    prediction.Score,
		Label:    prediction.Label,
	}

	logger := d.logger.With(
		zap.String("id", c.ID),
		zap.String("filename", c.Filename),
	)
	logger.Info("classified image",
		zap.Float64("score", c.Score),
		zap.Stringer("label", c.Label),
	)

	if !c.Label.Positive() {
		return c, nil
	}

	if d.uploader != nil {
		err = d.upload(ctx, c)
		if err != nil {
			return c, err
		}
		c.Uploaded = true
		logger.Info("uploaded image")
	}

	if d.notifier != nil {
		err = d.notifier.Notify(ctx, c.Filename, c.ID)
		var statusErr *notify.StatusError
		switch {
		case errors.As(err, &statusErr):
			// the hub got the request, so a bad status doesn't stop monitoring
			logger.Warn("webhook returned an error status",
				zap.Int("status_code", statusErr.StatusCode),
				zap.String("response", statusErr.Body),
			)
		case err != nil:
			return c, fmt.Errorf("error sending notification: %w", err)
		default:
			logger.Info("sent notification")
		}
	}

	return c, nil
}

func (d *Detector) upload(ctx context.Context, c slugcam.Capture) error {
	f, err := d.store.Open(c.Path)
	if err != nil {
		return fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	err = d.uploader.Upload(ctx, c.Filename, f)
	if err != nil {
		return fmt.Errorf("error uploading image: %w", err)
	}
	return nil
}

// Run repeats Step, waits for the interval and sweeps the camera until ctx is done or a step
// fails. The stepper is always released and the camera closed before returning. A canceled
// context is a normal shutdown and returns nil
func (d *Detector) Run(ctx context.Context) (err error) {
	defer func() {
		err = errors.Join(err, d.Close())
	}()

	d.logger.Info("starting detector", zap.Duration("interval", d.interval))

	for {
		_, err = d.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return d.stopped(ctx)
			}
			return err
		}

		if !d.sleep(ctx) {
			return d.stopped(ctx)
		}

		err = d.pan.Sweep(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return d.stopped(ctx)
			}
			return fmt.Errorf("error sweeping: %w", err)
		}
	}
}

// Close releases the stepper and closes the camera
func (d *Detector) Close() error {
	return errors.Join(d.pan.Release(), d.camera.Close())
}

func (d *Detector) stopped(ctx context.Context) error {
	d.logger.Info("stopping detector", zap.Error(context.Cause(ctx)))
	return nil
}

// sleep waits for the interval and returns false if ctx ended first
func (d *Detector) sleep(ctx context.Context) bool {
	if d.interval <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d.interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
