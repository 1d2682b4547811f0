package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/calvinmclean/slugcam"
)

// Store keeps every captured image on local disk in a directory named after its label. The
// sorted images are useful for debugging and for re-training the model
type Store struct {
	dir     string
	quality int
}

func New(dir string, quality int) *Store {
	return &Store{dir: dir, quality: quality}
}

// Filename is the unix time of the capture with microseconds, for example 1700000000.123456.jpg
func Filename(t time.Time) string {
	return fmt.Sprintf("%d.%06d.jpg", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// Save encodes img as JPEG into the directory for label and returns the file's name and full path
func (s *Store) Save(label slugcam.Label, img image.Image, now time.Time) (string, string, error) {
	dir := filepath.Join(s.dir, label.String())
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", "", fmt.Errorf("error creating image directory: %w", err)
	}

	filename := Filename(now)
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("error creating image file: %w", err)
	}

	err = jpeg.Encode(f, img, &jpeg.Options{Quality: s.quality})
	if err != nil {
		_ = f.Close()
		return "", "", fmt.Errorf("error encoding image: %w", err)
	}

	err = f.Close()
	if err != nil {
		return "", "", fmt.Errorf("error writing image file: %w", err)
	}

	return filename, path, nil
}

// Open opens a saved image for reading
func (s *Store) Open(path string) (*os.File, error) {
	return os.Open(path)
}
