package upload

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/calvinmclean/slugcam/config"
	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

const defaultPort = "21"

// Uploader sends a saved image to the home-automation hub
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) error
}

// conn is the part of *ftp.ServerConn used for uploading
type conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (conn, error)

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (conn, error) {
	c, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FTPUploader stores images through the FTP add-on of Home Assistant. By default they land in
// config/www, which Home Assistant serves at /local/
type FTPUploader struct {
	addr     string
	user     string
	password string
	dirs     []string
	timeout  time.Duration

	dial   dialFunc
	logger *zap.Logger
}

// NewFTPUploader creates an FTPUploader. Port 21 is used when cfg.Host has no port
func NewFTPUploader(cfg config.UploadConfig, logger *zap.Logger) *FTPUploader {
	return &FTPUploader{
		addr:     withDefaultPort(cfg.Host),
		user:     cfg.User,
		password: cfg.Password,
		dirs:     cfg.Dirs,
		timeout:  cfg.Timeout,
		dial:     dialFTP,
		logger:   logger,
	}
}

// Upload opens a new connection for every file. Images are only uploaded on detection so there
// is no point in keeping an idle session open
func (u *FTPUploader) Upload(ctx context.Context, filename string, r io.Reader) error {
	c, err := u.dial(ctx, u.addr, u.timeout)
	if err != nil {
		return fmt.Errorf("error connecting to FTP server: %w", err)
	}

	err = u.store(c, filename, r)
	if err != nil {
		_ = c.Quit()
		return err
	}

	err = c.Quit()
	if err != nil {
		return fmt.Errorf("error closing FTP connection: %w", err)
	}

	u.logger.Debug("uploaded image", zap.String("addr", u.addr), zap.String("filename", filename))
	return nil
}

func (u *FTPUploader) store(c conn, filename string, r io.Reader) error {
	err := c.Login(u.user, u.password)
	if err != nil {
		return fmt.Errorf("error logging in to FTP server: %w", err)
	}

	for _, dir := range u.dirs {
		err = c.ChangeDir(dir)
		if err != nil {
			return fmt.Errorf("error changing to directory %q: %w", dir, err)
		}
	}

	err = c.Stor(filename, r)
	if err != nil {
		return fmt.Errorf("error storing file: %w", err)
	}
	return nil
}

func withDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultPort)
}
