package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/calvinmclean/slugcam/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	calls []string
	data  string

	loginErr error
	cwdErr   error
	storErr  error
}

func (f *fakeConn) Login(user, password string) error {
	f.calls = append(f.calls, "USER "+user+" "+password)
	return f.loginErr
}

func (f *fakeConn) ChangeDir(path string) error {
	f.calls = append(f.calls, "CWD "+path)
	return f.cwdErr
}

func (f *fakeConn) Stor(path string, r io.Reader) error {
	f.calls = append(f.calls, "STOR "+path)
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.data = string(b)
	return f.storErr
}

func (f *fakeConn) Quit() error {
	f.calls = append(f.calls, "QUIT")
	return nil
}

func newTestUploader(c *fakeConn, dialErr error) (*FTPUploader, *string) {
	var dialed string
	u := NewFTPUploader(config.UploadConfig{
		Host:     "homeassistant.local",
		User:     "slugcam",
		Password: "secret",
		Dirs:     []string{"config", "www"},
		Timeout:  time.Second,
	}, zap.NewNop())
	u.dial = func(_ context.Context, addr string, _ time.Duration) (conn, error) {
		dialed = addr
		if dialErr != nil {
			return nil, dialErr
		}
		return c, nil
	}
	return u, &dialed
}

func TestUpload(t *testing.T) {
	c := &fakeConn{}
	u, dialed := newTestUploader(c, nil)

	err := u.Upload(context.Background(), "1700000000.123456.jpg", strings.NewReader("jpeg data"))
	require.NoError(t, err)

	assert.Equal(t, "homeassistant.local:21", *dialed)
	assert.Equal(t, []string{
		"USER slugcam secret",
		"CWD config",
		"CWD www",
		"STOR 1700000000.123456.jpg",
		"QUIT",
	}, c.calls)
	assert.Equal(t, "jpeg data", c.data)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		conn     *fakeConn
		dialErr  error
		expected string
		calls    []string
	}{
		{
			"DialFails",
			&fakeConn{},
			errors.New("connection refused"),
			"error connecting to FTP server: connection refused",
			nil,
		},
		{
			"BadLogin",
			&fakeConn{loginErr: errors.New("530 Login incorrect")},
			nil,
			"error logging in to FTP server",
			[]string{"USER slugcam secret", "QUIT"},
		},
		{
			"MissingDir",
			&fakeConn{cwdErr: errors.New("550 No such directory")},
			nil,
			`error changing to directory "config"`,
			[]string{"USER slugcam secret", "CWD config", "QUIT"},
		},
		{
			"StorFails",
			&fakeConn{storErr: errors.New("552 quota")},
			nil,
			"error storing file",
			[]string{"USER slugcam secret", "CWD config", "CWD www", "STOR a.jpg", "QUIT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _ := newTestUploader(tt.conn, tt.dialErr)
			err := u.Upload(context.Background(), "a.jpg", strings.NewReader(""))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
			assert.Equal(t, tt.calls, tt.conn.calls)
		})
	}
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "10.0.0.2:21", withDefaultPort("10.0.0.2"))
	assert.Equal(t, "10.0.0.2:2121", withDefaultPort("10.0.0.2:2121"))
	assert.Equal(t, "[::1]:21", withDefaultPort("::1"))
}
