package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/calvinmclean/babyapi"
	"github.com/calvinmclean/slugcam/config"
	"go.uber.org/zap"
)

// Notifier tells the home-automation hub that the target was detected
type Notifier interface {
	Notify(ctx context.Context, filename, id string) error
}

// StatusError is returned when the hub answers with a status outside of 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, response: %s", e.StatusCode, e.Body)
}

// Webhook posts detections to a Home Assistant webhook trigger. The automation can show the
// uploaded image using the filename from the trigger data
type Webhook struct {
	client  *babyapi.Client[*event]
	url     string
	timeout time.Duration
	logger  *zap.Logger
}

type event struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource
	Filename string `json:"filename"`
	ID       string `json:"id,omitempty"`
}

func (e event) GetID() string {
	return e.ID
}

func NewWebhook(cfg config.NotifyConfig, logger *zap.Logger) *Webhook {
	return &Webhook{
		client:  babyapi.NewClient[*event](cfg.WebhookURL, ""),
		url:     cfg.WebhookURL,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Notify sends {"filename": filename, "id": id}. The request reached the hub when the error is a
// *StatusError
func (w *Webhook) Notify(ctx context.Context, filename, id string) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	err := w.post(ctx, event{Filename: filename, ID: id})
	if err != nil {
		return err
	}

	w.logger.Debug("sent webhook", zap.String("filename", filename), zap.String("id", id))
	return nil
}

func (w *Webhook) post(ctx context.Context, e event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error encoding body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := w.client.MakeGenericRequest(req, nil)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	if resp.Response.StatusCode < 200 || resp.Response.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.Response.StatusCode, Body: fmt.Sprint(resp.Body)}
	}

	return nil
}
