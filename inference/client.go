package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/calvinmclean/babyapi"
	"github.com/calvinmclean/slugcam"
	"github.com/calvinmclean/slugcam/config"
	"go.uber.org/zap"
)

// ErrNoPredictions is returned when the server responds without a score
var ErrNoPredictions = errors.New("response has no predictions")

// Prediction is the model's output for one image
type Prediction struct {
	// Logit is the raw model output
	Logit float64
	// Score is the sigmoid of Logit, the probability that the target is in the image
	Score float64
	Label slugcam.Label
}

// Client calls the predict endpoint of a TensorFlow Serving REST API
type Client struct {
	client     *babyapi.Client[*predictResponse]
	predictURL string
	threshold  float64
	timeout    time.Duration
	logger     *zap.Logger
}

type predictRequest struct {
	Instances [][][][]int32 `json:"instances"`
}

type predictResponse struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource
	Predictions [][]float64 `json:"predictions"`
}

func (p predictResponse) GetID() string {
	return ""
}

// NewClient creates a Client for cfg.Model on the server at cfg.URL
func NewClient(cfg config.InferenceConfig, logger *zap.Logger) (*Client, error) {
	addr := strings.TrimSuffix(cfg.URL, "/")
	client := babyapi.NewClient[*predictResponse](addr, "/v1/models")

	url, err := client.URL(cfg.Model + ":predict")
	if err != nil {
		return nil, fmt.Errorf("error creating predict URL: %w", err)
	}

	return &Client{
		client:     client,
		predictURL: url,
		threshold:  cfg.Threshold,
		timeout:    cfg.Timeout,
		logger:     logger,
	}, nil
}

// Predict sends img to the model and classifies the returned score
func (c *Client) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(predictRequest{Instances: PixelArray(img)})
	if err != nil {
		return Prediction{}, fmt.Errorf("error encoding body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.MakeGenericRequest(req, nil)
	if err != nil {
		return Prediction{}, fmt.Errorf("error making request: %w", err)
	}
	if resp.Response.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("unexpected status code: %d, response: %v", resp.Response.StatusCode, resp.Body)
	}

	var result predictResponse
	err = json.Unmarshal([]byte(resp.Body), &result)
	if err != nil {
		return Prediction{}, fmt.Errorf("error decoding response: %w", err)
	}
	if len(result.Predictions) == 0 || len(result.Predictions[0]) == 0 {
		return Prediction{}, ErrNoPredictions
	}

	logit := result.Predictions[0][0]
	score := Sigmoid(logit)
	p := Prediction{
		Logit: logit,
		Score: score,
		Label: Classify(score, c.threshold),
	}

	c.logger.Debug("received prediction",
		zap.Float64("logit", p.Logit),
		zap.Float64("score", p.Score),
		zap.Stringer("label", p.Label),
		zap.Duration("duration", time.Since(start)),
	)

	return p, nil
}

// Sigmoid maps a logit to a probability
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Classify is positive when score is at or above threshold
func Classify(score, threshold float64) slugcam.Label {
	if score < threshold {
		return slugcam.LabelNegative
	}
	return slugcam.LabelPositive
}

// PixelArray converts img to a batch of one HxWx3 array of 8-bit RGB values, the input
// shape of the model
func PixelArray(img image.Image) [][][][]int32 {
	b := img.Bounds()
	rows := make([][][]int32, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := make([][]int32, b.Dx())
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			row[x-b.Min.X] = []int32{int32(r >> 8), int32(g >> 8), int32(bl >> 8)}
		}
		rows[y-b.Min.Y] = row
	}
	return [][][][]int32{rows}
}
