package inference

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calvinmclean/slugcam"
	"github.com/calvinmclean/slugcam/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 128, A: 255})
	img.Set(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	return img
}

func TestPixelArray(t *testing.T) {
	arr := PixelArray(testImage())

	require.Len(t, arr, 1)
	require.Len(t, arr[0], 2)
	require.Len(t, arr[0][0], 3)

	assert.Equal(t, []int32{255, 0, 0}, arr[0][0][0])
	assert.Equal(t, []int32{0, 128, 0}, arr[0][0][1])
	assert.Equal(t, []int32{0, 0, 0}, arr[0][1][0])
	assert.Equal(t, []int32{1, 2, 3}, arr[0][1][2])
}

func TestPixelArrayOffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 12, 11))
	img.Set(11, 10, color.RGBA{B: 200, A: 255})

	arr := PixelArray(img)
	require.Len(t, arr[0], 1)
	assert.Equal(t, []int32{0, 0, 200}, arr[0][0][1])
}

func TestClassify(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-9)
	assert.InDelta(t, 0.7310585786, Sigmoid(1), 1e-9)
	assert.InDelta(t, 0.2689414214, Sigmoid(-1), 1e-9)

	assert.Equal(t, slugcam.LabelNegative, Classify(0.4999, 0.5))
	assert.Equal(t, slugcam.LabelPositive, Classify(0.5, 0.5))
	assert.Equal(t, slugcam.LabelPositive, Classify(0.9, 0.5))
	assert.Equal(t, slugcam.LabelNegative, Classify(0.6, 0.7))
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(config.InferenceConfig{
		URL:       server.URL + "/",
		Model:     "slug_detector",
		Threshold: 0.5,
		Timeout:   5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name   string
		logit  float64
		label  slugcam.Label
		scoreF func(t *testing.T, score float64)
	}{
		{"Slug", 2.5, slugcam.LabelPositive, func(t *testing.T, s float64) { assert.Greater(t, s, 0.9) }},
		{"NoSlug", -3, slugcam.LabelNegative, func(t *testing.T, s float64) { assert.Less(t, s, 0.1) }},
		{"Boundary", 0, slugcam.LabelPositive, func(t *testing.T, s float64) { assert.InDelta(t, 0.5, s, 1e-9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/models/slug_detector:predict", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req predictRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Len(t, req.Instances, 1)
				assert.Len(t, req.Instances[0], 2)
				assert.Equal(t, []int32{255, 0, 0}, req.Instances[0][0][0])

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"predictions": [][]float64{{tt.logit}}})
			})

			p, err := c.Predict(context.Background(), testImage())
			require.NoError(t, err)
			assert.Equal(t, tt.logit, p.Logit)
			assert.Equal(t, tt.label, p.Label)
			tt.scoreF(t, p.Score)
		})
	}
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"ServerError",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error": "Servable not found"}`, http.StatusNotFound)
			},
		},
		{
			"EmptyPredictions",
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"predictions": []}`))
			},
		},
		{
			"EmptyInnerPredictions",
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"predictions": [[]]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			_, err := c.Predict(context.Background(), testImage())
			require.Error(t, err)
		})
	}

	t.Run("NoPredictionsSentinel", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"predictions": []}`))
		})
		_, err := c.Predict(context.Background(), testImage())
		require.ErrorIs(t, err, ErrNoPredictions)
	})
}

func TestPredictPlainTextError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model is loading"))
	})

	_, err := c.Predict(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 503")
}
