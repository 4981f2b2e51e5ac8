package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// ErrBackendStatus indicates a non-2xx response from the inference service.
var ErrBackendStatus = errors.New("classifier returned error status")

// HTTPConfig configures the inference service client.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type predictRequest struct {
	Text string `json:"text"`
}

// HTTPBackend calls POST {base_url}/predict.
type HTTPBackend struct {
	client *resty.Client
}

// NewHTTPBackend creates a backend with retries disabled.
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Sentinel/1.0")

	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPBackend{client: client}
}

// Predict implements Backend.
func (b *HTTPBackend) Predict(ctx context.Context, text string) (Prediction, error) {
	var prediction Prediction

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(predictRequest{Text: text}).
		SetResult(&prediction).
		Post("/predict")
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to call classifier: %w", err)
	}

	if resp.IsError() {
		return Prediction{}, fmt.Errorf("%w: %d: %s", ErrBackendStatus, resp.StatusCode(), string(resp.Body()))
	}

	return prediction, nil
}
