package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ziadkadry99/neuronview/internal/metrics"
)

const defaultBaseURL = "http://localhost:8000"

// HTTPClient calls an activation server over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client. baseURL defaults to http://localhost:8000 if
// empty; a non-positive timeout means no client-side timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &http.Client{}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

// Infer posts the request to /derived_scalars.
func (c *HTTPClient) Infer(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/derived_scalars", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	var resp Response
	err = c.do(httpReq, &resp)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inference response: %w", err)
	}
	return &resp, nil
}

// ModelInfo describes the model behind the activation server.
type ModelInfo struct {
	ModelName               string `json:"model_name"`
	NLayers                 int    `json:"n_layers"`
	HasMLPAutoencoder       bool   `json:"has_mlp_autoencoder"`
	HasAttentionAutoencoder bool   `json:"has_attention_autoencoder"`
}

// ModelInfo fetches /model_info.
func (c *HTTPClient) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/model_info", nil)
	if err != nil {
		return nil, fmt.Errorf("create model info request: %w", err)
	}
	var info ModelInfo
	if err := c.do(httpReq, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("inference server returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode inference response: %w", err)
	}
	return nil
}
