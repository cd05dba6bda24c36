// Remote backend: POSTs to a worker-internal inference endpoint guarded by
// a shared secret header, per spec.md §4.C and §6's /internal/infer
// contract. Concurrency is bounded by a fixed worker pool sized to the PDF
// concurrency cap.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bosocmputer/groundocr/internal/metrics"
)

const remoteRequestTimeout = 300 * time.Second

// RemoteClient implements Client by calling a configured
// WORKER_REMOTE_INFER_URL with the shared internal token.
type RemoteClient struct {
	url        string
	token      string
	httpClient *http.Client
	sem        *semaphore.Weighted
	retryCfg   RetryConfig
}

// NewRemoteClient builds a Remote backend bounded to poolSize concurrent
// in-flight requests (the PDF concurrency cap, per §4.C).
func NewRemoteClient(url, token string, poolSize int) *RemoteClient {
	return &RemoteClient{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: remoteRequestTimeout},
		sem:        semaphore.NewWeighted(int64(poolSize)),
		retryCfg:   DefaultRetryConfig,
	}
}

func (c *RemoteClient) Name() string { return "remote" }

type remoteRequest struct {
	Prompt       string `json:"prompt"`
	ImageBase64  string `json:"image_base64,omitempty"`
	BaseSize     int    `json:"base_size"`
	ImageSize    int    `json:"image_size"`
	CropMode     bool   `json:"crop_mode"`
	TestCompress bool   `json:"test_compress,omitempty"`
}

type remoteResponse struct {
	Text string `json:"text"`
}

// Submit POSTs the request and returns the raw text. 429 and 5xx
// responses and transient network errors are retried with backoff; other
// non-2xx statuses and malformed bodies fail at once. Every failure that
// leaves Submit wraps ErrInference, which the core does not retry.
func (c *RemoteClient) Submit(ctx context.Context, prompt string, img image.Image, sizing Sizing) (string, error) {
	if err := WaitForRateLimit(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrInference, err)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: acquire concurrency slot: %v", ErrInference, err)
	}
	defer c.sem.Release(1)

	var imgB64 string
	if img != nil {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return "", fmt.Errorf("%w: encode image: %v", ErrInference, err)
		}
		imgB64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	reqBody := remoteRequest{
		Prompt:       prompt,
		ImageBase64:  imgB64,
		BaseSize:     sizing.BaseSize,
		ImageSize:    sizing.ImageSize,
		CropMode:     sizing.CropMode,
		TestCompress: sizing.TestCompress,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrInference, err)
	}

	text, err := withRetry(ctx, c.retryCfg, func() (string, int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return "", 0, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Internal-Token", c.token)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return "", 0, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", resp.StatusCode, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", resp.StatusCode, fmt.Errorf("remote inference returned status %d: %s", resp.StatusCode, string(body))
		}

		var parsed remoteResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", resp.StatusCode, fmt.Errorf("malformed response body: %w", err)
		}
		return parsed.Text, resp.StatusCode, nil
	})
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.InferenceCallsTotal.WithLabelValues(c.Name(), outcome).Inc()
	return text, err
}
