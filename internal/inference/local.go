// Local backend: a single long-lived generative engine instance, modeled
// on the teacher's internal/ai/gemini.go client-init-per-call pattern but
// restructured into the explicit init()/shutdown() singleton the design
// notes (§9) call for, with submissions bounded by a semaphore instead of
// relying on the engine's own internal batching alone.
package inference

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/option"

	"github.com/bosocmputer/groundocr/internal/metrics"
)

// LocalEngine is the process-wide generative engine resource. Call Init at
// startup and Shutdown at teardown; it must not be constructed more than
// once per process (prefer an explicit start over lazy-init races, per the
// design notes).
type LocalEngine struct {
	mu        sync.Mutex
	client    *genai.Client
	model     *genai.GenerativeModel
	sem       *semaphore.Weighted
	retryCfg  RetryConfig
	modelName string
}

// NewLocalEngine constructs an unstarted engine; call Init before Submit.
func NewLocalEngine(modelName string, maxConcurrency int) *LocalEngine {
	return &LocalEngine{
		sem:       semaphore.NewWeighted(int64(maxConcurrency)),
		retryCfg:  DefaultRetryConfig,
		modelName: modelName,
	}
}

// Init creates the underlying client and generative model. Must be called
// once before any Submit call.
func (e *LocalEngine) Init(ctx context.Context, apiKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return nil // already started
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return fmt.Errorf("%w: init local engine: %v", ErrInference, err)
	}
	e.client = client
	e.model = client.GenerativeModel(e.modelName)
	return nil
}

// Shutdown releases the underlying client. Safe to call once at process
// teardown.
func (e *LocalEngine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
}

func (e *LocalEngine) Name() string { return "local" }

// Submit bounds outstanding requests to maxConcurrency via the semaphore,
// then calls the engine with retry/backoff.
func (e *LocalEngine) Submit(ctx context.Context, prompt string, img image.Image, sizing Sizing) (string, error) {
	if err := WaitForRateLimit(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrInference, err)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: acquire concurrency slot: %v", ErrInference, err)
	}
	defer e.sem.Release(1)

	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("%w: engine not initialized", ErrInference)
	}

	var imgBytes []byte
	if img != nil {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return "", fmt.Errorf("%w: encode image: %v", ErrInference, err)
		}
		imgBytes = buf.Bytes()
	}

	text, err := withRetry(ctx, e.retryCfg, func() (string, int, error) {
		parts := []genai.Part{genai.Text(prompt)}
		if imgBytes != nil {
			parts = append(parts, genai.ImageData("jpeg", imgBytes))
		}
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return "", 0, err
		}
		text, err := extractText(resp)
		if err != nil {
			return "", 0, err
		}
		return text, 0, nil
	})
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.InferenceCallsTotal.WithLabelValues(e.Name(), outcome).Inc()
	return text, err
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty response from engine", ErrInference)
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out, nil
}
