// Package inference implements the Inference Client component (§4.C): a
// small interface with two concrete backends (Local, Remote) selected by
// configuration, following the teacher's OCRProvider tagged-variant
// pattern in internal/ai/interface.go + factory.go, generalized away from
// receipt extraction to raw grounded-text generation.
package inference

import (
	"context"
	"errors"
	"image"
)

// ErrInference wraps every failure the Client surfaces; per spec.md §7 it
// is non-retriable by the core.
var ErrInference = errors.New("inference error")

// Sizing carries the model's image-tiling hints, threaded through from
// config/request options to both backends.
type Sizing struct {
	BaseSize  int
	ImageSize int
	CropMode  bool
	// TestCompress is plumbed through with no observable effect (§9 open
	// question: reserved flag).
	TestCompress bool
}

// Client is the Inference Client's contract: submit one
// (prompt, image?, sizing) request and get back raw text carrying
// grounding sentinels. Implementations must bound their own concurrency;
// Submit may block until a slot is free.
type Client interface {
	// Submit runs one inference call. Cancelling ctx cancels the
	// in-flight request best-effort; if the result arrives after
	// cancellation it is discarded by the caller, not by Submit.
	Submit(ctx context.Context, prompt string, img image.Image, sizing Sizing) (string, error)

	// Name identifies the backend ("local" or "remote") for logging.
	Name() string
}
