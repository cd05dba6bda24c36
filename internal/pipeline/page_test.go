package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/bosocmputer/groundocr/internal/errs"
	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	text string
	err  error
}

func (f *fakeClient) Submit(ctx context.Context, prompt string, img image.Image, sizing inference.Sizing) (string, error) {
	return f.text, f.err
}
func (f *fakeClient) Name() string { return "fake" }

func TestRunSuccess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	client := &fakeClient{text: "<|ref|>Total<|/ref|><|det|>[[100,200,500,600]]<|/det|>body"}
	res := Run(context.Background(), 2, img, Deps{Client: client, Prompt: "p", AssetsDir: t.TempDir()})
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Index)
	assert.Equal(t, 3, res.Page.PageNumber)
	require.Len(t, res.Page.Boxes, 1)
	assert.Equal(t, "Total", res.Page.Boxes[0].Label)
}

func TestRunInferenceFailureWrapsErrInference(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	client := &fakeClient{err: errors.New("HTTP 500")}
	res := Run(context.Background(), 0, img, Deps{Client: client, Prompt: "p", AssetsDir: t.TempDir()})
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, errs.ErrInference))
}
