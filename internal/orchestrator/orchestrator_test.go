package orchestrator

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/bosocmputer/groundocr/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePager struct {
	pages []image.Image
}

func (f *fakePager) NumPages() int { return len(f.pages) }
func (f *fakePager) Page(index int, dpi int) (image.Image, error) {
	return f.pages[index], nil
}

type fakeClient struct{ text string }

func (f *fakeClient) Submit(ctx context.Context, prompt string, img image.Image, sizing inference.Sizing) (string, error) {
	return f.text, nil
}
func (f *fakeClient) Name() string { return "fake" }

func newBlankPages(n, w, h int) []image.Image {
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return pages
}

func TestRunZeroPagePDF(t *testing.T) {
	dir := t.TempDir()
	var snapshots []model.ProgressSnapshot
	res, err := Run(context.Background(), &fakePager{}, Options{
		OutputDir:   dir,
		Concurrency: 4,
		DPI:         144,
		Client:      &fakeClient{text: "hi"},
		Progress:    func(s model.ProgressSnapshot) { snapshots = append(snapshots, s) },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalPages)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "no pages detected", snapshots[0].Message)
	assert.Equal(t, 100.0, snapshots[0].Percent)

	raw, err := os.ReadFile(filepath.Join(dir, "raw.json"))
	require.NoError(t, err)
	var payload model.ResultPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Empty(t, payload.Pages)

	// Zero pages must serialize as "[]", not "null" (spec.md §8).
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.JSONEq(t, "[]", string(fields["pages"]))
	assert.JSONEq(t, "[]", string(fields["images"]))
}

func TestRunOrdersPagesByIndexRegardlessOfCompletionOrder(t *testing.T) {
	dir := t.TempDir()
	pages := newBlankPages(5, 100, 100)
	var lastPagesCompleted int
	res, err := Run(context.Background(), &fakePager{pages: pages}, Options{
		OutputDir:   dir,
		Concurrency: 2,
		DPI:         144,
		Client:      &fakeClient{text: "body"},
		Progress: func(s model.ProgressSnapshot) {
			assert.GreaterOrEqual(t, s.PagesCompleted, lastPagesCompleted)
			lastPagesCompleted = s.PagesCompleted
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Pages, 5)
	for i, p := range res.Pages {
		assert.Equal(t, i, p.Index)
	}
}

func TestRunMidJobFailureProducesNoArchive(t *testing.T) {
	dir := t.TempDir()
	pages := newBlankPages(3, 50, 50)
	failingClient := &erroringClient{failOnCall: 2}
	_, err := Run(context.Background(), &fakePager{pages: pages}, Options{
		OutputDir:   dir,
		Concurrency: 1,
		DPI:         144,
		Client:      failingClient,
	})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "result.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

type erroringClient struct {
	failOnCall int
	calls      int
}

func (c *erroringClient) Submit(ctx context.Context, prompt string, img image.Image, sizing inference.Sizing) (string, error) {
	c.calls++
	if c.calls == c.failOnCall {
		return "", assertErr{}
	}
	return "ok", nil
}
func (c *erroringClient) Name() string { return "erroring" }

type assertErr struct{}

func (assertErr) Error() string { return "HTTP 500" }
