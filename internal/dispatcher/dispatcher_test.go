package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosocmputer/groundocr/internal/common"
	"github.com/bosocmputer/groundocr/internal/errs"
	"github.com/bosocmputer/groundocr/internal/model"
	"github.com/bosocmputer/groundocr/internal/orchestrator"
)

// fakeStore is an in-memory TaskStore recording every call handle makes,
// standing in for a live MongoDB-backed taskstore.Store.
type fakeStore struct {
	mu sync.Mutex

	tasks map[string]*model.Task

	markRunningCalls   []string
	markSucceededCalls []string
	markFailedCalls    []string
	lastFailedMessage  string
}

func newFakeStore(tasks ...*model.Task) *fakeStore {
	m := make(map[string]*model.Task)
	for _, t := range tasks {
		m[t.ID] = t
	}
	return &fakeStore{tasks: m}
}

func (f *fakeStore) Get(ctx context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id], nil
}

func (f *fakeStore) MarkRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRunningCalls = append(f.markRunningCalls, id)
	return nil
}

func (f *fakeStore) UpdateProgress(ctx context.Context, id string, snapshot model.ProgressSnapshot) (bool, error) {
	return true, nil
}

func (f *fakeStore) MarkSucceeded(ctx context.Context, id string, payload model.ResultPayload, outputDir string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markSucceededCalls = append(f.markSucceededCalls, id)
	return true, nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id string, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markFailedCalls = append(f.markFailedCalls, id)
	f.lastFailedMessage = message
	return true, nil
}

func TestHandleSuccessTranslatesToMarkSucceeded(t *testing.T) {
	store := newFakeStore(&model.Task{ID: "t1", InputPath: "/in/t1.pdf"})
	d := &Dispatcher{
		Store:       store,
		StorageRoot: t.TempDir(),
		RunJob: func(ctx context.Context, inputPath, outputDir string, progress orchestrator.ProgressSink, rc *common.RequestContext) (model.PdfProcessingResult, error) {
			return model.PdfProcessingResult{TotalPages: 2, MarkdownFile: "result.md", RawJSONFile: "raw.json", ArchiveFile: "result.zip"}, nil
		},
	}

	d.handle(context.Background(), "t1")

	assert.Equal(t, []string{"t1"}, store.markRunningCalls)
	assert.Equal(t, []string{"t1"}, store.markSucceededCalls)
	assert.Empty(t, store.markFailedCalls)
}

func TestHandleJobFailureTranslatesToMarkFailed(t *testing.T) {
	store := newFakeStore(&model.Task{ID: "t2", InputPath: "/in/t2.pdf"})
	jobErr := errs.Wrap(errs.ErrInference, errors.New("engine refused"))
	d := &Dispatcher{
		Store:       store,
		StorageRoot: t.TempDir(),
		RunJob: func(ctx context.Context, inputPath, outputDir string, progress orchestrator.ProgressSink, rc *common.RequestContext) (model.PdfProcessingResult, error) {
			return model.PdfProcessingResult{}, jobErr
		},
	}

	d.handle(context.Background(), "t2")

	assert.Equal(t, []string{"t2"}, store.markRunningCalls)
	assert.Empty(t, store.markSucceededCalls)
	require.Equal(t, []string{"t2"}, store.markFailedCalls)
	assert.Equal(t, "InferenceError: engine refused", store.lastFailedMessage)
}

func TestHandleMissingTaskIsSilentNoOp(t *testing.T) {
	store := newFakeStore() // no tasks: Get returns nil, nil
	d := &Dispatcher{Store: store, StorageRoot: t.TempDir()}

	d.handle(context.Background(), "missing")

	assert.Empty(t, store.markRunningCalls)
	assert.Empty(t, store.markSucceededCalls)
	assert.Empty(t, store.markFailedCalls)
}

func TestHandleErrStateJobFailureIsSilentAbort(t *testing.T) {
	store := newFakeStore(&model.Task{ID: "t3", InputPath: "/in/t3.pdf"})
	jobErr := errs.Wrap(errs.ErrState, errors.New("task row vanished mid-run"))
	d := &Dispatcher{
		Store:       store,
		StorageRoot: t.TempDir(),
		RunJob: func(ctx context.Context, inputPath, outputDir string, progress orchestrator.ProgressSink, rc *common.RequestContext) (model.PdfProcessingResult, error) {
			return model.PdfProcessingResult{}, jobErr
		},
	}

	d.handle(context.Background(), "t3")

	assert.Equal(t, []string{"t3"}, store.markRunningCalls)
	assert.Empty(t, store.markSucceededCalls)
	assert.Empty(t, store.markFailedCalls, "a StateError must not be recorded as a failure")
}
