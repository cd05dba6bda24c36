// Package dispatcher implements the Task Dispatcher (§4.G): consume task
// ids from the broker, invoke the Job Orchestrator, and translate any
// failure into a terminal task state. Per the resolved Open Question
// (SPEC_FULL.md §12.1), the Orchestrator is invoked directly in-process —
// there is no Python/subprocess boundary left in this system for a
// JSON-line worker protocol to cross.
package dispatcher

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"time"

	"github.com/bosocmputer/groundocr/internal/blobstore"
	"github.com/bosocmputer/groundocr/internal/broker"
	"github.com/bosocmputer/groundocr/internal/common"
	"github.com/bosocmputer/groundocr/internal/errs"
	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/bosocmputer/groundocr/internal/metrics"
	"github.com/bosocmputer/groundocr/internal/model"
	"github.com/bosocmputer/groundocr/internal/orchestrator"
	"github.com/bosocmputer/groundocr/internal/rasterize"
)

// TaskStore is the subset of *taskstore.Store the dispatcher drives; an
// interface so tests can substitute a fake without a live MongoDB.
type TaskStore interface {
	Get(ctx context.Context, id string) (*model.Task, error)
	MarkRunning(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, snapshot model.ProgressSnapshot) (bool, error)
	MarkSucceeded(ctx context.Context, id string, payload model.ResultPayload, outputDir string) (bool, error)
	MarkFailed(ctx context.Context, id string, message string) (bool, error)
}

// Dispatcher wires the broker to the orchestrator for PDF jobs.
type Dispatcher struct {
	Broker      *broker.Broker
	Store       TaskStore
	Client      inference.Client
	StorageRoot string
	Concurrency int
	DPI         int
	PDFPrompt   string
	Sizing      inference.Sizing

	// Mirror optionally mirrors a succeeded task's output_dir into object
	// storage (§13 supplemented feature). Nil disables mirroring.
	Mirror *blobstore.Mirror

	// RunJob overrides the rasterize+orchestrator pipeline; nil uses the
	// real implementation. Tests substitute a fake here to exercise
	// handle's mark_running/mark_succeeded/mark_failed translation
	// without a real PDF or inference backend.
	RunJob func(ctx context.Context, inputPath, outputDir string, progress orchestrator.ProgressSink, rc *common.RequestContext) (model.PdfProcessingResult, error)
}

// Run polls the broker forever until ctx is cancelled, handling one task
// at a time per message (§4.G "one task per broker message").
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		taskID, err := d.Broker.Dequeue(ctx, 5*time.Second)
		if err != nil {
			log.Printf("dispatcher: dequeue error: %v", err)
			continue
		}
		if n, lenErr := d.Broker.QueueLen(ctx); lenErr == nil {
			metrics.QueueDepth.Set(float64(n))
		}
		if taskID == "" {
			continue
		}
		d.handle(ctx, taskID)
	}
}

// handle processes a single task id. Errors never propagate out of this
// call: every error path ends in mark_failed, a logged abort, or a silent
// abort (§4.G, §7). Panics are not recovered here.
func (d *Dispatcher) handle(ctx context.Context, taskID string) {
	task, err := d.Store.Get(ctx, taskID)
	if err != nil {
		log.Printf("dispatcher: fetch task %s: %v", taskID, err)
		return
	}
	if task == nil {
		// StateError: row missing is a no-op abort, nothing to record.
		return
	}

	if err := d.Store.MarkRunning(ctx, taskID); err != nil {
		log.Printf("dispatcher: mark running %s: %v", taskID, err)
		return
	}

	outputDir := filepath.Join(d.StorageRoot, "outputs", taskID)

	progress := func(snapshot model.ProgressSnapshot) {
		if _, err := d.Store.UpdateProgress(ctx, taskID, snapshot); err != nil {
			log.Printf("dispatcher: update progress %s: %v", taskID, err)
		}
	}

	rc := common.NewRequestContext()
	result, err := d.runJob(ctx, task.InputPath, outputDir, progress, rc)
	if err != nil {
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		d.fail(ctx, taskID, err)
		return
	}
	metrics.JobsTotal.WithLabelValues("succeeded").Inc()
	log.Println(rc.Summary())

	payload := model.ResultPayload{
		MarkdownFile: filepath.Base(result.MarkdownFile),
		RawJSONFile:  filepath.Base(result.RawJSONFile),
		ArchiveFile:  filepath.Base(result.ArchiveFile),
		Pages:        result.Pages,
		Images:       result.ImageAssets,
		Progress: model.ProgressSnapshot{
			Current: result.TotalPages, Total: result.TotalPages, Percent: 100,
			Message: "done", PagesCompleted: result.TotalPages, PagesTotal: result.TotalPages,
		},
	}
	if _, err := d.Store.MarkSucceeded(ctx, taskID, payload, outputDir); err != nil {
		log.Printf("dispatcher: mark succeeded %s: %v", taskID, err)
	}

	if d.Mirror != nil {
		if err := d.Mirror.MirrorDir(ctx, taskID, outputDir); err != nil {
			log.Printf("dispatcher: mirror output %s: %v", taskID, err)
		}
	}
}

func (d *Dispatcher) runJob(ctx context.Context, inputPath, outputDir string, progress orchestrator.ProgressSink, rc *common.RequestContext) (model.PdfProcessingResult, error) {
	if d.RunJob != nil {
		return d.RunJob(ctx, inputPath, outputDir, progress, rc)
	}

	doc, err := rasterize.Open(inputPath)
	if err != nil {
		return model.PdfProcessingResult{}, errs.Wrap(errs.ErrInput, err)
	}
	defer doc.Close()

	return orchestrator.Run(ctx, doc, orchestrator.Options{
		OutputDir:   outputDir,
		Concurrency: d.Concurrency,
		DPI:         d.DPI,
		Client:      d.Client,
		Prompt:      d.PDFPrompt,
		Sizing:      d.Sizing,
		Progress:    progress,
		RC:          rc,
	})
}

// fail translates any job error into mark_failed. Every error reaching
// here was already produced via errs.Wrap, so err.Error() already reads
// "ErrorKind: message" per §4.G/§7 without reformatting. A StateError is
// a silent no-op abort instead, since there's no row to update (or it
// has already moved on).
func (d *Dispatcher) fail(ctx context.Context, taskID string, err error) {
	if errors.Is(err, errs.ErrState) {
		return
	}
	message := err.Error()
	if _, markErr := d.Store.MarkFailed(ctx, taskID, message); markErr != nil {
		log.Printf("dispatcher: mark failed %s: %v", taskID, markErr)
	}
	log.Printf("dispatcher: task %s failed: %s", taskID, message)
}
