// Package orchestrator implements the Job Orchestrator (§4.E): render all
// pages, fan page pipelines out under a concurrency cap K, assemble
// results in page order regardless of completion order, emit progress,
// and package result.md / raw.json / result.zip.
//
// The concurrency shape follows the design notes (§9): the orchestrator
// owns a channel, page workers post completions to it, and a single
// consumer goroutine drains the channel, mutating the in-memory pages
// buffer and issuing progress updates. This replaces the
// callback-marshalled-via-call_soon_threadsafe shape the original Python
// system used.
package orchestrator

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bosocmputer/groundocr/internal/common"
	"github.com/bosocmputer/groundocr/internal/errs"
	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/bosocmputer/groundocr/internal/model"
	"github.com/bosocmputer/groundocr/internal/pipeline"
	"github.com/bosocmputer/groundocr/internal/rasterize"
)

// ProgressSink is invoked on every page completion (and at rendering
// start/job end) to report advancement; it mirrors §4.G's "progress
// callback" concept without committing to a transport.
type ProgressSink func(model.ProgressSnapshot)

// Pager abstracts page rendering so tests can substitute a fake in place
// of a real PDF document.
type Pager interface {
	NumPages() int
	Page(index int, dpi int) (image.Image, error)
}

// Options configures one job run.
type Options struct {
	OutputDir   string
	Concurrency int // K, >= 1
	DPI         int
	Client      inference.Client
	Prompt      string
	Sizing      inference.Sizing
	Progress    ProgressSink

	// RC, if set, logs this run's macro phases (§10.1). Optional: callers
	// that don't need job-level logging (tests) may leave it nil.
	RC *common.RequestContext
}

// Run executes the full algorithm of §4.E and returns the result summary
// (§4.E step 7) or the first page error encountered.
func Run(ctx context.Context, doc Pager, opts Options) (model.PdfProcessingResult, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	imagesDir := filepath.Join(opts.OutputDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return model.PdfProcessingResult{}, errs.Wrap(errs.ErrIO, fmt.Errorf("create output dirs: %w", err))
	}

	total := doc.NumPages()
	emit := opts.Progress
	if emit == nil {
		emit = func(model.ProgressSnapshot) {}
	}

	if total == 0 {
		emit(model.ProgressSnapshot{Current: 0, Total: 0, Percent: 100, Message: "no pages detected"})
		return finalize(opts.OutputDir, nil, total)
	}

	emit(model.ProgressSnapshot{Current: 0, Total: total, Percent: 0, Message: "rendering"})

	if opts.RC != nil {
		opts.RC.StartStep("rasterize")
	}
	pageImages := make([]image.Image, total)
	for i := 0; i < total; i++ {
		img, err := doc.Page(i, opts.DPI)
		if err != nil {
			if opts.RC != nil {
				opts.RC.EndStep("failed", nil, err)
			}
			return model.PdfProcessingResult{}, errs.Wrap(errs.ErrInput, fmt.Errorf("render page %d: %w", i, err))
		}
		pageImages[i] = img
	}
	if opts.RC != nil {
		opts.RC.EndStep("success", nil, nil)
	}

	pages := make([]model.PageResult, total)
	results := make(chan pipeline.Result, total)

	// K-bounded fan-out: errgroup cancels egCtx on the first page error,
	// which unblocks any goroutine waiting on the semaphore and stops the
	// submit loop from acquiring further slots (§9's cancel-on-first-error
	// shape, expressed with x/sync instead of a hand-rolled channel+WaitGroup).
	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.Concurrency))

	if opts.RC != nil {
		opts.RC.StartStep("infer")
	}

submitLoop:
	for i := 0; i < total; i++ {
		if err := sem.Acquire(egCtx, 1); err != nil {
			break submitLoop
		}
		idx := i
		eg.Go(func() error {
			defer sem.Release(1)
			res := pipeline.Run(egCtx, idx, pageImages[idx], pipeline.Deps{
				Client:    opts.Client,
				Prompt:    opts.Prompt,
				Sizing:    opts.Sizing,
				AssetsDir: imagesDir,
				RC:        opts.RC,
			})
			results <- res
			return res.Err
		})
	}

	go func() {
		eg.Wait()
		close(results)
	}()

	var allAssets []string
	pagesCompleted := 0
	var firstErr error

	// Single consumer drains the channel: mutates pages and issues
	// progress, exactly as §9 specifies.
	for res := range results {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		pages[res.Index] = res.Page
		allAssets = append(allAssets, res.Page.ImageAssets...)
		pagesCompleted++
		emit(model.ProgressSnapshot{
			Current:        pagesCompleted,
			Total:          total,
			Percent:        float64(pagesCompleted) / float64(total) * 100,
			Message:        fmt.Sprintf("page %d/%d done", pagesCompleted, total),
			PagesCompleted: pagesCompleted,
			PagesTotal:     total,
		})
	}

	if opts.RC != nil {
		if firstErr != nil {
			opts.RC.EndStep("failed", nil, firstErr)
		} else {
			opts.RC.EndStep("success", nil, nil)
		}
	}

	if firstErr != nil {
		return model.PdfProcessingResult{}, firstErr
	}

	if opts.RC != nil {
		opts.RC.StartStep("write_artifacts")
	}
	result, err := finalize(opts.OutputDir, pages, total)
	if opts.RC != nil {
		status := "success"
		if err != nil {
			status = "failed"
		}
		opts.RC.EndStep(status, nil, err)
	}
	if err != nil {
		return model.PdfProcessingResult{}, err
	}
	emit(model.ProgressSnapshot{Current: total, Total: total, Percent: 100, Message: "done", PagesCompleted: total, PagesTotal: total})
	return result, nil
}
