// Package pipeline implements the Page Pipeline component (§4.D): per
// already-rendered page, infer -> rewrite grounding -> parse boxes ->
// collect result (rasterization is done by the Orchestrator). Pages are
// independent; no cross-page state is held here.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/bosocmputer/groundocr/internal/common"
	"github.com/bosocmputer/groundocr/internal/errs"
	"github.com/bosocmputer/groundocr/internal/grounding"
	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/bosocmputer/groundocr/internal/metrics"
	"github.com/bosocmputer/groundocr/internal/model"
)

// Result is the page future's explicit result variant (§9 design notes:
// replace exception-for-control-flow with Ok/Err on the page future).
type Result struct {
	Index int
	Page  model.PageResult
	Err   error
}

// Deps bundles what Run needs from the rest of the system.
type Deps struct {
	Client    inference.Client
	Prompt    string
	Sizing    inference.Sizing
	AssetsDir string

	// RC, if set, logs this page's phase transitions against the job's
	// RequestContext. Pages run concurrently, so Run only ever calls its
	// read-only LogInfo (safe from multiple goroutines), never
	// StartStep/EndStep (which mutate shared, non-atomic fields).
	RC *common.RequestContext
}

// Run executes one page's pipeline: rasterize is assumed already done by
// the caller (the Orchestrator renders all pages up front, §4.E step 2),
// so Run takes the rendered bitmap directly and performs infer -> rewrite
// -> parse -> collect.
func Run(ctx context.Context, index int, pageImage image.Image, deps Deps) Result {
	start := time.Now()
	defer func() { metrics.PageDuration.Observe(time.Since(start).Seconds()) }()

	if deps.RC != nil {
		deps.RC.LogInfo("page %d: infer", index)
	}
	rawText, err := deps.Client.Submit(ctx, deps.Prompt, pageImage, deps.Sizing)
	if err != nil {
		return Result{Index: index, Err: errs.Wrap(errs.ErrInference, err)}
	}

	if deps.RC != nil {
		deps.RC.LogInfo("page %d: rewrite_grounding", index)
	}
	markdown, assets, err := grounding.Rewrite(rawText, pageImage, index, deps.AssetsDir)
	if err != nil {
		return Result{Index: index, Err: errs.Wrap(errs.ErrIO, err)}
	}

	if deps.RC != nil {
		deps.RC.LogInfo("page %d: parse_boxes", index)
	}
	w, h := pageImage.Bounds().Dx(), pageImage.Bounds().Dy()
	boxes := grounding.Parse(rawText, w, h)
	modelBoxes := make([]model.Box, 0, len(boxes))
	for _, b := range boxes {
		modelBoxes = append(modelBoxes, model.Box{Label: b.Label, Box: b.AsSlice()})
	}

	return Result{
		Index: index,
		Page: model.PageResult{
			Index:       index,
			PageNumber:  index + 1,
			Markdown:    markdown,
			RawText:     rawText,
			ImageAssets: assets,
			Boxes:       modelBoxes,
		},
	}
}
