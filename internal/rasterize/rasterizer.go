// Package rasterize renders PDF pages to RGB bitmaps, the "PDF
// rasterization" external collaborator spec.md §1 names — specified here
// only via the interface the Job Orchestrator depends on, backed by a real
// MuPDF binding (github.com/gen2brain/go-fitz) the way
// other_examples/Nitro-lazypdf's actor-style Rasterizer wraps MuPDF, but
// simplified to a synchronous, mutex-guarded document handle instead of a
// request/reply channel actor, since this module's fan-out concurrency
// bound already lives one layer up in the Orchestrator (§4.E).
package rasterize

import (
	"fmt"
	"image"
	"sync"

	fitz "github.com/gen2brain/go-fitz"
)

// DefaultDPI matches spec.md §4.D's default render resolution.
const DefaultDPI = 144

// Document wraps one opened PDF. Page() may be called concurrently; MuPDF
// document handles are not safe for concurrent rendering, so calls are
// serialized internally.
type Document struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// Open loads a PDF from path.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &Document{doc: doc}, nil
}

// Close releases the underlying MuPDF handle.
func (d *Document) Close() error {
	return d.doc.Close()
}

// NumPages returns the page count (0 for a zero-page PDF, per spec.md
// §4.E's boundary case).
func (d *Document) NumPages() int {
	return d.doc.NumPage()
}

// Page renders page index (0-based) at the given DPI to an RGB bitmap,
// zoom = dpi/72 per spec.md §4.D.
func (d *Document) Page(index int, dpi int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index, err)
	}
	return img, nil
}
