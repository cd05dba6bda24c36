// Package imageproc adapts the teacher's quality-adaptive image
// enhancement pipeline (internal/processor/imageprocessor.go) for the
// synchronous single-image OCR path, and adds EXIF-aware loading
// (original_source/services/vllm_direct_engine.py's _load_image) that the
// distilled spec.md doesn't mention but the original system relies on.
package imageproc

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// LoadAutoOriented opens an image file and applies its EXIF orientation,
// following vllm_direct_engine.py's _load_image (ImageOps.exif_transpose).
// imaging.Open already auto-orients via AutoOrientation, so this is a thin,
// explicitly-named entry point documenting why that option is always on
// here.
func LoadAutoOriented(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	return img, nil
}

// qualityScore buckets, mirroring the teacher's analyzeImageQuality
// thresholds (0-100 heuristic score from brightness/contrast sampling).
const (
	scoreAggressiveBelow = 40
	scoreStandardBelow   = 70
)

// Enhance runs the teacher's brightness/contrast-adaptive enhancement
// chain (resize, sharpen, contrast/brightness adjust). The synchronous OCR
// handler does not call it: it submits the auto-oriented upload as loaded.
// PDF-rendered page bitmaps skip it as well — they come pre-rasterized at
// a fixed DPI and are fed to inference directly (§4.D).
func Enhance(img image.Image, maxDimension int) image.Image {
	resized := resizeToMax(img, maxDimension)
	score := qualityScore(resized)

	switch {
	case score < scoreAggressiveBelow:
		resized = imaging.AdjustContrast(resized, 20)
		resized = imaging.AdjustBrightness(resized, 10)
		resized = imaging.Sharpen(resized, 1.5)
	case score < scoreStandardBelow:
		resized = imaging.AdjustContrast(resized, 10)
		resized = imaging.Sharpen(resized, 1.0)
	default:
		resized = imaging.Sharpen(resized, 0.5)
	}
	return resized
}

func resizeToMax(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
}

// qualityScore samples every 10th pixel for brightness/contrast, weighted
// 40/60 as in the teacher's analyzeImageQuality.
func qualityScore(img image.Image) int {
	b := img.Bounds()
	var sum, sumSq int64
	var n int64
	for y := b.Min.Y; y < b.Max.Y; y += 10 {
		for x := b.Min.X; x < b.Max.X; x += 10 {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := int64((r>>8)*30+(g>>8)*59+(bl>>8)*11) / 100
			sum += lum
			sumSq += lum * lum
			n++
		}
	}
	if n == 0 {
		return 100
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	brightnessScore := 100 - abs64(mean-128)*100/128
	contrastScore := clamp64(variance/20, 0, 100)
	score := int(brightnessScore*40/100 + contrastScore*60/100)
	return clampInt(score, 0, 100)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SaveJPEG writes img to path at the given JPEG quality. No code path in
// this module calls it.
func SaveJPEG(img image.Image, path string, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality))
}
