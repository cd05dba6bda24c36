package imageproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResizeToMaxNoOpWhenSmaller(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	out := resizeToMax(img, 200)
	assert.Equal(t, 100, out.Bounds().Dx())
}

func TestResizeToMaxShrinksLargerDimension(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	out := resizeToMax(img, 1000)
	assert.LessOrEqual(t, out.Bounds().Dx(), 1000)
	assert.LessOrEqual(t, out.Bounds().Dy(), 1000)
}

func TestQualityScoreRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	score := qualityScore(img)
	assert.GreaterOrEqual(t, score, 0)
	assert.LessOrEqual(t, score, 100)
}

func TestEnhanceReturnsSameDimensionsWhenUnderMax(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	out := Enhance(img, 2000)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
}
