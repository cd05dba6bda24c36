package grounding

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	assert.True(t, Detect("hello <|det|>[1,2,3,4]<|/det|>"))
	assert.True(t, Detect("<|grounding|>\nFree OCR."))
	assert.False(t, Detect("plain text"))
}

func TestParseFlatList(t *testing.T) {
	text := "<|ref|>Total<|/ref|><|det|>[100,200,500,600]<|/det|>"
	boxes := Parse(text, 1000, 1000)
	require.Len(t, boxes, 1)
	assert.Equal(t, "Total", boxes[0].Label)
	assert.Equal(t, 100, boxes[0].X1)
	assert.Equal(t, 200, boxes[0].Y1)
	assert.Equal(t, 500, boxes[0].X2)
	assert.Equal(t, 600, boxes[0].Y2)
}

func TestParseListOfLists(t *testing.T) {
	text := "<|ref|>cell<|/ref|><|det|>[[0,0,100,100],[200,200,300,300]]<|/det|>"
	boxes := Parse(text, 999, 999)
	require.Len(t, boxes, 2)
	assert.Equal(t, "cell", boxes[1].Label)
}

func TestParsePairOfPoints(t *testing.T) {
	text := "<|ref|>box<|/ref|><|det|>[[10,20],[30,40]]<|/det|>"
	boxes := Parse(text, 999, 999)
	require.Len(t, boxes, 1)
	assert.Equal(t, 10, boxes[0].X1)
	assert.Equal(t, 20, boxes[0].Y1)
	assert.Equal(t, 30, boxes[0].X2)
	assert.Equal(t, 40, boxes[0].Y2)
}

func TestParseMalformedBlockSkippedSilently(t *testing.T) {
	text := "before <|ref|>bad<|/ref|><|det|>[1,2,3]<|/det|> after <|ref|>ok<|/ref|><|det|>[0,0,1,1]<|/det|>"
	boxes := Parse(text, 999, 999)
	require.Len(t, boxes, 1)
	assert.Equal(t, "ok", boxes[0].Label)
}

func TestCleanGroundingText(t *testing.T) {
	text := "# Title\n<|grounding|>\n<|ref|>Total<|/ref|><|det|>[[0,0,1,1]]<|/det|>\nbody"
	cleaned := CleanGroundingText(text)
	assert.NotContains(t, cleaned, "<|det|>")
	assert.NotContains(t, cleaned, "<|ref|>")
	assert.NotContains(t, cleaned, "<|grounding|>")
	assert.Contains(t, cleaned, "Total")
	assert.Contains(t, cleaned, "body")
}

func TestRewriteIdentityWithNoBlocks(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	out, assets, err := Rewrite("  plain text  ", img, 0, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
	assert.Empty(t, assets)
}

func TestRewriteFigureCrop(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 1024, 1024))
	for y := 0; y < 1024; y++ {
		for x := 0; x < 1024; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	text := "# Title\n<|ref|>image<|/ref|><|det|>[[0,0,999,999]]<|/det|>\nbody"
	out, assets, err := Rewrite(text, img, 0, dir)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, filepath.Join("images", "page-0-img-0.jpg"), assets[0])
	assert.Contains(t, out, "![](images/page-0-img-0.jpg)")
	_, statErr := os.Stat(filepath.Join(dir, "page-0-img-0.jpg"))
	assert.NoError(t, statErr)
}

func TestRewriteDegenerateBoxFallsBackToLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	text := "<|ref|>image<|/ref|><|det|>[[10,10,10,10]]<|/det|>"
	out, assets, err := Rewrite(text, img, 0, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.Equal(t, "image", out)
}

func TestRewriteNonImageLabelKeepsBareLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	text := "<|ref|>Total<|/ref|><|det|>[[0,0,50,50]]<|/det|>"
	out, assets, err := Rewrite(text, img, 0, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.Equal(t, "Total", out)
}
