package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPlainOCR(t *testing.T) {
	assert.Equal(t, "<image>\nFree OCR.", Build(ModePlainOCR, Options{}))
}

func TestBuildFindRefForcesGrounding(t *testing.T) {
	p := Build(ModeFindRef, Options{FindTerm: "Total"})
	assert.Equal(t, "<image>\n<|grounding|>\nLocate <|ref|>Total<|/ref|> in the image.", p)
}

func TestBuildFindRefDefaultTerm(t *testing.T) {
	p := Build(ModeFindRef, Options{})
	assert.Contains(t, p, "<|ref|>Total<|/ref|>")
}

func TestBuildFreeformDefault(t *testing.T) {
	assert.Equal(t, "<image>\nOCR this image.", Build(ModeFreeform, Options{}))
}

func TestBuildFreeformVerbatim(t *testing.T) {
	p := Build(ModeFreeform, Options{UserPrompt: "Summarize this page."})
	assert.Equal(t, "<image>\nSummarize this page.", p)
}

func TestBuildIncludeCaptionSkippedForDescribe(t *testing.T) {
	p := Build(ModeDescribe, Options{IncludeCaption: true})
	assert.Equal(t, "<image>\nDescribe the image.", p)
}

func TestBuildIncludeCaptionAppended(t *testing.T) {
	p := Build(ModeMarkdown, Options{IncludeCaption: true})
	assert.Contains(t, p, "Then add a one-paragraph description of the image.")
}

func TestGroundingHelperMatchesBuild(t *testing.T) {
	assert.True(t, Grounding(ModeLayoutMap, Options{}))
	assert.True(t, Grounding(ModePIIRedact, Options{}))
	assert.False(t, Grounding(ModePlainOCR, Options{}))
	assert.True(t, Grounding(ModePlainOCR, Options{Grounding: true}))
}
