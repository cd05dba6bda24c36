// Package grounding implements the detect/parse/rewrite operations over
// <|ref|>...<|/ref|><|det|>...<|/det|> detection blocks emitted by the OCR
// model, and the coordinate rescaling rules that go with them.
package grounding

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// detBlock matches a full detection block. Labels may contain anything
// except the closing ref sentinel; the coordinate body is matched
// non-greedily up to the closing det sentinel.
var detBlock = regexp.MustCompile(`(?s)<\|ref\|>(.*?)<\|/ref\|>\s*<\|det\|>\s*(\[.*?\])\s*<\|/det\|>`)

const groundingSentinel = "<|grounding|>"

// coordDenominator is the model's normalized coordinate range. It is
// literally 999 in the training data; do not "correct" it to 1000.
const coordDenominator = 999

// Box is a single labeled bounding box in pixel coordinates.
type Box struct {
	Label string
	X1    int
	Y1    int
	X2    int
	Y2    int
}

// AsSlice returns the box in the wire form [x1,y1,x2,y2].
func (b Box) AsSlice() [4]int { return [4]int{b.X1, b.Y1, b.X2, b.Y2} }

// Detect reports whether text carries any grounding sentinel.
func Detect(text string) bool {
	return strings.Contains(text, "<|det|>") ||
		strings.Contains(text, "<|ref|>") ||
		strings.Contains(text, groundingSentinel)
}

// Parse finds every detection block in text and rescales its normalized
// coordinates to pixels of a W×H image. Malformed blocks yield zero boxes
// but never abort the scan; ordering matches textual order, and a label
// with multiple coordinate tuples yields multiple entries sharing it.
func Parse(text string, w, h int) []Box {
	var boxes []Box
	for _, m := range detBlock.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		tuples, err := normalizeCoords(m[2])
		if err != nil {
			continue // ParseError absorbed: block contributes zero boxes
		}
		for _, t := range tuples {
			if len(t) < 4 {
				continue
			}
			boxes = append(boxes, Box{
				Label: label,
				X1:    scale(t[0], w),
				Y1:    scale(t[1], h),
				X2:    scale(t[2], w),
				Y2:    scale(t[3], h),
			})
		}
	}
	return boxes
}

func scale(v float64, dim int) int {
	return int(v / coordDenominator * float64(dim))
}

// normalizeCoords parses the s-expression-like coordinate body and
// normalizes it to a slice of 4-tuples, accepting the three variants
// spec'd for Detection Block: flat [x1,y1,x2,y2], list-of-lists, and
// pair-of-points [[x1,y1],[x2,y2]].
func normalizeCoords(raw string) ([][]float64, error) {
	toks, err := tokenizeCoordList(raw)
	if err != nil {
		return nil, err
	}
	switch v := toks.(type) {
	case []float64:
		if len(v) != 4 {
			return nil, fmt.Errorf("flat coord list has %d elements, want 4", len(v))
		}
		return [][]float64{v}, nil
	case [][]float64:
		if len(v) == 2 && len(v[0]) == 2 && len(v[1]) == 2 {
			return [][]float64{{v[0][0], v[0][1], v[1][0], v[1][1]}}, nil
		}
		return v, nil
	default:
		return nil, errors.New("unsupported coordinate shape")
	}
}

// tokenizeCoordList parses a bracketed, comma-separated numeric list that
// is either flat ("[1,2,3,4]") or nested ("[[1,2,3,4],[5,6,7,8]]"),
// returning []float64 or [][]float64. It is a minimal literal-list parser,
// not a general expression evaluator — the model only ever emits this
// shape.
func tokenizeCoordList(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return nil, fmt.Errorf("not a bracketed list: %q", raw)
	}
	inner := raw[1 : len(raw)-1]
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return nil, errors.New("empty coordinate list")
	}
	if strings.HasPrefix(inner, "[") {
		groups, err := splitTopLevelGroups(inner)
		if err != nil {
			return nil, err
		}
		out := make([][]float64, 0, len(groups))
		for _, g := range groups {
			nums, err := parseNumberList(g)
			if err != nil {
				return nil, err
			}
			out = append(out, nums)
		}
		return out, nil
	}
	nums, err := parseNumberList(inner)
	if err != nil {
		return nil, err
	}
	return nums, nil
}

func splitTopLevelGroups(s string) ([]string, error) {
	var groups []string
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced brackets")
			}
			if depth == 0 {
				groups = append(groups, s[start+1:i])
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced brackets")
	}
	return groups, nil
}

func parseNumberList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	nums := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", p, err)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// CleanGroundingText strips every detection block, keeping only its label,
// and strips bare grounding sentinels. Used by the sync OCR path and by
// Rewrite's text half.
func CleanGroundingText(text string) string {
	cleaned := detBlock.ReplaceAllString(text, "$1")
	cleaned = strings.ReplaceAll(cleaned, groundingSentinel, "")
	return strings.TrimSpace(cleaned)
}

// Rewrite replaces each detection block in text with either a markdown
// image reference (label "image", case-insensitive, with at least one
// valid box) pointing at a JPEG cropped from pageImage, or the bare label
// otherwise. Degenerate boxes (x2<=x1 or y2<=y1) are skipped for cropping
// purposes — "image" blocks whose only box is degenerate fall back to the
// bare label. Asset filenames are deterministic:
// images/page-{pageIndex}-img-{k}.jpg in insertion order.
func Rewrite(text string, pageImage image.Image, pageIndex int, assetsDir string) (markdown string, assetPaths []string, err error) {
	assetCounter := 0
	var rewriteErr error
	out := detBlock.ReplaceAllStringFunc(text, func(block string) string {
		if rewriteErr != nil {
			return block
		}
		m := detBlock.FindStringSubmatch(block)
		label := strings.TrimSpace(m[1])
		tuples, perr := normalizeCoords(m[2])
		if perr != nil || len(tuples) == 0 {
			return label
		}
		if !strings.EqualFold(label, "image") {
			return label
		}
		var refs []string
		for _, t := range tuples {
			if len(t) < 4 {
				continue
			}
			box := Box{
				X1: scale(t[0], pageImage.Bounds().Dx()),
				Y1: scale(t[1], pageImage.Bounds().Dy()),
				X2: scale(t[2], pageImage.Bounds().Dx()),
				Y2: scale(t[3], pageImage.Bounds().Dy()),
			}
			if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
				continue
			}
			name := fmt.Sprintf("page-%d-img-%d.jpg", pageIndex, assetCounter)
			relPath := filepath.Join("images", name)
			if err := cropAndSave(pageImage, box, filepath.Join(assetsDir, name)); err != nil {
				rewriteErr = err
				return block
			}
			assetCounter++
			assetPaths = append(assetPaths, relPath)
			refs = append(refs, fmt.Sprintf("![](%s)", filepath.ToSlash(relPath)))
		}
		if len(refs) == 0 {
			return label
		}
		return strings.Join(refs, "\n")
	})
	if rewriteErr != nil {
		return "", nil, rewriteErr
	}
	out = strings.ReplaceAll(out, groundingSentinel, "")
	return strings.TrimSpace(out), assetPaths, nil
}

// cropAndSave crops box from img and writes it as a quality-95 JPEG at
// path, used for the §4.A rewrite figure-extraction rule.
func cropAndSave(img image.Image, box Box, path string) error {
	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
	cropped := imaging.Crop(img, rect)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create asset %s: %w", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, cropped, &jpeg.Options{Quality: 95}); err != nil {
		return fmt.Errorf("encode asset %s: %w", path, err)
	}
	return nil
}
