// Archive and artifact writing for the Job Orchestrator (§4.E step 6):
// result.md, raw.json, and result.zip packaged with deflate, upgraded from
// stdlib's built-in (S2-less) deflate to klauspost/compress's faster
// implementation the way the teacher's go.mod already pulls it in as an
// indirect dependency of the gin/mongo-driver stack.
package orchestrator

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	kflate "github.com/klauspost/compress/flate"

	"github.com/bosocmputer/groundocr/internal/errs"
	"github.com/bosocmputer/groundocr/internal/model"
)

func init() {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return kflate.NewWriter(w, kflate.BestSpeed)
	})
}

// markdownForPages joins page markdown blocks with the separator and
// per-page HTML comment marker §4.E step 6 specifies. An empty page
// markdown (after trimming) is still included with its marker.
func markdownForPages(pages []model.PageResult) string {
	blocks := make([]string, len(pages))
	for i, p := range pages {
		blocks[i] = fmt.Sprintf("<!-- page:%d -->\n%s", p.Index, strings.TrimSpace(p.Markdown))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// finalize writes result.md, raw.json and result.zip into outputDir and
// returns the orchestrator's return value (§4.E step 7).
func finalize(outputDir string, pages []model.PageResult, totalPages int) (model.PdfProcessingResult, error) {
	if pages == nil {
		pages = []model.PageResult{}
	}
	allAssets := []string{}
	for _, p := range pages {
		allAssets = append(allAssets, p.ImageAssets...)
	}

	mdPath := filepath.Join(outputDir, "result.md")
	if err := os.WriteFile(mdPath, []byte(markdownForPages(pages)), 0o644); err != nil {
		return model.PdfProcessingResult{}, errs.Wrap(errs.ErrIO, fmt.Errorf("write result.md: %w", err))
	}

	payload := model.ResultPayload{
		MarkdownFile: "result.md",
		RawJSONFile:  "raw.json",
		ArchiveFile:  "result.zip",
		Pages:        pages,
		Images:       allAssets,
		Progress: model.ProgressSnapshot{
			Current:        totalPages,
			Total:          totalPages,
			Percent:        percentOf(totalPages),
			Message:        messageFor(totalPages),
			PagesCompleted: totalPages,
			PagesTotal:     totalPages,
		},
	}
	rawJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return model.PdfProcessingResult{}, errs.Wrap(errs.ErrIO, fmt.Errorf("marshal raw.json: %w", err))
	}
	rawPath := filepath.Join(outputDir, "raw.json")
	if err := os.WriteFile(rawPath, rawJSON, 0o644); err != nil {
		return model.PdfProcessingResult{}, errs.Wrap(errs.ErrIO, fmt.Errorf("write raw.json: %w", err))
	}

	zipPath := filepath.Join(outputDir, "result.zip")
	if err := writeArchive(zipPath, mdPath, rawPath, outputDir, allAssets); err != nil {
		return model.PdfProcessingResult{}, errs.Wrap(errs.ErrIO, err)
	}

	return model.PdfProcessingResult{
		MarkdownFile: mdPath,
		RawJSONFile:  rawPath,
		ArchiveFile:  zipPath,
		Pages:        pages,
		ImageAssets:  allAssets,
		TotalPages:   totalPages,
	}, nil
}

func percentOf(totalPages int) float64 {
	if totalPages == 0 {
		return 100
	}
	return 100
}

func messageFor(totalPages int) string {
	if totalPages == 0 {
		return "no pages detected"
	}
	return "done"
}

func writeArchive(zipPath, mdPath, rawPath, outputDir string, assets []string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create result.zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := addFileToZip(zw, mdPath, "result.md"); err != nil {
		return err
	}
	if err := addFileToZip(zw, rawPath, "raw.json"); err != nil {
		return err
	}
	for _, rel := range assets {
		if err := addFileToZip(zw, filepath.Join(outputDir, rel), rel); err != nil {
			return err
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, path, nameInZip string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: filepath.ToSlash(nameInZip), Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("zip header %s: %w", nameInZip, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("zip write %s: %w", nameInZip, err)
	}
	return nil
}
