package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bosocmputer/groundocr/internal/common"
	"github.com/bosocmputer/groundocr/internal/grounding"
	"github.com/bosocmputer/groundocr/internal/imageproc"
	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/bosocmputer/groundocr/internal/prompt"
)

// HealthHandler serves GET /health (§6).
func (s *Server) HealthHandler(c *gin.Context) {
	loaded := true
	if s.ModelLoaded != nil {
		loaded = s.ModelLoaded()
	}
	status := "healthy"
	if !loaded {
		status = "starting"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"model_loaded":     loaded,
		"inference_engine": "vllm_direct",
	})
}

// ocrResponseBox mirrors §6's boxes wire shape.
type ocrResponseBox struct {
	Label string `json:"label"`
	Box   [4]int `json:"box"`
}

// OCRHandler serves POST /api/ocr, the synchronous single-image path
// (§6), following original_source/backend/app/api/routes.py's control
// flow: save upload -> dimensions -> build prompt -> infer -> (if
// grounding tags present) parse + clean -> respond.
func (s *Server) OCRHandler(c *gin.Context) {
	rc := common.NewRequestContext()
	defer func() { rc.LogInfo("%s", rc.Summary()) }()

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("InputError: %v", err)})
		return
	}

	rc.StartStep("rasterize")
	uploadPath, cleanup, err := s.saveUpload(fileHeader)
	if err != nil {
		rc.EndStep("failed", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("IOError: %v", err)})
		return
	}
	defer cleanup()

	mode := prompt.Mode(c.DefaultPostForm("mode", string(prompt.ModePlainOCR)))
	opts := prompt.Options{
		Grounding:      parseBool(c.PostForm("grounding")),
		IncludeCaption: parseBool(c.PostForm("include_caption")),
		FindTerm:       c.PostForm("find_term"),
		Schema:         c.PostForm("schema"),
		UserPrompt:     c.PostForm("prompt"),
	}

	img, err := imageproc.LoadAutoOriented(uploadPath)
	if err != nil {
		rc.EndStep("failed", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("InputError: %v", err)})
		return
	}
	rc.EndStep("success", nil, nil)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	sizing := s.DefaultSizing
	if v := c.PostForm("base_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sizing.BaseSize = n
		}
	}
	if v := c.PostForm("image_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sizing.ImageSize = n
		}
	}
	if v := c.PostForm("crop_mode"); v != "" {
		sizing.CropMode = parseBool(v)
	}
	sizing.TestCompress = parseBool(c.PostForm("test_compress")) // reserved, no effect

	builtPrompt := prompt.Build(mode, opts)

	rc.StartStep("infer")
	rawText, err := s.Client.Submit(c.Request.Context(), builtPrompt, img, sizing)
	if err != nil {
		rc.EndStep("failed", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("InferenceError: %v", err)})
		return
	}
	rc.EndStep("success", nil, nil)

	var boxes []ocrResponseBox
	displayText := rawText
	hasGrounding := grounding.Detect(rawText)
	if hasGrounding {
		rc.StartStep("parse_boxes")
		for _, b := range grounding.Parse(rawText, w, h) {
			boxes = append(boxes, ocrResponseBox{Label: b.Label, Box: b.AsSlice()})
		}
		rc.EndStep("success", nil, nil)

		rc.StartStep("rewrite_grounding")
		displayText = grounding.CleanGroundingText(rawText)
		rc.EndStep("success", nil, nil)
	}
	// Fallback: if cleaned text is empty but boxes were found, show the
	// comma-joined labels instead (original_source/api/routes.py).
	if strings.TrimSpace(displayText) == "" && len(boxes) > 0 {
		labels := make([]string, len(boxes))
		for i, b := range boxes {
			labels[i] = b.Label
		}
		displayText = strings.Join(labels, ", ")
	}

	groundingEnabled := prompt.Grounding(mode, opts)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"text":       displayText,
		"raw_text":   rawText,
		"boxes":      boxes,
		"image_dims": gin.H{"w": w, "h": h},
		"metadata": gin.H{
			"mode":             mode,
			"grounding":        groundingEnabled,
			"base_size":        sizing.BaseSize,
			"image_size":       sizing.ImageSize,
			"crop_mode":        sizing.CropMode,
			"inference_engine": "vllm_direct",
		},
	})
}

// internalInferRequest mirrors the Remote backend's wire payload (§4.C,
// §6 /internal/infer).
type internalInferRequest struct {
	Prompt       string `json:"prompt"`
	ImageBase64  string `json:"image_base64"`
	BaseSize     int    `json:"base_size"`
	ImageSize    int    `json:"image_size"`
	CropMode     bool   `json:"crop_mode"`
	TestCompress bool   `json:"test_compress"`
}

// InternalInferHandler serves POST /internal/infer for the remote-backend
// deployment shape, guarded by the shared X-Internal-Token secret.
func (s *Server) InternalInferHandler(c *gin.Context) {
	if s.InternalToken == "" || c.GetHeader("X-Internal-Token") != s.InternalToken {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
		return
	}

	var req internalInferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("InputError: %v", err)})
		return
	}

	var img image.Image
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("InputError: bad image_base64: %v", err)})
			return
		}
		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("InputError: decode image: %v", err)})
			return
		}
		img = decoded
	}

	sizing := inference.Sizing{BaseSize: req.BaseSize, ImageSize: req.ImageSize, CropMode: req.CropMode, TestCompress: req.TestCompress}
	text, err := s.Client.Submit(context.Background(), req.Prompt, img, sizing)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("InferenceError: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// saveUpload chunk-copies the multipart file to UploadDir, following
// original_source/services/storage.py's save_upload_file (bounded-chunk
// copy rather than slurping the body). Falls back to sniffMime when the
// declared Content-Type is missing or generic, and rejects anything that
// doesn't resolve to an image/* type.
func (s *Server) saveUpload(fh *multipart.FileHeader) (path string, cleanup func(), err error) {
	src, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(fh.Filename))
	dstPath := filepath.Join(s.UploadDir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", nil, fmt.Errorf("create dest file: %w", err)
	}
	defer dst.Close()

	const chunkSize = 1 << 20 // 1 MiB chunks, matching storage.py's bounded copy
	if _, err := io.CopyBuffer(dst, src, make([]byte, chunkSize)); err != nil {
		os.Remove(dstPath)
		return "", nil, fmt.Errorf("copy upload: %w", err)
	}

	// The multipart part's declared Content-Type is client-supplied and
	// often absent or generic; sniff the saved bytes as a fallback so we
	// don't trust an empty or octet-stream declaration.
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if sniffed, err := sniffMime(dstPath); err == nil {
			contentType = sniffed
		}
	}
	if !strings.HasPrefix(contentType, "image/") {
		os.Remove(dstPath)
		return "", nil, fmt.Errorf("unsupported upload content type %q", contentType)
	}

	return dstPath, func() { os.Remove(dstPath) }, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// sniffMime content-sniffs a saved upload when a caller needs a
// fallback content type beyond what the multipart part declared.
func sniffMime(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}
