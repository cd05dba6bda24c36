// Package model holds the data model from spec.md §3: Task, Page Result,
// Progress Snapshot, and the box shape shared between the Grounding Codec
// and the persisted result payload.
package model

import "time"

// TaskType distinguishes a synchronous image job from an async PDF job.
type TaskType string

const (
	TaskTypeImage TaskType = "image"
	TaskTypePDF   TaskType = "pdf"
)

// TaskStatus is the Task State Machine's state, per spec.md §4.F.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Box is the persisted wire form of a detection, pixel coordinates.
type Box struct {
	Label string `json:"label" bson:"label"`
	Box   [4]int `json:"box" bson:"box"`
}

// PageResult is one page's output, owned by the Orchestrator until
// persisted into the Task row (§3 Page Result, invariants P1-P3).
type PageResult struct {
	Index       int      `json:"index" bson:"index"`
	PageNumber  int      `json:"page_number" bson:"page_number"`
	Markdown    string   `json:"markdown" bson:"markdown"`
	RawText     string   `json:"raw_text" bson:"raw_text"`
	ImageAssets []string `json:"image_assets" bson:"image_assets"`
	Boxes       []Box    `json:"boxes" bson:"boxes"`
}

// ProgressSnapshot tracks job advancement (§3 Progress Snapshot).
// Monotonic in PagesCompleted and Percent while status = running.
type ProgressSnapshot struct {
	Current        int     `json:"current" bson:"current"`
	Total          int     `json:"total" bson:"total"`
	Percent        float64 `json:"percent" bson:"percent"`
	Message        string  `json:"message" bson:"message"`
	PagesCompleted int     `json:"pages_completed,omitempty" bson:"pages_completed,omitempty"`
	PagesTotal     int     `json:"pages_total,omitempty" bson:"pages_total,omitempty"`
}

// ResultPayload is the persisted JSON shape for PDF jobs, §6.
type ResultPayload struct {
	MarkdownFile string             `json:"markdown_file" bson:"markdown_file"`
	RawJSONFile  string             `json:"raw_json_file" bson:"raw_json_file"`
	ArchiveFile  string             `json:"archive_file" bson:"archive_file"`
	Pages        []PageResult       `json:"pages" bson:"pages"`
	Images       []string           `json:"images" bson:"images"`
	Progress     ProgressSnapshot   `json:"progress" bson:"progress"`
}

// PdfProcessingResult is what the Orchestrator returns to its caller
// (§4.E step 7).
type PdfProcessingResult struct {
	MarkdownFile string
	RawJSONFile  string
	ArchiveFile  string
	Pages        []PageResult
	ImageAssets  []string
	TotalPages   int
}

// Task is the durable row the Task State Machine owns (§3 Task, §4.F).
type Task struct {
	ID            string         `bson:"_id"`
	TaskType      TaskType       `bson:"task_type"`
	Status        TaskStatus     `bson:"status"`
	InputPath     string         `bson:"input_path"`
	OutputDir     string         `bson:"output_dir,omitempty"`
	ResultPayload *ResultPayload `bson:"result_payload,omitempty"`
	ErrorMessage  string         `bson:"error_message,omitempty"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

// MaxErrorMessageLen is the truncation bound spec.md §3/§4.F name.
const MaxErrorMessageLen = 2000

// Truncate applies the 2000-char error-message cap from db/models.py's
// mark_failed, faithfully reproduced rather than "improved."
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
