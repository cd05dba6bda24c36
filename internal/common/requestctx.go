// Package common holds the per-job logging/timing context shared by the
// synchronous OCR handler and the PDF dispatcher, adapted from the
// teacher's request_context.go step/substep timing machinery.
package common

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// RequestContext tracks one unit of work (an HTTP request or a dispatched
// task) end to end: timing per step, token usage, and a final summary.
type RequestContext struct {
	JobID            string
	StartTime        time.Time
	Steps            []StepLog
	TotalTokens      TokenUsage
	CurrentStep      string
	CurrentStepStart time.Time
}

// StepLog is one bracketed phase of work (StartStep/EndStep).
type StepLog struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Status   string // "success", "failed"
	Tokens   *TokenUsage
	Error    string
}

// TokenUsage tracks model token consumption, carried over from the
// teacher's cost-accounting struct but without receipt-specific pricing
// tiers.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// stepDescriptions labels the phases this domain's jobs go through; unlike
// the teacher's Thai receipt-step map, these name grounded-OCR phases.
var stepDescriptions = map[string]string{
	"rasterize":       "rasterize page",
	"infer":           "inference call",
	"rewrite_grounding": "rewrite grounding markup",
	"parse_boxes":     "parse detection boxes",
	"write_artifacts": "write result artifacts",
}

// NewRequestContext starts a new job/request context with a fresh id.
func NewRequestContext() *RequestContext {
	id := uuid.New().String()
	now := time.Now()
	log.Printf("[%s] start %s", id, now.Format(time.RFC3339))
	return &RequestContext{JobID: id, StartTime: now}
}

// StartStep begins timing a named phase.
func (rc *RequestContext) StartStep(name string) {
	rc.CurrentStep = name
	rc.CurrentStepStart = time.Now()
	desc := stepDescriptions[name]
	if desc == "" {
		desc = name
	}
	log.Printf("[%s] -> %s", rc.JobID, desc)
}

// EndStep closes the current phase, recording duration/status/tokens.
func (rc *RequestContext) EndStep(status string, tokens *TokenUsage, err error) {
	d := time.Since(rc.CurrentStepStart)
	step := StepLog{Name: rc.CurrentStep, Start: rc.CurrentStepStart, Duration: d, Status: status, Tokens: tokens}
	if err != nil {
		step.Error = err.Error()
		log.Printf("[%s] FAILED %s (%s): %v", rc.JobID, rc.CurrentStep, d, err)
	} else {
		if tokens != nil {
			rc.TotalTokens.InputTokens += tokens.InputTokens
			rc.TotalTokens.OutputTokens += tokens.OutputTokens
			rc.TotalTokens.TotalTokens += tokens.TotalTokens
		}
		log.Printf("[%s] done %s (%s)", rc.JobID, rc.CurrentStep, d)
	}
	rc.Steps = append(rc.Steps, step)
}

// LogInfo/LogWarning/LogError prefix every line with the job id, matching
// the teacher's per-request logger idiom.
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	log.Printf("[%s] "+format, append([]interface{}{rc.JobID}, args...)...)
}

func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	log.Printf("[%s] WARN "+format, append([]interface{}{rc.JobID}, args...)...)
}

func (rc *RequestContext) LogError(format string, args ...interface{}) {
	log.Printf("[%s] ERROR "+format, append([]interface{}{rc.JobID}, args...)...)
}

// Summary produces the end-of-job structured log line.
func (rc *RequestContext) Summary() string {
	total := time.Since(rc.StartTime)
	return fmt.Sprintf("[%s] summary: %d steps, total %s, tokens in=%d out=%d",
		rc.JobID, len(rc.Steps), total, rc.TotalTokens.InputTokens, rc.TotalTokens.OutputTokens)
}
