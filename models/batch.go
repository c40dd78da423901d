package models

import (
	"sync"
	"time"
)

// BatchRequest is the payload for POST /api/v1/batch/scrape.
type BatchRequest struct {
	// URLs is the list of target pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared scrape options applied to all URLs.
	Options BatchOptions `json:"options"`

	// WebhookURL, when set, receives a batch.completed event once all URLs
	// have been processed.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchOptions are the shared scrape settings applied to every URL in a batch.
type BatchOptions struct {
	OutputFormat     string              `json:"output_format,omitempty" binding:"omitempty,oneof=markdown html text"`
	ExtractMode      string              `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`
	Timeout          int                 `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	Stealth          bool                `json:"stealth,omitempty"`
	SimulateBehavior bool                `json:"simulate_behavior,omitempty"`
	Interaction      *InteractionOptions `json:"interaction,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/batch/scrape.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch scrape operation. Results land from
// concurrent workers while status polls read them, so all mutable state sits
// behind the job's mutex; read through Snapshot.
type BatchJob struct {
	ID         string
	Total      int
	WebhookURL string
	CreatedAt  int64 // unix timestamp

	mu      sync.Mutex
	status  string // "processing", "completed", "failed", "partial"
	done    int
	results []*ScrapeResponse
}

// NewBatchJob registers a job of total URLs in the "processing" state.
func NewBatchJob(id string, total int, webhookURL string) *BatchJob {
	return &BatchJob{
		ID:         id,
		Total:      total,
		WebhookURL: webhookURL,
		CreatedAt:  time.Now().Unix(),
		status:     "processing",
		results:    make([]*ScrapeResponse, total),
	}
}

// SetResult records the outcome for one URL slot and bumps the completion
// count.
func (j *BatchJob) SetResult(idx int, resp *ScrapeResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = resp
	j.done++
}

// Finish moves the job to its terminal status.
func (j *BatchJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Status returns the job's current status.
func (j *BatchJob) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Snapshot returns a consistent point-in-time view of the job, with the
// results slice copied so callers never alias worker-written memory.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ScrapeResponse, len(j.results))
	copy(results, j.results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: j.done,
		Total:     j.Total,
		Results:   results,
	}
}
