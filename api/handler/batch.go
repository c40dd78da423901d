package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/steadyfetch/steadyfetch/extract"
	"github.com/steadyfetch/steadyfetch/models"
	"github.com/steadyfetch/steadyfetch/scraper"
	"github.com/steadyfetch/steadyfetch/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Expire batch jobs older than an hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				if value.(*models.BatchJob).CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/scrape. It validates the
// request, registers a batch job, and processes the URLs in the background.
func PostBatch(sc *scraper.Scraper, ex *extract.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := models.NewBatchJob(jobID, len(req.URLs), req.WebhookURL)
		batchStore.Store(jobID, job)

		go runBatch(sc, ex, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := batchStore.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch scrapes every URL with concurrency capped at the page pool size,
// then fires the completion webhook when one is configured.
func runBatch(sc *scraper.Scraper, ex *extract.Extractor, job *models.BatchJob, req models.BatchRequest) {
	maxConcurrent := sc.Stats().MaxPages
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	var succeeded, failed atomic.Int32

	for i, rawURL := range req.URLs {
		idx, targetURL := i, rawURL
		g.Go(func() error {
			resp := scrapeOne(sc, ex, targetURL, req.Options)
			job.SetResult(idx, resp)

			if resp.Success {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	failedCount := int(failed.Load())
	switch {
	case failedCount == job.Total:
		job.Finish("failed")
	case failedCount > 0:
		job.Finish("partial")
	default:
		job.Finish("completed")
	}

	status := job.Status()
	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"succeeded", int(succeeded.Load()),
		"failed", failedCount,
		"total", job.Total,
	)

	if job.WebhookURL != "" {
		snap := job.Snapshot()
		snap.Results = nil
		webhook.DeliverAsync(job.WebhookURL, "", &webhook.Event{
			Type:      "batch." + status,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      snap,
		})
	}
}

// scrapeOne performs a single scrape + extraction using the shared batch options.
func scrapeOne(sc *scraper.Scraper, ex *extract.Extractor, targetURL string, opts models.BatchOptions) *models.ScrapeResponse {
	totalStart := time.Now()

	sreq := &models.ScrapeRequest{
		URL:              targetURL,
		OutputFormat:     opts.OutputFormat,
		ExtractMode:      opts.ExtractMode,
		Timeout:          opts.Timeout,
		Stealth:          opts.Stealth,
		SimulateBehavior: opts.SimulateBehavior,
		Interaction:      opts.Interaction,
	}
	sreq.Defaults()

	navStart := time.Now()
	result, err := sc.DoScrape(context.Background(), sreq)
	navigationMs := time.Since(navStart).Milliseconds()

	if err != nil {
		return errorResponse(err, models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: navigationMs,
		})
	}

	extractStart := time.Now()
	resp, err := ex.Process(result.RawHTML, sreq.URL, extract.Options{
		OutputFormat: sreq.OutputFormat,
		ExtractMode:  sreq.ExtractMode,
	})
	extractionMs := time.Since(extractStart).Milliseconds()

	if err != nil {
		return errorResponse(err, models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: navigationMs,
			ExtractionMs: extractionMs,
		})
	}

	if resp.Metadata.Title == "" {
		resp.Metadata.Title = result.Title
	}
	resp.StatusCode = result.StatusCode
	resp.FinalURL = result.FinalURL
	resp.EngineUsed = result.EngineUsed
	resp.Challenge = result.Challenge
	resp.Interaction = result.Interaction
	resp.Timing = models.TimingInfo{
		TotalMs:      time.Since(totalStart).Milliseconds(),
		NavigationMs: navigationMs,
		ExtractionMs: extractionMs,
	}

	return resp
}

func errorResponse(err error, timing models.TimingInfo) *models.ScrapeResponse {
	scrapeErr, ok := err.(*models.ScrapeError)
	if !ok {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	return &models.ScrapeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
