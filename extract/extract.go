// Package extract turns rendered page HTML into clean output: main-content
// extraction via readability, optional CSS selector scoping, and conversion
// to markdown, html, or plain text.
package extract

import (
	"math"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/steadyfetch/steadyfetch/models"
)

// Extractor runs the two-stage content pipeline. The markdown converter is
// created once and shared across requests (goroutine-safe).
type Extractor struct {
	mdConverter *converter.Converter
}

// New creates an Extractor with a pre-configured markdown converter.
func New() *Extractor {
	return &Extractor{
		mdConverter: newMarkdownConverter(),
	}
}

// Options carries per-request pipeline parameters.
type Options struct {
	// OutputFormat is "markdown" (default), "html", or "text".
	OutputFormat string

	// ExtractMode is "readability" (default) or "raw".
	ExtractMode string

	// CSSSelector scopes extraction to matching elements before any other
	// stage runs. Empty means the whole document.
	CSSSelector string
}

// Process runs the pipeline and returns a partial ScrapeResponse with
// Content, Metadata, Links, Images, OGMetadata and Tokens filled. Timing,
// status and engine fields are left for the caller.
func (e *Extractor) Process(rawHTML, sourceURL string, opts Options) (*models.ScrapeResponse, error) {
	originalTokens := EstimateTokens(rawHTML)

	scoped := rawHTML
	if opts.CSSSelector != "" {
		var err error
		scoped, err = ApplyCSSSelector(rawHTML, opts.CSSSelector)
		if err != nil {
			return nil, models.NewStageError(
				models.ErrCodeInvalidInput,
				models.StageExtract,
				"invalid css selector",
				err,
			)
		}
	}

	article := extractArticle(scoped, sourceURL, opts.ExtractMode)

	var content string
	switch opts.OutputFormat {
	case "html":
		content = article.Content
	case "text":
		content = article.TextContent
	default: // "markdown" and anything unknown
		var err error
		content, err = toMarkdown(e.mdConverter, article.Content, sourceURL)
		if err != nil {
			return nil, models.NewStageError(
				models.ErrCodeExtraction,
				models.StageExtract,
				"markdown conversion failed",
				err,
			)
		}
	}

	cleanedTokens := EstimateTokens(content)
	savingsPercent := 0.0
	if originalTokens > 0 {
		savingsPercent = float64(originalTokens-cleanedTokens) / float64(originalTokens) * 100
		savingsPercent = math.Round(savingsPercent*100) / 100
	}

	return &models.ScrapeResponse{
		Success: true,
		Content: content,
		Metadata: models.Metadata{
			Title:       article.Title,
			Description: article.Excerpt,
			SiteName:    article.SiteName,
			Author:      article.Byline,
			Language:    article.Language,
			SourceURL:   sourceURL,
		},
		Links:      ExtractLinks(rawHTML, sourceURL),
		Images:     ExtractImages(rawHTML, sourceURL),
		OGMetadata: ExtractOGMetadata(rawHTML),
		Tokens: models.TokenInfo{
			OriginalEstimate: originalTokens,
			CleanedEstimate:  cleanedTokens,
			SavingsPercent:   savingsPercent,
		},
	}, nil
}
