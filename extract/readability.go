package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to count as a successful extraction. Below it we assume
// the algorithm missed the main content and fall back to the full HTML.
const minContentLength = 50

// extractArticle produces the article for the requested mode. "raw" skips
// readability entirely; everything else runs readability with a raw-HTML
// fallback so the pipeline never fails just because extraction choked.
func extractArticle(rawHTML, sourceURL, mode string) readability.Article {
	if mode == "raw" {
		return fallbackArticle(rawHTML)
	}

	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source url, using raw html",
			"url", sourceURL, "error", err)
		return fallbackArticle(rawHTML)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, using raw html",
			"url", sourceURL, "error", err)
		return fallbackArticle(rawHTML)
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("readability: extracted content too short, using raw html",
			"url", sourceURL, "length", len(article.TextContent))
		return fallbackArticle(rawHTML)
	}

	return article
}

// fallbackArticle wraps raw HTML into an Article so downstream stages run
// uniformly regardless of whether readability succeeded.
func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{
		Content:     rawHTML,
		TextContent: rawHTML,
	}
}
