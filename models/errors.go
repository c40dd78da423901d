package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout             = "SCRAPE_TIMEOUT"
	ErrCodeNavigation          = "NAVIGATION_FAILED"
	ErrCodeExtraction          = "CONTENT_EXTRACTION_FAILED"
	ErrCodeBrowserCrash        = "BROWSER_CRASH"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeDomainBlocked       = "DOMAIN_BLOCKED"
	ErrCodeChallengeUnresolved = "CHALLENGE_UNRESOLVED"
	ErrCodeInteractionFailed   = "INTERACTION_FAILED"
)

// Stages of the per-URL acquisition flow. A failed scrape carries the stage
// that produced the failure so callers can tell a navigation error from an
// unresolved challenge.
const (
	StageAcquire     = "acquire"
	StageNavigate    = "navigate"
	StageChallenge   = "challenge"
	StageBehavior    = "behavior"
	StageInteraction = "interaction"
	StageExtract     = "extract"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// ScrapeError is the internal error type carrying an error code and the
// acquisition stage that produced it. It implements the error interface and
// supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Stage   string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// NewStageError creates a ScrapeError tagged with its originating stage.
func NewStageError(code, stage, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Stage: stage, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message, Stage: e.Stage}
}
