package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, metrics labels and the failure diagnostics.
const (
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeCaptchaTimeout    = "CAPTCHA_TIMEOUT"
	ErrCodeContentMissing    = "CONTENT_MISSING"
	ErrCodeExtractionPanic   = "EXTRACTION_PANIC"
	ErrCodeDiscoveryEmpty    = "DISCOVERY_EMPTY"
	ErrCodeDiscoveryFailed   = "DISCOVERY_FAILED"
	ErrCodeSessionFatal      = "SESSION_FATAL"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodePersistFailed     = "PERSIST_FAILED"
)

var (
	// ErrBatchClosed is returned when appending to a batch that was already closed.
	ErrBatchClosed = errors.New("batch is closed")

	// ErrDuplicateSource is returned when a successful record for the same
	// source URL is already present in the batch.
	ErrDuplicateSource = errors.New("source url already recorded")
)

// CrawlError is the internal error type carrying an error code and the
// target it happened on. It supports error wrapping via Unwrap.
type CrawlError struct {
	Code    string
	Message string
	URL     string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message, url string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, URL: url, Err: err}
}

// CodeOf returns the code of the first CrawlError in err's chain,
// or "other" when there is none.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "other"
}

// IsFatal reports whether err aborts the whole session.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeSessionFatal
}
