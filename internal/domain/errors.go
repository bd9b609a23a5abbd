package domain

import (
	"context"
	"errors"
	"fmt"
)

// Category classifies why a single item failed.
type Category string

const (
	CategoryNone                   Category = ""
	CategoryInvalidURL             Category = "invalid_url"
	CategoryTranscriptsDisabled    Category = "transcripts_disabled"
	CategoryVideoUnavailable       Category = "video_unavailable"
	CategoryNoTranscriptFound      Category = "no_transcript_found"
	CategoryTransientNetwork       Category = "transient_network_error"
	CategoryRateLimited            Category = "rate_limited"
	CategoryTransportMisconfigured Category = "transport_misconfigured"
	CategoryFilesystem             Category = "filesystem_error"
	CategoryInterrupted            Category = "interrupted"
)

// Transient reports whether retrying the same request may succeed.
func (c Category) Transient() bool {
	return c == CategoryTransientNetwork || c == CategoryRateLimited
}

// FetchError is returned by transcript sources. Category drives the retry
// decision; Err keeps the underlying cause.
type FetchError struct {
	Category Category
	VideoID  string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.VideoID, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.VideoID, e.Category, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError for videoID.
func NewFetchError(category Category, videoID string, err error) *FetchError {
	return &FetchError{Category: category, VideoID: videoID, Err: err}
}

// CategoryOf extracts the failure category from err. Errors that carry no
// category, including a FetchError with an empty one, are treated as
// transient network errors.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Category != CategoryNone {
		return fe.Category
	}
	switch {
	case errors.Is(err, ErrInvalidURL):
		return CategoryInvalidURL
	case errors.Is(err, context.Canceled):
		return CategoryInterrupted
	}
	return CategoryTransientNetwork
}
