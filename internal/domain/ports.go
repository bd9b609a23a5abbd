package domain

import (
	"context"
	"time"
)

// TranscriptSource is the driven port for transcript retrieval. Failures
// should be *FetchError so the caller can decide whether to retry.
type TranscriptSource interface {
	Name() string
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}

// TranscriptStore is the driven port for persisting rendered transcripts.
type TranscriptStore interface {
	// Write stores content under name, replacing any existing file, and
	// returns the resulting path.
	Write(ctx context.Context, name string, content []byte) (string, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
