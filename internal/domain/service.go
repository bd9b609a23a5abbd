package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// FetchState is a step in the per-video fetch state machine.
type FetchState string

const (
	StatePending          FetchState = "pending"
	StateFetching         FetchState = "fetching"
	StateRetryableFailure FetchState = "retryable_failure"
	StateSucceeded        FetchState = "succeeded"
	StatePermanentFailure FetchState = "permanent_failure"
	StateRetryExhausted   FetchState = "retry_exhausted"
)

// Terminal reports whether no further attempt follows this state.
func (s FetchState) Terminal() bool {
	return s == StateSucceeded || s == StatePermanentFailure || s == StateRetryExhausted
}

// RetryPolicy bounds the fetch loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Jitter is the backoff randomization factor in [0, 1).
	Jitter float64
}

// DefaultRetryPolicy mirrors the configuration defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   5 * time.Second,
	MaxDelay:    60 * time.Second,
	Multiplier:  2.0,
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = p.Multiplier
	if bo.Multiplier < 1 {
		bo.Multiplier = 1
	}
	bo.RandomizationFactor = p.Jitter
	bo.Reset()
	return bo
}

// FetchReport describes how a fetch ended.
type FetchReport struct {
	Attempts int
	State    FetchState
}

// TranscriptService fetches transcripts through a source, retrying
// transient failures.
type TranscriptService struct {
	source TranscriptSource
	policy RetryPolicy
	sleep  Sleeper
	logger *slog.Logger
}

// NewTranscriptService creates a new TranscriptService. A nil sleep uses
// SleepContext and a nil logger uses slog.Default.
func NewTranscriptService(source TranscriptSource, policy RetryPolicy, sleep Sleeper, logger *slog.Logger) *TranscriptService {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptService{source: source, policy: policy, sleep: sleep, logger: logger}
}

// Source returns the underlying transcript source.
func (s *TranscriptService) Source() TranscriptSource {
	return s.source
}

// Fetch retrieves the transcript for videoID. Permanent failures return
// after one attempt; transient ones are retried up to MaxAttempts with
// exponential backoff. The returned error is a *FetchError.
func (s *TranscriptService) Fetch(ctx context.Context, videoID string) (*Transcript, FetchReport, error) {
	report := FetchReport{State: StatePending}
	bo := s.policy.newBackOff()

	for {
		if err := ctx.Err(); err != nil {
			report.State = StatePermanentFailure
			return nil, report, NewFetchError(CategoryInterrupted, videoID, err)
		}

		report.State = StateFetching
		report.Attempts++
		t, err := s.source.Fetch(ctx, videoID)
		if err == nil {
			report.State = StateSucceeded
			return t, report, nil
		}

		category := CategoryOf(err)
		fe := asFetchError(err, category, videoID)

		if !category.Transient() {
			report.State = StatePermanentFailure
			s.logger.Debug("fetch failed permanently",
				slog.String("id", videoID),
				slog.String("category", string(category)),
				slog.Int("attempt", report.Attempts),
				slog.Any("error", err))
			return nil, report, fe
		}

		if report.Attempts >= s.policy.MaxAttempts {
			report.State = StateRetryExhausted
			s.logger.Warn("fetch retries exhausted",
				slog.String("id", videoID),
				slog.String("category", string(category)),
				slog.Int("attempts", report.Attempts),
				slog.Any("error", err))
			return nil, report, fe
		}

		report.State = StateRetryableFailure
		wait := bo.NextBackOff()
		if wait == backoff.Stop || wait > s.policy.MaxDelay && s.policy.MaxDelay > 0 {
			wait = s.policy.MaxDelay
		}
		s.logger.Warn("fetch attempt failed, retrying",
			slog.String("id", videoID),
			slog.String("category", string(category)),
			slog.Int("attempt", report.Attempts),
			slog.Int("max_attempts", s.policy.MaxAttempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		if err := s.sleep(ctx, wait); err != nil {
			report.State = StatePermanentFailure
			return nil, report, NewFetchError(CategoryInterrupted, videoID, err)
		}
	}
}

func asFetchError(err error, category Category, videoID string) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Category != CategoryNone {
		return fe
	}
	return NewFetchError(category, videoID, err)
}
