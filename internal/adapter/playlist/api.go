// Package playlist lists the videos of a playlist through the YouTube Data
// API v3.
package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/cwygoda/transcriber/internal/domain"
)

const (
	// DefaultBaseURL is the Data API v3 root.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	pageSize     = 50
	maxPageBytes = 4 * 1024 * 1024
)

var errPageLoop = errors.New("page token repeated")

// quotaReasons are 403 reasons that mean the key is throttled rather than
// refused.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

type itemsPage struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title      string `json:"title"`
			ResourceID struct {
				Kind    string `json:"kind"`
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// APIClient implements domain.PlaylistResolver with playlistItems.list.
type APIClient struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	retryMin time.Duration
	maxTries uint
	logger   *slog.Logger
}

// Option configures an APIClient.
type Option func(*APIClient)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *APIClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRetry sets the first retry delay and the number of tries per page.
func WithRetry(initial time.Duration, maxTries uint) Option {
	return func(c *APIClient) {
		c.retryMin = initial
		if maxTries > 0 {
			c.maxTries = maxTries
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *APIClient) { c.logger = l }
}

// NewAPIClient creates a client that authenticates with apiKey.
func NewAPIClient(httpClient *http.Client, apiKey string, opts ...Option) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &APIClient{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		http:     httpClient,
		retryMin: time.Second,
		maxTries: 3,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the resolver name.
func (c *APIClient) Name() string {
	return "data_api"
}

// VideoIDs pages through the playlist and returns its video ids in order.
// Items without a video id (deleted or private entries) are skipped.
func (c *APIClient) VideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	skipped := 0
	seen := map[string]bool{}
	token := ""

	for {
		page, err := c.page(ctx, playlistID, token)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			id := item.Snippet.ResourceID.VideoID
			if !domain.ValidVideoID(id) {
				skipped++
				continue
			}
			ids = append(ids, id)
		}

		token = page.NextPageToken
		if token == "" {
			break
		}
		if seen[token] {
			return nil, domain.NewFetchError(domain.CategoryTransientNetwork, playlistID, errPageLoop)
		}
		seen[token] = true
	}

	c.logger.Debug("playlist listed",
		slog.String("playlist", playlistID),
		slog.Int("videos", len(ids)),
		slog.Int("skipped", skipped))
	return ids, nil
}

// page fetches one page, retrying 429 and 5xx responses with backoff.
func (c *APIClient) page(ctx context.Context, playlistID, token string) (*itemsPage, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(pageSize))
	params.Set("key", c.apiKey)
	if token != "" {
		params.Set("pageToken", token)
	}
	apiURL := c.baseURL + "/playlistItems?" + params.Encode()

	operation := func() (*itemsPage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, backoff.Permanent(domain.NewFetchError(domain.CategoryTransportMisconfigured, playlistID, err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(domain.NewFetchError(domain.CategoryInterrupted, playlistID, ctx.Err()))
			}
			return nil, domain.NewFetchError(domain.CategoryTransientNetwork, playlistID, c.redact(err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
		if err != nil {
			return nil, domain.NewFetchError(domain.CategoryTransientNetwork, playlistID, err)
		}
		if len(body) > maxPageBytes {
			return nil, backoff.Permanent(domain.NewFetchError(domain.CategoryTransientNetwork, playlistID,
				fmt.Errorf("playlist page exceeds %d bytes", maxPageBytes)))
		}

		if resp.StatusCode != http.StatusOK {
			return nil, statusError(playlistID, resp.StatusCode, body)
		}

		var page itemsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, backoff.Permanent(domain.NewFetchError(domain.CategoryTransientNetwork, playlistID,
				fmt.Errorf("decode playlist page: %w", err)))
		}
		return &page, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryMin
	bo.MaxInterval = 10 * c.retryMin

	page, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Warn("playlist page failed, retrying",
				slog.String("playlist", playlistID),
				slog.Duration("wait", d),
				slog.Any("error", err))
		}))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if ctx.Err() != nil {
			return nil, domain.NewFetchError(domain.CategoryInterrupted, playlistID, ctx.Err())
		}
		return nil, err
	}
	return page, nil
}

// redact hides the API key in the URL that net/http puts into its errors.
func (c *APIClient) redact(err error) error {
	var ue *url.Error
	if c.apiKey != "" && errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, url.QueryEscape(c.apiKey), "xxxxx")
	}
	return err
}

// statusError maps a failed API response to a category. Only 429 and 5xx
// are retried.
func statusError(playlistID string, code int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	msg := ae.Error.Message
	if msg == "" {
		msg = http.StatusText(code)
	}
	reason := ""
	if len(ae.Error.Errors) > 0 {
		reason = ae.Error.Errors[0].Reason
	}
	err := fmt.Errorf("data api %d: %s", code, msg)
	if reason != "" {
		err = fmt.Errorf("data api %d (%s): %s", code, reason, msg)
	}

	switch {
	case code == http.StatusTooManyRequests:
		return domain.NewFetchError(domain.CategoryRateLimited, playlistID, err)
	case code >= 500:
		return domain.NewFetchError(domain.CategoryTransientNetwork, playlistID, err)
	case code == http.StatusForbidden && quotaReasons[reason]:
		return backoff.Permanent(domain.NewFetchError(domain.CategoryRateLimited, playlistID, err))
	case code == http.StatusBadRequest || code == http.StatusUnauthorized:
		return backoff.Permanent(domain.NewFetchError(domain.CategoryTransportMisconfigured, playlistID, err))
	default:
		return backoff.Permanent(domain.NewFetchError(domain.CategoryVideoUnavailable, playlistID, err))
	}
}
