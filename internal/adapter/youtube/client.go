// Package youtube fetches transcripts by scraping the public watch page and
// the caption track it references.
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/cwygoda/transcriber/internal/domain"
)

const (
	// DefaultBaseURL is the platform origin.
	DefaultBaseURL = "https://www.youtube.com"

	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	maxWatchPageSize = 6 * 1024 * 1024
	maxCaptionSize   = 2 * 1024 * 1024
)

var (
	errConsentLoop = errors.New("consent page returned after accepting")
	errTooLarge    = errors.New("response exceeds limit")
)

// Client implements domain.TranscriptSource against the watch page.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	languages []string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the platform origin.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRequestInterval spaces outbound requests at least d apart. Zero
// disables spacing.
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client that sends requests through httpClient and prefers
// caption tracks in the given language order.
func New(httpClient *http.Client, languages []string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	c := &Client{
		baseURL:   DefaultBaseURL,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		languages: languages,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the source name.
func (c *Client) Name() string {
	return "web"
}

// Fetch retrieves the transcript for videoID.
func (c *Client) Fetch(ctx context.Context, videoID string) (*domain.Transcript, error) {
	page, err := c.loadWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if page.hasRecaptcha() {
		return nil, domain.NewFetchError(domain.CategoryRateLimited, videoID, errors.New("captcha challenge on watch page"))
	}

	pr, err := page.playerResponse()
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryVideoUnavailable, videoID, err)
	}
	if err := checkPlayability(videoID, pr); err != nil {
		return nil, err
	}

	title := ""
	if pr.VideoDetails != nil {
		title = strings.TrimSpace(pr.VideoDetails.Title)
	}
	if title == "" {
		title = page.metaTitle()
	}

	tracks := pr.tracks()
	if len(tracks) == 0 {
		return nil, domain.NewFetchError(domain.CategoryTranscriptsDisabled, videoID, nil)
	}
	track, ok := pickTrack(tracks, c.languages)
	if !ok {
		return nil, domain.NewFetchError(domain.CategoryNoTranscriptFound, videoID,
			fmt.Errorf("no usable track for languages %v", c.languages))
	}

	segments, err := c.fetchCaptions(ctx, videoID, track.BaseURL)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("transcript fetched",
		slog.String("id", videoID),
		slog.String("language", track.LanguageCode),
		slog.String("kind", track.Kind),
		slog.Int("segments", len(segments)))

	return &domain.Transcript{
		VideoID:  videoID,
		Title:    title,
		Language: track.LanguageCode,
		Segments: segments,
	}, nil
}

// loadWatchPage fetches and parses the watch page, accepting the consent
// interstitial once if it is shown.
func (c *Client) loadWatchPage(ctx context.Context, videoID string) (watchPage, error) {
	watchURL := c.baseURL + "/watch?v=" + url.QueryEscape(videoID)

	page, err := c.getWatchPage(ctx, videoID, watchURL, nil)
	if err != nil {
		return watchPage{}, err
	}
	v, isConsent := page.consentValue()
	if !isConsent {
		return page, nil
	}

	c.logger.Debug("accepting consent page", slog.String("id", videoID))
	consent := &http.Cookie{Name: "CONSENT", Value: "YES+" + v}
	if c.http.Jar != nil {
		if u, err := url.Parse(c.baseURL); err == nil {
			c.http.Jar.SetCookies(u, []*http.Cookie{consent})
			consent = nil
		}
	}

	page, err = c.getWatchPage(ctx, videoID, watchURL, consent)
	if err != nil {
		return watchPage{}, err
	}
	if _, isConsent := page.consentValue(); isConsent {
		return watchPage{}, domain.NewFetchError(domain.CategoryTransientNetwork, videoID, errConsentLoop)
	}
	return page, nil
}

func (c *Client) getWatchPage(ctx context.Context, videoID, watchURL string, consent *http.Cookie) (watchPage, error) {
	body, err := c.get(ctx, videoID, watchURL, maxWatchPageSize, func(req *http.Request) {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if consent != nil {
			req.AddCookie(consent)
		}
	})
	if err != nil {
		return watchPage{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return watchPage{}, domain.NewFetchError(domain.CategoryTransientNetwork, videoID, fmt.Errorf("parse watch page: %w", err))
	}
	return watchPage{doc: doc}, nil
}

func (c *Client) fetchCaptions(ctx context.Context, videoID, trackURL string) ([]domain.Segment, error) {
	body, err := c.get(ctx, videoID, trackURL, maxCaptionSize, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.NewFetchError(domain.CategoryNoTranscriptFound, videoID, errors.New("empty caption track"))
	}

	segments, err := parseTimedText(body)
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryTransientNetwork, videoID, fmt.Errorf("parse timedtext: %w", err))
	}
	return segments, nil
}

// get waits for the limiter, performs a GET and maps failures to
// categories.
func (c *Client) get(ctx context.Context, videoID, rawURL string, limit int64, decorate func(*http.Request)) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, requestError(ctx, videoID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryVideoUnavailable, videoID, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, requestError(ctx, videoID, err)
	}
	defer resp.Body.Close()

	if err := statusError(videoID, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, requestError(ctx, videoID, err)
	}
	if int64(len(body)) > limit {
		return nil, domain.NewFetchError(domain.CategoryTransientNetwork, videoID,
			fmt.Errorf("%w: %d bytes", errTooLarge, limit))
	}
	return body, nil
}

func requestError(ctx context.Context, videoID string, err error) error {
	if ctx.Err() != nil {
		return domain.NewFetchError(domain.CategoryInterrupted, videoID, ctx.Err())
	}
	return domain.NewFetchError(domain.CategoryTransientNetwork, videoID, err)
}

// statusError maps a non-2xx HTTP status to a failure category.
func statusError(videoID string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("status %d", code)
	switch {
	case code == http.StatusTooManyRequests:
		return domain.NewFetchError(domain.CategoryRateLimited, videoID, err)
	case code == http.StatusProxyAuthRequired:
		return domain.NewFetchError(domain.CategoryTransportMisconfigured, videoID, err)
	case code >= 500:
		return domain.NewFetchError(domain.CategoryTransientNetwork, videoID, err)
	default:
		return domain.NewFetchError(domain.CategoryVideoUnavailable, videoID, err)
	}
}

// checkPlayability maps a non-OK playability status to a failure category.
// A login wall asking to confirm the caller is not a bot is a block on the
// exit address.
func checkPlayability(videoID string, pr *playerResponse) error {
	ps := pr.PlayabilityStatus
	if ps == nil || ps.Status == "" || ps.Status == "OK" {
		return nil
	}
	err := fmt.Errorf("playability %s: %s", ps.Status, ps.Reason)
	if ps.Status == "LOGIN_REQUIRED" && strings.Contains(strings.ToLower(ps.Reason), "bot") {
		return domain.NewFetchError(domain.CategoryRateLimited, videoID, err)
	}
	return domain.NewFetchError(domain.CategoryVideoUnavailable, videoID, err)
}
