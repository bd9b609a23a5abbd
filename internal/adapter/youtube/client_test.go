package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/transcriber/internal/domain"
)

const format1Captions = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="1.2">Never gonna give you up</text>` +
	`<text start="1.7" dur="2">it&amp;#39;s &lt;font color=&quot;#E5E5E5&quot;&gt;true&lt;/font&gt;</text>` +
	`<text start="3.7" dur="1"></text>` +
	`</transcript>`

// fakeTrack uses a path; the handler prefixes the server origin.
type fakeTrack struct {
	Path string
	Lang string
	Kind string
}

type fakeYouTube struct {
	pageStatus    int
	captionStatus int
	captions      string
	title         string
	metaTitle     string
	playability   string
	reason        string
	noPlayer      bool
	consent       bool
	recaptcha     bool
	tracks        []fakeTrack

	watchHits   int
	captionHits int
	lastLang    string
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/watch":
		f.watchHits++
		f.serveWatch(w, r)
	case "/api/timedtext":
		f.captionHits++
		f.lastLang = r.URL.Query().Get("lang")
		if f.captionStatus != 0 {
			w.WriteHeader(f.captionStatus)
			return
		}
		io.WriteString(w, f.captions)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeYouTube) serveWatch(w http.ResponseWriter, r *http.Request) {
	if f.pageStatus != 0 {
		w.WriteHeader(f.pageStatus)
		return
	}
	if f.consent {
		if _, err := r.Cookie("CONSENT"); err != nil {
			io.WriteString(w, `<html><body><form action="https://consent.youtube.com/save" method="POST">`+
				`<input type="hidden" name="v" value="cb.20240101-00-p0.en+FX+123"></form></body></html>`)
			return
		}
	}
	if f.recaptcha {
		io.WriteString(w, `<html><body><div class="g-recaptcha" data-sitekey="x"></div></body></html>`)
		return
	}

	var sb strings.Builder
	sb.WriteString("<html><head>")
	if f.metaTitle != "" {
		fmt.Fprintf(&sb, `<meta name="title" content="%s">`, f.metaTitle)
	}
	sb.WriteString("<title>fallback - YouTube</title></head><body>")
	if !f.noPlayer {
		fmt.Fprintf(&sb, `<script>var ytInitialPlayerResponse = %s;var meta = {};</script>`, f.playerJSON("http://"+r.Host))
	}
	sb.WriteString("</body></html>")
	io.WriteString(w, sb.String())
}

func (f *fakeYouTube) playerJSON(origin string) string {
	pr := map[string]any{}
	status := f.playability
	if status == "" {
		status = "OK"
	}
	pr["playabilityStatus"] = map[string]any{"status": status, "reason": f.reason}
	if f.title != "" {
		pr["videoDetails"] = map[string]any{"videoId": "dQw4w9WgXcQ", "title": f.title}
	}
	if f.tracks != nil {
		tracks := make([]map[string]any, 0, len(f.tracks))
		for _, t := range f.tracks {
			tracks = append(tracks, map[string]any{
				"baseUrl":      origin + t.Path,
				"languageCode": t.Lang,
				"kind":         t.Kind,
			})
		}
		pr["captions"] = map[string]any{
			"playerCaptionsTracklistRenderer": map[string]any{"captionTracks": tracks},
		}
	}
	b, _ := json.Marshal(pr)
	return string(b)
}

func newTestClient(t *testing.T, f *fakeYouTube, langs ...string) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	httpClient := &http.Client{Jar: jar, Timeout: 5 * time.Second}

	return New(httpClient, langs,
		WithBaseURL(srv.URL),
		WithRequestInterval(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func englishTrack() []fakeTrack {
	return []fakeTrack{{Path: "/api/timedtext?v=dQw4w9WgXcQ&lang=en", Lang: "en"}}
}

func TestClient_FetchSuccess(t *testing.T) {
	f := &fakeYouTube{title: "Never Gonna Give You Up", captions: format1Captions, tracks: englishTrack()}
	c := newTestClient(t, f)

	tr, err := c.Fetch(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", tr.VideoID)
	assert.Equal(t, "Never Gonna Give You Up", tr.Title)
	assert.Equal(t, "en", tr.Language)
	require.Len(t, tr.Segments, 3)
	assert.Equal(t, 500*time.Millisecond, tr.Segments[0].Start)
	assert.Equal(t, 1200*time.Millisecond, tr.Segments[0].Duration)
	assert.Equal(t, "it's true", tr.Segments[1].Text)
	assert.Equal(t, "Never gonna give you up\nit's true\n", tr.Text())
	assert.Equal(t, "web", c.Name())
}

func TestClient_TitleFallbacks(t *testing.T) {
	t.Run("meta title", func(t *testing.T) {
		f := &fakeYouTube{metaTitle: "From Meta", captions: format1Captions, tracks: englishTrack()}
		tr, err := newTestClient(t, f).Fetch(context.Background(), "dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.Equal(t, "From Meta", tr.Title)
	})

	t.Run("title element", func(t *testing.T) {
		f := &fakeYouTube{captions: format1Captions, tracks: englishTrack()}
		tr, err := newTestClient(t, f).Fetch(context.Background(), "dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.Equal(t, "fallback", tr.Title)
	})
}

func TestClient_TrackPreference(t *testing.T) {
	tracks := []fakeTrack{
		{Path: "/api/timedtext?lang=en-asr", Lang: "en", Kind: "asr"},
		{Path: "/api/timedtext?lang=de", Lang: "de"},
		{Path: "/api/timedtext?lang=en-manual", Lang: "en"},
	}

	tests := []struct {
		name     string
		langs    []string
		wantLang string
	}{
		{"manual over generated", []string{"en"}, "en-manual"},
		{"first preferred language wins", []string{"de", "en"}, "de"},
		{"manual in any language before generated", []string{"fr", "en"}, "en-manual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeYouTube{title: "t", captions: format1Captions, tracks: tracks}
			_, err := newTestClient(t, f, tt.langs...).Fetch(context.Background(), "dQw4w9WgXcQ")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLang, f.lastLang)
		})
	}
}

func TestClient_GeneratedTrackFallback(t *testing.T) {
	f := &fakeYouTube{
		title:    "t",
		captions: format1Captions,
		tracks:   []fakeTrack{{Path: "/api/timedtext?lang=en-asr", Lang: "en", Kind: "asr"}},
	}
	tr, err := newTestClient(t, f).Fetch(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "en-asr", f.lastLang)
	assert.Equal(t, "en", tr.Language)
}

func TestClient_ConsentAccepted(t *testing.T) {
	f := &fakeYouTube{consent: true, title: "t", captions: format1Captions, tracks: englishTrack()}
	tr, err := newTestClient(t, f).Fetch(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, 2, f.watchHits)
	assert.NotEmpty(t, tr.Segments)
}

func TestClient_FailureCategories(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeYouTube
		want domain.Category
	}{
		{"rate limited page", &fakeYouTube{pageStatus: http.StatusTooManyRequests}, domain.CategoryRateLimited},
		{"server error", &fakeYouTube{pageStatus: http.StatusBadGateway}, domain.CategoryTransientNetwork},
		{"proxy auth", &fakeYouTube{pageStatus: http.StatusProxyAuthRequired}, domain.CategoryTransportMisconfigured},
		{"not found", &fakeYouTube{pageStatus: http.StatusNotFound}, domain.CategoryVideoUnavailable},
		{"captcha", &fakeYouTube{recaptcha: true}, domain.CategoryRateLimited},
		{"no player response", &fakeYouTube{noPlayer: true}, domain.CategoryVideoUnavailable},
		{
			"bot check",
			&fakeYouTube{playability: "LOGIN_REQUIRED", reason: "Sign in to confirm you're not a bot"},
			domain.CategoryRateLimited,
		},
		{
			"private video",
			&fakeYouTube{playability: "LOGIN_REQUIRED", reason: "This video is private"},
			domain.CategoryVideoUnavailable,
		},
		{"removed video", &fakeYouTube{playability: "ERROR", reason: "Video unavailable"}, domain.CategoryVideoUnavailable},
		{"no captions", &fakeYouTube{title: "t"}, domain.CategoryTranscriptsDisabled},
		{
			"language missing",
			&fakeYouTube{title: "t", tracks: []fakeTrack{{Path: "/api/timedtext?lang=de", Lang: "de"}}},
			domain.CategoryNoTranscriptFound,
		},
		{
			"potoken only",
			&fakeYouTube{title: "t", tracks: []fakeTrack{{Path: "/api/timedtext?lang=en&exp=xpe", Lang: "en"}}},
			domain.CategoryNoTranscriptFound,
		},
		{"empty caption body", &fakeYouTube{title: "t", tracks: englishTrack()}, domain.CategoryNoTranscriptFound},
		{
			"caption rate limited",
			&fakeYouTube{title: "t", tracks: englishTrack(), captionStatus: http.StatusTooManyRequests},
			domain.CategoryRateLimited,
		},
		{
			"caption garbage",
			&fakeYouTube{title: "t", tracks: englishTrack(), captions: "<transcript><text>unterminated"},
			domain.CategoryTransientNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.fake).Fetch(context.Background(), "dQw4w9WgXcQ")
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.CategoryOf(err), "error: %v", err)
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	f := &fakeYouTube{title: "t", captions: format1Captions, tracks: englishTrack()}
	c := newTestClient(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "dQw4w9WgXcQ")
	assert.Equal(t, domain.CategoryInterrupted, domain.CategoryOf(err))
	assert.Zero(t, f.watchHits)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(&http.Client{Timeout: time.Second}, nil, WithBaseURL(base), WithRequestInterval(0))
	_, err := c.Fetch(context.Background(), "dQw4w9WgXcQ")
	assert.Equal(t, domain.CategoryTransientNetwork, domain.CategoryOf(err))
}

func TestClient_ResponseSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 16))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.Client(), nil, WithRequestInterval(0))

	body, err := c.get(context.Background(), "abc", srv.URL, 16, nil)
	require.NoError(t, err)
	assert.Len(t, body, 16)

	_, err = c.get(context.Background(), "abc", srv.URL, 15, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errTooLarge)
	assert.Equal(t, domain.CategoryTransientNetwork, domain.CategoryOf(err))
}

func TestClient_OversizedWatchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>")
		io.WriteString(w, strings.Repeat("<p>padding</p>", maxWatchPageSize/14+1))
		io.WriteString(w, "</body></html>")
	}))
	t.Cleanup(srv.Close)
	c := New(srv.Client(), nil, WithBaseURL(srv.URL), WithRequestInterval(0))

	_, err := c.Fetch(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.ErrorIs(t, err, errTooLarge)
	assert.Equal(t, domain.CategoryTransientNetwork, domain.CategoryOf(err))
}
