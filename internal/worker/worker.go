package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
)

// Options tune a Runner.
type Options struct {
	RunID    string
	MinDelay time.Duration
	MaxDelay time.Duration
	// StreakThreshold is the number of consecutive failures sharing a
	// category that triggers a transport warning. Zero disables it.
	StreakThreshold int
	// Playlists expands playlist lines into their videos. Nil leaves
	// playlist lines to fail as invalid URLs.
	Playlists domain.PlaylistResolver
}

// Runner processes a URL list sequentially.
type Runner struct {
	svc    *domain.TranscriptService
	store  domain.TranscriptStore
	opts   Options
	sleep  domain.Sleeper
	randN  func(n int64) int64
	logger *slog.Logger

	streakCategory domain.Category
	streak         int
}

// New creates a new runner.
func New(svc *domain.TranscriptService, store domain.TranscriptStore, opts Options, logger *slog.Logger) *Runner {
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		svc:    svc,
		store:  store,
		opts:   opts,
		sleep:  domain.SleepContext,
		randN:  rand.Int64N,
		logger: logger,
	}
}

type entry struct {
	line     int
	url      string
	playlist string
}

// entries drops blank and comment lines, keeping 1-based line numbers.
func entries(lines []string) []entry {
	var out []entry
	for i, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, entry{line: i + 1, url: l})
	}
	return out
}

// Run processes every URL in lines and returns the outcome. Per-item
// failures are recorded and never stop the run; cancelling ctx records the
// in-flight item as interrupted and stops.
func (r *Runner) Run(ctx context.Context, lines []string) *domain.RunOutcome {
	outcome := domain.NewRunOutcome(r.opts.RunID)
	items := entries(lines)
	r.logger.Info("run started",
		slog.Int("items", len(items)),
		slog.String("source", r.svc.Source().Name()))

	// Playlist lines are replaced in place by their videos when reached.
	for i := 0; i < len(items); i++ {
		if ctx.Err() != nil {
			break
		}
		e := items[i]

		if pl, ok := r.playlistOf(e); ok {
			videos, res := r.expandPlaylist(ctx, e, pl)
			if res != nil {
				outcome.Record(*res)
				r.trackStreak(*res)
				if res.Category == domain.CategoryInterrupted {
					break
				}
			}
			items = slices.Insert(items, i+1, videos...)
		} else {
			res := r.processItem(ctx, e)
			outcome.Record(res)
			r.trackStreak(res)
			if res.Category == domain.CategoryInterrupted {
				break
			}
		}

		if i < len(items)-1 {
			if err := r.pace(ctx); err != nil {
				break
			}
		}
	}

	attrs := []any{
		slog.Int("attempted", outcome.Attempted),
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed),
	}
	for c, n := range outcome.FailuresByCategory() {
		attrs = append(attrs, slog.Int(string(c), n))
	}
	if ctx.Err() != nil {
		r.logger.Warn("run interrupted", attrs...)
	} else {
		r.logger.Info("run complete", attrs...)
	}
	return outcome
}

// playlistOf reports whether e names a playlist rather than a video.
func (r *Runner) playlistOf(e entry) (domain.PlaylistReference, bool) {
	if e.playlist != "" {
		return domain.PlaylistReference{}, false
	}
	if _, err := domain.ParseVideoURL(e.url); err == nil {
		return domain.PlaylistReference{}, false
	}
	pl, err := domain.ParsePlaylistURL(e.url)
	return pl, err == nil
}

// expandPlaylist resolves a playlist line into one entry per video. A
// failed resolution is returned as the line's result.
func (r *Runner) expandPlaylist(ctx context.Context, e entry, pl domain.PlaylistReference) ([]entry, *domain.ItemResult) {
	log := r.logger.With(slog.Int("line", e.line), slog.String("url", e.url), slog.String("playlist", pl.PlaylistID))
	res := &domain.ItemResult{Line: e.line, URL: e.url, Playlist: pl.PlaylistID, Status: domain.StatusFailed}

	if r.opts.Playlists == nil {
		res.Category = domain.CategoryInvalidURL
		res.Reason = "playlist URL but no playlist resolver is configured"
		log.Warn("skipping playlist url, no resolver configured")
		return nil, res
	}

	ids, err := r.opts.Playlists.VideoIDs(ctx, pl.PlaylistID)
	if err != nil {
		res.Category = domain.CategoryOf(err)
		res.Reason = err.Error()
		log.Error("playlist expansion failed",
			slog.String("resolver", r.opts.Playlists.Name()),
			slog.String("category", string(res.Category)),
			slog.Any("error", err))
		return nil, res
	}
	if len(ids) == 0 {
		log.Warn("playlist has no videos")
		return nil, nil
	}

	videos := make([]entry, 0, len(ids))
	for _, id := range ids {
		videos = append(videos, entry{
			line:     e.line,
			url:      domain.VideoReference{VideoID: id}.WatchURL(),
			playlist: pl.PlaylistID,
		})
	}
	log.Info("playlist expanded",
		slog.String("resolver", r.opts.Playlists.Name()),
		slog.Int("videos", len(videos)))
	return videos, nil
}

func (r *Runner) processItem(ctx context.Context, e entry) domain.ItemResult {
	res := domain.ItemResult{Line: e.line, URL: e.url, Playlist: e.playlist, Status: domain.StatusFailed}
	log := r.logger.With(slog.Int("line", e.line), slog.String("url", e.url))
	if e.playlist != "" {
		log = log.With(slog.String("playlist", e.playlist))
	}

	ref, err := domain.ParseVideoURL(e.url)
	if err != nil {
		res.Category = domain.CategoryInvalidURL
		res.Reason = err.Error()
		log.Warn("skipping invalid url", slog.Any("error", err))
		return res
	}
	res.VideoID = ref.VideoID
	log = log.With(slog.String("id", ref.VideoID))
	if ref.UnusualLength() {
		log.Warn("video id has unusual length", slog.Int("length", len(ref.VideoID)))
	}

	log.Debug("fetching transcript")
	tr, report, err := r.svc.Fetch(ctx, ref.VideoID)
	res.Attempts = report.Attempts
	if err != nil {
		res.Category = domain.CategoryOf(err)
		res.Reason = err.Error()
		log.Error("transcript failed",
			slog.String("category", string(res.Category)),
			slog.Int("attempts", report.Attempts),
			slog.String("state", string(report.State)),
			slog.Any("error", err))
		return res
	}

	text := tr.Text()
	if text == "" {
		res.Category = domain.CategoryNoTranscriptFound
		res.Reason = "transcript has no text"
		log.Error("transcript failed", slog.String("category", string(res.Category)))
		return res
	}

	name := domain.SanitizeFilename(tr.Title, ref.VideoID)
	path, err := r.store.Write(ctx, name, []byte(text))
	if err != nil {
		res.Category = domain.CategoryFilesystem
		if errors.Is(err, context.Canceled) {
			res.Category = domain.CategoryInterrupted
		}
		res.Reason = err.Error()
		log.Error("write failed", slog.String("file", name), slog.Any("error", err))
		return res
	}

	res.Status = domain.StatusSucceeded
	res.Path = path
	log.Info("transcript saved",
		slog.String("title", tr.Title),
		slog.String("language", tr.Language),
		slog.String("path", path),
		slog.Int("attempts", report.Attempts))
	return res
}

// trackStreak warns when several items in a row fail the same way, which
// usually means the exit address is blocked or the proxy is broken.
func (r *Runner) trackStreak(res domain.ItemResult) {
	if res.Status == domain.StatusSucceeded || res.Category == domain.CategoryInvalidURL || res.Category == domain.CategoryInterrupted {
		r.streakCategory, r.streak = domain.CategoryNone, 0
		return
	}
	if res.Category == r.streakCategory {
		r.streak++
	} else {
		r.streakCategory, r.streak = res.Category, 1
	}
	if r.opts.StreakThreshold > 0 && r.streak == r.opts.StreakThreshold {
		r.logger.Error("consecutive failures share one category, check the transport or proxy configuration",
			slog.String("category", string(r.streakCategory)),
			slog.Int("count", r.streak))
	}
}

func (r *Runner) pace(ctx context.Context) error {
	d := r.opts.MinDelay
	if spread := r.opts.MaxDelay - r.opts.MinDelay; spread > 0 {
		d += time.Duration(r.randN(int64(spread) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	r.logger.Debug("pacing", slog.Duration("delay", d))
	return r.sleep(ctx, d)
}

// ReadURLList reads one URL per line. Blank and comment lines are kept so
// callers can report line numbers; Run skips them.
func ReadURLList(rd io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if len(lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return lines, nil
}

// WriteURLList writes one watch URL per video id, in the format
// ReadURLList reads.
func WriteURLList(w io.Writer, ids []string) error {
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if _, err := bw.WriteString(domain.VideoReference{VideoID: id}.WatchURL() + "\n"); err != nil {
			return fmt.Errorf("write url list: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write url list: %w", err)
	}
	return nil
}
