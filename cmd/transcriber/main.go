package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"

	"github.com/cwygoda/transcriber/internal/adapter/filestore"
	"github.com/cwygoda/transcriber/internal/adapter/playlist"
	"github.com/cwygoda/transcriber/internal/adapter/source"
	"github.com/cwygoda/transcriber/internal/adapter/youtube"
	"github.com/cwygoda/transcriber/internal/adapter/ytdlp"
	"github.com/cwygoda/transcriber/internal/config"
	"github.com/cwygoda/transcriber/internal/domain"
	"github.com/cwygoda/transcriber/internal/transport"
	"github.com/cwygoda/transcriber/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; variables may come from the shell.
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "transcriber: %v\n", err)
		return 1
	}

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(os.Stderr)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcriber: %v\n", err)
		config.Usage(os.Stderr)
		return 1
	}

	logger, logFile, err := cfg.OpenLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcriber: %v\n", err)
		return 1
	}
	defer logFile.Close()

	runID := uuid.NewString()
	logger = logger.With(slog.String("run", runID))
	slog.SetDefault(logger)

	fatal := func(msg string, err error) int {
		logger.Error(msg, slog.Any("error", err))
		return 1
	}

	// Transport is chosen once; a bad proxy URL stops the run here.
	tc := transport.Select(transport.Settings{
		ProxyUsername:  cfg.Proxy.Username,
		ProxyPassword:  cfg.Proxy.Password,
		CustomProxyURL: cfg.Proxy.URL,
		SOCKSHost:      cfg.Proxy.SOCKSHost,
		SOCKSPort:      cfg.Proxy.SOCKSPort,
	})
	httpClient, err := transport.NewHTTPClient(tc, cfg.HTTPTimeout)
	if err != nil {
		return fatal("transport misconfigured", err)
	}
	proxyURL := ""
	if u, _ := tc.ProxyURL(); u != nil {
		proxyURL = u.String()
	}

	ytdlpSource := ytdlp.New(cfg.YTDLPPath, cfg.Languages, proxyURL, logger)
	registry := source.NewRegistry()
	registry.Register(youtube.New(httpClient, cfg.Languages,
		youtube.WithRequestInterval(cfg.RequestInterval),
		youtube.WithLogger(logger)))
	registry.Register(ytdlpSource)

	// Playlists go through the Data API when a key is configured, else
	// through yt-dlp when it is installed.
	var playlists domain.PlaylistResolver
	if cfg.YouTubeAPIKey != "" {
		playlists = playlist.NewAPIClient(httpClient, cfg.YouTubeAPIKey, playlist.WithLogger(logger))
	} else if _, err := exec.LookPath(cfg.YTDLPPath); err == nil {
		playlists = ytdlpSource
	}

	// Graceful shutdown setup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, stopping after current item", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Playlist != "" {
		if playlists == nil {
			return fatal("no playlist resolver", errors.New("set YOUTUBE_API_KEY or install yt-dlp"))
		}
		if err := writePlaylist(ctx, playlists, cfg.Playlist, cfg.Input); err != nil {
			return fatal("playlist listing failed", err)
		}
		logger.Info("playlist written", slog.String("playlist", cfg.Playlist), slog.String("file", cfg.Input))
		return 0
	}

	src, err := registry.Get(cfg.Source)
	if err != nil {
		return fatal("unknown source", err)
	}
	if cfg.Source == config.SourceYTDLP {
		if _, err := exec.LookPath(cfg.YTDLPPath); err != nil {
			return fatal("yt-dlp not found", err)
		}
	}

	store, err := filestore.New(cfg.OutputDir)
	if err != nil {
		return fatal("output directory unavailable", err)
	}

	in, err := os.Open(cfg.Input)
	if err != nil {
		return fatal("cannot open input", err)
	}
	lines, err := worker.ReadURLList(in)
	in.Close()
	if err != nil {
		return fatal("cannot read input", err)
	}

	logger.Info("starting transcriber",
		slog.String("input", cfg.Input),
		slog.String("output", store.Dir()),
		slog.String("source", src.Name()),
		slog.String("transport", tc.String()),
		slog.Any("languages", cfg.Languages),
		slog.Bool("playlists", playlists != nil))

	svc := domain.NewTranscriptService(src, domain.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BackoffBase,
		MaxDelay:    cfg.BackoffMax,
		Multiplier:  domain.DefaultRetryPolicy.Multiplier,
		Jitter:      0.2,
	}, nil, logger)

	runner := worker.New(svc, store, worker.Options{
		RunID:           runID,
		MinDelay:        cfg.MinDelay,
		MaxDelay:        cfg.MaxDelay,
		StreakThreshold: cfg.StreakThreshold,
		Playlists:       playlists,
	}, logger)

	outcome := runner.Run(ctx, lines)
	printSummary(outcome)
	return 0
}

// writePlaylist lists the playlist at rawURL and writes its watch URLs to
// path, replacing the file.
func writePlaylist(ctx context.Context, r domain.PlaylistResolver, rawURL, path string) error {
	ref, err := domain.ParsePlaylistURL(rawURL)
	if err != nil {
		return err
	}
	ids, err := r.VideoIDs(ctx, ref.PlaylistID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := worker.WriteURLList(f, ids); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d video URLs to %s\n", len(ids), path)
	return nil
}

func printSummary(o *domain.RunOutcome) {
	fmt.Printf("attempted %d, succeeded %d, failed %d\n", o.Attempted, o.Succeeded, o.Failed)

	byCat := o.FailuresByCategory()
	cats := make([]string, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Printf("  %-24s %d\n", c, byCat[domain.Category(c)])
	}
}
