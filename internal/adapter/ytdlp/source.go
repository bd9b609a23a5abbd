// Package ytdlp fetches transcripts by running the yt-dlp binary.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwygoda/transcriber/internal/domain"
)

// DefaultBinary is looked up on PATH.
const DefaultBinary = "yt-dlp"

// runFunc executes name with args in dir and returns stdout and stderr.
type runFunc func(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)

// Source implements domain.TranscriptSource with yt-dlp.
type Source struct {
	binary    string
	languages []string
	proxyURL  string
	logger    *slog.Logger
	run       runFunc
}

// New creates a Source. proxyURL is passed to yt-dlp verbatim when set.
func New(binary string, languages []string, proxyURL string, logger *slog.Logger) *Source {
	if binary == "" {
		binary = DefaultBinary
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		binary:    binary,
		languages: languages,
		proxyURL:  proxyURL,
		logger:    logger,
		run:       runCommand,
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return "ytdlp"
}

// Binary returns the configured executable.
func (s *Source) Binary() string {
	return s.binary
}

// Fetch runs yt-dlp in an isolated temp directory and parses the subtitle
// file it writes.
func (s *Source) Fetch(ctx context.Context, videoID string) (*domain.Transcript, error) {
	tempDir, err := os.MkdirTemp("", "transcriber-"+videoID+"-*")
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryFilesystem, videoID, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	s.logger.Debug("running yt-dlp", slog.String("id", videoID), slog.String("dir", tempDir))

	stdout, stderr, err := s.run(ctx, tempDir, s.binary, s.args(videoID)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewFetchError(domain.CategoryInterrupted, videoID, ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, domain.NewFetchError(domain.CategoryTransportMisconfigured, videoID, err)
		}
		return nil, domain.NewFetchError(classifyOutput(stderr), videoID,
			fmt.Errorf("%s failed: %w: %s", s.binary, err, lastErrorLine(stderr)))
	}

	path, lang, err := s.pickSubtitle(tempDir, videoID)
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryNoTranscriptFound, videoID, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryFilesystem, videoID, err)
	}
	segments, err := parseJSON3(data)
	if err != nil {
		return nil, domain.NewFetchError(domain.CategoryTransientNetwork, videoID, fmt.Errorf("parse %s: %w", filepath.Base(path), err))
	}

	return &domain.Transcript{
		VideoID:  videoID,
		Title:    firstLine(stdout),
		Language: lang,
		Segments: segments,
	}, nil
}

func (s *Source) args(videoID string) []string {
	args := []string{
		"--skip-download",
		"--no-simulate",
		"--no-warnings",
		"--write-subs",
		"--write-auto-subs",
		"--sub-format", "json3",
		"--sub-langs", strings.Join(s.languages, ","),
		"--print", "title",
		"-o", videoID + ".%(ext)s",
	}
	if s.proxyURL != "" {
		args = append(args, "--proxy", s.proxyURL)
	}
	return append(args, domain.VideoReference{VideoID: videoID}.WatchURL())
}

// pickSubtitle returns the subtitle file for the most preferred language
// present in dir.
func (s *Source) pickSubtitle(dir, videoID string) (string, string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, videoID+".*.json3"))
	if err != nil {
		return "", "", err
	}
	if len(matches) == 0 {
		return "", "", fmt.Errorf("no subtitles for languages %v", s.languages)
	}
	sort.Strings(matches)

	byLang := make(map[string]string, len(matches))
	for _, m := range matches {
		lang := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), videoID+"."), ".json3")
		byLang[lang] = m
	}
	for _, lang := range s.languages {
		if p, ok := byLang[lang]; ok {
			return p, lang, nil
		}
	}
	first := matches[0]
	return first, strings.TrimSuffix(strings.TrimPrefix(filepath.Base(first), videoID+"."), ".json3"), nil
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func firstLine(b []byte) string {
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
