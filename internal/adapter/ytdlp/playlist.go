package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/cwygoda/transcriber/internal/domain"
)

// VideoIDs lists a playlist with --flat-playlist, which reads only the
// playlist pages. Lines that are not video ids (yt-dlp prints "NA" for
// entries it cannot resolve) are skipped.
func (s *Source) VideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	stdout, stderr, err := s.run(ctx, "", s.binary, s.playlistArgs(playlistID)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewFetchError(domain.CategoryInterrupted, playlistID, ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, domain.NewFetchError(domain.CategoryTransportMisconfigured, playlistID, err)
		}
		return nil, domain.NewFetchError(classifyOutput(stderr), playlistID,
			fmt.Errorf("%s failed: %w: %s", s.binary, err, lastErrorLine(stderr)))
	}

	var ids []string
	skipped := 0
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !domain.ValidVideoID(line) || line == "NA" {
			skipped++
			continue
		}
		ids = append(ids, line)
	}

	s.logger.Debug("playlist listed",
		slog.String("playlist", playlistID),
		slog.Int("videos", len(ids)),
		slog.Int("skipped", skipped))
	return ids, nil
}

func (s *Source) playlistArgs(playlistID string) []string {
	args := []string{
		"--flat-playlist",
		"--no-warnings",
		"--print", "id",
	}
	if s.proxyURL != "" {
		args = append(args, "--proxy", s.proxyURL)
	}
	return append(args, domain.PlaylistReference{PlaylistID: playlistID}.URL())
}
