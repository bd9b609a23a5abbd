package ytdlp

import (
	"strings"

	"github.com/cwygoda/transcriber/internal/domain"
)

// yt-dlp reports failures only as text on stderr. Markers are matched in
// order; the first hit decides the category.
var errorMarkers = []struct {
	marker   string
	category domain.Category
}{
	{"http error 429", domain.CategoryRateLimited},
	{"too many requests", domain.CategoryRateLimited},
	{"not a bot", domain.CategoryRateLimited},
	{"http error 407", domain.CategoryTransportMisconfigured},
	{"proxy authentication", domain.CategoryTransportMisconfigured},
	{"subtitles are disabled", domain.CategoryTranscriptsDisabled},
	{"video unavailable", domain.CategoryVideoUnavailable},
	{"playlist does not exist", domain.CategoryVideoUnavailable},
	{"private video", domain.CategoryVideoUnavailable},
	{"has been removed", domain.CategoryVideoUnavailable},
	{"incomplete youtube id", domain.CategoryVideoUnavailable},
	{"http error 404", domain.CategoryVideoUnavailable},
	{"http error 403", domain.CategoryVideoUnavailable},
}

// classifyOutput maps yt-dlp's stderr to a failure category. Anything
// unrecognised (timeouts, resets, 5xx) is treated as transient.
func classifyOutput(stderr []byte) domain.Category {
	text := strings.ToLower(string(stderr))
	for _, m := range errorMarkers {
		if strings.Contains(text, m.marker) {
			return m.category
		}
	}
	return domain.CategoryTransientNetwork
}

// lastErrorLine returns the last "ERROR:" line, or the last non-empty line.
func lastErrorLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "ERROR:") {
			return strings.TrimSpace(lines[i])
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
