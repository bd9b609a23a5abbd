package domain

import (
	"strings"
	"unicode"
)

// MaxFilenameBase bounds the sanitized name, extension excluded.
const MaxFilenameBase = 150

// TranscriptExt is appended to every transcript file name.
const TranscriptExt = ".txt"

// SanitizeFilename turns a video title into a file name made only of
// letters, digits, '_' and '-'. Titles with nothing usable fall back to
// the video id.
//
// Two videos with the same sanitized title map to the same file; the
// later write replaces the earlier one.
func SanitizeFilename(title, videoID string) string {
	base := sanitizeBase(title)
	if strings.Trim(base, "_") == "" {
		base = sanitizeBase(videoID)
	}
	if strings.Trim(base, "_") == "" {
		base = "transcript"
	}
	return base + TranscriptExt
}

func sanitizeBase(s string) string {
	var b strings.Builder
	inSpace := false
	n := 0
	for _, r := range s {
		if n >= MaxFilenameBase {
			break
		}
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
				n++
			}
			inSpace = true
			continue
		}
		inSpace = false
		if isFilenameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	return b.String()
}

func isFilenameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}
