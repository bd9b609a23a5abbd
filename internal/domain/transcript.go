package domain

import (
	"strings"
	"time"
)

// Segment is one timed unit of caption text.
type Segment struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
}

// Transcript is the fetched caption track of a single video.
type Transcript struct {
	VideoID  string
	Title    string
	Language string
	Segments []Segment
}

// Text renders the transcript as plain text, one segment per line, in the
// order the segments were supplied. Timing is dropped.
func (t *Transcript) Text() string {
	var sb strings.Builder
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
