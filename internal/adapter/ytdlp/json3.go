package ytdlp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
)

type json3 struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// parseJSON3 converts caption events into segments. Events without text
// (window and style events) are skipped.
func parseJSON3(data []byte) ([]domain.Segment, error) {
	var doc json3
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, 0, len(doc.Events))
	for _, ev := range doc.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:     text,
			Start:    time.Duration(ev.TStartMs) * time.Millisecond,
			Duration: time.Duration(ev.DDurationMs) * time.Millisecond,
		})
	}
	return segments, nil
}
