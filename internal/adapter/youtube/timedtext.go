package youtube

import (
	"encoding/xml"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// timedText covers both caption XML layouts: format 1 (<transcript><text
// start dur>, seconds) and format 3 (<timedtext><body><p t d>, milliseconds).
type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
	Paras []struct {
		T     string   `xml:"t,attr"`
		D     string   `xml:"d,attr"`
		Text  string   `xml:",chardata"`
		Spans []string `xml:"s"`
	} `xml:"body>p"`
}

func parseTimedText(data []byte) ([]domain.Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, 0, len(tt.Texts)+len(tt.Paras))
	for _, t := range tt.Texts {
		segments = append(segments, domain.Segment{
			Text:     cleanCaption(t.Text),
			Start:    seconds(t.Start),
			Duration: seconds(t.Dur),
		})
	}
	for _, p := range tt.Paras {
		text := p.Text
		if len(p.Spans) > 0 {
			text = strings.Join(p.Spans, "")
		}
		segments = append(segments, domain.Segment{
			Text:     cleanCaption(text),
			Start:    millis(p.T),
			Duration: millis(p.D),
		})
	}
	return segments, nil
}

// cleanCaption decodes HTML entities left in caption text and drops inline
// styling tags.
func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	s = tagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func millis(s string) time.Duration {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
