package youtube

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// playerResponseMarker marks the start of the player response JSON in watch
// page HTML.
const playerResponseMarker = "ytInitialPlayerResponse = "

var errNoPlayerResponse = errors.New("ytInitialPlayerResponse not found in watch page")

type playerResponse struct {
	VideoDetails *struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (p *playerResponse) tracks() []captionTrack {
	if p.Captions == nil {
		return nil
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

// watchPage is a parsed watch page.
type watchPage struct {
	doc *goquery.Document
}

func (w watchPage) consentValue() (string, bool) {
	form := w.doc.Find(`form[action^="https://consent.youtube.com"]`)
	if form.Length() == 0 {
		return "", false
	}
	v, _ := form.Find(`input[name="v"]`).Attr("value")
	return v, true
}

func (w watchPage) hasRecaptcha() bool {
	return w.doc.Find(".g-recaptcha").Length() > 0
}

func (w watchPage) metaTitle() string {
	if t, ok := w.doc.Find(`meta[name="title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	t := strings.TrimSpace(w.doc.Find("title").First().Text())
	return strings.TrimSpace(strings.TrimSuffix(t, "- YouTube"))
}

// playerResponse decodes ytInitialPlayerResponse from the inline scripts.
func (w watchPage) playerResponse() (*playerResponse, error) {
	var raw []byte
	w.doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerResponseMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSON([]byte(text[idx+len(playerResponseMarker):]))
		return raw == nil
	})
	if raw == nil {
		return nil, errNoPlayerResponse
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// extractJSON returns the balanced JSON object at the start of b.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// needsPoToken reports whether a caption track URL requires a PoToken.
// Tracks with &exp=xpe cannot be fetched outside a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack selects a caption track for the language preferences: a manual
// track in any preferred language first, then an auto-generated one.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) && t.BaseURL != "" {
			usable = append(usable, t)
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}
