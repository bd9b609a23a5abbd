package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL = errors.New("invalid URL")
	// ErrUnrecognizedForm is returned when a URL parses but matches none of
	// the known video URL shapes.
	ErrUnrecognizedForm = fmt.Errorf("%w: unrecognized form", ErrInvalidURL)
)

// Typical platform id length is 11; anything outside this range is logged.
const (
	minUsualIDLength = 10
	maxUsualIDLength = 12
)

// VideoReference is a raw input URL together with the video id extracted
// from it.
type VideoReference struct {
	RawURL  string
	VideoID string
}

// UnusualLength reports whether the id falls outside the usual id length.
func (v VideoReference) UnusualLength() bool {
	n := len(v.VideoID)
	return n < minUsualIDLength || n > maxUsualIDLength
}

// WatchURL returns the canonical watch page URL for the video.
func (v VideoReference) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// urlShape is one accepted URL layout.
type urlShape struct {
	name    string
	hosts   []string
	extract func(u *url.URL) (string, bool)
}

var urlShapes = []urlShape{
	{
		name:  "watch",
		hosts: []string{"youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com"},
		extract: func(u *url.URL) (string, bool) {
			if strings.TrimSuffix(u.Path, "/") != "/watch" {
				return "", false
			}
			// RawQuery is split by hand so that only the first v= counts and
			// the value stops at the first '&'.
			for _, pair := range strings.Split(u.RawQuery, "&") {
				if v, ok := strings.CutPrefix(pair, "v="); ok {
					return v, true
				}
			}
			return "", true
		},
	},
	{
		name:  "short",
		hosts: []string{"youtu.be", "www.youtu.be"},
		extract: func(u *url.URL) (string, bool) {
			return firstSegment(u.Path), true
		},
	},
	{
		name:  "path",
		hosts: []string{"youtube.com", "www.youtube.com", "m.youtube.com"},
		extract: func(u *url.URL) (string, bool) {
			for _, prefix := range []string{"/shorts/", "/live/", "/embed/"} {
				if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
					return firstSegment(rest), true
				}
			}
			return "", false
		},
	},
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	return path
}

// ParseVideoURL extracts the video id from a YouTube URL.
func ParseVideoURL(raw string) (VideoReference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return VideoReference{}, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return VideoReference{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return VideoReference{}, fmt.Errorf("%w: scheme %q", ErrUnrecognizedForm, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())

	for _, shape := range urlShapes {
		if !hasHost(shape.hosts, host) {
			continue
		}
		id, ok := shape.extract(u)
		if !ok {
			continue
		}
		if err := validateID(id); err != nil {
			return VideoReference{}, fmt.Errorf("%s form: %w", shape.name, err)
		}
		return VideoReference{RawURL: raw, VideoID: id}, nil
	}
	return VideoReference{}, fmt.Errorf("%w: %s", ErrUnrecognizedForm, raw)
}

func hasHost(hosts []string, host string) bool {
	for _, h := range hosts {
		if h == host {
			return true
		}
	}
	return false
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing video id", ErrInvalidURL)
	}
	for _, r := range id {
		if !isIDRune(r) {
			return fmt.Errorf("%w: invalid character %q in video id", ErrInvalidURL, r)
		}
	}
	return nil
}

func isIDRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
