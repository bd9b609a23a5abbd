package domain

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotPlaylist is returned by ParsePlaylistURL for URLs that do not name
// a playlist.
var ErrNotPlaylist = fmt.Errorf("%w: not a playlist", ErrInvalidURL)

var playlistHosts = []string{"youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com"}

// PlaylistReference is a raw playlist URL and the playlist id in it.
type PlaylistReference struct {
	RawURL     string
	PlaylistID string
}

// URL returns the canonical playlist page URL.
func (p PlaylistReference) URL() string {
	return "https://www.youtube.com/playlist?list=" + url.QueryEscape(p.PlaylistID)
}

// PlaylistResolver lists the videos of a playlist in playlist order.
// Entries without a usable video id are left out.
type PlaylistResolver interface {
	Name() string
	VideoIDs(ctx context.Context, playlistID string) ([]string, error)
}

// ParsePlaylistURL extracts the playlist id from a /playlist?list= URL.
// Watch URLs that carry a list parameter name a single video and are not
// playlists here.
func ParsePlaylistURL(raw string) (PlaylistReference, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return PlaylistReference{}, fmt.Errorf("%w: %v", ErrNotPlaylist, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || !hasHost(playlistHosts, strings.ToLower(u.Hostname())) {
		return PlaylistReference{}, ErrNotPlaylist
	}
	if strings.TrimSuffix(u.Path, "/") != "/playlist" {
		return PlaylistReference{}, ErrNotPlaylist
	}

	id := u.Query().Get("list")
	if err := validateID(id); err != nil {
		return PlaylistReference{}, fmt.Errorf("playlist form: %w", err)
	}
	return PlaylistReference{RawURL: raw, PlaylistID: id}, nil
}

// ValidVideoID reports whether id is non-empty and made of id characters.
func ValidVideoID(id string) bool {
	return validateID(id) == nil
}
